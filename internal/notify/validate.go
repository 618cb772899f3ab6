package notify

import (
	"errors"
	"fmt"
	"mime"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

const jsonContentType = "application/json"

// tenantPattern はテナントIDとして使用できる文字列。名前空間名とファイル名の一部になる。
var tenantPattern = regexp.MustCompile(`^[a-z0-9_]{1,63}$`)

// knownFields はレコードのトップレベルフィールド。
var knownFields = map[string]bool{
	"id":          true,
	"recipientId": true,
	"link":        true,
	"text":        true,
	"seen":        true,
	"metadata":    true,
}

// knownMetadataFields はmetadataのフィールド。値は受け付けるが保存時に上書きする。
var knownMetadataFields = map[string]bool{
	"createdDate":     true,
	"createdByUserId": true,
	"updatedDate":     true,
	"updatedByUserId": true,
}

// CheckTenant はテナントIDを検査し、正規化した値を返す。
// すべての操作で他の検証より先に呼び出す。
func CheckTenant(tenant string) (string, error) {
	tenant = strings.ToLower(strings.TrimSpace(tenant))
	if tenant == "" {
		return "", newError(KindMissingTenant, "Tenant must be set in the X-Okapi-Tenant header")
	}
	if !tenantPattern.MatchString(tenant) {
		return "", newError(KindInvalidTenant, "Tenant %q is not a valid tenant id", tenant)
	}
	return tenant, nil
}

// CheckID はパスで指定されたIDがUUIDの構文であることを検査し、正規形を返す。
func CheckID(id string) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", invalidUUIDError(id)
	}
	return u.String(), nil
}

func invalidUUIDError(value string) *Error {
	return newError(KindInvalidIdentifier, `invalid input syntax for uuid: "%s"`, value)
}

// canonicalUUID はUUIDを小文字ハイフン区切りの形に揃える。UUIDでなければそのまま返す。
func canonicalUUID(s string) string {
	u, err := uuid.Parse(s)
	if err != nil {
		return s
	}
	return u.String()
}

// payload は作成・更新リクエストのボディ。
// nullと欠落を区別するためにポインタで受け取る。
type payload struct {
	ID          *string         `json:"id" validate:"omitempty,uuid_syntax"`
	RecipientID *string         `json:"recipientId" validate:"required,uuid_syntax"`
	Link        *string         `json:"link"`
	Text        *string         `json:"text" validate:"required"`
	Seen        *bool           `json:"seen"`
	Metadata    json.RawMessage `json:"metadata"`
}

// Candidate は構造検証を通過したリクエストボディ。
type Candidate struct {
	// fields はボディに含まれていたトップレベルのキーと値。
	fields map[string]json.RawMessage
	// metadataFields はmetadataに含まれていたキーと値。
	metadataFields map[string]json.RawMessage
	payload        payload
}

// ParseBody はContent-TypeとJSONの構文を検証し、ボディを解析する。
func ParseBody(contentType string, body []byte) (*Candidate, error) {
	if !isJSONContentType(contentType) {
		return nil, newError(KindUnsupportedContentType,
			`Content-type header must be ["%s"] but it is %q`, jsonContentType, contentType)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, malformed(err)
	}
	if !json.Valid(body) {
		return nil, malformed(errors.New("invalid JSON"))
	}
	if fields == nil {
		return nil, malformed(errors.New("body must be a JSON object"))
	}

	c := &Candidate{fields: fields}
	if err := json.Unmarshal(body, &c.payload); err != nil {
		return nil, malformed(err)
	}
	if len(c.payload.Metadata) > 0 && string(c.payload.Metadata) != "null" {
		if err := json.Unmarshal(c.payload.Metadata, &c.metadataFields); err != nil {
			return nil, malformed(fmt.Errorf("metadata: %w", err))
		}
	}
	return c, nil
}

func malformed(err error) *Error {
	return &Error{Kind: KindMalformedBody, Message: "Json content error " + err.Error(), Err: err}
}

func isJSONContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == jsonContentType
}

// Validator はレコードの意味検証を行う。
// 最初の違反で止めずにすべての違反を集める。
type Validator struct {
	validate *validator.Validate
}

// NewValidator は新しいValidatorを生成する。
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("uuid_syntax", func(fl validator.FieldLevel) bool {
		_, err := uuid.Parse(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(err)
	}
	return &Validator{validate: v}
}

// Validate はボディの形を検証し、保存可能なレコードを返す。
//
// 未知のフィールドと必須フィールドの欠落は422としてまとめて報告する。
// それらがない場合に限り、UUIDの構文違反を400として報告する。
func (v *Validator) Validate(c *Candidate) (Notification, error) {
	var violations []Violation
	for _, name := range sortedKeys(c.fields) {
		if !knownFields[name] {
			violations = append(violations, Violation{Field: name, Value: string(c.fields[name]), Message: "Unrecognized field"})
		}
	}
	for _, name := range sortedKeys(c.metadataFields) {
		if !knownMetadataFields[name] {
			violations = append(violations, Violation{Field: "metadata." + name, Value: string(c.metadataFields[name]), Message: "Unrecognized field"})
		}
	}
	unknown := len(violations)

	var invalidIDs []string
	if err := v.validate.Struct(c.payload); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return Notification{}, fmt.Errorf("検証の実行に失敗: %w", err)
		}
		for _, fe := range verrs {
			switch fe.Tag() {
			case "required":
				violations = append(violations, Violation{Field: fe.Field(), Value: "null", Message: "may not be null"})
			case "uuid_syntax":
				invalidIDs = append(invalidIDs, c.payload.stringField(fe.Field()))
			}
		}
	}

	if len(violations) > 0 {
		kind := KindUnknownField
		if len(violations) > unknown {
			kind = KindRequiredFieldMissing
		}
		return Notification{}, &Error{Kind: kind, Message: summarize(violations), Violations: violations}
	}
	if len(invalidIDs) > 0 {
		msgs := make([]string, 0, len(invalidIDs))
		for _, id := range invalidIDs {
			msgs = append(msgs, invalidUUIDError(id).Message)
		}
		return Notification{}, newError(KindInvalidIdentifier, "%s", strings.Join(msgs, "; "))
	}

	p := c.payload
	n := Notification{
		RecipientID: ptrTo(canonicalUUID(*p.RecipientID)),
		Text:        p.Text,
	}
	if p.ID != nil {
		n.ID = canonicalUUID(*p.ID)
	}
	if p.Link != nil {
		n.Link = *p.Link
	}
	if p.Seen != nil {
		n.Seen = *p.Seen
	}
	return n, nil
}

// CheckIdentity はボディのIDがパスのIDと一致することを検査する。
// パスのIDが存在するかどうかに関係なく検査する。ボディにIDがなければパスのIDを採用する。
func CheckIdentity(pathID string, n *Notification) error {
	want := canonicalUUID(pathID)
	if n.ID == "" {
		n.ID = want
		return nil
	}
	if n.ID != want {
		const msg = "Can not change the id"
		return &Error{
			Kind:       KindIdentityMismatch,
			Message:    msg,
			Violations: []Violation{{Field: "id", Value: n.ID, Message: msg}},
		}
	}
	return nil
}

func (p payload) stringField(name string) string {
	switch name {
	case "id":
		if p.ID != nil {
			return *p.ID
		}
	case "recipientId":
		if p.RecipientID != nil {
			return *p.RecipientID
		}
	}
	return ""
}

func summarize(violations []Violation) string {
	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		parts = append(parts, v.Field+" "+v.Message)
	}
	return strings.Join(parts, "; ")
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func ptrTo[T any](v T) *T {
	return &v
}
