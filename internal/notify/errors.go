package notify

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind は通知サービスが返すエラーの分類。
type Kind int

const (
	// KindMissingTenant はテナントが指定されていないことを表す。
	KindMissingTenant Kind = iota + 1
	// KindInvalidTenant はテナントIDが名前空間として使用できないことを表す。
	KindInvalidTenant
	// KindUnsupportedContentType はボディのContent-TypeがJSONでないことを表す。
	KindUnsupportedContentType
	// KindMalformedBody はボディがJSONとして解析できないことを表す。
	KindMalformedBody
	// KindInvalidQuery は検索条件やページング指定が不正であることを表す。
	KindInvalidQuery
	// KindInvalidIdentifier はUUIDであるべき値がUUIDの構文でないことを表す。
	KindInvalidIdentifier
	// KindNamespaceMissing はテナントの名前空間がまだ作成されていないことを表す。
	KindNamespaceMissing
	// KindStorage はストアが返した想定外のエラーを表す。
	KindStorage
	// KindUnknownField はレコードに存在しないフィールドが含まれることを表す。
	KindUnknownField
	// KindRequiredFieldMissing は必須フィールドが欠けていることを表す。
	KindRequiredFieldMissing
	// KindIdentityMismatch は更新でIDを変更しようとしたことを表す。
	KindIdentityMismatch
	// KindNotFound は指定IDのレコードが存在しないことを表す。
	KindNotFound
	// KindConflict は同じIDのレコードが既に存在することを表す。
	KindConflict
)

var kindNames = map[Kind]string{
	KindMissingTenant:          "MissingTenant",
	KindInvalidTenant:          "InvalidTenant",
	KindUnsupportedContentType: "UnsupportedContentType",
	KindMalformedBody:          "MalformedBody",
	KindInvalidQuery:           "InvalidQuery",
	KindInvalidIdentifier:      "InvalidIdentifier",
	KindNamespaceMissing:       "NamespaceMissing",
	KindStorage:                "Storage",
	KindUnknownField:           "UnknownField",
	KindRequiredFieldMissing:   "RequiredFieldMissing",
	KindIdentityMismatch:       "IdentityMismatch",
	KindNotFound:               "NotFound",
	KindConflict:               "Conflict",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Status はエラー分類に対応するHTTPステータスコードを返す。
func (k Kind) Status() int {
	switch k {
	case KindUnknownField, KindRequiredFieldMissing, KindIdentityMismatch:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// Violation は意味検証で検出された1件の違反。
type Violation struct {
	// Field は違反のあったフィールド名。
	Field string
	// Value は違反のあった値。nullや欠落の場合は "null"。
	Value string
	// Message は違反の内容。
	Message string
}

// Error は通知サービスの操作が失敗した理由を表す。
type Error struct {
	// Kind はエラーの分類。
	Kind Kind
	// Message はクライアントに返すメッセージ。
	Message string
	// Violations は意味検証の違反一覧。422のときのみ設定される。
	Violations []Violation
	// Err は元になったエラー。
	Err error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is はKindが一致し、targetのMessageが空の場合に一致とみなす。
// errors.Is(err, ErrNotFound) のように分類だけで比較するために使用する。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// 分類だけで比較するためのエラー値。
var (
	ErrMissingTenant          = &Error{Kind: KindMissingTenant}
	ErrInvalidTenant          = &Error{Kind: KindInvalidTenant}
	ErrUnsupportedContentType = &Error{Kind: KindUnsupportedContentType}
	ErrMalformedBody          = &Error{Kind: KindMalformedBody}
	ErrInvalidQuery           = &Error{Kind: KindInvalidQuery}
	ErrInvalidIdentifier      = &Error{Kind: KindInvalidIdentifier}
	ErrNamespaceMissing       = &Error{Kind: KindNamespaceMissing}
	ErrStorage                = &Error{Kind: KindStorage}
	ErrUnknownField           = &Error{Kind: KindUnknownField}
	ErrRequiredFieldMissing   = &Error{Kind: KindRequiredFieldMissing}
	ErrIdentityMismatch       = &Error{Kind: KindIdentityMismatch}
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrConflict               = &Error{Kind: KindConflict}
)

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf はerrに含まれる*ErrorのKindを返す。*Errorを含まない場合は0を返す。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// asServiceError はストアが返したエラーを*Errorに変換する。
// 分類済みのエラーはそのまま返し、想定外のエラーは元の診断メッセージを保ったままKindStorageにする。
func asServiceError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	root := err
	for {
		next := errors.Unwrap(root)
		if next == nil {
			break
		}
		root = next
	}
	return &Error{Kind: KindStorage, Message: root.Error(), Err: err}
}
