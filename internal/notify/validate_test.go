package notify

import (
	"errors"
	"strings"
	"testing"
)

const (
	testID        = "77777777-7777-7777-7777-777777777777"
	testRecipient = "99999999-9999-9999-9999-999999999999"
)

// validateBody はJSONボディに対して構造検証と意味検証を行う。
func validateBody(t *testing.T, body string) (Notification, error) {
	t.Helper()
	c, err := ParseBody("application/json", []byte(body))
	if err != nil {
		t.Fatalf("ParseBody()でエラーが発生: %v", err)
	}
	return NewValidator().Validate(c)
}

func TestCheckTenant(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		in       string
		want     string
		wantKind Kind
	}{
		{name: "小文字のテナント", in: "testlib", want: "testlib"},
		{name: "大文字は小文字に揃える", in: "TestLib", want: "testlib"},
		{name: "数字とアンダースコア", in: "diku_2", want: "diku_2"},
		{name: "空文字", in: "", wantKind: KindMissingTenant},
		{name: "空白のみ", in: "  ", wantKind: KindMissingTenant},
		{name: "ハイフンを含む", in: "bad-tenant", wantKind: KindInvalidTenant},
		{name: "パス区切りを含む", in: "../etc", wantKind: KindInvalidTenant},
		{name: "長すぎる", in: strings.Repeat("a", 64), wantKind: KindInvalidTenant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := CheckTenant(tt.in)
			if tt.wantKind != 0 {
				if KindOf(err) != tt.wantKind {
					t.Fatalf("Kind: got %v, want %v (err=%v)", KindOf(err), tt.wantKind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("予期しないエラー: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}

	t.Run("テナント未指定のメッセージにTenantを含む", func(t *testing.T) {
		t.Parallel()
		_, err := CheckTenant("")
		if err == nil || !strings.Contains(err.Error(), "Tenant") {
			t.Errorf("メッセージにTenantが含まれるべき: %v", err)
		}
	})
}

func TestCheckID(t *testing.T) {
	t.Parallel()

	t.Run("UUIDは正規形で返す", func(t *testing.T) {
		t.Parallel()
		got, err := CheckID("AAAAAAAA-1111-2222-3333-BBBBBBBBBBBB")
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if got != "aaaaaaaa-1111-2222-3333-bbbbbbbbbbbb" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("UUIDでない値はKindInvalidIdentifier", func(t *testing.T) {
		t.Parallel()
		_, err := CheckID("777")
		if !errors.Is(err, ErrInvalidIdentifier) {
			t.Fatalf("ErrInvalidIdentifierであるべき: %v", err)
		}
		if !strings.Contains(err.Error(), "invalid input syntax for uuid") {
			t.Errorf("メッセージ: got %q", err.Error())
		}
	})
}

func TestParseBody(t *testing.T) {
	t.Parallel()

	valid := `{"id":"` + testID + `","recipientId":"` + testRecipient + `","text":"First notification"}`

	tests := []struct {
		name        string
		contentType string
		body        string
		wantKind    Kind
		wantMessage string
	}{
		{name: "Content-Type未指定", contentType: "", body: valid, wantKind: KindUnsupportedContentType, wantMessage: "Content-type"},
		{name: "JSON以外のContent-Type", contentType: "text/plain", body: valid, wantKind: KindUnsupportedContentType, wantMessage: "Content-type"},
		{name: "charset付きのJSONは受け付ける", contentType: "application/json; charset=utf-8", body: valid},
		{name: "JSONでないボディ", contentType: "application/json", body: "This is not json", wantKind: KindMalformedBody, wantMessage: "Json content error"},
		{name: "閉じ括弧の誤り", contentType: "application/json", body: strings.Replace(valid, "}", ")", 1), wantKind: KindMalformedBody, wantMessage: "Json content error"},
		{name: "空のボディ", contentType: "application/json", body: "", wantKind: KindMalformedBody},
		{name: "配列", contentType: "application/json", body: `[1,2]`, wantKind: KindMalformedBody},
		{name: "null", contentType: "application/json", body: `null`, wantKind: KindMalformedBody},
		{name: "型の誤り", contentType: "application/json", body: `{"text":"x","seen":"yes"}`, wantKind: KindMalformedBody},
		{name: "metadataがオブジェクトでない", contentType: "application/json", body: `{"text":"x","metadata":"now"}`, wantKind: KindMalformedBody},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseBody(tt.contentType, []byte(tt.body))
			if tt.wantKind == 0 {
				if err != nil {
					t.Fatalf("予期しないエラー: %v", err)
				}
				return
			}
			if KindOf(err) != tt.wantKind {
				t.Fatalf("Kind: got %v, want %v (err=%v)", KindOf(err), tt.wantKind, err)
			}
			if !strings.Contains(err.Error(), tt.wantMessage) {
				t.Errorf("メッセージに %q が含まれるべき: %q", tt.wantMessage, err.Error())
			}
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	t.Run("正しいボディからレコードを生成する", func(t *testing.T) {
		t.Parallel()
		n, err := validateBody(t, `{"id":"77777777-7777-7777-7777-77777777777A","recipientId":"`+testRecipient+`","link":"users/1","text":"hello","seen":true}`)
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if n.ID != "77777777-7777-7777-7777-77777777777a" {
			t.Errorf("ID: got %q", n.ID)
		}
		if n.recipient() != testRecipient {
			t.Errorf("RecipientID: got %q", n.recipient())
		}
		if n.Link != "users/1" || *n.Text != "hello" || !n.Seen {
			t.Errorf("got %+v", n)
		}
	})

	t.Run("空文字のtextとID未指定は受け付ける", func(t *testing.T) {
		t.Parallel()
		n, err := validateBody(t, `{"recipientId":"`+testRecipient+`","text":""}`)
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if n.ID != "" || n.Text == nil || *n.Text != "" || n.Seen {
			t.Errorf("got %+v", n)
		}
	})

	t.Run("クライアントのmetadataは受け付けて無視する", func(t *testing.T) {
		t.Parallel()
		n, err := validateBody(t, `{"recipientId":"`+testRecipient+`","text":"x","metadata":{"createdDate":"2020-01-01T00:00:00Z","createdByUserId":"someone"}}`)
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if n.Metadata != nil {
			t.Errorf("Metadata: got %+v, want nil", n.Metadata)
		}
	})

	t.Run("未知のフィールドと必須フィールドの欠落をまとめて報告する", func(t *testing.T) {
		t.Parallel()
		_, err := validateBody(t, `{"id":"`+testID+`","recipientId":"`+testRecipient+`","badFieldName":"First notification"}`)
		var e *Error
		if !errors.As(err, &e) {
			t.Fatalf("*Errorであるべき: %v", err)
		}
		if e.Kind != KindRequiredFieldMissing {
			t.Errorf("Kind: got %v, want %v", e.Kind, KindRequiredFieldMissing)
		}
		want := []Violation{
			{Field: "badFieldName", Value: `"First notification"`, Message: "Unrecognized field"},
			{Field: "text", Value: "null", Message: "may not be null"},
		}
		if len(e.Violations) != len(want) {
			t.Fatalf("Violations: got %+v, want %+v", e.Violations, want)
		}
		for i := range want {
			if e.Violations[i] != want[i] {
				t.Errorf("Violations[%d]: got %+v, want %+v", i, e.Violations[i], want[i])
			}
		}
	})

	t.Run("nullは欠落として扱う", func(t *testing.T) {
		t.Parallel()
		_, err := validateBody(t, `{"recipientId":null,"text":null}`)
		var e *Error
		if !errors.As(err, &e) {
			t.Fatalf("*Errorであるべき: %v", err)
		}
		if len(e.Violations) != 2 {
			t.Fatalf("Violations: got %+v", e.Violations)
		}
		if e.Violations[0].Field != "recipientId" || e.Violations[1].Field != "text" {
			t.Errorf("Violations: got %+v", e.Violations)
		}
	})

	t.Run("未知のフィールドのみの場合はKindUnknownField", func(t *testing.T) {
		t.Parallel()
		_, err := validateBody(t, `{"recipientId":"`+testRecipient+`","text":"x","priority":1,"metadata":{"owner":"x"}}`)
		var e *Error
		if !errors.As(err, &e) {
			t.Fatalf("*Errorであるべき: %v", err)
		}
		if !errors.Is(err, ErrUnknownField) {
			t.Errorf("Kind: got %v, want %v", e.Kind, KindUnknownField)
		}
		if len(e.Violations) != 2 || e.Violations[0].Field != "priority" || e.Violations[1].Field != "metadata.owner" {
			t.Errorf("Violations: got %+v", e.Violations)
		}
	})

	t.Run("UUIDの構文違反はKindInvalidIdentifier", func(t *testing.T) {
		t.Parallel()
		_, err := validateBody(t, `{"id":"11111111-2-1111-333-111111111111","recipientId":"`+testRecipient+`","text":"x"}`)
		if !errors.Is(err, ErrInvalidIdentifier) {
			t.Fatalf("ErrInvalidIdentifierであるべき: %v", err)
		}
		if !strings.Contains(err.Error(), `invalid input syntax for uuid: "11111111-2-1111-333-111111111111"`) {
			t.Errorf("メッセージ: got %q", err.Error())
		}
	})

	t.Run("構造の違反はUUIDの構文違反より優先する", func(t *testing.T) {
		t.Parallel()
		_, err := validateBody(t, `{"id":"bad","recipientId":"`+testRecipient+`"}`)
		if KindOf(err) != KindRequiredFieldMissing {
			t.Errorf("Kind: got %v, want %v", KindOf(err), KindRequiredFieldMissing)
		}
	})
}

func TestCheckIdentity(t *testing.T) {
	t.Parallel()

	t.Run("ボディにIDがなければパスのIDを採用する", func(t *testing.T) {
		t.Parallel()
		n := Notification{}
		if err := CheckIdentity(strings.ToUpper(testID), &n); err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if n.ID != testID {
			t.Errorf("ID: got %q, want %q", n.ID, testID)
		}
	})

	t.Run("大文字小文字の違いは同じIDとみなす", func(t *testing.T) {
		t.Parallel()
		n := Notification{ID: testID}
		if err := CheckIdentity(strings.ToUpper(testID), &n); err != nil {
			t.Errorf("予期しないエラー: %v", err)
		}
	})

	tests := []struct {
		name   string
		pathID string
	}{
		{name: "異なるUUID", pathID: "88888888-8888-8888-8888-888888888888"},
		{name: "UUIDでないパス", pathID: "777"},
	}
	for _, tt := range tests {
		t.Run(tt.name+"はKindIdentityMismatch", func(t *testing.T) {
			t.Parallel()
			n := Notification{ID: testID}
			err := CheckIdentity(tt.pathID, &n)
			var e *Error
			if !errors.As(err, &e) || e.Kind != KindIdentityMismatch {
				t.Fatalf("KindIdentityMismatchであるべき: %v", err)
			}
			if e.Message != "Can not change the id" {
				t.Errorf("Message: got %q", e.Message)
			}
			if len(e.Violations) != 1 || e.Violations[0].Field != "id" || e.Violations[0].Value != testID {
				t.Errorf("Violations: got %+v", e.Violations)
			}
		})
	}
}
