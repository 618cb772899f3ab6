package notify

import (
	"reflect"
	"testing"
)

func TestTranslateQuery(t *testing.T) {
	t.Parallel()

	const textLike = `notify_fold(text) LIKE ? ESCAPE '\'`

	tests := []struct {
		name        string
		query       string
		wantWhere   string
		wantArgs    []any
		wantOrderBy string
	}{
		{name: "空の検索式は全件", query: "", wantWhere: "1 = 1"},
		{name: "空白のみも全件", query: "   ", wantWhere: "1 = 1"},
		{name: "cql.allRecords", query: "cql.allRecords=1", wantWhere: "1 = 1"},
		{name: "textの部分一致は小文字で比較する", query: "text=fiRST", wantWhere: textLike, wantArgs: []any{"%first%"}},
		{name: "インデックス省略はtextの部分一致", query: "fiRST", wantWhere: textLike, wantArgs: []any{"%first%"}},
		{name: "インデックス名は大文字小文字を区別しない", query: "TEXT=a", wantWhere: textLike, wantArgs: []any{"%a%"}},
		{name: "完全一致", query: `text=="First Notification"`, wantWhere: "notify_fold(text) = ?", wantArgs: []any{"first notification"}},
		{name: "完全一致のワイルドカード", query: "text==fir*", wantWhere: textLike, wantArgs: []any{"fir%"}},
		{name: "否定", query: "link<>users", wantWhere: "NOT (notify_fold(link) = ?)", wantArgs: []any{"users"}},
		{name: "LIKEの特殊文字はエスケープする", query: "text=50%_off", wantWhere: textLike, wantArgs: []any{`%50\%\_off%`}},
		{name: "エスケープしたワイルドカードは文字として扱う", query: `text=="a\*"`, wantWhere: "notify_fold(text) = ?", wantArgs: []any{"a*"}},
		{name: "真偽値", query: "seen=true", wantWhere: "seen = ?", wantArgs: []any{true}},
		{name: "真偽値の否定", query: "seen<>FALSE", wantWhere: "seen <> ?", wantArgs: []any{false}},
		{name: "UUIDは正規形で比較する", query: "recipientId==AAAAAAAA-1111-2222-3333-BBBBBBBBBBBB", wantWhere: "recipient_id = ?", wantArgs: []any{"aaaaaaaa-1111-2222-3333-bbbbbbbbbbbb"}},
		{name: "metadataのユーザー", query: "metadata.updatedByUserId=" + testRecipient, wantWhere: "updated_by_user_id = ?", wantArgs: []any{testRecipient}},
		{
			name:      "and",
			query:     "seen=true and text=x",
			wantWhere: "(seen = ? AND " + textLike + ")",
			wantArgs:  []any{true, "%x%"},
		},
		{
			name:      "and/or/notは左結合",
			query:     "a or b not c",
			wantWhere: "((" + textLike + " OR " + textLike + ") AND NOT " + textLike + ")",
			wantArgs:  []any{"%a%", "%b%", "%c%"},
		},
		{
			name:      "括弧",
			query:     "a and (b or c)",
			wantWhere: "(" + textLike + " AND ((" + textLike + " OR " + textLike + ")))",
			wantArgs:  []any{"%a%", "%b%", "%c%"},
		},
		{
			name:        "sortBy",
			query:       "seen=false sortBy text/sort.descending metadata.createdDate",
			wantWhere:   "seen = ?",
			wantArgs:    []any{false},
			wantOrderBy: "notify_fold(text) DESC, created_date ASC, seq ASC",
		},
		{
			name:        "cql.allRecordsとsortBy",
			query:       "cql.allRecords=1 sortBy seen",
			wantWhere:   "1 = 1",
			wantOrderBy: "seen ASC, seq ASC",
		},
		{
			name:      "日付のみの指定は日単位",
			query:     "metadata.createdDate>=2020-01-02",
			wantWhere: "created_date >= ?",
			wantArgs:  []any{"2020-01-02T00:00:00.000Z"},
		},
		{
			name:      "日付より後",
			query:     "metadata.updatedDate>2020-01-02",
			wantWhere: "updated_date >= ?",
			wantArgs:  []any{"2020-01-03T00:00:00.000Z"},
		},
		{
			name:      "日時の一致",
			query:     `metadata.createdDate="2020-01-02T10:00:00+09:00"`,
			wantWhere: "(created_date >= ? AND created_date < ?)",
			wantArgs:  []any{"2020-01-02T01:00:00.000Z", "2020-01-02T01:00:00.001Z"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := TranslateQuery(tt.query)
			if err != nil {
				t.Fatalf("予期しないエラー: %v", err)
			}
			if got.Where != tt.wantWhere {
				t.Errorf("Where: got %q, want %q", got.Where, tt.wantWhere)
			}
			if len(got.Args) != 0 || len(tt.wantArgs) != 0 {
				if !reflect.DeepEqual(got.Args, tt.wantArgs) {
					t.Errorf("Args: got %#v, want %#v", got.Args, tt.wantArgs)
				}
			}
			if got.OrderBy != tt.wantOrderBy {
				t.Errorf("OrderBy: got %q, want %q", got.OrderBy, tt.wantOrderBy)
			}
		})
	}
}

func TestTranslateQueryInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query string
	}{
		{name: "未知のインデックス", query: "priority=1"},
		{name: "真偽値でない値", query: "seen=maybe"},
		{name: "文字列の大小比較", query: "text<x"},
		{name: "UUIDの大小比較", query: "id>=" + testID},
		{name: "日付でない値", query: "metadata.createdDate>yesterday"},
		{name: "閉じていない括弧", query: "(text=x"},
		{name: "余分な閉じ括弧", query: "text=x)"},
		{name: "検索語がない", query: "text="},
		{name: "閉じていない引用符", query: `text="unterminated`},
		{name: "演算子のみ", query: "and"},
		{name: "演算子の後に条件がない", query: "text=x and"},
		{name: "条件の間に演算子がない", query: "text=x y"},
		{name: "sortByの後にインデックスがない", query: "text=x sortBy"},
		{name: "未知のソートインデックス", query: "text=x sortBy priority"},
		{name: "未知のソート修飾子", query: "text=x sortBy text/sort.random"},
		{name: "cql.allRecordsの値", query: "cql.allRecords=2"},
		{name: "引用符で囲んだインデックス", query: `"text"=x`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := TranslateQuery(tt.query)
			if KindOf(err) != KindInvalidQuery {
				t.Errorf("TranslateQuery(%q): got %v, want KindInvalidQuery", tt.query, err)
			}
		})
	}
}

func TestSelfPredicate(t *testing.T) {
	t.Parallel()

	t.Run("ユーザーIDは正規形で比較する", func(t *testing.T) {
		t.Parallel()
		got := SelfPredicate("AAAAAAAA-1111-2222-3333-BBBBBBBBBBBB")
		if got.Where != "recipient_id = ?" {
			t.Errorf("Where: got %q", got.Where)
		}
		if !reflect.DeepEqual(got.Args, []any{"aaaaaaaa-1111-2222-3333-bbbbbbbbbbbb"}) {
			t.Errorf("Args: got %#v", got.Args)
		}
	})

	t.Run("ユーザー不明の場合はどれにも一致しない", func(t *testing.T) {
		t.Parallel()
		if got := SelfPredicate(""); got.Where != "1 = 0" {
			t.Errorf("Where: got %q", got.Where)
		}
	})
}
