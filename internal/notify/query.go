package notify

import (
	"strconv"
	"strings"
	"time"
)

// Predicate はテナントのストア内で評価する検索条件。
// Whereはnotify_dataテーブルに対するSQLの条件式で、Argsはそのプレースホルダーに対応する値。
type Predicate struct {
	Where   string
	Args    []any
	OrderBy string
}

// MatchAll はすべてのレコードに一致する条件を返す。
func MatchAll() Predicate {
	return Predicate{Where: "1 = 1"}
}

// SelfPredicate は指定ユーザー宛ての通知に一致する条件を返す。
// ユーザーが不明な場合はどのレコードにも一致しない。
func SelfPredicate(userID string) Predicate {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Predicate{Where: "1 = 0"}
	}
	return Predicate{Where: "recipient_id = ?", Args: []any{canonicalUUID(strings.ToLower(userID))}}
}

type fieldKind int

const (
	textField fieldKind = iota
	uuidField
	boolField
	dateField
)

type index struct {
	column string
	kind   fieldKind
}

// indexes は検索に使用できるインデックス名（小文字）と列の対応。
var indexes = map[string]index{
	"id":                       {column: "id", kind: uuidField},
	"recipientid":              {column: "recipient_id", kind: uuidField},
	"link":                     {column: "link", kind: textField},
	"text":                     {column: "text", kind: textField},
	"seen":                     {column: "seen", kind: boolField},
	"metadata.createdbyuserid": {column: "created_by_user_id", kind: uuidField},
	"metadata.updatedbyuserid": {column: "updated_by_user_id", kind: uuidField},
	"metadata.createddate":     {column: "created_date", kind: dateField},
	"metadata.updateddate":     {column: "updated_date", kind: dateField},
}

// TranslateQuery はCQLの検索式をPredicateに変換する。
//
// 対応する構文は次のとおり。
//
//	index relation term                     (relation: = == <> < <= > >=)
//	term                                    (textの部分一致)
//	expr and expr / expr or expr / expr not expr
//	( expr )
//	expr sortBy index[/sort.ascending|/sort.descending] ...
//
// and, or, notは同じ優先順位で左結合する。
func TranslateQuery(cql string) (Predicate, error) {
	if strings.TrimSpace(cql) == "" {
		return MatchAll(), nil
	}
	tokens, err := lex(cql)
	if err != nil {
		return Predicate{}, invalidQuery(cql, err.Error())
	}

	p := &parser{tokens: tokens, query: cql}
	pred := MatchAll()
	if !p.atSortBy() {
		where, args, err := p.parseBoolean()
		if err != nil {
			return Predicate{}, err
		}
		pred.Where, pred.Args = where, args
	}
	if p.atSortBy() {
		p.next()
		orderBy, err := p.parseSort()
		if err != nil {
			return Predicate{}, err
		}
		pred.OrderBy = orderBy
	}
	if t := p.peek(); t.kind != tokEOF {
		return Predicate{}, p.unexpected(t)
	}
	return pred, nil
}

func invalidQuery(cql, reason string) *Error {
	return newError(KindInvalidQuery, "Invalid CQL query %q: %s", cql, reason)
}

type parser struct {
	tokens []token
	pos    int
	query  string
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) atSortBy() bool {
	t := p.peek()
	return t.kind == tokWord && strings.EqualFold(t.text, "sortby")
}

func (p *parser) fail(reason string) *Error {
	return invalidQuery(p.query, reason)
}

func (p *parser) unexpected(t token) *Error {
	if t.kind == tokEOF {
		return p.fail("unexpected end of query")
	}
	return p.fail("unexpected " + t.String() + " at position " + strconv.Itoa(t.pos))
}

func (p *parser) parseBoolean() (string, []any, error) {
	where, args, err := p.parseClause()
	if err != nil {
		return "", nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokWord {
			break
		}
		var op string
		switch strings.ToLower(t.text) {
		case "and":
			op = " AND "
		case "or":
			op = " OR "
		case "not":
			op = " AND NOT "
		default:
			return where, args, nil
		}
		p.next()
		right, rightArgs, err := p.parseClause()
		if err != nil {
			return "", nil, err
		}
		where = "(" + where + op + right + ")"
		args = append(args, rightArgs...)
	}
	return where, args, nil
}

func (p *parser) parseClause() (string, []any, error) {
	t := p.next()
	switch t.kind {
	case tokLParen:
		where, args, err := p.parseBoolean()
		if err != nil {
			return "", nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return "", nil, p.unexpected(closing)
		}
		return "(" + where + ")", args, nil
	case tokWord, tokString:
		if p.peek().kind == tokRelation {
			if t.kind == tokString {
				return "", nil, p.unexpected(t)
			}
			relation := p.next().text
			term := p.next()
			if term.kind != tokWord && term.kind != tokString {
				return "", nil, p.unexpected(term)
			}
			return p.clause(t.text, relation, term.text)
		}
		if t.kind == tokWord && isReserved(t.text) {
			return "", nil, p.unexpected(t)
		}
		return p.clause("cql.serverChoice", "=", t.text)
	default:
		return "", nil, p.unexpected(t)
	}
}

func isReserved(word string) bool {
	switch strings.ToLower(word) {
	case "and", "or", "not", "sortby":
		return true
	}
	return false
}

// clause は1つの検索条件をSQLに変換する。
func (p *parser) clause(name, relation, term string) (string, []any, error) {
	key := strings.ToLower(name)
	switch key {
	case "cql.allrecords":
		if term != "1" || (relation != "=" && relation != "==") {
			return "", nil, p.fail("cql.allRecords only supports =1")
		}
		return "1 = 1", nil, nil
	case "cql.serverchoice":
		key = "text"
	}

	idx, ok := indexes[key]
	if !ok {
		return "", nil, p.fail("unknown index " + name)
	}

	switch idx.kind {
	case textField:
		return p.textClause(idx.column, relation, term)
	case uuidField:
		return p.uuidClause(idx.column, relation, term)
	case boolField:
		return p.boolClause(idx.column, relation, term)
	default:
		return p.dateClause(idx.column, relation, term)
	}
}

// textClause は文字列フィールドの条件。大文字小文字を区別しない。
// = は部分一致、== は完全一致、<> は完全一致の否定。* と ? はワイルドカードとして扱う。
func (p *parser) textClause(column, relation, term string) (string, []any, error) {
	pattern, wildcard := likePattern(term)
	folded := foldFunc + "(" + column + ")"
	switch relation {
	case "=":
		return folded + " LIKE ? ESCAPE '\\'", []any{"%" + fold(pattern) + "%"}, nil
	case "==", "<>":
		var cond string
		var arg string
		if wildcard {
			cond = folded + " LIKE ? ESCAPE '\\'"
			arg = fold(pattern)
		} else {
			cond = folded + " = ?"
			arg = fold(unescape(term))
		}
		if relation == "<>" {
			cond = "NOT (" + cond + ")"
		}
		return cond, []any{arg}, nil
	default:
		return "", nil, p.fail("relation " + relation + " is not supported for " + column)
	}
}

func (p *parser) uuidClause(column, relation, term string) (string, []any, error) {
	value := canonicalUUID(strings.ToLower(unescape(term)))
	switch relation {
	case "=", "==":
		return column + " = ?", []any{value}, nil
	case "<>":
		return column + " <> ?", []any{value}, nil
	default:
		return "", nil, p.fail("relation " + relation + " is not supported for " + column)
	}
}

func (p *parser) boolClause(column, relation, term string) (string, []any, error) {
	var value bool
	switch strings.ToLower(unescape(term)) {
	case "true":
		value = true
	case "false":
		value = false
	default:
		return "", nil, p.fail(column + " must be true or false: " + term)
	}
	switch relation {
	case "=", "==":
		return column + " = ?", []any{value}, nil
	case "<>":
		return column + " <> ?", []any{value}, nil
	default:
		return "", nil, p.fail("relation " + relation + " is not supported for " + column)
	}
}

// dateClause は日時フィールドの条件。日付のみの指定はその日全体を表す。
func (p *parser) dateClause(column, relation, term string) (string, []any, error) {
	start, end, err := parseDateTerm(unescape(term))
	if err != nil {
		return "", nil, p.fail(column + " must be a date: " + term)
	}
	lo, hi := formatTime(start), formatTime(end)
	switch relation {
	case "=", "==":
		return "(" + column + " >= ? AND " + column + " < ?)", []any{lo, hi}, nil
	case "<>":
		return "NOT (" + column + " >= ? AND " + column + " < ?)", []any{lo, hi}, nil
	case "<":
		return column + " < ?", []any{lo}, nil
	case "<=":
		return column + " < ?", []any{hi}, nil
	case ">":
		return column + " >= ?", []any{hi}, nil
	case ">=":
		return column + " >= ?", []any{lo}, nil
	default:
		return "", nil, p.fail("relation " + relation + " is not supported for " + column)
	}
}

// parseDateTerm は日時の範囲 [start, end) を返す。
func parseDateTerm(term string) (time.Time, time.Time, error) {
	if t, err := time.Parse(time.DateOnly, term); err == nil {
		return t, t.AddDate(0, 0, 1), nil
	}
	t, err := time.Parse(time.RFC3339Nano, term)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	t = t.UTC().Truncate(time.Millisecond)
	return t, t.Add(time.Millisecond), nil
}

// parseSort はsortByに続くソート指定をORDER BY句に変換する。
// 同順位は挿入順に並べる。
func (p *parser) parseSort() (string, error) {
	var keys []string
	for p.peek().kind == tokWord {
		key := p.next().text
		parts := strings.Split(key, "/")
		idx, ok := indexes[strings.ToLower(parts[0])]
		if !ok {
			return "", p.fail("unknown sort index " + parts[0])
		}
		direction := "ASC"
		for _, modifier := range parts[1:] {
			switch strings.ToLower(modifier) {
			case "sort.ascending":
				direction = "ASC"
			case "sort.descending":
				direction = "DESC"
			default:
				return "", p.fail("unsupported sort modifier " + modifier)
			}
		}
		column := idx.column
		if idx.kind == textField {
			column = foldFunc + "(" + column + ")"
		}
		keys = append(keys, column+" "+direction)
	}
	if len(keys) == 0 {
		return "", p.fail("sortBy requires an index")
	}
	return strings.Join(append(keys, "seq ASC"), ", "), nil
}

// likePattern はCQLの検索語をLIKEパターンに変換する。
// バックスラッシュでエスケープされた文字はそのまま一致させる。
func likePattern(term string) (string, bool) {
	var b strings.Builder
	wildcard := false
	escaped := false
	for _, r := range term {
		if escaped {
			writeLikeLiteral(&b, r)
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case '*':
			b.WriteByte('%')
			wildcard = true
		case '?':
			b.WriteByte('_')
			wildcard = true
		default:
			writeLikeLiteral(&b, r)
		}
	}
	if escaped {
		writeLikeLiteral(&b, '\\')
	}
	return b.String(), wildcard
}

func writeLikeLiteral(b *strings.Builder, r rune) {
	if r == '%' || r == '_' || r == '\\' {
		b.WriteByte('\\')
	}
	b.WriteRune(r)
}

// unescape はバックスラッシュによるエスケープを取り除く。
func unescape(term string) string {
	if !strings.Contains(term, "\\") {
		return term
	}
	var b strings.Builder
	escaped := false
	for _, r := range term {
		if !escaped && r == '\\' {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	if escaped {
		b.WriteByte('\\')
	}
	return b.String()
}
