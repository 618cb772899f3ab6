package notify

import (
	"errors"
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokString
	tokRelation
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) String() string {
	switch t.kind {
	case tokString:
		return fmt.Sprintf("string %q", t.text)
	case tokLParen, tokRParen, tokRelation:
		return fmt.Sprintf("%q", t.text)
	case tokEOF:
		return "end of query"
	default:
		return fmt.Sprintf("word %q", t.text)
	}
}

// lex はCQLの検索式をトークンに分割する。
// 引用符内の \" は " に置き換え、それ以外のエスケープはワイルドカード処理のために残す。
func lex(input string) ([]token, error) {
	var tokens []token
	for i := 0; i < len(input); {
		c := input[i]
		switch {
		case isSpace(c):
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == '"':
			start := i
			var b strings.Builder
			i++
			closed := false
			for i < len(input) {
				if input[i] == '\\' && i+1 < len(input) {
					if input[i+1] == '"' {
						b.WriteByte('"')
					} else {
						b.WriteString(input[i : i+2])
					}
					i += 2
					continue
				}
				if input[i] == '"' {
					closed = true
					i++
					break
				}
				b.WriteByte(input[i])
				i++
			}
			if !closed {
				return nil, errors.New("unterminated quoted string")
			}
			tokens = append(tokens, token{kind: tokString, text: b.String(), pos: start})
		case isRelationChar(c):
			if i+1 < len(input) {
				switch two := input[i : i+2]; two {
				case "==", "<>", "<=", ">=":
					tokens = append(tokens, token{kind: tokRelation, text: two, pos: i})
					i += 2
					continue
				}
			}
			tokens = append(tokens, token{kind: tokRelation, text: string(c), pos: i})
			i++
		default:
			start := i
			for i < len(input) && !isDelimiter(input[i]) {
				i++
			}
			tokens = append(tokens, token{kind: tokWord, text: input[start:i], pos: start})
		}
	}
	return append(tokens, token{kind: tokEOF, pos: len(input)}), nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isRelationChar(c byte) bool {
	return c == '=' || c == '<' || c == '>'
}

func isDelimiter(c byte) bool {
	return isSpace(c) || isRelationChar(c) || c == '(' || c == ')' || c == '"'
}
