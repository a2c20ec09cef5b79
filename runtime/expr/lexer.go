package expr

import (
	"fmt"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokVariable // $name
	tokOperator
	tokPunct
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of expression"
	case tokNumber:
		return "number"
	case tokString:
		return "string"
	case tokIdent:
		return "identifier"
	case tokVariable:
		return "variable"
	case tokOperator:
		return "operator"
	case tokPunct:
		return "punctuation"
	}
	return "unknown"
}

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

// operators sorted so that longer forms are matched first.
var operators = []string{
	"??", "==", "!=", "<=", ">=", "&&", "||",
	"=", "<", ">", "+", "-", "*", "/", "%", "&", "!", "?", ":",
}

// lexer turns an expression source into tokens. It follows the same
// byte-scanner approach as the flow parser: a source string and a cursor.
type lexer struct {
	source string
	pos    int
}

func tokenize(source string) ([]token, error) {
	l := &lexer{source: source}
	var tokens []token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.kind == tokEOF {
			return tokens, nil
		}
	}
}

func (l *lexer) next() (token, error) {
	l.skipWhitespace()
	if l.pos >= len(l.source) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	ch := l.source[l.pos]

	switch {
	case ch == '"' || ch == '\'':
		s, err := l.readString(ch)
		if err != nil {
			return token{}, err
		}
		return token{kind: tokString, text: s, pos: start}, nil

	case isDigit(ch) || (ch == '.' && l.pos+1 < len(l.source) && isDigit(l.source[l.pos+1])):
		return l.readNumber()

	case ch == '$':
		l.pos++
		name := l.readIdent()
		if name == "" {
			return token{}, &SyntaxError{Pos: start, Msg: "expected variable name after '$'"}
		}
		return token{kind: tokVariable, text: name, pos: start}, nil

	case isIdentStart(ch):
		return token{kind: tokIdent, text: l.readIdent(), pos: start}, nil

	case strings.IndexByte("()[]{},.", ch) >= 0:
		l.pos++
		return token{kind: tokPunct, text: string(ch), pos: start}, nil
	}

	for _, op := range operators {
		if strings.HasPrefix(l.source[l.pos:], op) {
			l.pos += len(op)
			return token{kind: tokOperator, text: op, pos: start}, nil
		}
	}

	return token{}, &SyntaxError{Pos: start, Msg: fmt.Sprintf("unexpected character %q", ch)}
}

func (l *lexer) skipWhitespace() {
	for l.pos < len(l.source) {
		switch l.source[l.pos] {
		case ' ', '\t', '\n', '\r':
			l.pos++
		default:
			return
		}
	}
}

func (l *lexer) readIdent() string {
	start := l.pos
	for l.pos < len(l.source) && isIdentChar(l.source[l.pos]) {
		l.pos++
	}
	return l.source[start:l.pos]
}

func (l *lexer) readNumber() (token, error) {
	start := l.pos
	for l.pos < len(l.source) && isDigit(l.source[l.pos]) {
		l.pos++
	}
	if l.pos < len(l.source) && l.source[l.pos] == '.' && l.pos+1 < len(l.source) && isDigit(l.source[l.pos+1]) {
		l.pos++
		for l.pos < len(l.source) && isDigit(l.source[l.pos]) {
			l.pos++
		}
	}
	if l.pos < len(l.source) && (l.source[l.pos] == 'e' || l.source[l.pos] == 'E') {
		l.pos++
		if l.pos < len(l.source) && (l.source[l.pos] == '+' || l.source[l.pos] == '-') {
			l.pos++
		}
		if l.pos >= len(l.source) || !isDigit(l.source[l.pos]) {
			return token{}, &SyntaxError{Pos: start, Msg: "malformed number exponent"}
		}
		for l.pos < len(l.source) && isDigit(l.source[l.pos]) {
			l.pos++
		}
	}

	text := l.source[start:l.pos]
	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return token{}, &SyntaxError{Pos: start, Msg: fmt.Sprintf("invalid number %q", text)}
	}
	return token{kind: tokNumber, text: text, num: n, pos: start}, nil
}

// readString reads a quoted string literal, handling the usual escapes.
func (l *lexer) readString(quote byte) (string, error) {
	start := l.pos
	l.pos++ // opening quote

	var sb strings.Builder
	for l.pos < len(l.source) {
		ch := l.source[l.pos]
		switch ch {
		case quote:
			l.pos++
			return sb.String(), nil
		case '\\':
			if l.pos+1 >= len(l.source) {
				return "", &SyntaxError{Pos: l.pos, Msg: "unterminated escape sequence"}
			}
			l.pos++
			switch esc := l.source[l.pos]; esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case 'u':
				if l.pos+4 >= len(l.source) {
					return "", &SyntaxError{Pos: l.pos, Msg: "short unicode escape"}
				}
				code, err := strconv.ParseUint(l.source[l.pos+1:l.pos+5], 16, 32)
				if err != nil {
					return "", &SyntaxError{Pos: l.pos, Msg: "invalid unicode escape"}
				}
				sb.WriteRune(rune(code))
				l.pos += 4
			default:
				sb.WriteByte(esc)
			}
			l.pos++
		default:
			sb.WriteByte(ch)
			l.pos++
		}
	}

	return "", &SyntaxError{Pos: start, Msg: "unterminated string literal"}
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentChar(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}
