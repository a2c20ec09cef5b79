package expr

import (
	"fmt"
)

// SyntaxError reports a malformed expression. Pos is a byte offset into the
// expression source (without the leading sigil).
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at position %d: %s", e.Pos, e.Msg)
}

// Parse parses an expression source (without the leading '=') into an AST.
//
// Precedence, lowest first:
//
//	?:  ??  or ||  and &&  = == !=  < <= > >= in  &  + -  * / %  unary  postfix
func Parse(source string) (Node, error) {
	tokens, err := tokenize(source)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}

	if p.peek().kind == tokEOF {
		return nil, &SyntaxError{Pos: 0, Msg: "empty expression"}
	}

	node, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, &SyntaxError{Pos: tok.pos, Msg: fmt.Sprintf("unexpected %s %q", tok.kind, tok.text)}
	}
	return node, nil
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) advance() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

// match consumes the next token if it is an operator, punctuation or keyword
// with one of the given spellings.
func (p *parser) match(texts ...string) (token, bool) {
	tok := p.peek()
	if tok.kind != tokOperator && tok.kind != tokPunct && tok.kind != tokIdent {
		return tok, false
	}
	for _, t := range texts {
		if tok.text == t {
			p.advance()
			return tok, true
		}
	}
	return tok, false
}

func (p *parser) expect(text string) (token, error) {
	tok, ok := p.match(text)
	if !ok {
		return tok, &SyntaxError{Pos: tok.pos, Msg: fmt.Sprintf("expected %q, got %s %q", text, tok.kind, tok.text)}
	}
	return tok, nil
}

func (p *parser) parseExpression() (Node, error) {
	return p.parseTernary()
}

func (p *parser) parseTernary() (Node, error) {
	cond, err := p.parseCoalesce()
	if err != nil {
		return nil, err
	}
	tok, ok := p.match("?")
	if !ok {
		return cond, nil
	}

	then, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(":"); err != nil {
		return nil, err
	}
	els, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &Conditional{At: tok.pos, Cond: cond, Then: then, Else: els}, nil
}

// binaryLevel parses a left-associative chain of operators at one precedence level.
func (p *parser) binaryLevel(next func() (Node, error), ops ...string) (Node, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := p.match(ops...)
		if !ok {
			return left, nil
		}
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &Binary{At: tok.pos, Op: normalizeOp(tok.text), Left: left, Right: right}
	}
}

func normalizeOp(op string) string {
	switch op {
	case "||":
		return "or"
	case "&&":
		return "and"
	case "==":
		return "="
	}
	return op
}

func (p *parser) parseCoalesce() (Node, error) {
	return p.binaryLevel(p.parseOr, "??")
}

func (p *parser) parseOr() (Node, error) {
	return p.binaryLevel(p.parseAnd, "or", "||")
}

func (p *parser) parseAnd() (Node, error) {
	return p.binaryLevel(p.parseEquality, "and", "&&")
}

func (p *parser) parseEquality() (Node, error) {
	return p.binaryLevel(p.parseComparison, "=", "==", "!=")
}

func (p *parser) parseComparison() (Node, error) {
	return p.binaryLevel(p.parseConcat, "<", "<=", ">", ">=", "in")
}

func (p *parser) parseConcat() (Node, error) {
	return p.binaryLevel(p.parseAdditive, "&")
}

func (p *parser) parseAdditive() (Node, error) {
	return p.binaryLevel(p.parseMultiplicative, "+", "-")
}

func (p *parser) parseMultiplicative() (Node, error) {
	return p.binaryLevel(p.parseUnary, "*", "/", "%")
}

func (p *parser) parseUnary() (Node, error) {
	if tok, ok := p.match("-", "!", "not"); ok {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		op := tok.text
		if op == "not" {
			op = "!"
		}
		return &Unary{At: tok.pos, Op: op, Operand: operand}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (Node, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.peek()
		if tok.kind != tokPunct {
			return node, nil
		}
		switch tok.text {
		case ".":
			p.advance()
			name := p.advance()
			if name.kind != tokIdent {
				return nil, &SyntaxError{Pos: name.pos, Msg: fmt.Sprintf("expected property name after '.', got %s %q", name.kind, name.text)}
			}
			node = &Member{At: tok.pos, Object: node, Name: name.text}
		case "[":
			p.advance()
			idx, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect("]"); err != nil {
				return nil, err
			}
			node = &Index{At: tok.pos, Object: node, Index: idx}
		case "(":
			return nil, &SyntaxError{Pos: tok.pos, Msg: "only $functions can be called"}
		default:
			return node, nil
		}
	}
}

func (p *parser) parsePrimary() (Node, error) {
	tok := p.advance()

	switch tok.kind {
	case tokNumber:
		return &Literal{At: tok.pos, Value: tok.num}, nil

	case tokString:
		return &Literal{At: tok.pos, Value: tok.text}, nil

	case tokIdent:
		switch tok.text {
		case "true":
			return &Literal{At: tok.pos, Value: true}, nil
		case "false":
			return &Literal{At: tok.pos, Value: false}, nil
		case "null":
			return &Literal{At: tok.pos, Value: nil}, nil
		}
		return nil, &SyntaxError{Pos: tok.pos, Msg: fmt.Sprintf("unexpected identifier %q (references start with '$')", tok.text)}

	case tokVariable:
		if p.peek().kind == tokPunct && p.peek().text == "(" {
			return p.parseCall(tok)
		}
		return &Variable{At: tok.pos, Name: tok.text}, nil

	case tokPunct:
		switch tok.text {
		case "(":
			node, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(")"); err != nil {
				return nil, err
			}
			return node, nil
		case "[":
			return p.parseArray(tok)
		case "{":
			return p.parseObject(tok)
		}

	case tokEOF:
		return nil, &SyntaxError{Pos: tok.pos, Msg: "unexpected end of expression"}
	}

	return nil, &SyntaxError{Pos: tok.pos, Msg: fmt.Sprintf("unexpected %s %q", tok.kind, tok.text)}
}

func (p *parser) parseCall(name token) (Node, error) {
	if _, ok := builtins[name.text]; !ok {
		return nil, &SyntaxError{Pos: name.pos, Msg: fmt.Sprintf("unknown function $%s", name.text)}
	}
	p.advance() // (

	call := &Call{At: name.pos, Name: name.text}
	if _, ok := p.match(")"); ok {
		return call, nil
	}
	for {
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		if _, ok := p.match(","); ok {
			continue
		}
		if _, err := p.expect(")"); err != nil {
			return nil, err
		}
		return call, nil
	}
}

func (p *parser) parseArray(open token) (Node, error) {
	arr := &ArrayLit{At: open.pos}
	if _, ok := p.match("]"); ok {
		return arr, nil
	}
	for {
		item, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		arr.Items = append(arr.Items, item)
		if _, ok := p.match(","); ok {
			continue
		}
		if _, err := p.expect("]"); err != nil {
			return nil, err
		}
		return arr, nil
	}
}

func (p *parser) parseObject(open token) (Node, error) {
	obj := &ObjectLit{At: open.pos}
	if _, ok := p.match("}"); ok {
		return obj, nil
	}
	for {
		key := p.advance()
		if key.kind != tokString && key.kind != tokIdent {
			return nil, &SyntaxError{Pos: key.pos, Msg: fmt.Sprintf("expected object key, got %s %q", key.kind, key.text)}
		}
		if _, err := p.expect(":"); err != nil {
			return nil, err
		}
		val, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		obj.Keys = append(obj.Keys, key.text)
		obj.Values = append(obj.Values, val)

		if _, ok := p.match(","); ok {
			continue
		}
		if _, err := p.expect("}"); err != nil {
			return nil, err
		}
		return obj, nil
	}
}
