// Package expr implements the "=" expression language used in workflow
// documents: a small recursive-descent parser producing an AST and a
// side-effect free evaluator over a read-only Scope.
package expr

import (
	"fmt"
	"strings"
)

// Sigil marks a string value as a live expression.
const Sigil = "="

// IsExpression reports whether v is a string carrying the expression sigil.
func IsExpression(v any) bool {
	s, ok := v.(string)
	return ok && strings.HasPrefix(s, Sigil)
}

// Expression is a parsed, reusable expression. It is immutable and safe for
// concurrent evaluation.
type Expression struct {
	source string
	root   Node
}

// Compile parses an expression source. The leading sigil is optional.
func Compile(source string) (*Expression, error) {
	body := strings.TrimPrefix(source, Sigil)
	root, err := Parse(body)
	if err != nil {
		return nil, err
	}
	return &Expression{source: source, root: root}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(source string) *Expression {
	e, err := Compile(source)
	if err != nil {
		panic(fmt.Sprintf("expr: compiling %q: %v", source, err))
	}
	return e
}

func (e *Expression) String() string {
	return e.source
}

// Root returns the parsed tree.
func (e *Expression) Root() Node {
	return e.root
}

func (e *Expression) Eval(scope Scope) (any, error) {
	return Eval(e.root, scope)
}

// References returns the distinct first-level names accessed under the given
// root, e.g. References("output") on "$output.a.b & $output['c']" yields a, c.
// Dynamic accesses ($output[$vars.k]) are not reported.
func (e *Expression) References(root string) []string {
	seen := make(map[string]bool)
	var names []string
	Walk(e.root, func(n Node) bool {
		var name string
		switch v := n.(type) {
		case *Member:
			if isVariable(v.Object, root) {
				name = v.Name
			}
		case *Index:
			if isVariable(v.Object, root) {
				if lit, ok := v.Index.(*Literal); ok {
					name, _ = lit.Value.(string)
				}
			}
		}
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
		return true
	})
	return names
}

// Variables returns the distinct $roots the expression reads.
func (e *Expression) Variables() []string {
	seen := make(map[string]bool)
	var names []string
	Walk(e.root, func(n Node) bool {
		if v, ok := n.(*Variable); ok && !seen[v.Name] {
			seen[v.Name] = true
			names = append(names, v.Name)
		}
		return true
	})
	return names
}

func isVariable(n Node, name string) bool {
	v, ok := n.(*Variable)
	return ok && v.Name == name
}

// Evaluate applies the sigil convention to a single value: strings starting
// with "=" are parsed and evaluated, anything else is returned unchanged.
func Evaluate(value any, scope Scope) (any, error) {
	if !IsExpression(value) {
		return value, nil
	}
	e, err := Compile(value.(string))
	if err != nil {
		return nil, err
	}
	return e.Eval(scope)
}
