package expr

import (
	"fmt"
	"sort"
)

// Template is a compiled value that may contain expressions at any depth:
// a literal, an expression string, or a map/list of templates.
type Template struct {
	literal any
	expr    *Expression
	fields  map[string]*Template
	items   []*Template
	kind    templateKind
}

type templateKind int

const (
	kindLiteral templateKind = iota
	kindExpression
	kindMap
	kindList
)

// PathError locates a compile failure inside a nested template value.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	if e.Path == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// CompileTemplate walks v and parses every expression string it contains.
func CompileTemplate(v any) (*Template, error) {
	return compileTemplate(v, "")
}

func compileTemplate(v any, path string) (*Template, error) {
	switch val := v.(type) {
	case string:
		if !IsExpression(val) {
			return &Template{kind: kindLiteral, literal: val}, nil
		}
		e, err := Compile(val)
		if err != nil {
			return nil, &PathError{Path: path, Err: err}
		}
		return &Template{kind: kindExpression, expr: e}, nil

	case map[string]any:
		t := &Template{kind: kindMap, fields: make(map[string]*Template, len(val))}
		for k, item := range val {
			child, err := compileTemplate(item, joinPath(path, k))
			if err != nil {
				return nil, err
			}
			t.fields[k] = child
		}
		return t, nil

	case []any:
		t := &Template{kind: kindList, items: make([]*Template, len(val))}
		for i, item := range val {
			child, err := compileTemplate(item, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			t.items[i] = child
		}
		return t, nil

	case map[any]any:
		m := make(map[string]any, len(val))
		for k, item := range val {
			m[fmt.Sprint(k)] = item
		}
		return compileTemplate(m, path)
	}

	return &Template{kind: kindLiteral, literal: v}, nil
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

// IsExpression reports whether the template is a single expression value.
func (t *Template) IsExpression() bool {
	return t.kind == kindExpression
}

// Expression returns the expression of a single-expression template.
func (t *Template) Expression() *Expression {
	return t.expr
}

// Field returns the template of a top-level map field.
func (t *Template) Field(name string) (*Template, bool) {
	if t.kind != kindMap {
		return nil, false
	}
	f, ok := t.fields[name]
	return f, ok
}

// Fields returns the top-level map keys in sorted order.
func (t *Template) Fields() []string {
	keys := make([]string, 0, len(t.fields))
	for k := range t.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Expressions returns every expression contained in the template.
func (t *Template) Expressions() []*Expression {
	var out []*Expression
	switch t.kind {
	case kindExpression:
		out = append(out, t.expr)
	case kindMap:
		for _, k := range t.Fields() {
			out = append(out, t.fields[k].Expressions()...)
		}
	case kindList:
		for _, item := range t.items {
			out = append(out, item.Expressions()...)
		}
	}
	return out
}

// Eval renders the template against scope. Maps and lists are rebuilt on
// every call, so results never alias the template or each other.
func (t *Template) Eval(scope Scope) (any, error) {
	return t.eval(scope, "")
}

func (t *Template) eval(scope Scope, path string) (any, error) {
	switch t.kind {
	case kindExpression:
		v, err := t.expr.Eval(scope)
		if err != nil {
			return nil, &PathError{Path: path, Err: err}
		}
		return v, nil

	case kindMap:
		out := make(map[string]any, len(t.fields))
		for k, f := range t.fields {
			v, err := f.eval(scope, joinPath(path, k))
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil

	case kindList:
		out := make([]any, len(t.items))
		for i, item := range t.items {
			v, err := item.eval(scope, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}

	return t.literal, nil
}
