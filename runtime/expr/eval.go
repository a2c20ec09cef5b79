package expr

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Scope holds the reference roots visible to an expression, keyed without the
// leading '$' (vars, output, input, ...). Evaluation never writes to it.
type Scope map[string]any

// EvalError reports a failure while evaluating a well-formed expression,
// such as arithmetic on a string.
type EvalError struct {
	Pos int
	Msg string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("evaluation error at position %d: %s", e.Pos, e.Msg)
}

func evalErr(n Node, format string, args ...any) error {
	return &EvalError{Pos: n.Pos(), Msg: fmt.Sprintf(format, args...)}
}

// Eval evaluates a parsed expression tree against scope. Unknown roots and
// missing paths evaluate to nil.
func Eval(n Node, scope Scope) (any, error) {
	switch v := n.(type) {
	case *Literal:
		return v.Value, nil

	case *Variable:
		return scope[v.Name], nil

	case *Member:
		obj, err := Eval(v.Object, scope)
		if err != nil {
			return nil, err
		}
		return property(obj, v.Name), nil

	case *Index:
		obj, err := Eval(v.Object, scope)
		if err != nil {
			return nil, err
		}
		idx, err := Eval(v.Index, scope)
		if err != nil {
			return nil, err
		}
		return index(obj, idx), nil

	case *Call:
		args := make([]any, len(v.Args))
		for i, a := range v.Args {
			val, err := Eval(a, scope)
			if err != nil {
				return nil, err
			}
			args[i] = val
		}
		fn := builtins[v.Name]
		out, err := fn(args)
		if err != nil {
			return nil, evalErr(v, "$%s: %v", v.Name, err)
		}
		return out, nil

	case *Unary:
		operand, err := Eval(v.Operand, scope)
		if err != nil {
			return nil, err
		}
		if v.Op == "!" {
			return !Truthy(operand), nil
		}
		if operand == nil {
			return nil, nil
		}
		num, ok := toNumber(operand)
		if !ok {
			return nil, evalErr(v, "cannot negate %s", typeName(operand))
		}
		return -num, nil

	case *Binary:
		return evalBinary(v, scope)

	case *Conditional:
		cond, err := Eval(v.Cond, scope)
		if err != nil {
			return nil, err
		}
		if Truthy(cond) {
			return Eval(v.Then, scope)
		}
		return Eval(v.Else, scope)

	case *ArrayLit:
		out := make([]any, 0, len(v.Items))
		for _, item := range v.Items {
			val, err := Eval(item, scope)
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
		return out, nil

	case *ObjectLit:
		out := make(map[string]any, len(v.Keys))
		for i, key := range v.Keys {
			val, err := Eval(v.Values[i], scope)
			if err != nil {
				return nil, err
			}
			out[key] = val
		}
		return out, nil
	}

	return nil, fmt.Errorf("unsupported node %T", n)
}

func evalBinary(b *Binary, scope Scope) (any, error) {
	left, err := Eval(b.Left, scope)
	if err != nil {
		return nil, err
	}

	// short-circuit operators
	switch b.Op {
	case "??":
		if left != nil {
			return left, nil
		}
		return Eval(b.Right, scope)
	case "and":
		if !Truthy(left) {
			return false, nil
		}
		right, err := Eval(b.Right, scope)
		if err != nil {
			return nil, err
		}
		return Truthy(right), nil
	case "or":
		if Truthy(left) {
			return true, nil
		}
		right, err := Eval(b.Right, scope)
		if err != nil {
			return nil, err
		}
		return Truthy(right), nil
	}

	right, err := Eval(b.Right, scope)
	if err != nil {
		return nil, err
	}

	switch b.Op {
	case "=":
		return Equal(left, right), nil
	case "!=":
		return !Equal(left, right), nil
	case "<", "<=", ">", ">=":
		return compare(b, left, right)
	case "in":
		return contains(right, left), nil
	case "&":
		return ToString(left) + ToString(right), nil
	case "+":
		_, ls := left.(string)
		_, rs := right.(string)
		if ls || rs {
			return ToString(left) + ToString(right), nil
		}
		return arithmetic(b, left, right)
	case "-", "*", "/", "%":
		return arithmetic(b, left, right)
	}

	return nil, evalErr(b, "unknown operator %q", b.Op)
}

func arithmetic(b *Binary, left, right any) (any, error) {
	if left == nil || right == nil {
		return nil, nil
	}
	l, lok := toNumber(left)
	r, rok := toNumber(right)
	if !lok || !rok {
		return nil, evalErr(b, "operator %q expects numbers, got %s and %s", b.Op, typeName(left), typeName(right))
	}

	switch b.Op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		if r == 0 {
			return nil, evalErr(b, "division by zero")
		}
		return l / r, nil
	case "%":
		if r == 0 {
			return nil, evalErr(b, "modulo by zero")
		}
		return math.Mod(l, r), nil
	}
	return nil, evalErr(b, "unknown operator %q", b.Op)
}

func compare(b *Binary, left, right any) (any, error) {
	if left == nil || right == nil {
		return false, nil
	}

	var c int
	if l, ok := toNumber(left); ok {
		r, ok := toNumber(right)
		if !ok {
			return nil, evalErr(b, "cannot compare %s with %s", typeName(left), typeName(right))
		}
		switch {
		case l < r:
			c = -1
		case l > r:
			c = 1
		}
	} else if l, ok := left.(string); ok {
		r, ok := right.(string)
		if !ok {
			return nil, evalErr(b, "cannot compare %s with %s", typeName(left), typeName(right))
		}
		c = strings.Compare(l, r)
	} else {
		return nil, evalErr(b, "cannot order values of type %s", typeName(left))
	}

	switch b.Op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	default:
		return c >= 0, nil
	}
}

func contains(haystack, needle any) bool {
	if haystack == nil {
		return false
	}
	rv := reflect.ValueOf(haystack)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if Equal(rv.Index(i).Interface(), needle) {
				return true
			}
		}
	case reflect.Map:
		key, ok := needle.(string)
		if !ok || rv.Type().Key().Kind() != reflect.String {
			return false
		}
		return rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key())).IsValid()
	case reflect.String:
		s, ok := needle.(string)
		return ok && strings.Contains(rv.String(), s)
	}
	return false
}

func property(obj any, name string) any {
	switch m := obj.(type) {
	case nil:
		return nil
	case map[string]any:
		return m[name]
	case map[string]string:
		if v, ok := m[name]; ok {
			return v
		}
		return nil
	}

	rv := reflect.ValueOf(obj)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		v := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if v.IsValid() {
			return v.Interface()
		}
	}
	return nil
}

func index(obj, idx any) any {
	if obj == nil || idx == nil {
		return nil
	}
	if key, ok := idx.(string); ok {
		return property(obj, key)
	}

	n, ok := toNumber(idx)
	if !ok || n != math.Trunc(n) {
		return nil
	}
	rv := reflect.ValueOf(obj)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}
	i := int(n)
	if i < 0 {
		i += rv.Len()
	}
	if i < 0 || i >= rv.Len() {
		return nil
	}
	return rv.Index(i).Interface()
}

// Truthy reports the boolean interpretation of a value: nil, false, 0, the
// empty string and empty collections are false.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	}
	if n, ok := toNumber(v); ok {
		return n != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() > 0
	}
	return true
}

// Equal compares two values structurally. Numbers compare by value regardless
// of their Go type.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if an, ok := toNumber(a); ok {
		bn, ok := toNumber(b)
		return ok && an == bn
	}

	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	switch av.Kind() {
	case reflect.Slice, reflect.Array:
		if bv.Kind() != reflect.Slice && bv.Kind() != reflect.Array {
			return false
		}
		if av.Len() != bv.Len() {
			return false
		}
		for i := 0; i < av.Len(); i++ {
			if !Equal(av.Index(i).Interface(), bv.Index(i).Interface()) {
				return false
			}
		}
		return true
	case reflect.Map:
		if bv.Kind() != reflect.Map || av.Len() != bv.Len() {
			return false
		}
		iter := av.MapRange()
		for iter.Next() {
			other := bv.MapIndex(iter.Key())
			if !other.IsValid() || !Equal(iter.Value().Interface(), other.Interface()) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// ToString renders a value the way the & operator and $string do.
func ToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	}
	if n, ok := toNumber(v); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	}
	if _, ok := toNumber(v); ok {
		return "number"
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}
