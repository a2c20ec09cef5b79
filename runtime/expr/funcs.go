package expr

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

type builtin func(args []any) (any, error)

var builtins = map[string]builtin{
	"exists": func(args []any) (any, error) {
		if err := arity(args, 1); err != nil {
			return nil, err
		}
		return args[0] != nil, nil
	},
	"string": func(args []any) (any, error) {
		if err := arity(args, 1); err != nil {
			return nil, err
		}
		if args[0] == nil {
			return nil, nil
		}
		return ToString(args[0]), nil
	},
	"number": func(args []any) (any, error) {
		if err := arity(args, 1); err != nil {
			return nil, err
		}
		switch v := args[0].(type) {
		case nil:
			return nil, nil
		case bool:
			if v {
				return float64(1), nil
			}
			return float64(0), nil
		case string:
			n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fmt.Errorf("cannot convert %q to a number", v)
			}
			return n, nil
		}
		if n, ok := toNumber(args[0]); ok {
			return n, nil
		}
		return nil, fmt.Errorf("cannot convert %s to a number", typeName(args[0]))
	},
	"boolean": func(args []any) (any, error) {
		if err := arity(args, 1); err != nil {
			return nil, err
		}
		return Truthy(args[0]), nil
	},
	"not": func(args []any) (any, error) {
		if err := arity(args, 1); err != nil {
			return nil, err
		}
		return !Truthy(args[0]), nil
	},
	"count": func(args []any) (any, error) {
		if err := arity(args, 1); err != nil {
			return nil, err
		}
		if args[0] == nil {
			return float64(0), nil
		}
		rv := reflect.ValueOf(args[0])
		switch rv.Kind() {
		case reflect.Slice, reflect.Array, reflect.Map:
			return float64(rv.Len()), nil
		}
		return float64(1), nil
	},
	"length": func(args []any) (any, error) {
		s, err := stringArg(args)
		if err != nil {
			return nil, err
		}
		return float64(utf8.RuneCountInString(s)), nil
	},
	"uppercase": func(args []any) (any, error) {
		s, err := stringArg(args)
		if err != nil {
			return nil, err
		}
		return strings.ToUpper(s), nil
	},
	"lowercase": func(args []any) (any, error) {
		s, err := stringArg(args)
		if err != nil {
			return nil, err
		}
		return strings.ToLower(s), nil
	},
	"trim": func(args []any) (any, error) {
		s, err := stringArg(args)
		if err != nil {
			return nil, err
		}
		return strings.Join(strings.Fields(s), " "), nil
	},
	"join": func(args []any) (any, error) {
		if len(args) < 1 || len(args) > 2 {
			return nil, fmt.Errorf("expected 1 or 2 arguments, got %d", len(args))
		}
		sep := ""
		if len(args) == 2 {
			s, ok := args[1].(string)
			if !ok {
				return nil, fmt.Errorf("separator must be a string")
			}
			sep = s
		}
		if args[0] == nil {
			return "", nil
		}
		rv := reflect.ValueOf(args[0])
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, fmt.Errorf("expected an array, got %s", typeName(args[0]))
		}
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = ToString(rv.Index(i).Interface())
		}
		return strings.Join(parts, sep), nil
	},
	"keys": func(args []any) (any, error) {
		if err := arity(args, 1); err != nil {
			return nil, err
		}
		if args[0] == nil {
			return []any{}, nil
		}
		rv := reflect.ValueOf(args[0])
		if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("expected an object, got %s", typeName(args[0]))
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		out := make([]any, len(keys))
		for i, k := range keys {
			out[i] = k
		}
		return out, nil
	},
}

func arity(args []any, n int) error {
	if len(args) != n {
		return fmt.Errorf("expected %d argument(s), got %d", n, len(args))
	}
	return nil
}

func stringArg(args []any) (string, error) {
	if err := arity(args, 1); err != nil {
		return "", err
	}
	if args[0] == nil {
		return "", nil
	}
	s, ok := args[0].(string)
	if !ok {
		return "", fmt.Errorf("expected a string, got %s", typeName(args[0]))
	}
	return s, nil
}
