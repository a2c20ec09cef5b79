package schema

import (
	"errors"
	"strings"
	"testing"
)

func TestCompiled_Validate(t *testing.T) {
	s := Object(map[string]Schema{
		"text":  String(),
		"count": Integer(),
		"quick_replies": Array(Object(map[string]Schema{
			"title":   String(),
			"payload": String(),
		}, "title", "payload")),
	}, "text")

	compiled, err := s.Compile()
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}

	tests := []struct {
		name    string
		value   any
		wantErr bool
	}{
		{"valid minimal", map[string]any{"text": "hi"}, false},
		{"valid with go ints", map[string]any{"text": "hi", "count": 3}, false},
		{"valid nested", map[string]any{"text": "hi", "quick_replies": []any{
			map[string]any{"title": "Help", "payload": "help"},
		}}, false},
		{"missing required", map[string]any{"count": 1}, true},
		{"wrong type", map[string]any{"text": 12}, true},
		{"non integer", map[string]any{"text": "hi", "count": 1.5}, true},
		{"nested missing", map[string]any{"text": "hi", "quick_replies": []any{
			map[string]any{"title": "Help"},
		}}, true},
		{"not an object", "hello", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := compiled.Validate(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("error %T is not a *ValidationError", err)
			}
			if len(vErr.Issues) == 0 {
				t.Errorf("expected at least one issue")
			}
		})
	}
}

func TestCompiled_ValidateReportsMissingField(t *testing.T) {
	compiled, err := Object(map[string]Schema{"text": String()}, "text").Compile()
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}

	err = compiled.Validate(map[string]any{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "text") {
		t.Errorf("error %q does not name the missing field", err)
	}
}

func TestEmptySchemaAcceptsAnything(t *testing.T) {
	var s Schema
	compiled, err := s.Compile()
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	for _, v := range []any{nil, "x", 1, map[string]any{"a": 1}} {
		if err := compiled.Validate(v); err != nil {
			t.Errorf("Validate(%v) = %v, want nil", v, err)
		}
	}
}

func TestSchema_Required(t *testing.T) {
	s := Object(map[string]Schema{"a": String(), "b": String()}, "a")
	if got := s.Required(); len(got) != 1 || got[0] != "a" {
		t.Errorf("Required() = %v, want [a]", got)
	}
	if !s.IsRequired("a") || s.IsRequired("b") {
		t.Errorf("IsRequired mismatch")
	}
	if props := s.Properties(); len(props) != 2 {
		t.Errorf("Properties() len = %d, want 2", len(props))
	}

	decoded := Schema{"required": []any{"x", 1, "y"}}
	if got := decoded.Required(); len(got) != 2 {
		t.Errorf("Required() on decoded schema = %v, want [x y]", got)
	}
}

type greetInput struct {
	Name  string   `json:"name"`
	Age   int      `json:"age,omitempty"`
	Tags  []string `json:"tags,omitempty"`
	Extra struct {
		Flag bool `json:"flag"`
	} `json:"extra,omitempty"`
}

func TestFor(t *testing.T) {
	s, err := For[greetInput]()
	if err != nil {
		t.Fatalf("For error: %v", err)
	}
	if s["type"] != "object" {
		t.Errorf("type = %v, want object", s["type"])
	}
	if !s.IsRequired("name") {
		t.Errorf("name should be required, got %v", s.Required())
	}
	if s.IsRequired("age") {
		t.Errorf("age should be optional")
	}
	if _, ok := s["$schema"]; ok {
		t.Errorf("$schema should be stripped")
	}

	compiled, err := s.Compile()
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if err := compiled.Validate(map[string]any{"name": "Ada", "age": 36}); err != nil {
		t.Errorf("valid value rejected: %v", err)
	}
	if err := compiled.Validate(map[string]any{"age": 36}); err == nil {
		t.Errorf("missing name accepted")
	}
}

func TestNormalize(t *testing.T) {
	got, err := Normalize(map[string]any{"n": 3, "list": []string{"a"}})
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	m := got.(map[string]any)
	if m["n"] != 3.0 {
		t.Errorf("n = %#v, want float64 3", m["n"])
	}
	if _, ok := m["list"].([]any); !ok {
		t.Errorf("list = %T, want []any", m["list"])
	}

	if _, err := Normalize(map[string]any{"ch": make(chan int)}); err == nil {
		t.Errorf("expected error for non-serializable value")
	}
}
