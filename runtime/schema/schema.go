// Package schema carries JSON Schema documents as plain data and validates
// values against them.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/kaptinlin/jsonschema"
)

// Schema is a JSON Schema document. A nil or empty Schema accepts any value.
type Schema map[string]any

func (s Schema) String() string {
	bytes, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(bytes)
}

// IsEmpty reports whether the schema places no constraint on values.
func (s Schema) IsEmpty() bool {
	return len(s) == 0
}

// Compile prepares the schema for repeated validation.
func (s Schema) Compile() (*Compiled, error) {
	if s.IsEmpty() {
		return &Compiled{}, nil
	}
	bytes, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	compiled, err := compiler.Compile(bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &Compiled{source: s, schema: compiled}, nil
}

// Required lists the names in the top-level "required" keyword.
func (s Schema) Required() []string {
	var out []string
	switch req := s["required"].(type) {
	case []string:
		out = append(out, req...)
	case []any:
		for _, r := range req {
			if name, ok := r.(string); ok {
				out = append(out, name)
			}
		}
	}
	return out
}

// IsRequired reports whether field is listed in "required".
func (s Schema) IsRequired(field string) bool {
	for _, name := range s.Required() {
		if name == field {
			return true
		}
	}
	return false
}

// Properties returns the top-level property schemas.
func (s Schema) Properties() map[string]Schema {
	out := make(map[string]Schema)
	switch props := s["properties"].(type) {
	case map[string]any:
		for k, v := range props {
			if m, ok := v.(map[string]any); ok {
				out[k] = Schema(m)
			}
		}
	case map[string]Schema:
		for k, v := range props {
			out[k] = v
		}
	}
	return out
}

// Compiled is a ready-to-use validator. It is immutable and safe for
// concurrent use.
type Compiled struct {
	source Schema
	schema *jsonschema.Schema
}

// Source returns the schema document the validator was compiled from.
func (c *Compiled) Source() Schema {
	if c == nil {
		return nil
	}
	return c.source
}

// Validate checks value against the schema. Go values are first normalized
// to their JSON form so typed ints, structs and nested maps validate the same
// way their serialized documents would.
func (c *Compiled) Validate(value any) error {
	if c == nil || c.schema == nil {
		return nil
	}

	normalized, err := Normalize(value)
	if err != nil {
		return err
	}

	result := c.schema.Validate(normalized)
	if result.Valid {
		return nil
	}
	return &ValidationError{Issues: collectIssues(result)}
}

// Normalize converts a Go value to the generic JSON data model
// (map[string]any, []any, float64, string, bool, nil).
func Normalize(value any) (any, error) {
	switch value.(type) {
	case nil, string, bool, float64:
		return value, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("value is not JSON serializable: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to normalize value: %w", err)
	}
	return out, nil
}

// Issue is a single validation failure located by its field path.
type Issue struct {
	Field   string
	Message string
}

// ValidationError lists every failure found in one validation pass.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "schema validation failed"
	}
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		if issue.Field == "" {
			parts[i] = issue.Message
			continue
		}
		parts[i] = fmt.Sprintf("%s: %s", issue.Field, issue.Message)
	}
	return "schema validation failed: " + strings.Join(parts, "; ")
}

// Field returns the path of the first failing field, or "" for failures at
// the document root.
func (e *ValidationError) Field() string {
	for _, issue := range e.Issues {
		if issue.Field != "" {
			return issue.Field
		}
	}
	return ""
}

func collectIssues(result *jsonschema.EvaluationResult) []Issue {
	var issues []Issue
	var walk func(r *jsonschema.EvaluationResult)
	walk = func(r *jsonschema.EvaluationResult) {
		if r == nil || r.Valid {
			return
		}
		field := pointerToField(r.InstanceLocation)
		keys := make([]string, 0, len(r.Errors))
		for k := range r.Errors {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			e := r.Errors[k]
			// "required" is reported on the parent object; name the missing property.
			if k == "required" {
				for _, missing := range missingProperties(e) {
					issues = append(issues, Issue{Field: joinField(field, missing), Message: "is required"})
				}
				continue
			}
			// "properties" only aggregates failures found in the details.
			if k == "properties" || k == "items" {
				continue
			}
			issues = append(issues, Issue{Field: field, Message: e.Error()})
		}
		for _, d := range r.Details {
			walk(d)
		}
	}
	walk(result)

	if len(issues) == 0 {
		issues = append(issues, Issue{Message: "value does not match schema"})
	}
	return dedupe(issues)
}

func missingProperties(e *jsonschema.EvaluationError) []string {
	if e == nil {
		return nil
	}
	switch props := e.Params["properties"].(type) {
	case []string:
		return props
	case string:
		var names []string
		for _, p := range strings.Split(props, ",") {
			p = strings.Trim(strings.TrimSpace(p), `'"`)
			if p != "" {
				names = append(names, p)
			}
		}
		return names
	}
	if p, ok := e.Params["property"].(string); ok {
		return []string{strings.Trim(p, `'"`)}
	}
	return []string{""}
}

// pointerToField turns a JSON pointer ("/quick_replies/0/title") into a
// dotted field path ("quick_replies.0.title").
func pointerToField(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "#")
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return ""
	}
	parts := strings.Split(ptr, "/")
	for i, p := range parts {
		p = strings.ReplaceAll(p, "~1", "/")
		parts[i] = strings.ReplaceAll(p, "~0", "~")
	}
	return strings.Join(parts, ".")
}

func joinField(parent, name string) string {
	switch {
	case parent == "":
		return name
	case name == "":
		return parent
	}
	return parent + "." + name
}

func dedupe(issues []Issue) []Issue {
	seen := make(map[Issue]bool, len(issues))
	out := issues[:0]
	for _, issue := range issues {
		if seen[issue] {
			continue
		}
		seen[issue] = true
		out = append(out, issue)
	}
	return out
}
