package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Object builds an object schema from property schemas.
func Object(properties map[string]Schema, required ...string) Schema {
	props := make(map[string]any, len(properties))
	for k, v := range properties {
		props[k] = map[string]any(v)
	}
	s := Schema{"type": "object", "properties": props}
	if len(required) > 0 {
		req := make([]any, len(required))
		for i, r := range required {
			req[i] = r
		}
		s["required"] = req
	}
	return s
}

func String() Schema {
	return Schema{"type": "string"}
}

func Number() Schema {
	return Schema{"type": "number"}
}

func Integer() Schema {
	return Schema{"type": "integer"}
}

func Boolean() Schema {
	return Schema{"type": "boolean"}
}

func Array(items Schema) Schema {
	return Schema{"type": "array", "items": map[string]any(items)}
}

// AnyObject accepts any JSON object.
func AnyObject() Schema {
	return Schema{"type": "object"}
}

// For derives a schema from a Go type using its json tags. Fields without
// omitempty are required; nested structs are inlined.
func For[T any]() (Schema, error) {
	r := &jsonschema.Reflector{
		Anonymous:                 true,
		ExpandedStruct:            true,
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	reflected := r.Reflect(new(T))

	data, err := json.Marshal(reflected)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal reflected schema: %w", err)
	}
	var out Schema
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode reflected schema: %w", err)
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out, nil
}

// MustFor is like For but panics on error. Intended for package-level action
// declarations.
func MustFor[T any]() Schema {
	s, err := For[T]()
	if err != nil {
		panic(err)
	}
	return s
}
