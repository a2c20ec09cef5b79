package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// EnvVarSpec is a parsed config value: either a literal or a reference to
// an environment variable with an optional default.
type EnvVarSpec struct {
	VarName      string
	HasDefault   bool
	DefaultValue string

	IsLiteral    bool
	LiteralValue string
}

// envVarPattern matches ${VAR} and ${VAR:default} syntax
var envVarPattern = regexp.MustCompile(`^\$\{([A-Z_][A-Z0-9_]*)(:[^}]*)?\}$`)

// ParseEnvVar parses a config value that may reference an environment variable.
//
// Supported formats:
//   - ${VAR}         - required environment variable
//   - ${VAR:default} - optional, with default (may itself contain colons)
//   - literal        - anything else, including malformed references
//
// Examples:
//
//	ParseEnvVar("${TELEGRAM_TOKEN}")           -> required env var
//	ParseEnvVar("${SERVER_ADDR:0.0.0.0:8080}") -> env var with default
//	ParseEnvVar("0.0.0.0:8080")                -> literal value
func ParseEnvVar(value string) (*EnvVarSpec, error) {
	matches := envVarPattern.FindStringSubmatch(value)
	if matches == nil {
		return &EnvVarSpec{IsLiteral: true, LiteralValue: value}, nil
	}

	spec := &EnvVarSpec{
		VarName:    matches[1],
		HasDefault: matches[2] != "",
	}
	if !isValidEnvVarName(spec.VarName) {
		return nil, fmt.Errorf("invalid environment variable name: %s", spec.VarName)
	}
	if spec.HasDefault {
		spec.DefaultValue = strings.TrimPrefix(matches[2], ":")
	}
	return spec, nil
}

// Resolve returns the value of the reference, looking variables up with
// lookup. A required variable that is unset is an error.
func (s *EnvVarSpec) Resolve(lookup func(string) (string, bool)) (string, error) {
	if s.IsLiteral {
		return s.LiteralValue, nil
	}
	if v, ok := lookup(s.VarName); ok {
		return v, nil
	}
	if s.HasDefault {
		return s.DefaultValue, nil
	}
	return "", fmt.Errorf("environment variable %s is required but not set", s.VarName)
}

// ExpandEnv substitutes environment references in every string of a decoded
// YAML tree. Non-string scalars are returned unchanged.
func ExpandEnv(value any) (any, error) {
	return expand(value, "", os.LookupEnv)
}

func expand(value any, path string, lookup func(string) (string, bool)) (any, error) {
	switch v := value.(type) {
	case string:
		spec, err := ParseEnvVar(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", pathOrRoot(path), err)
		}
		resolved, err := spec.Resolve(lookup)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", pathOrRoot(path), err)
		}
		return resolved, nil

	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			child := k
			if path != "" {
				child = path + "." + k
			}
			resolved, err := expand(item, child, lookup)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil

	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			resolved, err := expand(item, fmt.Sprintf("%s[%d]", path, i), lookup)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil

	default:
		return value, nil
	}
}

func pathOrRoot(path string) string {
	if path == "" {
		return "config"
	}
	return path
}

// isValidEnvVarName checks if a string is a valid environment variable name
// Valid names: Start with A-Z or underscore, contain only A-Z, 0-9, underscore
func isValidEnvVarName(name string) bool {
	if name == "" {
		return false
	}

	first := name[0]
	if !((first >= 'A' && first <= 'Z') || first == '_') {
		return false
	}

	for i := 1; i < len(name); i++ {
		c := name[i]
		if !((c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_') {
			return false
		}
	}

	return true
}
