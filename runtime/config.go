package runtime

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	// Report fields by their json name, the name workflow authors write.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	registerCustomValidators()
}

// FieldViolation is one field rejected by its validate tag.
type FieldViolation struct {
	Field string
	Rule  string
	Param string
}

// StructValidationError lists the fields of a struct that failed their
// validate tags.
type StructValidationError struct {
	Violations []FieldViolation
}

func (e *StructValidationError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		rule := v.Rule
		if v.Param != "" {
			rule += "=" + v.Param
		}
		msgs = append(msgs, fmt.Sprintf("field '%s' failed validation (rule: %s)", v.Field, rule))
	}
	return "config validation failed:\n  - " + strings.Join(msgs, "\n  - ")
}

// Field returns the path of the first rejected field.
func (e *StructValidationError) Field() string {
	if len(e.Violations) == 0 {
		return ""
	}
	return e.Violations[0].Field
}

// InitializeConfig fills a typed settings struct: struct-tag defaults first,
// then rawValues on top, then validate tags on the result. Typed actions
// call it once, when they are registered.
func InitializeConfig(config any, rawValues map[string]any) error {
	configType := reflect.TypeOf(config).String()

	if err := ApplyDefaults(config); err != nil {
		slog.Error("Action settings: failed to apply defaults", "config_type", configType, "error", err)
		return fmt.Errorf("failed to apply defaults: %w", err)
	}

	if len(rawValues) > 0 {
		if err := DecodeMap(rawValues, config); err != nil {
			slog.Error("Action settings: failed to apply config values",
				"config_type", configType,
				"raw_values", rawValues,
				"error", err)
			return fmt.Errorf("failed to apply config values: %w", err)
		}
	}

	value := reflect.ValueOf(config)
	if value.Kind() == reflect.Ptr {
		value = value.Elem()
	}
	if err := ValidateStruct(value.Interface()); err != nil {
		slog.Error("Action settings validation failed", "config_type", configType, "error", err)
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

func registerCustomValidators() {
	// host:port with a non-empty host and a resolvable port
	validate.RegisterValidation("hostname_port", func(fl validator.FieldLevel) bool {
		host, port, err := net.SplitHostPort(fl.Field().String())
		if err != nil || host == "" || port == "" {
			return false
		}
		_, err = net.LookupPort("tcp", port)
		return err == nil
	})

	// absolute URL: scheme and host required
	validate.RegisterValidation("url_format", func(fl validator.FieldLevel) bool {
		u, err := url.Parse(fl.Field().String())
		return err == nil && u.Scheme != "" && u.Host != ""
	})

	validate.RegisterValidation("snake_case", func(fl validator.FieldLevel) bool {
		return IsSnakeCase(fl.Field().String())
	})
}

func ApplyDefaults(config any) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := defaults.Set(config); err != nil {
		return fmt.Errorf("failed to apply default values: %w", err)
	}
	return nil
}

// ValidateStruct checks validate tags. A tag violation is returned as a
// *StructValidationError naming the fields by their json names.
func ValidateStruct(config any) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	err := validate.Struct(config)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("config validation failed: %w", err)
	}

	out := &StructValidationError{Violations: make([]FieldViolation, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Violations = append(out.Violations, FieldViolation{
			Field: fieldPath(fe.Namespace()),
			Rule:  fe.Tag(),
			Param: fe.Param(),
		})
	}
	return out
}

// fieldPath drops the struct type name validator puts in front of a
// namespace: "RequestInput.headers" becomes "headers".
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

// PrepareConfig applies defaults and validates a config that has no raw
// values to merge, such as one already decoded from YAML.
func PrepareConfig(config any) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := ApplyDefaults(config); err != nil {
		return fmt.Errorf("failed to prepare config (defaults): %w", err)
	}
	if err := ValidateStruct(config); err != nil {
		return fmt.Errorf("failed to prepare config (validation): %w", err)
	}
	return nil
}

func RegisterCustomValidator(tag string, fn validator.Func) error {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		return fmt.Errorf("failed to register custom validator '%s': %w", tag, err)
	}
	return nil
}
