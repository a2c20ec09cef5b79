package runtime

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
)

// ToStringValueMap renders scalar values as strings. Header and query values
// evaluated from expressions arrive as numbers or booleans.
func ToStringValueMap(m map[string]any) map[string]string {
	out := make(map[string]string, len(m))
	for key, value := range m {
		switch v := value.(type) {
		case nil:
			out[key] = ""
		case string:
			out[key] = v
		case float64:
			out[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			out[key] = strconv.Itoa(v)
		case bool:
			out[key] = strconv.FormatBool(v)
		default:
			out[key] = fmt.Sprint(v)
		}
	}
	return out
}

// DecodeMap fills target from a decoded map, matching json tag names.
// Scalars are coerced where the types differ, and "30s" style strings become
// durations.
func DecodeMap(m map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  target,
		TagName: "json",
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("building decoder: %w", err)
	}
	if err := decoder.Decode(m); err != nil {
		return fmt.Errorf("decoding into %T: %w", target, err)
	}
	return nil
}

// EncodeStruct returns the JSON object form of v, the shape workflow
// expressions and schemas see. Numbers come back as float64.
func EncodeStruct(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %T: %w", v, err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("encoding %T: %w", v, err)
	}
	return out, nil
}
