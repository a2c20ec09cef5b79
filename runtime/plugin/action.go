package plugin

import (
	"context"
	"fmt"

	"github.com/hexastack/agentic/runtime"
	"github.com/hexastack/agentic/runtime/schema"
)

// Handler is the typed body of an action.
type Handler[I, O, S any] func(ctx context.Context, input I, settings S, actx Context) (O, error)

// TypedAction adapts a Handler to runtime.Action. Schemas are derived from
// the json tags of I, O and S; settings go through defaults and validate tags
// once at registration, input through validate tags before every call.
type TypedAction[I, O, S any] struct {
	name        string
	description string
	input       schema.Schema
	output      schema.Schema
	settings    schema.Schema
	handler     Handler[I, O, S]
}

var _ runtime.Action = (*TypedAction[struct{}, struct{}, NoSettings])(nil)
var _ runtime.SettingsPreparer = (*TypedAction[struct{}, struct{}, NoSettings])(nil)
var _ runtime.InputValidator = (*TypedAction[struct{}, struct{}, NoSettings])(nil)

// Define builds a typed action.
func Define[I, O, S any](name, description string, handler Handler[I, O, S]) (*TypedAction[I, O, S], error) {
	if handler == nil {
		return nil, fmt.Errorf("action %s: handler cannot be nil", name)
	}
	if !runtime.IsSnakeCase(name) {
		return nil, fmt.Errorf("action name %q must be snake_case (e.g. %q)", name, runtime.SnakeCase(name))
	}

	input, err := schema.For[I]()
	if err != nil {
		return nil, fmt.Errorf("action %s: input schema: %w", name, err)
	}
	output, err := schema.For[O]()
	if err != nil {
		return nil, fmt.Errorf("action %s: output schema: %w", name, err)
	}
	settings, err := schema.For[S]()
	if err != nil {
		return nil, fmt.Errorf("action %s: settings schema: %w", name, err)
	}

	return &TypedAction[I, O, S]{
		name:        name,
		description: description,
		input:       input,
		output:      output,
		settings:    settings,
		handler:     handler,
	}, nil
}

// MustDefine is like Define but panics on error.
func MustDefine[I, O, S any](name, description string, handler Handler[I, O, S]) *TypedAction[I, O, S] {
	a, err := Define(name, description, handler)
	if err != nil {
		panic(err)
	}
	return a
}

func (a *TypedAction[I, O, S]) Name() string                  { return a.name }
func (a *TypedAction[I, O, S]) Description() string           { return a.description }
func (a *TypedAction[I, O, S]) InputSchema() schema.Schema    { return a.input }
func (a *TypedAction[I, O, S]) OutputSchema() schema.Schema   { return a.output }
func (a *TypedAction[I, O, S]) SettingsSchema() schema.Schema { return a.settings }

// PrepareSettings rejects keys S does not declare, applies defaults and
// validate tags of S, and returns the settings in map form.
func (a *TypedAction[I, O, S]) PrepareSettings(raw map[string]any) (map[string]any, error) {
	known := a.settings.Properties()
	for key := range raw {
		if _, ok := known[key]; !ok {
			return nil, fmt.Errorf("unknown setting %q", key)
		}
	}

	var s S
	if err := runtime.InitializeConfig(&s, raw); err != nil {
		return nil, err
	}
	return runtime.EncodeStruct(s)
}

// ValidateInput decodes input into I and checks its validate tags.
func (a *TypedAction[I, O, S]) ValidateInput(input map[string]any) error {
	_, err := a.decodeInput(input)
	return err
}

func (a *TypedAction[I, O, S]) decodeInput(raw map[string]any) (I, error) {
	var input I
	if err := runtime.DecodeMap(raw, &input); err != nil {
		return input, fmt.Errorf("decoding input: %w", err)
	}
	if err := runtime.ValidateStruct(input); err != nil {
		return input, fmt.Errorf("invalid input: %w", err)
	}
	return input, nil
}

func (a *TypedAction[I, O, S]) Execute(ctx context.Context, args runtime.ActionArgs) (map[string]any, error) {
	var settings S
	if len(args.Settings) > 0 {
		if err := runtime.DecodeMap(args.Settings, &settings); err != nil {
			return nil, fmt.Errorf("decoding settings: %w", err)
		}
	}

	input, err := a.decodeInput(args.Input)
	if err != nil {
		return nil, err
	}

	out, err := a.handler(ctx, input, settings, args.Context)
	if err != nil {
		return nil, err
	}
	return runtime.EncodeStruct(out)
}
