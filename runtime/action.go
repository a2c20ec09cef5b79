package runtime

import (
	"context"
	"log/slog"

	"github.com/hexastack/agentic/runtime/schema"
)

// Action is a named, schema-described unit of behaviour invoked by tasks.
//
// Execute receives input already evaluated and validated against
// InputSchema, and settings validated once at registration. Implementations
// must not keep references to args beyond the call.
type Action interface {
	Name() string
	Description() string
	InputSchema() schema.Schema
	OutputSchema() schema.Schema
	SettingsSchema() schema.Schema
	Execute(ctx context.Context, args ActionArgs) (map[string]any, error)
}

// ActionArgs is the argument bundle passed to Action.Execute.
type ActionArgs struct {
	Input    map[string]any
	Settings map[string]any
	Context  ActionContext
}

// ActionContext is a read-only view of the run handed to an action. Its maps
// are copies; mutating them has no effect on the run.
type ActionContext struct {
	RunID    string
	Workflow string
	Task     string
	Vars     map[string]any
	Input    map[string]any
	Output   map[string]any
	Channel  Channel
	Logger   *slog.Logger
}

// Channel identifies the conversation a run belongs to. The engine does not
// interpret it; messaging actions use it to address replies.
type Channel struct {
	Name      string         `json:"name,omitempty"`
	Recipient string         `json:"recipient,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// SettingsPreparer is implemented by actions that normalize their raw
// settings (defaults, typed decoding) before schema validation.
type SettingsPreparer interface {
	PrepareSettings(raw map[string]any) (map[string]any, error)
}

// InputValidator is implemented by actions with input rules a JSON Schema
// cannot express. The interpreter calls ValidateInput after the schema check
// and before Execute; a failure is a TaskInputValidationError.
type InputValidator interface {
	ValidateInput(input map[string]any) error
}
