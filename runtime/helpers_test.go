package runtime

import (
	"context"
	"sync"
	"testing"

	"github.com/hexastack/agentic/runtime/schema"
)

// stubAction is a configurable Action used across the runtime tests.
type stubAction struct {
	name     string
	input    schema.Schema
	output   schema.Schema
	settings schema.Schema
	execute  func(ctx context.Context, args ActionArgs) (map[string]any, error)

	mu    sync.Mutex
	calls []ActionArgs
}

func (a *stubAction) Name() string                  { return a.name }
func (a *stubAction) Description() string           { return "stub " + a.name }
func (a *stubAction) InputSchema() schema.Schema    { return a.input }
func (a *stubAction) OutputSchema() schema.Schema   { return a.output }
func (a *stubAction) SettingsSchema() schema.Schema { return a.settings }

func (a *stubAction) Execute(ctx context.Context, args ActionArgs) (map[string]any, error) {
	a.mu.Lock()
	a.calls = append(a.calls, args)
	a.mu.Unlock()
	if a.execute != nil {
		return a.execute(ctx, args)
	}
	return args.Input, nil
}

func (a *stubAction) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

// messagingActions returns send_text_message and send_quick_replies stubs
// that echo the message they were asked to send.
func messagingActions() (*stubAction, *stubAction) {
	text := &stubAction{
		name:   "send_text_message",
		input:  schema.Object(map[string]schema.Schema{"text": schema.String()}, "text"),
		output: schema.Object(map[string]schema.Schema{"text": schema.String(), "delivered": schema.Boolean()}, "text"),
		execute: func(_ context.Context, args ActionArgs) (map[string]any, error) {
			return map[string]any{"text": args.Input["text"], "delivered": true}, nil
		},
	}
	replies := &stubAction{
		name: "send_quick_replies",
		input: schema.Object(map[string]schema.Schema{
			"text": schema.String(),
			"quick_replies": schema.Array(schema.Object(map[string]schema.Schema{
				"title":   schema.String(),
				"payload": schema.String(),
			}, "title", "payload")),
		}, "text", "quick_replies"),
		output: schema.Object(map[string]schema.Schema{"text": schema.String()}, "text"),
		execute: func(_ context.Context, args ActionArgs) (map[string]any, error) {
			return map[string]any{"text": args.Input["text"], "quick_replies": args.Input["quick_replies"]}, nil
		},
	}
	return text, replies
}

func newTestRegistry(t *testing.T, actions ...Action) *Registry {
	t.Helper()
	r := NewRegistry()
	for _, a := range actions {
		if err := r.Register(a); err != nil {
			t.Fatalf("Register(%s) error = %v", a.Name(), err)
		}
	}
	return r
}

func mustLoad(t *testing.T, doc string, registry *Registry) *Workflow {
	t.Helper()
	wf, err := LoadWorkflowBytes([]byte(doc), registry)
	if err != nil {
		t.Fatalf("LoadWorkflowBytes() error = %v", err)
	}
	return wf
}

const greetingWorkflow = `
workflow:
  name: greeting
  version: 1.0.0
  description: Greets the user and offers next steps.
tasks:
  send_greeting:
    action: send_text_message
    inputs:
      text: ="Welcome to Hexabot! Let us know how to help."
  prompt_next_step:
    action: send_quick_replies
    inputs:
      text: What would you like to do next?
      quick_replies:
        - title: Get help
          payload: help
        - title: Talk to an agent
          payload: agent
flow:
  - do: send_greeting
  - do: prompt_next_step
outputs:
  greeting: =$output.send_greeting.text
  last_prompt: =$output.prompt_next_step.text ?? ""
`
