package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNewActionError(t *testing.T) {
	baseErr := errors.New("something went wrong")
	actionErr := NewActionError(baseErr)

	if actionErr.Err != baseErr {
		t.Errorf("Expected underlying error to be %v, got %v", baseErr, actionErr.Err)
	}
	if actionErr.Metadata == nil {
		t.Error("Expected metadata map to be initialized")
	}
	if actionErr.Error() != "something went wrong" {
		t.Errorf("Error() = %q, want %q", actionErr.Error(), "something went wrong")
	}

	empty := &ActionError{}
	if empty.Error() != "action failed" {
		t.Errorf("Error() on empty = %q, want %q", empty.Error(), "action failed")
	}
}

func TestActionError_Chaining(t *testing.T) {
	actionErr := NewActionError(errors.New("timeout"))

	result := actionErr.WithMetadata("status", 504).WithRetryHint(true)
	if result != actionErr {
		t.Error("builder methods should return the same instance")
	}
	if actionErr.Metadata["status"] != 504 {
		t.Errorf("status = %v, want 504", actionErr.Metadata["status"])
	}
	if !actionErr.IsRetryable() {
		t.Error("expected retryable")
	}

	wrapped := fmt.Errorf("send: %w", actionErr)
	var target *ActionError
	if !errors.As(wrapped, &target) || target != actionErr {
		t.Error("errors.As should find ActionError through wrapping")
	}
}

func TestExecutionError_Kind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"definition", &DefinitionValidationError{Workflow: "w"}, KindDefinition},
		{"cancelled", &CancelledError{Step: "flow[1]", Err: context.Canceled}, KindCancelled},
		{"deadline", &CancelledError{Step: "flow[0]", Err: context.DeadlineExceeded}, KindCancelled},
		{"bare context error", context.Canceled, KindRuntime},
		{"action timeout", &ActionExecutionError{Task: "t", Action: "a", Err: fmt.Errorf("upstream call: %w", context.DeadlineExceeded)}, KindRuntime},
		{"missing input", &MissingInputError{Task: "t", Field: "f"}, KindRuntime},
		{"action", &ActionExecutionError{Task: "t", Action: "a", Err: errors.New("boom")}, KindRuntime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &ExecutionError{RunID: "r", Workflow: "w", Err: tt.err}
			if got := e.Kind(); got != tt.want {
				t.Errorf("Kind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExecutionError_ToMap(t *testing.T) {
	cause := &ActionExecutionError{
		Task:     "send_greeting",
		Action:   "send_text_message",
		Err:      errors.New("channel down"),
		Metadata: map[string]any{"retryable": true},
	}
	e := &ExecutionError{RunID: "run-1", Workflow: "greet", Task: "send_greeting", Err: cause}

	m := e.ToMap()
	if m["type"] != "ActionExecutionError" {
		t.Errorf("type = %v, want ActionExecutionError", m["type"])
	}
	if m["task"] != "send_greeting" || m["action"] != "send_text_message" {
		t.Errorf("task/action = %v/%v", m["task"], m["action"])
	}
	if m["kind"] != "runtime" {
		t.Errorf("kind = %v, want runtime", m["kind"])
	}
	if _, ok := m["meta"]; !ok {
		t.Error("expected meta to be present")
	}

	if !errors.Is(e, cause.Err) {
		t.Error("errors.Is should reach the action's error")
	}
	if !strings.Contains(e.Error(), "send_greeting") {
		t.Errorf("Error() = %q should name the task", e.Error())
	}
}

func TestDefinitionValidationError_Message(t *testing.T) {
	e := &DefinitionValidationError{Workflow: "greet"}
	e.add("flow[0].do", "unknown task %q", "nope")
	e.add("", "at least one output is required")

	msg := e.Error()
	for _, want := range []string{"invalid workflow greet", `flow[0].do: unknown task "nope"`, "at least one output is required"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}
