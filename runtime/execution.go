package runtime

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mohae/deepcopy"

	"github.com/hexastack/agentic/runtime/expr"
)

// ExecutionContext is the state of one workflow invocation. It is created
// fresh per run, owned by that run only, and discarded once the outputs are
// computed. Task outputs are append-only.
type ExecutionContext struct {
	RunID    string
	Workflow string
	Vars     map[string]any
	Input    map[string]any
	Channel  Channel

	output map[string]any
}

// NewExecutionContext copies vars and input so the caller's maps are never
// touched by the run.
func NewExecutionContext(workflow string, vars, input map[string]any, channel Channel) *ExecutionContext {
	return &ExecutionContext{
		RunID:    uuid.New().String(),
		Workflow: workflow,
		Vars:     copyMap(vars),
		Input:    copyMap(input),
		Channel:  channel,
		output:   make(map[string]any),
	}
}

// SetOutput records a task output. A task output is set at most once per run.
func (c *ExecutionContext) SetOutput(task string, value map[string]any) error {
	if _, exists := c.output[task]; exists {
		return fmt.Errorf("%w: %s", ErrOutputAlreadySet, task)
	}
	c.output[task] = copyMap(value)
	return nil
}

// Output returns the recorded output of a task.
func (c *ExecutionContext) Output(task string) (map[string]any, bool) {
	v, ok := c.output[task]
	if !ok {
		return nil, false
	}
	return v.(map[string]any), true
}

// Scope exposes the context to expressions as $vars, $output, $input and $run.
func (c *ExecutionContext) Scope() expr.Scope {
	return expr.Scope{
		"vars":   c.Vars,
		"output": c.output,
		"input":  c.Input,
		"run": map[string]any{
			"id":       c.RunID,
			"workflow": c.Workflow,
		},
	}
}

// actionContext builds the isolated view handed to an action.
func (c *ExecutionContext) actionContext(task string, l *slog.Logger) ActionContext {
	return ActionContext{
		RunID:    c.RunID,
		Workflow: c.Workflow,
		Task:     task,
		Vars:     copyMap(c.Vars),
		Input:    copyMap(c.Input),
		Output:   copyMap(c.output),
		Channel: Channel{
			Name:      c.Channel.Name,
			Recipient: c.Channel.Recipient,
			Metadata:  copyMap(c.Channel.Metadata),
		},
		Logger: l,
	}
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return deepcopy.Copy(m).(map[string]any)
}
