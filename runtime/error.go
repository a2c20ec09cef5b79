package runtime

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrActionNotFound   = errors.New("action not found")
	ErrDuplicateAction  = errors.New("action already registered")
	ErrOutputAlreadySet = errors.New("task output already set")
	ErrWorkflowNotFound = errors.New("workflow not found")
)

// Problem is one issue found while validating a workflow document.
type Problem struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (p Problem) String() string {
	if p.Path == "" {
		return p.Message
	}
	return p.Path + ": " + p.Message
}

// DefinitionValidationError rejects a malformed workflow document. It is
// raised at load time, before any action runs, and lists every problem found.
type DefinitionValidationError struct {
	Workflow string
	Problems []Problem
}

func (e *DefinitionValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.String()
	}
	name := e.Workflow
	if name == "" {
		name = "<unnamed>"
	}
	return fmt.Sprintf("invalid workflow %s:\n  - %s", name, strings.Join(parts, "\n  - "))
}

func (e *DefinitionValidationError) add(path, format string, args ...any) {
	e.Problems = append(e.Problems, Problem{Path: path, Message: fmt.Sprintf(format, args...)})
}

// MissingInputError reports a required task input whose expression resolved
// to nothing.
type MissingInputError struct {
	Task       string
	Field      string
	Expression string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("task %s: required input %q is missing (%s resolved to null)", e.Task, e.Field, e.Expression)
}

// TaskInputValidationError reports resolved inputs rejected by the action's
// input schema, or an input expression that failed to evaluate.
type TaskInputValidationError struct {
	Task   string
	Field  string
	Reason string
	Err    error
}

func (e *TaskInputValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("task %s: invalid input: %s", e.Task, e.Reason)
	}
	return fmt.Sprintf("task %s: invalid input %q: %s", e.Task, e.Field, e.Reason)
}

func (e *TaskInputValidationError) Unwrap() error {
	return e.Err
}

// ActionExecutionError wraps a failure returned by an action's Execute.
type ActionExecutionError struct {
	Task     string
	Action   string
	Err      error
	Metadata map[string]any
}

func (e *ActionExecutionError) Error() string {
	return fmt.Sprintf("task %s: action %s failed: %v", e.Task, e.Action, e.Err)
}

func (e *ActionExecutionError) Unwrap() error {
	return e.Err
}

// ActionOutputValidationError reports an action result rejected by the
// action's output schema. The task output is not recorded.
type ActionOutputValidationError struct {
	Task   string
	Action string
	Field  string
	Reason string
	Err    error
}

func (e *ActionOutputValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("task %s: action %s returned invalid output: %s", e.Task, e.Action, e.Reason)
	}
	return fmt.Sprintf("task %s: action %s returned invalid output %q: %s", e.Task, e.Action, e.Field, e.Reason)
}

func (e *ActionOutputValidationError) Unwrap() error {
	return e.Err
}

// CancelledError reports a run stopped between steps because its context
// ended. Context errors returned by actions are not cancellations of the run.
type CancelledError struct {
	Step string
	Err  error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("run cancelled before step %s: %v", e.Step, e.Err)
}

func (e *CancelledError) Unwrap() error {
	return e.Err
}

// ErrorKind separates authoring mistakes from failures during a run.
type ErrorKind string

const (
	KindDefinition ErrorKind = "definition"
	KindRuntime    ErrorKind = "runtime"
	KindCancelled  ErrorKind = "cancelled"
)

// ExecutionError is what Run returns when a workflow invocation fails. It
// names the run, the failed task (if any) and the underlying typed cause.
type ExecutionError struct {
	RunID    string
	Workflow string
	Task     string
	Err      error
}

func (e *ExecutionError) Error() string {
	if e.Task == "" {
		return fmt.Sprintf("workflow %s (run %s) failed: %v", e.Workflow, e.RunID, e.Err)
	}
	return fmt.Sprintf("workflow %s (run %s) failed at task %s: %v", e.Workflow, e.RunID, e.Task, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func (e *ExecutionError) Kind() ErrorKind {
	var (
		defErr       *DefinitionValidationError
		cancelledErr *CancelledError
	)
	switch {
	case errors.As(e.Err, &defErr):
		return KindDefinition
	case errors.As(e.Err, &cancelledErr):
		return KindCancelled
	}
	return KindRuntime
}

// ToMap renders the error for API responses and logs.
func (e *ExecutionError) ToMap() map[string]any {
	m := map[string]any{
		"kind":     string(e.Kind()),
		"run_id":   e.RunID,
		"workflow": e.Workflow,
		"message":  e.Err.Error(),
	}
	if e.Task != "" {
		m["task"] = e.Task
	}

	var (
		defErr     *DefinitionValidationError
		missingErr *MissingInputError
		inputErr   *TaskInputValidationError
		outputErr  *ActionOutputValidationError
		actionErr  *ActionExecutionError
		cancelErr  *CancelledError
	)
	switch {
	case errors.As(e.Err, &defErr):
		m["type"] = "DefinitionValidationError"
		m["problems"] = defErr.Problems
	case errors.As(e.Err, &cancelErr):
		m["type"] = "CancelledError"
	case errors.As(e.Err, &missingErr):
		m["type"] = "MissingInputError"
		m["field"] = missingErr.Field
	case errors.As(e.Err, &inputErr):
		m["type"] = "TaskInputValidationError"
		m["field"] = inputErr.Field
	case errors.As(e.Err, &outputErr):
		m["type"] = "ActionOutputValidationError"
		m["field"] = outputErr.Field
	case errors.As(e.Err, &actionErr):
		m["type"] = "ActionExecutionError"
		m["action"] = actionErr.Action
		if len(actionErr.Metadata) > 0 {
			m["meta"] = actionErr.Metadata
		}
	}
	return m
}

// ActionError lets an action attach metadata (delivery ids, status codes,
// retry hints for the caller) to the error it returns.
type ActionError struct {
	Err      error
	Metadata map[string]any
}

func (e *ActionError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "action failed"
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

func NewActionError(err error) *ActionError {
	return &ActionError{
		Err:      err,
		Metadata: make(map[string]any),
	}
}

func (e *ActionError) WithMetadata(key string, value any) *ActionError {
	e.Metadata[key] = value
	return e
}

// WithRetryHint marks whether the caller may safely retry the whole run.
func (e *ActionError) WithRetryHint(retryable bool) *ActionError {
	e.Metadata["retryable"] = retryable
	return e
}

func (e *ActionError) IsRetryable() bool {
	retryable, _ := e.Metadata["retryable"].(bool)
	return retryable
}
