package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hexastack/agentic/runtime/expr"
	"github.com/hexastack/agentic/runtime/schema"
)

// inputTask names the pseudo-task used when the triggering payload is
// rejected by the workflow's input schema.
const inputTask = "<input>"

// Interpreter runs workflows. It holds no per-run state and can serve any
// number of concurrent runs.
type Interpreter struct {
	l         *slog.Logger
	registry  *Registry
	observers []Observer
}

type Option func(*Interpreter)

func WithLogger(l *slog.Logger) Option {
	return func(i *Interpreter) {
		if l != nil {
			i.l = l
		}
	}
}

func WithObservers(observers ...Observer) Option {
	return func(i *Interpreter) {
		i.observers = append(i.observers, observers...)
	}
}

func NewInterpreter(registry *Registry, opts ...Option) *Interpreter {
	i := &Interpreter{
		l:        slog.Default(),
		registry: registry,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Registry returns the registry actions are resolved from.
func (i *Interpreter) Registry() *Registry {
	return i.registry
}

// RunRequest carries the caller-supplied state of one invocation.
type RunRequest struct {
	Vars    map[string]any
	Input   map[string]any
	Channel Channel
}

// Result is the outcome of a run. On failure Status is StatusFailed, Outputs
// is nil and Run also returns an *ExecutionError.
type Result struct {
	RunID    string         `json:"run_id"`
	Workflow string         `json:"workflow"`
	Status   Status         `json:"status"`
	Outputs  map[string]any `json:"outputs,omitempty"`
	Steps    []StepSnapshot `json:"steps"`
}

// Run executes a workflow against vars with a one-off interpreter.
func Run(ctx context.Context, wf *Workflow, vars map[string]any, registry *Registry) (*Result, error) {
	return NewInterpreter(registry).Run(ctx, wf, RunRequest{Vars: vars})
}

// Run executes the workflow flow in document order and evaluates its outputs.
// Any task failure stops the run; already performed side effects are not
// undone. Cancellation of ctx is honoured between steps only: an action that
// has started always runs to completion.
func (i *Interpreter) Run(ctx context.Context, wf *Workflow, req RunRequest) (*Result, error) {
	ec := NewExecutionContext(wf.Name(), req.Vars, req.Input, req.Channel)
	r := &run{
		i:  i,
		wf: wf,
		ec: ec,
		l:  i.l.With("run_id", ec.RunID, "workflow", wf.Name()),
		result: &Result{
			RunID:    ec.RunID,
			Workflow: wf.Name(),
			Status:   StatusPending,
		},
	}
	return r.execute(ctx)
}

// run is the state of a single invocation.
type run struct {
	i      *Interpreter
	wf     *Workflow
	ec     *ExecutionContext
	l      *slog.Logger
	result *Result
	start  time.Time
}

func (r *run) execute(ctx context.Context) (*Result, error) {
	r.start = time.Now()
	r.result.Status = StatusRunning
	r.l.InfoContext(ctx, "Workflow started")
	r.emit(ctx, Event{Type: EventWorkflowStart})

	if r.wf.inputSchema != nil {
		if err := r.wf.inputSchema.Validate(r.ec.Input); err != nil {
			return r.fail(ctx, inputTask, &TaskInputValidationError{
				Task:   inputTask,
				Field:  fieldOf(err),
				Reason: err.Error(),
				Err:    err,
			})
		}
	}

	if task, err := r.executeSteps(ctx, r.wf.flow); err != nil {
		return r.fail(ctx, task, err)
	}

	outputs, err := r.wf.outputs.Eval(r.ec.Scope())
	if err != nil {
		return r.fail(ctx, "", fmt.Errorf("error evaluating outputs: %w", err))
	}

	r.result.Outputs = outputs.(map[string]any)
	r.result.Status = StatusCompleted
	r.l.InfoContext(ctx, "Workflow completed", "duration", time.Since(r.start))
	r.emit(ctx, Event{Type: EventWorkflowFinish, Duration: time.Since(r.start)})
	return r.result, nil
}

// executeSteps runs steps sequentially. On failure it returns the name of
// the failing task, if any.
func (r *run) executeSteps(ctx context.Context, steps []*step) (string, error) {
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			r.l.WarnContext(ctx, "Run cancelled before step", "step", s.id, "error", err)
			return "", &CancelledError{Step: s.id, Err: err}
		}

		if s.task != "" {
			if err := r.executeTask(ctx, s); err != nil {
				return s.task, err
			}
			continue
		}

		b, err := r.selectBranch(ctx, s)
		if err != nil {
			return "", err
		}
		if b == nil {
			r.l.InfoContext(ctx, "No conditional branch matched", "step", s.id)
			continue
		}
		if task, err := r.executeSteps(ctx, b.steps); err != nil {
			return task, err
		}
	}
	return "", nil
}

func (r *run) selectBranch(ctx context.Context, s *step) (*branch, error) {
	for idx, b := range s.branches {
		if b.condition == nil {
			r.l.InfoContext(ctx, "Taking else branch", "step", s.id)
			return b, nil
		}
		ok, err := r.evaluateCondition(b.condition)
		if err != nil {
			return nil, fmt.Errorf("error evaluating condition of %s branch %d: %w", s.id, idx, err)
		}
		if ok {
			r.l.InfoContext(ctx, "Condition met", "step", s.id, "branch", idx, "condition", b.condition.String())
			return b, nil
		}
	}
	return nil, nil
}

func (r *run) evaluateCondition(e *expr.Expression) (bool, error) {
	v, err := e.Eval(r.ec.Scope())
	if err != nil {
		return false, err
	}
	return expr.Truthy(v), nil
}

func (r *run) executeTask(ctx context.Context, s *step) error {
	t := r.wf.tasks[s.task]
	snap := r.snapshot(StepSnapshot{ID: s.id, Task: t.name, Action: t.action, Status: StepPending})
	l := r.l.With("task", t.name, "action", t.action)

	if s.when != nil {
		ok, err := r.evaluateCondition(s.when)
		if err != nil {
			l.ErrorContext(ctx, "Error evaluating condition", "condition", s.when.String(), "error", err)
			err = fmt.Errorf("error evaluating condition %s: %w", s.when.String(), err)
			r.finishStep(ctx, snap, StepFailed, err)
			return err
		}
		if !ok {
			l.InfoContext(ctx, "Skipping task, condition not met", "condition", s.when.String())
			r.finishStep(ctx, snap, StepSkipped, nil)
			return nil
		}
	}

	reg, err := r.i.registry.lookup(t.action)
	if err != nil {
		err = &DefinitionValidationError{
			Workflow: r.wf.Name(),
			Problems: []Problem{{Path: "tasks." + t.name + ".action", Message: err.Error()}},
		}
		r.finishStep(ctx, snap, StepFailed, err)
		return err
	}

	input, err := r.resolveInputs(t, reg)
	if err != nil {
		l.ErrorContext(ctx, "Task input rejected", "error", err)
		r.finishStep(ctx, snap, StepFailed, err)
		return err
	}

	r.setStatus(snap, StepRunning)
	r.emit(ctx, Event{Type: EventStepStart, Step: s.id, Task: t.name, Action: t.action})
	l.InfoContext(ctx, "Executing task")

	// The action is not interrupted by cancellation of the run.
	actionCtx := context.WithoutCancel(ctx)
	out, err := invoke(actionCtx, reg.action, ActionArgs{
		Input:    input,
		Settings: copyMap(reg.settings),
		Context:  r.ec.actionContext(t.name, l),
	})
	if err != nil {
		actionErr := &ActionExecutionError{Task: t.name, Action: t.action, Err: err}
		var meta *ActionError
		if errors.As(err, &meta) {
			actionErr.Metadata = meta.Metadata
		}
		l.ErrorContext(ctx, "Task failed", "error", err)
		r.finishStep(ctx, snap, StepFailed, actionErr)
		return actionErr
	}

	output, err := r.acceptOutput(t, reg, out)
	if err != nil {
		l.ErrorContext(ctx, "Task output rejected", "error", err)
		r.finishStep(ctx, snap, StepFailed, err)
		return err
	}

	if err := r.ec.SetOutput(t.name, output); err != nil {
		r.finishStep(ctx, snap, StepFailed, err)
		return err
	}

	l.InfoContext(ctx, "Task completed")
	r.finishStep(ctx, snap, StepCompleted, nil)
	return nil
}

// resolveInputs evaluates the task's input templates against the current
// context and validates them against the action's input schema.
func (r *run) resolveInputs(t *task, reg *registration) (map[string]any, error) {
	raw, err := t.inputs.Eval(r.ec.Scope())
	if err != nil {
		field := ""
		var pathErr *expr.PathError
		if errors.As(err, &pathErr) {
			field = pathErr.Path
			err = pathErr.Err
		}
		return nil, &TaskInputValidationError{Task: t.name, Field: field, Reason: err.Error(), Err: err}
	}
	input := copyMap(raw.(map[string]any))

	inputSchema := reg.input.Source()
	for _, field := range inputSchema.Required() {
		tmpl, declared := t.inputs.Field(field)
		if declared && tmpl.IsExpression() && input[field] == nil {
			return nil, &MissingInputError{Task: t.name, Field: field, Expression: tmpl.Expression().String()}
		}
	}

	// Unresolved optional inputs are treated as absent.
	for field, v := range input {
		if v == nil && !inputSchema.IsRequired(field) {
			delete(input, field)
		}
	}

	if err := reg.input.Validate(input); err != nil {
		return nil, &TaskInputValidationError{Task: t.name, Field: fieldOf(err), Reason: err.Error(), Err: err}
	}
	if v, ok := reg.action.(InputValidator); ok {
		if err := v.ValidateInput(input); err != nil {
			return nil, &TaskInputValidationError{Task: t.name, Field: fieldOf(err), Reason: err.Error(), Err: err}
		}
	}
	return input, nil
}

// acceptOutput validates an action result and applies the task's output
// mapping, if declared.
func (r *run) acceptOutput(t *task, reg *registration, out map[string]any) (map[string]any, error) {
	if out == nil {
		out = map[string]any{}
	}
	normalized, err := schema.Normalize(out)
	if err != nil {
		return nil, &ActionOutputValidationError{Task: t.name, Action: t.action, Reason: err.Error(), Err: err}
	}
	result, ok := normalized.(map[string]any)
	if !ok {
		return nil, &ActionOutputValidationError{Task: t.name, Action: t.action, Reason: "output must be an object"}
	}

	if err := reg.output.Validate(result); err != nil {
		return nil, &ActionOutputValidationError{
			Task:   t.name,
			Action: t.action,
			Field:  fieldOf(err),
			Reason: err.Error(),
			Err:    err,
		}
	}

	if t.outputs == nil {
		return result, nil
	}

	scope := r.ec.Scope()
	scope["result"] = result
	mapped, err := t.outputs.Eval(scope)
	if err != nil {
		return nil, &ActionOutputValidationError{
			Task:   t.name,
			Action: t.action,
			Reason: fmt.Sprintf("error evaluating output mapping: %v", err),
			Err:    err,
		}
	}
	return mapped.(map[string]any), nil
}

// invoke calls the action, turning a panic into an error.
func invoke(ctx context.Context, action Action, args ActionArgs) (out map[string]any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("action panicked: %v", rec)
		}
	}()
	return action.Execute(ctx, args)
}

func (r *run) fail(ctx context.Context, task string, err error) (*Result, error) {
	execErr := &ExecutionError{
		RunID:    r.ec.RunID,
		Workflow: r.wf.Name(),
		Task:     task,
		Err:      err,
	}
	r.result.Status = StatusFailed
	r.result.Outputs = nil

	r.l.ErrorContext(ctx, "Workflow failed",
		"task", task,
		"kind", execErr.Kind(),
		"error", err,
		"duration", time.Since(r.start))
	r.emit(ctx, Event{Type: EventWorkflowFailure, Task: task, Duration: time.Since(r.start), Err: execErr})
	return r.result, execErr
}

func (r *run) snapshot(s StepSnapshot) int {
	r.result.Steps = append(r.result.Steps, s)
	return len(r.result.Steps) - 1
}

func (r *run) setStatus(idx int, status StepStatus) {
	s := &r.result.Steps[idx]
	s.Status = status
	if status == StepRunning {
		s.StartedAt = time.Now()
	}
}

func (r *run) finishStep(ctx context.Context, idx int, status StepStatus, err error) {
	s := &r.result.Steps[idx]
	s.Status = status
	s.FinishedAt = time.Now()

	event := Event{Step: s.ID, Task: s.Task, Action: s.Action, Err: err}
	if !s.StartedAt.IsZero() {
		event.Duration = s.FinishedAt.Sub(s.StartedAt)
	}
	switch status {
	case StepCompleted:
		event.Type = EventStepSuccess
	case StepSkipped:
		event.Type = EventStepSkipped
	default:
		event.Type = EventStepError
		if err != nil {
			s.Error = err.Error()
		}
	}
	r.emit(ctx, event)
}

func (r *run) emit(ctx context.Context, e Event) {
	e.RunID = r.ec.RunID
	e.Workflow = r.wf.Name()
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	for _, o := range r.i.observers {
		o.OnEvent(ctx, e)
	}
}

func fieldOf(err error) string {
	var (
		vErr      *schema.ValidationError
		structErr *StructValidationError
	)
	switch {
	case errors.As(err, &vErr):
		return vErr.Field()
	case errors.As(err, &structErr):
		return structErr.Field()
	}
	return ""
}
