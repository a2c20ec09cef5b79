package runtime

import (
	"context"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// StepSnapshot records what happened to one task invocation of a run.
type StepSnapshot struct {
	ID         string     `json:"id"`
	Task       string     `json:"task"`
	Action     string     `json:"action"`
	Status     StepStatus `json:"status"`
	StartedAt  time.Time  `json:"started_at,omitempty"`
	FinishedAt time.Time  `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

type EventType string

const (
	EventWorkflowStart   EventType = "workflow.start"
	EventWorkflowFinish  EventType = "workflow.finish"
	EventWorkflowFailure EventType = "workflow.failure"
	EventStepStart       EventType = "step.start"
	EventStepSuccess     EventType = "step.success"
	EventStepError       EventType = "step.error"
	EventStepSkipped     EventType = "step.skipped"
)

// Event describes a lifecycle transition of a run or of one of its steps.
// Task, Action and Step are empty for workflow events.
type Event struct {
	Type     EventType
	RunID    string
	Workflow string
	Step     string
	Task     string
	Action   string
	Time     time.Time
	Duration time.Duration
	Err      error
}

// Observer receives run events synchronously, on the run's goroutine.
// Implementations must be safe for concurrent runs and must not block.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
}

type ObserverFunc func(ctx context.Context, event Event)

func (f ObserverFunc) OnEvent(ctx context.Context, event Event) {
	f(ctx, event)
}
