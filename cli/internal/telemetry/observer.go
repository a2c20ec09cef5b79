// Package telemetry turns run events into logs, Prometheus metrics and
// OpenTelemetry spans.
package telemetry

import (
	"context"
	"log/slog"

	"github.com/hexastack/agentic/runtime"
)

// LogObserver writes every run event to l at debug level, and failures at
// warn level.
func LogObserver(l *slog.Logger) runtime.Observer {
	return runtime.ObserverFunc(func(ctx context.Context, e runtime.Event) {
		attrs := []any{"event", string(e.Type), "run_id", e.RunID, "workflow", e.Workflow}
		if e.Task != "" {
			attrs = append(attrs, "task", e.Task, "action", e.Action, "step", e.Step)
		}
		if e.Duration > 0 {
			attrs = append(attrs, "duration", e.Duration)
		}

		switch e.Type {
		case runtime.EventStepError, runtime.EventWorkflowFailure:
			l.WarnContext(ctx, "Run event", append(attrs, "error", e.Err)...)
		default:
			l.DebugContext(ctx, "Run event", attrs...)
		}
	})
}
