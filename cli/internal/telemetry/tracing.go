package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hexastack/agentic/runtime"
)

const instrumentationName = "github.com/hexastack/agentic"

// Tracer is an Observer that records one span per run, with a child span per
// task invocation.
type Tracer struct {
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[string]trace.Span
}

var _ runtime.Observer = (*Tracer)(nil)

func NewTracer(tp trace.TracerProvider) *Tracer {
	return &Tracer{
		tracer: tp.Tracer(instrumentationName),
		spans:  make(map[string]trace.Span),
	}
}

func (t *Tracer) OnEvent(ctx context.Context, e runtime.Event) {
	switch e.Type {
	case runtime.EventWorkflowStart:
		_, span := t.tracer.Start(ctx, "workflow "+e.Workflow,
			trace.WithTimestamp(e.Time),
			trace.WithAttributes(
				attribute.String("agentic.run_id", e.RunID),
				attribute.String("agentic.workflow", e.Workflow),
			))
		t.put(e.RunID, span)

	case runtime.EventWorkflowFinish, runtime.EventWorkflowFailure:
		span := t.take(e.RunID)
		if span == nil {
			return
		}
		if e.Err != nil {
			span.RecordError(e.Err)
			span.SetStatus(codes.Error, e.Err.Error())
		}
		span.End(trace.WithTimestamp(e.Time))

	case runtime.EventStepStart:
		t.put(stepKey(e), t.startStep(ctx, e))

	case runtime.EventStepSuccess, runtime.EventStepError, runtime.EventStepSkipped:
		span := t.take(stepKey(e))
		if span == nil {
			span = t.startStep(ctx, e)
		}
		switch e.Type {
		case runtime.EventStepError:
			if e.Err != nil {
				span.RecordError(e.Err)
				span.SetStatus(codes.Error, e.Err.Error())
			}
		case runtime.EventStepSkipped:
			span.SetAttributes(attribute.Bool("agentic.skipped", true))
		}
		span.End(trace.WithTimestamp(e.Time))
	}
}

func (t *Tracer) startStep(ctx context.Context, e runtime.Event) trace.Span {
	t.mu.Lock()
	parent := t.spans[e.RunID]
	t.mu.Unlock()
	if parent != nil {
		ctx = trace.ContextWithSpan(ctx, parent)
	}

	_, span := t.tracer.Start(ctx, "task "+e.Task,
		trace.WithTimestamp(e.Time),
		trace.WithAttributes(
			attribute.String("agentic.run_id", e.RunID),
			attribute.String("agentic.task", e.Task),
			attribute.String("agentic.action", e.Action),
			attribute.String("agentic.step", e.Step),
		))
	return span
}

func (t *Tracer) put(key string, span trace.Span) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spans[key] = span
}

func (t *Tracer) take(key string) trace.Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	span := t.spans[key]
	delete(t.spans, key)
	return span
}

func stepKey(e runtime.Event) string {
	return e.RunID + "/" + e.Step
}
