package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hexastack/agentic/runtime"
)

// Metrics is an Observer that counts runs and task executions.
type Metrics struct {
	registry     *prometheus.Registry
	runs         *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	tasks        *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
}

var _ runtime.Observer = (*Metrics)(nil)

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentic_workflow_runs_total",
			Help: "Workflow runs by final status.",
		}, []string{"workflow", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentic_workflow_duration_seconds",
			Help:    "Workflow run duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"workflow"}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentic_task_executions_total",
			Help: "Task executions by action and outcome.",
		}, []string{"action", "status"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentic_task_duration_seconds",
			Help:    "Action execution duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
	}
	m.registry.MustRegister(
		m.runs, m.runDuration, m.tasks, m.taskDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) OnEvent(_ context.Context, e runtime.Event) {
	switch e.Type {
	case runtime.EventWorkflowFinish:
		m.runs.WithLabelValues(e.Workflow, string(runtime.StatusCompleted)).Inc()
		m.runDuration.WithLabelValues(e.Workflow).Observe(e.Duration.Seconds())
	case runtime.EventWorkflowFailure:
		m.runs.WithLabelValues(e.Workflow, string(runtime.StatusFailed)).Inc()
		m.runDuration.WithLabelValues(e.Workflow).Observe(e.Duration.Seconds())
	case runtime.EventStepSuccess:
		m.tasks.WithLabelValues(e.Action, string(runtime.StepCompleted)).Inc()
		m.taskDuration.WithLabelValues(e.Action).Observe(e.Duration.Seconds())
	case runtime.EventStepError:
		m.tasks.WithLabelValues(e.Action, string(runtime.StepFailed)).Inc()
		if e.Duration > 0 {
			m.taskDuration.WithLabelValues(e.Action).Observe(e.Duration.Seconds())
		}
	case runtime.EventStepSkipped:
		m.tasks.WithLabelValues(e.Action, string(runtime.StepSkipped)).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
