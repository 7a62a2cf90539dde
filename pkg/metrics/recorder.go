// Package metrics provides Prometheus-based recording of session activity:
// task outcomes, feed interactions, and generation provider calls. The
// recorder owns its registry so tests and multiple sessions never collide on
// process-global state.
package metrics

import (
	"bytes"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"

	"feedpilot/pkg/proto"
)

// Recorder implements the metrics hooks used by the dispatcher and the
// generation middleware.
type Recorder struct {
	registry *prometheus.Registry

	tasksTotal        *prometheus.CounterVec
	taskDuration      *prometheus.HistogramVec
	interactionsTotal *prometheus.CounterVec
	providerTotal     *prometheus.CounterVec
	providerDuration  *prometheus.HistogramVec
}

// NewRecorder creates a recorder backed by a fresh registry.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		tasksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedpilot_tasks_total",
				Help: "Total number of processed tasks by type and final status",
			},
			[]string{"type", "status"},
		),
		taskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "feedpilot_task_duration_seconds",
				Help:    "Duration of task execution in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		interactionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedpilot_interactions_total",
				Help: "Total number of recorded feed interactions by kind",
			},
			[]string{"kind"},
		),
		providerTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedpilot_provider_calls_total",
				Help: "Total number of generation provider calls by model and status",
			},
			[]string{"model", "status"},
		),
		providerDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "feedpilot_provider_call_duration_seconds",
				Help:    "Duration of generation provider calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model"},
		),
	}
}

// Registry exposes the underlying registry for HTTP handlers.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RecordTask records one completed task.
func (r *Recorder) RecordTask(taskType proto.TaskType, status proto.TaskStatus, duration time.Duration) {
	r.tasksTotal.WithLabelValues(string(taskType), string(status)).Inc()
	r.taskDuration.WithLabelValues(string(taskType)).Observe(duration.Seconds())
}

// RecordInteraction records one feed interaction.
func (r *Recorder) RecordInteraction(kind proto.InteractionKind) {
	r.interactionsTotal.WithLabelValues(string(kind)).Inc()
}

// RecordProviderCall records one generation provider round trip.
func (r *Recorder) RecordProviderCall(model string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	r.providerTotal.WithLabelValues(model, status).Inc()
	r.providerDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// Snapshot renders the current metric families in the Prometheus text
// exposition format, for the end-of-session report.
func (r *Recorder) Snapshot() (string, error) {
	families, err := r.registry.Gather()
	if err != nil {
		return "", fmt.Errorf("failed to gather metrics: %w", err)
	}

	var buf bytes.Buffer
	encoder := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := encoder.Encode(family); err != nil {
			return "", fmt.Errorf("failed to encode metric family %s: %w", family.GetName(), err)
		}
	}
	return buf.String(), nil
}
