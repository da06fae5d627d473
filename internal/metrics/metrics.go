package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for taskflow
type Metrics struct {
	// Pipeline metrics
	PipelineRuns     *prometheus.CounterVec
	PipelineDuration *prometheus.HistogramVec
	PhaseRuns        *prometheus.CounterVec
	PhaseDuration    *prometheus.HistogramVec

	// Approval metrics
	Approvals       *prometheus.CounterVec
	ApprovalLatency prometheus.Histogram

	// Tool metrics
	ToolCalls *prometheus.CounterVec

	// Apply metrics
	Applies        *prometheus.CounterVec
	AppliedChanges *prometheus.CounterVec
	Rollbacks      *prometheus.CounterVec

	// Dependency graph cache metrics
	GraphCacheHits   prometheus.Counter
	GraphCacheMisses prometheus.Counter

	// Error metrics (by error code from structured errors)
	Errors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		PipelineRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskflow_pipeline_runs_total",
				Help: "Total number of pipeline runs by outcome",
			},
			[]string{"outcome"},
		),
		PipelineDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "taskflow_pipeline_duration_seconds",
				Help:    "Pipeline duration in seconds",
				Buckets: []float64{0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0, 300.0},
			},
			[]string{"outcome"},
		),
		PhaseRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskflow_phase_runs_total",
				Help: "Total number of agent phase runs",
			},
			[]string{"phase", "success"},
		),
		PhaseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "taskflow_phase_duration_seconds",
				Help:    "Agent phase duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"phase"},
		),

		Approvals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskflow_approvals_total",
				Help: "Total number of approval requests by decision",
			},
			[]string{"decision"},
		),
		ApprovalLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "taskflow_approval_latency_seconds",
				Help:    "Time taken for approval decisions in seconds",
				Buckets: []float64{1.0, 5.0, 10.0, 30.0, 60.0, 300.0, 600.0},
			},
		),

		ToolCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskflow_tool_calls_total",
				Help: "Total number of tool invocations",
			},
			[]string{"tool", "success"},
		),

		Applies: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskflow_applies_total",
				Help: "Total number of atomic apply operations",
			},
			[]string{"outcome"},
		),
		AppliedChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskflow_applied_changes_total",
				Help: "Total number of file changes written by kind",
			},
			[]string{"kind"},
		),
		Rollbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskflow_rollbacks_total",
				Help: "Total number of apply rollbacks",
			},
			[]string{"success"},
		),

		GraphCacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "taskflow_graph_cache_hits_total",
				Help: "Total number of dependency graph cache hits",
			},
		),
		GraphCacheMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "taskflow_graph_cache_misses_total",
				Help: "Total number of dependency graph cache misses",
			},
		),

		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskflow_errors_total",
				Help: "Total number of errors by error code",
			},
			[]string{"error_code", "component"},
		),
	}
}

// The recording helpers below are nil-safe so components can run without metrics.

// RecordPipeline records a finished pipeline run.
func (m *Metrics) RecordPipeline(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.PipelineRuns.WithLabelValues(outcome).Inc()
	m.PipelineDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordPhase records one agent phase.
func (m *Metrics) RecordPhase(phase string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	m.PhaseRuns.WithLabelValues(phase, strconv.FormatBool(success)).Inc()
	m.PhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// RecordApproval records an approval decision.
func (m *Metrics) RecordApproval(approved bool, d time.Duration) {
	if m == nil {
		return
	}
	decision := "declined"
	if approved {
		decision = "approved"
	}
	m.Approvals.WithLabelValues(decision).Inc()
	m.ApprovalLatency.Observe(d.Seconds())
}

// RecordToolCall records one tool invocation.
func (m *Metrics) RecordToolCall(tool string, success bool) {
	if m == nil {
		return
	}
	m.ToolCalls.WithLabelValues(tool, strconv.FormatBool(success)).Inc()
}

// RecordApply records an apply outcome ("applied", "dry_run", "failed", "rolled_back").
func (m *Metrics) RecordApply(outcome string, created, changed, deleted int) {
	if m == nil {
		return
	}
	m.Applies.WithLabelValues(outcome).Inc()
	m.AppliedChanges.WithLabelValues("create").Add(float64(created))
	m.AppliedChanges.WithLabelValues("modify").Add(float64(changed))
	m.AppliedChanges.WithLabelValues("delete").Add(float64(deleted))
}

// RecordRollback records a rollback attempt.
func (m *Metrics) RecordRollback(success bool) {
	if m == nil {
		return
	}
	m.Rollbacks.WithLabelValues(strconv.FormatBool(success)).Inc()
}

// RecordGraphCache records a dependency graph cache lookup.
func (m *Metrics) RecordGraphCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.GraphCacheHits.Inc()
		return
	}
	m.GraphCacheMisses.Inc()
}

// RecordError counts a coded error.
func (m *Metrics) RecordError(code, component string) {
	if m == nil || code == "" {
		return
	}
	m.Errors.WithLabelValues(code, component).Inc()
}
