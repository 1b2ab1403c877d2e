// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PromptDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prompt_dispatches_total",
			Help: "Total number of prompt dispatches by template and outcome",
		},
		[]string{"template_id", "status"},
	)

	PromptDispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prompt_dispatch_duration_seconds",
			Help:    "Duration of render, generation and capture in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"template_id"},
	)

	CapturedResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "captured_responses_total",
			Help: "Total number of captured responses persisted per sink",
		},
		[]string{"sink"},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

// Dispatch outcome labels.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// RecordDispatch counts one dispatch outcome and observes its duration.
// TemplateLabelUnknown stands in for identifiers outside the catalog so
// caller input cannot add label values.
const TemplateLabelUnknown = "unknown"

func RecordDispatch(templateID, status string, seconds float64) {
	PromptDispatches.WithLabelValues(templateID, status).Inc()
	PromptDispatchDuration.WithLabelValues(templateID).Observe(seconds)
}
