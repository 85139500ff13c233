// Package metrics defines the Prometheus instrumentation for the job
// queues. Metrics are registered with the default registry via promauto and
// exposed through the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsEnqueued counts jobs accepted into each queue.
	JobsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reverie_jobs_enqueued_total",
			Help: "Total number of jobs enqueued",
		},
		[]string{"queue"},
	)

	// JobsProcessed counts finished executions by outcome. A retried
	// execution counts under "retry", the terminal one under "failed".
	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reverie_jobs_processed_total",
			Help: "Total number of job executions by outcome",
		},
		[]string{"queue", "outcome"},
	)

	// JobDuration observes wall-clock time of individual job executions.
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reverie_job_duration_seconds",
			Help:    "Time spent executing individual jobs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"queue"},
	)

	// QueueDepth tracks the number of records per queue and status.
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reverie_queue_depth",
			Help: "Current number of job records by status",
		},
		[]string{"queue", "status"},
	)

	// JobsSwept counts expired records removed by the TTL sweeper.
	JobsSwept = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reverie_jobs_swept_total",
			Help: "Total number of expired job records removed",
		},
		[]string{"queue"},
	)
)

// Outcome labels for JobsProcessed.
const (
	OutcomeSuccess = "success"
	OutcomeRetry   = "retry"
	OutcomeFailed  = "failed"
)
