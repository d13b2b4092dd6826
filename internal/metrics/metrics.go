package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Task runtime metrics
var (
	TasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_tasks_total",
			Help: "Total number of task executions by outcome",
		},
		[]string{"task", "outcome"},
	)

	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reel_task_duration_seconds",
			Help:    "Task handler duration in seconds",
			Buckets: []float64{0.05, 0.25, 1, 5, 15, 60, 300, 900, 3600, 10800},
		},
		[]string{"task"},
	)

	TasksInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reel_tasks_in_flight",
			Help: "Number of tasks currently being handled",
		},
	)
)

// Pipeline metrics
var (
	Dispatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reel_dispatched_total",
			Help: "Total number of encode tasks enqueued",
		},
	)

	EncodeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_encode_failures_total",
			Help: "Total number of failed encoder runs",
		},
		[]string{"encoder", "kind"},
	)

	Transfers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_transfers_total",
			Help: "Total number of input transfers to remote storage",
		},
		[]string{"outcome"},
	)

	Uploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_uploads_total",
			Help: "Total number of encoded outputs uploaded to CDN storage",
		},
		[]string{"outcome"},
	)

	MediaCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reel_media_completed_total",
			Help: "Total number of media entities that produced every requested output",
		},
	)
)

// Outcome labels.
const (
	OutcomeOK         = "ok"
	OutcomeError      = "error"
	OutcomeRetry      = "retry"
	OutcomeDeadLetter = "dead_letter"
)
