// Package metrics is the Prometheus metric catalog for the pipeline:
// task submissions, stage durations, transcription outcomes, and the
// stress endpoint. Metrics are registered once at package init via
// promauto, then recorded by package pipeline, worker, and httpapi.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TasksSubmittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediascribe_tasks_submitted_total",
			Help: "Total tasks accepted for processing.",
		},
	)

	TasksRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediascribe_tasks_rejected_total",
			Help: "Total task submissions refused, by reason.",
		},
		[]string{"reason"}, // duplicate_url, queue_full, shutting_down
	)

	TaskStatusTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediascribe_task_status_total",
			Help: "Total task terminations by final status.",
		},
		[]string{"status"}, // completed, failed, cancelled
	)

	StageDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediascribe_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"stage", "outcome"}, // outcome: success, failure
	)

	ChunksTranscribedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediascribe_chunks_transcribed_total",
			Help: "Total chunk transcriptions by final outcome.",
		},
		[]string{"outcome"}, // success, failed, rate_limited
	)

	RateLimitWaitSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mediascribe_rate_limit_wait_seconds",
			Help:    "Time a chunk transcription spent waiting for rate limiter admission.",
			Buckets: []float64{0, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediascribe_queue_depth",
			Help: "Current number of tasks waiting in the worker queue.",
		},
	)

	ActiveWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediascribe_active_workers",
			Help: "Current number of workers actively processing a task.",
		},
	)

	StressRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediascribe_stress_requests_total",
			Help: "Total stress-endpoint requests by outcome.",
		},
		[]string{"outcome"}, // accepted, bad_request, out_of_range
	)
)

// ObserveStage records a completed stage's duration and outcome.
func ObserveStage(stage string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	StageDurationSeconds.WithLabelValues(stage, outcome).Observe(time.Since(start).Seconds())
}
