// Package metrics exposes the relay's Prometheus instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsTotal counts events by terminal status (published, failed).
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framerelay_events_total",
		Help: "Capture events by terminal status.",
	}, []string{"status"})

	// StageOutcomes counts forwarded hops by stage and outcome
	// (success, exhausted_retries, aborted).
	StageOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framerelay_stage_outcomes_total",
		Help: "Forwarded hop outcomes by stage.",
	}, []string{"stage", "outcome"})

	// StageAttempts counts individual attempts per stage, including retries.
	StageAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framerelay_stage_attempts_total",
		Help: "Forward attempts by stage, retries included.",
	}, []string{"stage"})

	// StageDuration observes wall-clock time per stage, retries included.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "framerelay_stage_duration_seconds",
		Help:    "Stage duration in seconds, retries included.",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"stage"})

	// PublishTotal counts sink deliveries by sink name and outcome.
	PublishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framerelay_publish_total",
		Help: "Sink deliveries by sink and outcome (ok, error).",
	}, []string{"sink", "outcome"})

	// Inflight tracks events currently inside the pipeline.
	Inflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "framerelay_inflight_events",
		Help: "Events currently being processed.",
	})
)

// ObserveStage records one forwarded hop: its outcome, how many attempts it
// took, and how long it ran including backoff.
func ObserveStage(stage, outcome string, attempts int, elapsed time.Duration) {
	StageOutcomes.WithLabelValues(stage, outcome).Inc()
	StageAttempts.WithLabelValues(stage).Add(float64(attempts))
	StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// RecordPublish records one sink delivery.
func RecordPublish(sink string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	PublishTotal.WithLabelValues(sink, outcome).Inc()
}
