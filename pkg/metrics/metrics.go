package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder collects swap engine metrics on its own registry
type Recorder struct {
	attempts     *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	polls        *prometheus.CounterVec
	registry     *prometheus.Registry
}

// NewRecorder creates a recorder with the given namespace ("hedera_swap" when empty)
func NewRecorder(namespace string) *Recorder {
	if namespace == "" {
		namespace = "hedera_swap"
	}
	registry := prometheus.NewRegistry()
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "swap_attempts_total",
		Help:      "Swap attempts by terminal step and error kind.",
	}, []string{"step", "kind"})
	stepDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "swap_step_duration_seconds",
		Help:      "Time spent in each orchestrator step.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"step"})
	polls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "monitor_polls_total",
		Help:      "Indexer polls by outcome.",
	}, []string{"outcome"})
	registry.MustRegister(attempts, stepDuration, polls)

	return &Recorder{
		attempts:     attempts,
		stepDuration: stepDuration,
		polls:        polls,
		registry:     registry,
	}
}

// Registry exposes the underlying registry for scraping or tests
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Attempt records a terminal attempt outcome
func (r *Recorder) Attempt(step, kind string) {
	if r == nil {
		return
	}
	r.attempts.WithLabelValues(step, kind).Inc()
}

// StepDuration records how long a step took
func (r *Recorder) StepDuration(step string, d time.Duration) {
	if r == nil {
		return
	}
	r.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

// Poll records one indexer poll outcome (found, not_found, error)
func (r *Recorder) Poll(outcome string) {
	if r == nil {
		return
	}
	r.polls.WithLabelValues(outcome).Inc()
}
