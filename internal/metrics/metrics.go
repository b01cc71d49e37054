// Package metrics holds the Prometheus collectors for the attempt engine.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	attemptsStarted   prometheus.Counter
	attemptsFinalized *prometheus.CounterVec
	answersSubmitted  *prometheus.CounterVec
	flushes           *prometheus.CounterVec
	sweepRuns         prometheus.Counter
	cacheErrors       *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		attemptsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_attempts_started_total",
			Help: "Attempts created.",
		}),
		attemptsFinalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_attempts_finalized_total",
			Help: "Attempts finalized, by resulting status.",
		}, []string{"status"}),
		answersSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_answers_submitted_total",
			Help: "Answers accepted into the buffer, by correctness.",
		}, []string{"correct"}),
		flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_buffer_flushes_total",
			Help: "Answer buffer flush outcomes.",
		}, []string{"result"}),
		sweepRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_sweep_runs_total",
			Help: "Sweep passes over overdue attempts.",
		}),
		cacheErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_cache_errors_total",
			Help: "Fast cache failures, by operation.",
		}, []string{"op"}),
	}

	m.registry.MustRegister(
		m.attemptsStarted,
		m.attemptsFinalized,
		m.answersSubmitted,
		m.flushes,
		m.sweepRuns,
		m.cacheErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) AttemptStarted() {
	if m == nil {
		return
	}
	m.attemptsStarted.Inc()
}

func (m *Metrics) AttemptFinalized(status string) {
	if m == nil {
		return
	}
	m.attemptsFinalized.WithLabelValues(status).Inc()
}

func (m *Metrics) AnswerSubmitted(correct bool) {
	if m == nil {
		return
	}
	label := "false"
	if correct {
		label = "true"
	}
	m.answersSubmitted.WithLabelValues(label).Inc()
}

// Flush records one drained attempt; result is flushed, skipped or failed.
func (m *Metrics) Flush(result string) {
	if m == nil {
		return
	}
	m.flushes.WithLabelValues(result).Inc()
}

func (m *Metrics) SweepRun() {
	if m == nil {
		return
	}
	m.sweepRuns.Inc()
}

func (m *Metrics) CacheError(op string) {
	if m == nil {
		return
	}
	m.cacheErrors.WithLabelValues(op).Inc()
}
