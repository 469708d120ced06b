package core

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for dispatch, wait and log
// inspection. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Dispatches   *prometheus.CounterVec
	StatusPolls  *prometheus.CounterVec
	Waits        *prometheus.CounterVec
	WaitDuration prometheus.Histogram
	LogFetches   *prometheus.CounterVec
	LogLines     prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecs_oneshot",
			Subsystem: "dispatch",
			Name:      "total",
			Help:      "RunTask dispatches by outcome",
		}, []string{"outcome"}),
		StatusPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecs_oneshot",
			Subsystem: "wait",
			Name:      "status_polls_total",
			Help:      "DescribeTasks status checks by result",
		}, []string{"result"}),
		Waits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecs_oneshot",
			Subsystem: "wait",
			Name:      "total",
			Help:      "Completed waits by outcome",
		}, []string{"outcome"}),
		WaitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ecs_oneshot",
			Subsystem: "wait",
			Name:      "duration_seconds",
			Help:      "Time spent waiting for a task to stop",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 16), // 10ms to ~5.5m
		}),
		LogFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecs_oneshot",
			Subsystem: "logs",
			Name:      "fetches_total",
			Help:      "GetLogEvents calls by outcome",
		}, []string{"outcome"}),
		LogLines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ecs_oneshot",
			Subsystem: "logs",
			Name:      "lines_total",
			Help:      "Log lines retrieved",
		}),
	}
	reg.MustRegister(m.Dispatches, m.StatusPolls, m.Waits, m.WaitDuration, m.LogFetches, m.LogLines)
	return m
}

// RecordDispatch counts a dispatch attempt.
func (m *Metrics) RecordDispatch(outcome string) {
	if m == nil {
		return
	}
	m.Dispatches.WithLabelValues(outcome).Inc()
}

// RecordStatusPoll counts one status check.
func (m *Metrics) RecordStatusPoll(result string) {
	if m == nil {
		return
	}
	m.StatusPolls.WithLabelValues(result).Inc()
}

// RecordWait counts a finished wait and observes its duration.
func (m *Metrics) RecordWait(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Waits.WithLabelValues(outcome).Inc()
	m.WaitDuration.Observe(d.Seconds())
}

// RecordLogFetch counts a log fetch and the lines it returned.
func (m *Metrics) RecordLogFetch(outcome string, lines int) {
	if m == nil {
		return
	}
	m.LogFetches.WithLabelValues(outcome).Inc()
	m.LogLines.Add(float64(lines))
}
