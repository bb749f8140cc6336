// Package metrics exposes prometheus collectors for API requests and poll loops.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "irp"

// Metrics groups the collectors.
type Metrics struct {
	requests     *prometheus.CounterVec
	retries      *prometheus.CounterVec
	pollTicks    *prometheus.CounterVec
	pollDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "API requests by method and response code.",
		}, []string{"method", "code"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_retries_total",
			Help:      "Transient API failures that were retried.",
		}, []string{"method"}),
		pollTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_ticks_total",
			Help:      "Status fetch rounds performed by pollers.",
		}, []string{"strategy"}),
		pollDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Wall time from first tick to terminal outcome.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"strategy", "outcome"}),
		gatherer: reg,
	}
	reg.MustRegister(m.requests, m.retries, m.pollTicks, m.pollDuration)
	return m
}

// ObserveRequest counts one completed HTTP exchange. code 0 means no response.
func (m *Metrics) ObserveRequest(method string, code int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

// ObserveRetry counts one retried attempt.
func (m *Metrics) ObserveRetry(method string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(method).Inc()
}

// ObserveTick counts one poll round.
func (m *Metrics) ObserveTick(strategy string) {
	if m == nil {
		return
	}
	m.pollTicks.WithLabelValues(strategy).Inc()
}

// ObservePoll records how long a poll ran and how it ended.
func (m *Metrics) ObservePoll(strategy, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.pollDuration.WithLabelValues(strategy, outcome).Observe(elapsed.Seconds())
}

// Gatherer exposes the registry, mainly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.gatherer
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Gatherer(), promhttp.HandlerOpts{})
}
