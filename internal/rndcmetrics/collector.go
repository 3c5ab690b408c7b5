// Package rndcmetrics exposes Prometheus instrumentation for the rndc
// client: call counts and latency, retry counts, and authentication
// failures. Collector implements internal/rndc.Recorder.
package rndcmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "rndc"
	subsystem = "client"
)

// Label names.
const (
	labelCommand = "command"
	labelOutcome = "outcome"
)

// Outcome label values.
const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// callDurationBuckets covers a one-shot rndc command's realistic latency
// range: sub-millisecond on loopback up to a few session timeouts on a
// struggling server.
var callDurationBuckets = []float64{
	.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30,
}

// -------------------------------------------------------------------------
// Collector — Prometheus rndc client metrics
// -------------------------------------------------------------------------

// Collector holds all rndc client Prometheus metrics.
//
//   - CallsTotal counts calls per command and outcome.
//   - CallDuration records call latency per command.
//   - RetriesTotal counts retry-engine attempts after a Connection-kind
//     failure.
//   - AuthFailuresTotal counts HMAC verification failures.
type Collector struct {
	CallsTotal        *prometheus.CounterVec
	CallDuration      *prometheus.HistogramVec
	RetriesTotal      prometheus.Counter
	AuthFailuresTotal prometheus.Counter
}

// NewCollector creates a Collector with all rndc client metrics registered
// against reg. If reg is nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.CallsTotal,
		c.CallDuration,
		c.RetriesTotal,
		c.AuthFailuresTotal,
	)

	return c
}

// newMetrics creates all Prometheus metric vectors without registering them.
func newMetrics() *Collector {
	return &Collector{
		CallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "calls_total",
			Help:      "Total rndc commands issued, by command and outcome.",
		}, []string{labelCommand, labelOutcome}),

		CallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "call_duration_seconds",
			Help:      "Duration of a complete rndc command, including any retries.",
			Buckets:   callDurationBuckets,
		}, []string{labelCommand}),

		RetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "retries_total",
			Help:      "Total retry attempts made after a retryable connection failure.",
		}),

		AuthFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "auth_failures_total",
			Help:      "Total HMAC signature verification failures on received frames.",
		}),
	}
}

// -------------------------------------------------------------------------
// internal/rndc.Recorder
// -------------------------------------------------------------------------

// ObserveCall records one completed Call, labeled by command and whether
// it returned an error.
func (c *Collector) ObserveCall(cmd string, dur time.Duration, err error) {
	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeFailure
	}

	c.CallsTotal.WithLabelValues(cmd, outcome).Inc()
	c.CallDuration.WithLabelValues(cmd).Observe(dur.Seconds())
}

// ObserveRetry increments the retry counter.
func (c *Collector) ObserveRetry() {
	c.RetriesTotal.Inc()
}

// ObserveAuthFailure increments the authentication failure counter.
func (c *Collector) ObserveAuthFailure() {
	c.AuthFailuresTotal.Inc()
}
