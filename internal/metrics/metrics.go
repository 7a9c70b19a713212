// Package metrics holds the Prometheus collectors for the server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for invocation counters.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeRejected = "rejected"
)

// Collector holds all metrics on a private registry. A nil *Collector is
// valid and records nothing.
type Collector struct {
	Registry *prometheus.Registry

	Invocations        *prometheus.CounterVec
	InvocationDuration *prometheus.HistogramVec
	InFlight           prometheus.Gauge
	Resolutions        *prometheus.CounterVec
	Policies           prometheus.Counter
	ResourceReads      *prometheus.CounterVec
}

// New creates a Collector with every metric registered.
func New() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		Registry: reg,

		Invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pkgx_mcp",
			Subsystem: "tool",
			Name:      "invocations_total",
			Help:      "Total tool invocations by outcome.",
		}, []string{"tool", "outcome"}),

		InvocationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pkgx_mcp",
			Subsystem: "tool",
			Name:      "invocation_duration_seconds",
			Help:      "Wall-clock duration of tool invocations in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}, []string{"tool"}),

		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pkgx_mcp",
			Subsystem: "tool",
			Name:      "in_flight",
			Help:      "Number of subprocesses currently running.",
		}),

		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pkgx_mcp",
			Subsystem: "pkgx",
			Name:      "resolutions_total",
			Help:      "pkgx executable resolutions by source.",
		}, []string{"source"}),

		Policies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pkgx_mcp",
			Subsystem: "sandbox",
			Name:      "policies_total",
			Help:      "Sandbox policy files written.",
		}),

		ResourceReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pkgx_mcp",
			Subsystem: "resource",
			Name:      "reads_total",
			Help:      "Resource reads by resource and outcome.",
		}, []string{"resource", "outcome"}),
	}

	reg.MustRegister(
		c.Invocations,
		c.InvocationDuration,
		c.InFlight,
		c.Resolutions,
		c.Policies,
		c.ResourceReads,
	)

	return c
}

// ObserveInvocation records one finished tool call.
func (c *Collector) ObserveInvocation(tool, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.Invocations.WithLabelValues(tool, outcome).Inc()
	c.InvocationDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// Started marks a subprocess as running and returns the func that marks it done.
func (c *Collector) Started() func() {
	if c == nil {
		return func() {}
	}
	c.InFlight.Inc()
	return c.InFlight.Dec
}

// ObserveResolution records where the pkgx executable came from.
func (c *Collector) ObserveResolution(source string) {
	if c == nil {
		return
	}
	c.Resolutions.WithLabelValues(source).Inc()
}

// ObservePolicy records a written sandbox policy file.
func (c *Collector) ObservePolicy() {
	if c == nil {
		return
	}
	c.Policies.Inc()
}

// ObserveResourceRead records one resource read.
func (c *Collector) ObserveResourceRead(resource, outcome string) {
	if c == nil {
		return
	}
	c.ResourceReads.WithLabelValues(resource, outcome).Inc()
}
