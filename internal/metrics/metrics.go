// Package metrics exposes Prometheus counters for the process layer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "luarun"

// Collector holds the counters for one Registry. A nil *Collector is valid
// and records nothing, so callers never need to check for it.
type Collector struct {
	registry *prometheus.Registry

	spawns       *prometheus.CounterVec
	waits        *prometheus.CounterVec
	terminations *prometheus.CounterVec
	bytesRead    prometheus.Counter
	bytesWritten prometheus.Counter
	ioErrors     *prometheus.CounterVec
}

// New creates a Collector registered on a fresh registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		spawns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spawns_total",
			Help:      "Spawn attempts by result (ok, validate, pipe, start).",
		}, []string{"result"}),
		waits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "waits_total",
			Help:      "Completed waits by outcome (exited, indeterminate, error).",
		}, []string{"outcome"}),
		terminations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "terminations_total",
			Help:      "Termination requests by result (ok, error).",
		}, []string{"result"}),
		bytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_read_total",
			Help:      "Bytes read from child stdout and stderr pipes.",
		}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_written_total",
			Help:      "Bytes written to child stdin pipes.",
		}),
		ioErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "io_errors_total",
			Help:      "Failed endpoint operations by op (read, write, close).",
		}, []string{"op"}),
	}
	c.registry.MustRegister(c.spawns, c.waits, c.terminations, c.bytesRead, c.bytesWritten, c.ioErrors)
	return c
}

// Registry returns the registry holding the collector's metrics.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// SpawnResult counts one spawn attempt.
func (c *Collector) SpawnResult(result string) {
	if c == nil {
		return
	}
	c.spawns.WithLabelValues(result).Inc()
}

// WaitOutcome counts one finished wait.
func (c *Collector) WaitOutcome(outcome string) {
	if c == nil {
		return
	}
	c.waits.WithLabelValues(outcome).Inc()
}

// TerminateResult counts one termination request.
func (c *Collector) TerminateResult(ok bool) {
	if c == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	c.terminations.WithLabelValues(result).Inc()
}

// AddBytesRead adds n to the read byte counter.
func (c *Collector) AddBytesRead(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.bytesRead.Add(float64(n))
}

// AddBytesWritten adds n to the written byte counter.
func (c *Collector) AddBytesWritten(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.bytesWritten.Add(float64(n))
}

// IOError counts one failed endpoint operation.
func (c *Collector) IOError(op string) {
	if c == nil {
		return
	}
	c.ioErrors.WithLabelValues(op).Inc()
}
