// Package observability provides Prometheus metrics and OpenTelemetry tracing.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application. It implements
// bus.MetricsRecorder and syncengine.Metrics.
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Command metrics
	Commands        *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
	DeltaKeys       prometheus.Histogram

	// Sync metrics
	SyncWrites      *prometheus.CounterVec
	SyncDuration    *prometheus.HistogramVec
	EchoSuppressed  prometheus.Counter
	RemoteMerged    prometheus.Counter
	RetryQueueDepth prometheus.Gauge
}

// NewCollector creates a collector with its own registry so tests can create many
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Commands dispatched, by type and outcome",
			},
			[]string{"command", "outcome"},
		),
		CommandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "command_duration_seconds",
				Help:      "Time to reduce a command",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
			},
			[]string{"command"},
		),
		DeltaKeys: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "delta_keys",
				Help:      "Number of keys touched by one command",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		SyncWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_writes_total",
				Help:      "Store writes by target (local, remote) and outcome",
			},
			[]string{"target", "outcome"},
		),
		SyncDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sync_duration_seconds",
				Help:      "Store write duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"target"},
		),
		EchoSuppressed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "remote_echo_suppressed_total",
				Help:      "Remote snapshots ignored because this client wrote them",
			},
		),
		RemoteMerged: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "remote_merged_keys_total",
				Help:      "Keys changed by merging remote snapshots",
			},
		),
		RetryQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "retry_queue_keys",
				Help:      "Keys waiting in the local retry queue",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.HTTPRequests,
		c.HTTPDuration,
		c.Commands,
		c.CommandDuration,
		c.DeltaKeys,
		c.SyncWrites,
		c.SyncDuration,
		c.EchoSuppressed,
		c.RemoteMerged,
		c.RetryQueueDepth,
	)
	return c
}

// Registry returns the registry backing this collector
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordCommand implements bus.MetricsRecorder
func (c *Collector) RecordCommand(name string, duration time.Duration, outcome string, deltaSize int) {
	c.Commands.WithLabelValues(name, outcome).Inc()
	c.CommandDuration.WithLabelValues(name).Observe(duration.Seconds())
	if deltaSize > 0 {
		c.DeltaKeys.Observe(float64(deltaSize))
	}
}

// RecordSync implements syncengine.Metrics
func (c *Collector) RecordSync(target, outcome string, duration time.Duration, keys int) {
	c.SyncWrites.WithLabelValues(target, outcome).Inc()
	c.SyncDuration.WithLabelValues(target).Observe(duration.Seconds())
}

// RecordEchoSuppressed implements syncengine.Metrics
func (c *Collector) RecordEchoSuppressed() {
	c.EchoSuppressed.Inc()
}

// RecordRemoteMerge implements syncengine.Metrics
func (c *Collector) RecordRemoteMerge(applied int) {
	c.RemoteMerged.Add(float64(applied))
}

// SetRetryQueueDepth implements syncengine.Metrics
func (c *Collector) SetRetryQueueDepth(keys int) {
	c.RetryQueueDepth.Set(float64(keys))
}

// HTTPMiddleware records request counts and latency by chi route pattern
func (c *Collector) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
