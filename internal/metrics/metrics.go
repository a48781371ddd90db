// Package metrics provides Prometheus instrumentation for the wsecho server.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name
const DefaultNamespace = "wsecho"

// Message results recorded by MessagesTotal
const (
	ResultEchoed   = "echoed"
	ResultRejected = "rejected"
)

// Metrics holds all Prometheus metrics for the server. Each instance owns its
// own registry so several servers (or tests) can coexist in one process.
//
// All methods are safe to call on a nil *Metrics, which records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Connection metrics
	ActiveConnections prometheus.Gauge
	ConnectionsTotal  *prometheus.CounterVec
	ClosesTotal       *prometheus.CounterVec

	// Message metrics
	MessagesTotal *prometheus.CounterVec
	MessageBytes  prometheus.Histogram

	// Feed proxy metrics
	FeedRequestsTotal *prometheus.CounterVec
	FeedDuration      *prometheus.HistogramVec
}

// New creates a Metrics instance with a fresh registry that also carries the
// Go runtime and process collectors
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ActiveConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_connections",
				Help:      "Number of currently open WebSocket connections",
			},
		),
		ConnectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connections_total",
				Help:      "Total number of accepted WebSocket connections",
			},
			[]string{"engine"},
		),
		ClosesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "closes_total",
				Help:      "Total number of connection closes by close code",
			},
			[]string{"code"},
		),
		MessagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_total",
				Help:      "Total number of assembled messages by result",
			},
			[]string{"result"},
		),
		MessageBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "message_size_bytes",
				Help:      "Size of assembled messages in bytes",
				Buckets:   []float64{16, 64, 256, 1024, 4096, 16384, 65536, 262144, 1048576},
			},
		),
		FeedRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feed_requests_total",
				Help:      "Total number of feed proxy requests by status code",
			},
			[]string{"code", "method"},
		),
		FeedDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "feed_request_duration_seconds",
				Help:      "Feed proxy request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
}

// Registry returns the registry the metrics are registered with
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ConnectionOpened records an accepted connection
func (m *Metrics) ConnectionOpened(engine string) {
	if m == nil {
		return
	}
	m.ActiveConnections.Inc()
	m.ConnectionsTotal.WithLabelValues(engine).Inc()
}

// ConnectionClosed records the close status sent when a connection ended
func (m *Metrics) ConnectionClosed(code int) {
	if m == nil {
		return
	}
	m.ActiveConnections.Dec()
	m.ClosesTotal.WithLabelValues(strconv.Itoa(code)).Inc()
}

// MessageReceived records an assembled message
func (m *Metrics) MessageReceived(result string, size int) {
	if m == nil {
		return
	}
	m.MessagesTotal.WithLabelValues(result).Inc()
	m.MessageBytes.Observe(float64(size))
}

// InstrumentFeed wraps the feed handler with request count and latency metrics
func (m *Metrics) InstrumentFeed(h http.Handler) http.Handler {
	if m == nil {
		return h
	}
	return promhttp.InstrumentHandlerDuration(m.FeedDuration,
		promhttp.InstrumentHandlerCounter(m.FeedRequestsTotal, h),
	)
}
