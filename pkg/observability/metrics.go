package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ideacanvas"

// Metrics holds the Prometheus collectors for the service. Each instance
// owns its registry so tests and multiple servers do not collide
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	generationLatency   *prometheus.HistogramVec
	generationOverloads *prometheus.CounterVec

	layoutNodes   prometheus.Histogram
	layoutLatency prometheus.Histogram

	saves       *prometheus.CounterVec
	saveLatency prometheus.Histogram

	handlerLatency *prometheus.HistogramVec
}

// NewMetrics registers every collector on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route pattern, method and status",
		}, []string{"route", "method", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		generationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "duration_seconds",
			Help:      "Text generation latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		}, []string{"operation", "status"}),
		generationOverloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "overloads_total",
			Help:      "Generation calls rejected as overloaded",
		}, []string{"operation"}),
		layoutNodes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "layout",
			Name:      "nodes",
			Help:      "Nodes moved per tree layout",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		layoutLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "layout",
			Name:      "duration_seconds",
			Help:      "Tree layout computation time in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "autosave",
			Name:      "saves_total",
			Help:      "Canvas snapshot saves by outcome",
		}, []string{"status"}),
		saveLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "autosave",
			Name:      "duration_seconds",
			Help:      "Canvas snapshot save latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		handlerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "handler_duration_seconds",
			Help:      "Command and query handler latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"bus", "type", "status"}),
	}

	reg.MustRegister(
		m.httpRequests, m.httpLatency,
		m.generationLatency, m.generationOverloads,
		m.layoutNodes, m.layoutLatency,
		m.saves, m.saveLatency,
		m.handlerLatency,
	)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveHTTP records one finished request
func (m *Metrics) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// ObserveGeneration records one call to the text model
func (m *Metrics) ObserveGeneration(operation string, elapsed time.Duration, err error, overloaded bool) {
	m.generationLatency.WithLabelValues(operation, status(err)).Observe(elapsed.Seconds())
	if overloaded {
		m.generationOverloads.WithLabelValues(operation).Inc()
	}
}

// ObserveLayout records one tree layout
func (m *Metrics) ObserveLayout(nodes int, elapsed time.Duration) {
	m.layoutNodes.Observe(float64(nodes))
	m.layoutLatency.Observe(elapsed.Seconds())
}

// ObserveSave records one snapshot save
func (m *Metrics) ObserveSave(_ string, elapsed time.Duration, err error) {
	m.saves.WithLabelValues(status(err)).Inc()
	m.saveLatency.Observe(elapsed.Seconds())
}

// ObserveHandler records one command or query
func (m *Metrics) ObserveHandler(bus, name string, elapsed time.Duration, err error) {
	m.handlerLatency.WithLabelValues(bus, name, status(err)).Observe(elapsed.Seconds())
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
