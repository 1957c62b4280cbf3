package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the store's Prometheus collectors. Each instance owns its
// registry so tests can build several routers.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	NodesAppended   prometheus.Counter
	EdgesAppended   prometheus.Counter
	PositionUpdates prometheus.Counter
	LoginFailures   prometheus.Counter
	SSEClients      prometheus.GaugeFunc
}

// NewMetrics creates the collectors under namespace. clients, when non-nil,
// reports the number of connected event stream clients.
func NewMetrics(namespace string, clients func() int) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
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
		NodesAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nodes_appended_total",
			Help:      "Total number of nodes appended",
		}),
		EdgesAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edges_appended_total",
			Help:      "Total number of edges appended",
		}),
		PositionUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_position_updates_total",
			Help:      "Total number of persisted node positions",
		}),
		LoginFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_failures_total",
			Help:      "Total number of rejected logins",
		}),
	}

	m.registry.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.NodesAppended,
		m.EdgesAppended,
		m.PositionUpdates,
		m.LoginFailures,
		collectors.NewGoCollector(),
	)

	if clients != nil {
		m.SSEClients = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_stream_clients",
			Help:      "Number of connected event stream clients",
		}, func() float64 { return float64(clients()) })
		m.registry.MustRegister(m.SSEClients)
	}

	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Instrument records request counts and durations by route pattern
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
