// Package metrics exposes Prometheus metrics for the notification service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/notifykit/pkg/fanout"
)

// Metrics owns a private registry so tests can build as many as they need.
type Metrics struct {
	registry *prometheus.Registry

	NotificationsTotal *prometheus.CounterVec
	Recipients         prometheus.Histogram
	PushedTotal        prometheus.Counter
	DeliveriesTotal    *prometheus.CounterVec
	DeliveryDuration   *prometheus.HistogramVec
	Connections        prometheus.Gauge
	IntakeTotal        *prometheus.CounterVec
	HTTPRequestsTotal  *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications accepted by the fan-out coordinator.",
		}, []string{"type", "persisted"}),
		Recipients: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "notification_recipients",
			Help:      "Resolved recipients per notification.",
			Buckets:   []float64{0, 1, 5, 10, 50, 100, 500, 1000},
		}),
		PushedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_pushes_total",
			Help:      "new_message frames accepted by live connections.",
		}),
		DeliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_deliveries_total",
			Help:      "External channel delivery attempts.",
		}, []string{"kind", "status"}),
		DeliveryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "channel_delivery_duration_seconds",
			Help:      "Time spent in a channel adapter.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_connections",
			Help:      "Open websocket connections.",
		}),
		IntakeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intake_messages_total",
			Help:      "Queue messages consumed, by result.",
		}, []string{"result"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.NotificationsTotal, m.Recipients, m.PushedTotal,
		m.DeliveriesTotal, m.DeliveryDuration, m.Connections,
		m.IntakeTotal, m.HTTPRequestsTotal, m.HTTPDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveNotify is a fanout.WithNotifyHook callback.
func (m *Metrics) ObserveNotify(s *fanout.Summary) {
	m.NotificationsTotal.WithLabelValues(s.Type, strconv.FormatBool(s.Persisted)).Inc()
	m.Recipients.Observe(float64(len(s.Recipients)))
	m.PushedTotal.Add(float64(s.Pushed))
}

// ObserveOutcome is a fanout.WithOutcomeHook callback.
func (m *Metrics) ObserveOutcome(o fanout.Outcome) {
	kind := string(o.Channel.Kind)
	status := "success"
	switch {
	case o.Err != nil:
		status = "failed"
	case o.Result.Partial():
		status = "partial"
	}
	m.DeliveriesTotal.WithLabelValues(kind, status).Inc()
	m.DeliveryDuration.WithLabelValues(kind).Observe(o.Duration.Seconds())
}

// SetConnections is a realtime.WithConnectionObserver callback.
func (m *Metrics) SetConnections(n int) { m.Connections.Set(float64(n)) }

func (m *Metrics) ObserveIntake(result string) { m.IntakeTotal.WithLabelValues(result).Inc() }

// Middleware records request counts and latency labelled by the chi route
// pattern, so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		m.HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(sw.status)).Inc()
		m.HTTPDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer, which the
// websocket upgrade needs for hijacking.
func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
