package relay

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

// Metrics holds the relay's Prometheus collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	recordsReceived  prometheus.Counter
	recordsRejected  prometheus.Counter
	deliveries       prometheus.Counter
	deliveryFailures prometheus.Counter
	listeners        prometheus.Gauge

	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec
}

// NewMetrics creates and registers the relay collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		recordsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "serpgrab",
			Subsystem: "relay",
			Name:      "records_received_total",
			Help:      "Geolocation records accepted for broadcast",
		}),
		recordsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "serpgrab",
			Subsystem: "relay",
			Name:      "records_rejected_total",
			Help:      "Geolocation records rejected as invalid",
		}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "serpgrab",
			Subsystem: "relay",
			Name:      "deliveries_total",
			Help:      "Messages delivered to listeners",
		}),
		deliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "serpgrab",
			Subsystem: "relay",
			Name:      "delivery_failures_total",
			Help:      "Sends that failed and dropped their listener",
		}),
		listeners: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "serpgrab",
			Subsystem: "relay",
			Name:      "listeners",
			Help:      "Currently connected listeners",
		}),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "serpgrab",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"method", "path", "status"},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "serpgrab",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.recordsReceived,
		m.recordsRejected,
		m.deliveries,
		m.deliveryFailures,
		m.listeners,
		m.httpRequestDuration,
		m.httpRequestsTotal,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records HTTP request duration and count
func (m *Metrics) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				// Hijacked for a WebSocket upgrade
				status = http.StatusSwitchingProtocols
			}

			path := "unknown"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				path = rctx.RoutePattern()
			}

			labels := []string{r.Method, path, strconv.Itoa(status)}
			m.httpRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
			m.httpRequestsTotal.WithLabelValues(labels...).Inc()
		})
	}
}

func (m *Metrics) received() {
	if m != nil {
		m.recordsReceived.Inc()
	}
}

func (m *Metrics) rejected() {
	if m != nil {
		m.recordsRejected.Inc()
	}
}

func (m *Metrics) delivered(n int) {
	if m != nil {
		m.deliveries.Add(float64(n))
	}
}

func (m *Metrics) deliveryFailed() {
	if m != nil {
		m.deliveryFailures.Inc()
	}
}

func (m *Metrics) setListeners(n int) {
	if m != nil {
		m.listeners.Set(float64(n))
	}
}
