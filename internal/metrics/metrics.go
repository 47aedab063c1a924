package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes Prometheus metrics for the PACER client, cost tracking,
// and notification dispatch, plus inbound HTTP metrics for the ops API.
type Collector struct {
	registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	pacerRequests *prometheus.CounterVec
	pacerRetries  *prometheus.CounterVec

	costRecorded     *prometheus.CounterVec
	budgetRejections prometheus.Counter

	notifications *prometheus.CounterVec
	escalations   prometheus.Counter
}

// NewCollector constructs a collector on a private registry.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docketwatch",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution for inbound HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docketwatch",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of inbound HTTP requests.",
		}, []string{"method", "path", "status"}),
		pacerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docketwatch",
			Subsystem: "pacer",
			Name:      "requests_total",
			Help:      "Outbound PACER requests by operation and outcome.",
		}, []string{"operation", "status"}),
		pacerRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docketwatch",
			Subsystem: "pacer",
			Name:      "retries_total",
			Help:      "Retried PACER requests by operation.",
		}, []string{"operation"}),
		costRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docketwatch",
			Subsystem: "billing",
			Name:      "cost_recorded_dollars_total",
			Help:      "Dollars recorded to the cost ledger by operation.",
		}, []string{"operation"}),
		budgetRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "docketwatch",
			Subsystem: "billing",
			Name:      "budget_rejections_total",
			Help:      "Operations rejected by the budget gate.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docketwatch",
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Notification deliveries by channel and status.",
		}, []string{"channel", "status"}),
		escalations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "docketwatch",
			Subsystem: "notify",
			Name:      "escalations_scheduled_total",
			Help:      "Escalations scheduled for unacknowledged alerts.",
		}),
	}

	collectors := []prometheus.Collector{
		c.requestDuration,
		c.requestTotal,
		c.pacerRequests,
		c.pacerRetries,
		c.costRecorded,
		c.budgetRejections,
		c.notifications,
		c.escalations,
	}

	for _, col := range collectors {
		if err := registry.Register(col); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// ObservePACERRequest counts one outbound PACER round-trip.
func (c *Collector) ObservePACERRequest(operation, status string) {
	c.pacerRequests.WithLabelValues(operation, status).Inc()
}

// ObservePACERRetry counts one retried PACER request.
func (c *Collector) ObservePACERRetry(operation string) {
	c.pacerRetries.WithLabelValues(operation).Inc()
}

// ObserveCost adds a recorded cost to the billing counter.
func (c *Collector) ObserveCost(operation string, dollars float64) {
	c.costRecorded.WithLabelValues(operation).Add(dollars)
}

// ObserveBudgetRejection counts one budget-gate rejection.
func (c *Collector) ObserveBudgetRejection() {
	c.budgetRejections.Inc()
}

// ObserveDelivery counts one notification delivery attempt.
func (c *Collector) ObserveDelivery(channel, status string) {
	c.notifications.WithLabelValues(channel, status).Inc()
}

// ObserveEscalation counts one scheduled escalation.
func (c *Collector) ObserveEscalation() {
	c.escalations.Inc()
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := r.URL.Path

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
