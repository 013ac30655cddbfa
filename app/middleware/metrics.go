package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Total HTTP requests partitioned by method, route, and status code
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	// Request duration in seconds partitioned by method, route, and status code
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// In-flight HTTP requests
	httpInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)

	// Engine tick outcomes partitioned by terminal status
	engineExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_executions_total",
			Help: "Total lifecycle executions processed per terminal outcome",
		},
		[]string{"outcome"},
	)

	// Executions created by the scheduling phase
	engineScheduledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_scheduled_total",
			Help: "Total lifecycle executions created by the scheduler",
		},
	)

	// Tick duration in seconds
	engineTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engine_tick_duration_seconds",
			Help:    "Engine tick latencies in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)
)

// Metrics returns a Fiber v3 middleware that records basic Prometheus metrics.
// Labels are kept low-cardinality by using the matched route path when available.
func Metrics() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		// Call the next handler in the chain
		err := c.Next()

		status := c.Response().StatusCode()
		method := c.Method()
		route := c.Path()
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path // Use route template to avoid high cardinality
		}

		labels := prometheus.Labels{
			"method": method,
			"route":  route,
			"status": strconv.Itoa(status),
		}
		httpRequestsTotal.With(labels).Inc()
		httpRequestDuration.With(labels).Observe(time.Since(start).Seconds())

		return err
	}
}

// RecordEngineTick records the outcome counters of one engine invocation
func RecordEngineTick(scheduled, sent, failed, skipped int, elapsed time.Duration) {
	engineScheduledTotal.Add(float64(scheduled))
	engineExecutionsTotal.With(prometheus.Labels{"outcome": "sent"}).Add(float64(sent))
	engineExecutionsTotal.With(prometheus.Labels{"outcome": "failed"}).Add(float64(failed))
	engineExecutionsTotal.With(prometheus.Labels{"outcome": "skipped"}).Add(float64(skipped))
	engineTickDuration.Observe(elapsed.Seconds())
}
