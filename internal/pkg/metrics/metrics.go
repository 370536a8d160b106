package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "florascope",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "florascope",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "florascope",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Viewport metrics
	ViewportUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "florascope",
		Subsystem: "viewport",
		Name:      "updates_total",
		Help:      "Total viewport changes by operation (set, focus)",
	}, []string{"operation", "overlaps_region"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "florascope",
		Subsystem: "viewport",
		Name:      "active_sessions",
		Help:      "Current number of viewport sessions held in memory",
	})

	// Prediction metrics
	PredictionFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "florascope",
		Subsystem: "predictions",
		Name:      "fetches_total",
		Help:      "Total prediction payload fetches by result",
	}, []string{"result"})

	PredictionFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "florascope",
		Subsystem: "predictions",
		Name:      "fetch_duration_seconds",
		Help:      "Duration of prediction payload fetches",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	PredictionPoints = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "florascope",
		Subsystem: "predictions",
		Name:      "points",
		Help:      "Prediction points in the installed set by label",
	}, []string{"label"})

	PeakMismatches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "florascope",
		Subsystem: "predictions",
		Name:      "peak_mismatches_total",
		Help:      "Payloads whose backend peak month disagrees with the monthly probabilities",
	})

	// Upstream circuit breaker
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "florascope",
		Subsystem: "upstream",
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
	}, []string{"name"})

	CircuitBreakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "florascope",
		Subsystem: "upstream",
		Name:      "circuit_breaker_transitions_total",
		Help:      "Circuit breaker state transitions",
	}, []string{"name", "from", "to"})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "florascope",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}
