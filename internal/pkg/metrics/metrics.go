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
		Namespace: "geopanel",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "geopanel",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "geopanel",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Navigations counts path resolutions by route name and result
	// (ok, not_found, error, cancelled). Unmatched paths carry an empty route.
	Navigations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geopanel",
		Subsystem: "router",
		Name:      "navigations_total",
		Help:      "Total navigations by route and result",
	}, []string{"route", "result"})

	ViewLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geopanel",
		Subsystem: "views",
		Name:      "loads_total",
		Help:      "Total deferred view loads by route, origin and result",
	}, []string{"route", "origin", "result"})

	ViewLoadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "geopanel",
		Subsystem: "views",
		Name:      "load_duration_seconds",
		Help:      "Duration of deferred view loads",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 15},
	}, []string{"route"})

	CoordinateWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geopanel",
		Subsystem: "store",
		Name:      "coordinate_writes_total",
		Help:      "Total coordinate store writes by field and origin",
	}, []string{"field", "origin"})

	CoordinateNotifyDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "geopanel",
		Subsystem: "store",
		Name:      "notify_dropped_total",
		Help:      "Coordinate changes skipped for subscribers that fell behind",
	})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "geopanel",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geopanel",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geopanel",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		// Route pattern, not the raw path: the shell catch-all would otherwise
		// create one series per requested URL.
		path := c.Route().Path
		if path == "" {
			path = "unmatched"
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
