package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Metrics holds all Prometheus collectors for the API. Collectors exist from
// package init so handlers can record before (or without) InitMetrics.
var Metrics = struct {
	AnalysesTotal     *prometheus.CounterVec
	AnalysisDuration  *prometheus.HistogramVec
	ScoredVideosTotal prometheus.Counter
	RequestDuration   *prometheus.HistogramVec
	RequestsInFlight  prometheus.Gauge
	CacheHits         prometheus.Counter
	CacheMisses       prometheus.Counter
	RefreshRequests   prometheus.Counter
	CompetitorsAdded  prometheus.Counter
}{
	AnalysesTotal: prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nichescope_analyses_total",
			Help: "Total niche analyses, by outcome and clusterer.",
		},
		[]string{"status", "clusterer"},
	),
	AnalysisDuration: prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nichescope_analysis_duration_seconds",
			Help:    "End-to-end niche analysis duration, by clusterer.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"clusterer"},
	),
	ScoredVideosTotal: prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nichescope_scored_videos_total",
			Help: "Total videos scored through the score endpoint.",
		},
	),
	RequestDuration: prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nichescope_api_request_duration_seconds",
			Help:    "HTTP request duration in seconds, by endpoint and method.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	),
	RequestsInFlight: prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nichescope_requests_in_flight",
			Help: "Number of HTTP requests currently being served.",
		},
	),
	CacheHits: prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nichescope_analysis_cache_hits_total",
			Help: "Analyses served from the Redis cache.",
		},
	),
	CacheMisses: prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nichescope_analysis_cache_misses_total",
			Help: "Analyses computed from scratch.",
		},
	),
	RefreshRequests: prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nichescope_refresh_requests_total",
			Help: "Run refresh requests queued.",
		},
	),
	CompetitorsAdded: prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nichescope_competitors_tracked_total",
			Help: "Competitor channels added to watch lists.",
		},
	),
}

// InitMetrics registers all Prometheus metrics. Call once at startup.
func InitMetrics(pool *pgxpool.Pool) {
	// DB pool gauges read live stats from pgxpool.
	if pool != nil {
		prometheus.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "nichescope_db_connection_pool_active",
					Help: "Number of active database connections.",
				},
				func() float64 { return float64(pool.Stat().AcquiredConns()) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "nichescope_db_connection_pool_idle",
					Help: "Number of idle database connections.",
				},
				func() float64 { return float64(pool.Stat().IdleConns()) },
			),
		)
	}

	prometheus.MustRegister(
		Metrics.AnalysesTotal,
		Metrics.AnalysisDuration,
		Metrics.ScoredVideosTotal,
		Metrics.RequestDuration,
		Metrics.RequestsInFlight,
		Metrics.CacheHits,
		Metrics.CacheMisses,
		Metrics.RefreshRequests,
		Metrics.CompetitorsAdded,
	)
}

// MetricsMiddleware records request duration and in-flight count for Prometheus.
func MetricsMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		// Don't instrument the /metrics endpoint itself
		if c.Path() == "/metrics" {
			return c.Next()
		}

		// Copy path and method into owned strings BEFORE c.Next(). Fiber
		// returns slices backed by the fasthttp buffer which can be reused
		// or overwritten by handlers (especially fasthttpadaptor).
		path := string([]byte(c.Path()))
		method := string([]byte(c.Method()))
		endpoint := sanitizeEndpoint(path)

		Metrics.RequestsInFlight.Inc()
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())

		Metrics.RequestDuration.WithLabelValues(endpoint, method, status).Observe(duration)
		Metrics.RequestsInFlight.Dec()

		return err
	}
}

// sanitizeEndpoint normalizes paths to avoid cardinality explosion.
func sanitizeEndpoint(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/niches/history/"):
		if strings.HasSuffix(path, "/refresh") {
			return "/api/niches/history/:id/refresh"
		}
		return "/api/niches/history/:id"
	case strings.HasPrefix(path, "/api/competitors/"):
		if strings.HasSuffix(path, "/snapshots") {
			return "/api/competitors/:channelId/snapshots"
		}
		return "/api/competitors/:channelId"
	default:
		return path
	}
}

// MetricsHandler serves the Prometheus /metrics endpoint via Fiber.
func MetricsHandler() fiber.Handler {
	httpHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	return func(c fiber.Ctx) error {
		httpHandler(c.RequestCtx())
		return nil
	}
}
