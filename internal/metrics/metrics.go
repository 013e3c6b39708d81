// Package metrics provides Prometheus instrumentation for the Continuum service.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "continuum",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "continuum",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// DecisionsTotal counts terminal authentication decisions by tier and label.
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "continuum",
			Name:      "decisions_total",
			Help:      "Total authentication decisions by tier and label.",
		},
		[]string{"tier", "label"},
	)

	// EscalationsTotal counts tier escalations by target tier.
	EscalationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "continuum",
			Name:      "escalations_total",
			Help:      "Total escalations past the statistical gate, by target tier.",
		},
		[]string{"tier"},
	)

	// ScorerFaultsTotal counts external scorer failures by tier.
	ScorerFaultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "continuum",
			Name:      "scorer_faults_total",
			Help:      "Total external scorer faults by failing tier.",
		},
		[]string{"tier"},
	)

	// AnomalyScore observes first-stage aggregate anomaly scores.
	AnomalyScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "continuum",
		Name:      "anomaly_score",
		Help:      "Distribution of first-stage aggregate anomaly scores.",
		Buckets:   []float64{0.1, 0.25, 0.5, 0.8, 1.2, 1.6, 2.0, 3.0, 5.0},
	})

	// FusedRiskScore observes final-stage fused risk scores.
	FusedRiskScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "continuum",
		Name:      "fused_risk_score",
		Help:      "Distribution of final-stage fused risk scores.",
		Buckets:   []float64{0.05, 0.1, 0.2, 0.35, 0.5, 0.6, 0.75, 0.9, 1.0},
	})

	// EnrollmentsTotal counts profile enrollments by kind (explicit, bootstrap).
	EnrollmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "continuum",
			Name:      "enrollments_total",
			Help:      "Total profile enrollments by kind.",
		},
		[]string{"kind"},
	)

	// EnrolledProfiles tracks the number of enrolled profiles.
	EnrolledProfiles = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "continuum",
			Name:      "enrolled_profiles",
			Help:      "Number of currently enrolled profiles.",
		},
	)

	// ActiveWebSocketClients tracks connected WebSocket clients.
	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "continuum",
			Name:      "active_websocket_clients",
			Help:      "Number of currently connected WebSocket clients.",
		},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "continuum", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "continuum", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "continuum", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// DBWaitCount tracks the total number of connections waited for.
	DBWaitCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "continuum", Name: "db_wait_count_total",
		Help: "Total number of connections waited for.",
	})
	// DBWaitDuration tracks total time waited for connections.
	DBWaitDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "continuum", Name: "db_wait_duration_seconds_total",
		Help: "Total time waited for connections in seconds.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "continuum", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		DecisionsTotal,
		EscalationsTotal,
		ScorerFaultsTotal,
		AnomalyScore,
		FusedRiskScore,
		EnrollmentsTotal,
		EnrolledProfiles,
		ActiveWebSocketClients,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		DBWaitCount,
		DBWaitDuration,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime goroutine
// count into Prometheus gauges. Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			DBWaitCount.Set(float64(stats.WaitCount))
			DBWaitDuration.Set(stats.WaitDuration.Seconds())
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
