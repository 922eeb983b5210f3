// Package telemetry provides application-level observability for DocuForge.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// automatically available on the side-channel HTTP server started by main.go:
//
//	GET http(s)://<host>:<DOCF_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090.  The endpoint returns data in the Prometheus text exposition
// format (Content-Type: text/plain; version=0.0.4) and is intended to be scraped by
// a Prometheus server every 15–60 seconds.  It is NOT served by the Gin router.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - OAuth connection flow outcome counters
//   - Repository listing counters per provider
//   - Pipeline credential export counters
//   - Credential expiry sweep counters
//   - Documentation bundle publish counters
//   - Database connection pool gauge (polled every 30 s)
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as /api/auth/:provider/callback)
// rather than the raw request URL to prevent unbounded label cardinality from
// user-supplied path segments.
//
// # Usage
//
// Import the package for side effects so metrics are registered before the HTTP server
// starts listening, or use an exported var directly:
//
//	telemetry.OAuthConnectionsTotal.WithLabelValues("github", "connected").Inc()
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics — labelled by method, route template, and status code.
//
// HTTPRequestsTotal is a CounterVec with labels {method, path, status}.
// The path label holds the Gin route template (e.g. /api/orgs/:slug/projects),
// NOT the raw URL, to prevent unbounded cardinality.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - Error rate (%):                    sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//
// HTTPRequestDuration is a HistogramVec with labels {method, path} and exponential-ish
// buckets from 5 ms to 30 s.  Use histogram_quantile to compute latency percentiles.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// OAuth connection flow metrics.
//
// OAuthConnectionsTotal is a CounterVec with labels {provider, result}.
// result is "connected" for a completed callback, or one of the redirect error
// codes (invalid_callback, session_error, token_error, server_error).
//
// Example PromQL queries:
//   - Connection failure rate:  sum(rate(oauth_connections_total{result!="connected"}[1h])) by (provider)
//   - State mismatch spike:     increase(oauth_connections_total{result="session_error"}[30m]) > 10
var OAuthConnectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "oauth_connections_total",
		Help: "Total number of OAuth connection callback outcomes, by provider and result.",
	},
	[]string{"provider", "result"},
)

// Repository listing metrics.
//
// RepositoryListingsTotal is a CounterVec with labels {provider, result}.
// result is "ok", "auth_error" (deactivated credential), or "error".
//
// Example PromQL queries:
//   - Token revocations surfacing:  rate(repository_listings_total{result="auth_error"}[1h])
var RepositoryListingsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "repository_listings_total",
		Help: "Total number of repository listing attempts, by provider and result.",
	},
	[]string{"provider", "result"},
)

// CredentialExportsTotal is a CounterVec with label {result} incremented once per
// pipeline credential export request.  result is the HTTP status class of the
// response ("ok", "unauthorized", "not_found", "bad_request", "error").
//
// Example PromQL queries:
//   - Unauthorized probes:  increase(credential_exports_total{result="unauthorized"}[1h])
var CredentialExportsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "credential_exports_total",
		Help: "Total number of pipeline credential export requests, by result.",
	},
	[]string{"result"},
)

// CredentialsDeactivatedTotal is a plain Counter incremented by the expiry sweep
// job once per credential it deactivates.  A sustained non-zero rate usually
// means users connected providers with short-lived tokens and no refresh flow.
var CredentialsDeactivatedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "credentials_deactivated_total",
		Help: "Total number of provider credentials deactivated by the expiry sweep.",
	},
)

// BundlePublishesTotal is a CounterVec with labels {status} ("published",
// "failed") incremented when a documentation bundle publish completes.
var BundlePublishesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bundle_publishes_total",
		Help: "Total number of documentation bundle publish attempts, by final status.",
	},
	[]string{"status"},
)

// DBOpenConnections is a Gauge that tracks the number of open connections currently
// held by the sql.DB connection pool.  It is sampled every 30 seconds by
// StartDBStatsCollector rather than per-request to avoid the overhead of sql.DB.Stats().
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB connection
// pool statistics every 30 seconds and updates the DBOpenConnections gauge.
// The goroutine exits cleanly when the database becomes unreachable (db.Ping fails),
// which happens automatically when the application shuts down and defers db.Close().
//
// Call this once, immediately after db.Connect() succeeds in main.go:
//
//	telemetry.StartDBStatsCollector(database)
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}
