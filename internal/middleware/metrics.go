// Package middleware provides the Gin middleware stack for the DocuForge API.
// Everything here is registered in internal/api/router.go ahead of the route
// handlers so every request is covered.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/docuforge/docuforge/internal/telemetry"
)

// MetricsMiddleware records http_requests_total and
// http_request_duration_seconds for every request. The path label uses the
// matched route template from c.FullPath() (for example
// /api/projects/:id/versions/:version/download) rather than the raw URL, and
// unmatched requests are bucketed under "<no-route>" to keep label
// cardinality bounded.
//
// Register it after gin.Recovery() so statuses set by error handlers are
// captured.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "<no-route>"
		}

		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
