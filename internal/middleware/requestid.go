package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader carries the request identifier on the wire.
	RequestIDHeader = "X-Request-ID"

	// RequestIDKey is the gin.Context key holding the request ID so handlers
	// can read it without touching response headers.
	RequestIDKey = "request_id"
)

// RequestIDMiddleware tags every request with a unique identifier. An inbound
// X-Request-ID (from a load balancer or the dashboard itself) is reused
// unchanged; otherwise a fresh UUID is generated. The value is stored under
// RequestIDKey for the logging middleware and echoed back in the response
// header so clients can quote it when reporting a failed OAuth callback or
// bundle upload.
//
// Register it before the logging middleware so every log line carries the ID.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}

		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)

		c.Next()
	}
}
