// Package middleware provides gin middleware for the API layer.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/weiwangfds/docuvault/internal/logger"
)

// LoggerMiddleware logs HTTP traffic through the shared logger.
type LoggerMiddleware struct {
	logger *logrus.Logger
}

// NewLoggerMiddleware creates the logging middleware.
func NewLoggerMiddleware() *LoggerMiddleware {
	return &LoggerMiddleware{
		logger: logger.GetLogger(),
	}
}

// RequestID assigns a trace ID to every request so responses and log lines
// can be correlated.
func (m *LoggerMiddleware) RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// RequestLogger logs one structured line per request.
func (m *LoggerMiddleware) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"latency_ms": latency.Milliseconds(),
			"client_ip":  c.ClientIP(),
			"method":     c.Request.Method,
			"path":       path,
		}
		if raw != "" {
			fields["raw_query"] = raw
		}
		if requestID, exists := c.Get("request_id"); exists {
			fields["request_id"] = requestID
		}
		if errs := c.Errors.String(); errs != "" {
			fields["errors"] = errs
		}

		entry := m.logger.WithFields(fields)
		if c.Writer.Status() >= 500 {
			entry.Error("http request")
		} else {
			entry.Info("http request")
		}
	}
}
