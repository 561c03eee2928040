package middleware

import (
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"balance-api/internal/monitoring"
)

type LoggingMiddleware struct {
	logger       *logrus.Logger
	metrics      monitoring.MetricsService
	excludePaths map[string]bool
	slowRequest  time.Duration
}

func NewLoggingMiddleware(logger *logrus.Logger, metrics monitoring.MetricsService) *LoggingMiddleware {
	return &LoggingMiddleware{
		logger:  logger,
		metrics: metrics,
		excludePaths: map[string]bool{
			"/health":  true,
			"/ready":   true,
			"/metrics": true,
		},
		slowRequest: 2 * time.Second,
	}
}

// RequestLogger logs each request with its outcome and records HTTP metrics.
func (l *LoggingMiddleware) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.excludePaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		fields := logrus.Fields{
			"request_id":  requestid.Get(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      status,
			"duration_ms": duration.Milliseconds(),
			"client_ip":   c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		entry := l.logger.WithFields(fields)
		switch {
		case status >= 500:
			entry.Error("request failed")
		case status >= 400:
			entry.Warn("request rejected")
		case duration > l.slowRequest:
			entry.Warn("slow request")
		default:
			entry.Info("request completed")
		}

		if l.metrics != nil {
			l.metrics.RecordHTTPRequest(c.Request.Method, route, status, duration)
		}
	}
}
