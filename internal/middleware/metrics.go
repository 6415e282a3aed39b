package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dispatch-api/internal/service"
)

// unmatchedRoute labels requests that hit no registered route, so arbitrary
// paths do not become label values.
const unmatchedRoute = "unmatched"

// Metrics records latency per route template. On dispatch routes the
// requested model is counted as well.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, status, time.Since(start))
		if model := strings.ToLower(strings.TrimSpace(c.Param("model"))); model != "" {
			metricsSvc.ObserveModelRequest(model, c.Request.Method, status)
		}
	}
}
