package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/cuemby/remindsync/pkg/metrics"
)

// route names a request by its matched pattern, so path parameters do not
// blow up label cardinality
func route(c *gin.Context) string {
	path := c.FullPath()
	if path == "" {
		path = "unmatched"
	}
	return c.Request.Method + " " + path
}

// RequestMetrics records request counts and latencies per route
func RequestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := metrics.NewTimer()
		c.Next()

		r := route(c)
		timer.ObserveDurationVec(metrics.APIRequestDuration, r)
		metrics.APIRequestsTotal.WithLabelValues(r, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// RequestLogger writes one debug line per request
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	}
}
