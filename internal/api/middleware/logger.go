package middleware

import (
	"time"

	"strapisync/internal/logger"

	"github.com/gin-gonic/gin"
)

// Logger writes one line per request through the service logger. Paths in
// skip are not logged.
func Logger(logger *logger.Logger, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[p] = true
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		if skipped[path] {
			return
		}

		status := c.Writer.Status()
		args := []interface{}{c.Request.Method, path, status, time.Since(start), c.ClientIP(), c.GetString(RequestIDKey)}
		switch {
		case status >= 500:
			logger.Error("%s %s %d %s %s request_id=%s", args...)
		case status >= 400:
			logger.Warn("%s %s %d %s %s request_id=%s", args...)
		default:
			logger.Info("%s %s %d %s %s request_id=%s", args...)
		}
	}
}
