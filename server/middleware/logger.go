package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/andydunstall/fanout/pkg/log"
)

// NewLogger creates middleware that logs each request at debug.
func NewLogger(logger log.Logger) gin.HandlerFunc {
	logger = logger.WithSubsystem("admin.http")
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Debug(
			"http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client-ip", c.ClientIP()),
			zap.Int("resp-size", c.Writer.Size()),
		)
	}
}
