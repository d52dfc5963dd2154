// Package router wires gin middleware around the handler package's routes.
// Grounded on the teacher's internal/router/router.go (gin.New() +
// gin.Recovery() + a logrus-backed access logger, release mode, route
// registration delegated to the handlers struct).
package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"smart-mail-relay-go/internal/handler"
)

// Setup builds the gin engine: recovery middleware, structured access
// logging, and every route the handler package exposes.
func Setup(h *handler.Handlers, releaseMode bool) *gin.Engine {
	if releaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(accessLogMiddleware())

	h.SetupRoutes(r)
	return r
}

// accessLogMiddleware replaces gin's default text logger with a
// logrus.WithFields call, so access logs carry the same structured fields
// (and go to the same sink) as the rest of the pipeline's logging.
func accessLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		logrus.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       path,
			"status":     c.Writer.Status(),
			"latency":    time.Since(start),
			"clientIP":   c.ClientIP(),
			"userAgent":  c.Request.UserAgent(),
		}).Info("router: request handled")
	}
}
