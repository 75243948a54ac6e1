// README: Request logging middleware.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"homeserve/internal/logger"
)

func Logging(log logger.Logger) gin.HandlerFunc {
	log = logger.OrNop(log)
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		fields := map[string]any{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  status,
			"latency": time.Since(start).String(),
		}
		if uid := CallerUID(c); uid != "" {
			fields["uid"] = uid
		}
		if status >= 500 {
			log.Errorf("%s %s -> %d", c.Request.Method, c.Request.URL.Path, status)
			return
		}
		log.Debugw("request", fields)
	}
}
