package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/hive-backend/internal/logger"
	"github.com/ignatzorin/hive-backend/internal/models"
)

// RequestLogger пишет одну строку лога на запрос вместо стандартного логгера gin.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"took_ms": time.Since(start).Milliseconds(),
			"ip":      c.ClientIP(),
		}
		if raw, ok := c.Get(ContextActorKey); ok {
			if actor, ok := raw.(models.Actor); ok {
				fields["actor"] = actor.String()
			}
		}
		logger.Log.WithFields(fields).Info("http request")
	}
}
