package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/hive-backend/internal/identity"
	"github.com/ignatzorin/hive-backend/internal/pkg/apperror"
)

// ContextActorKey ключ участника в gin.Context.
const ContextActorKey = "actor"

// AuthMiddleware проверяет JWT участника (human или bee) и кладёт его в контекст.
func AuthMiddleware(tokens *identity.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			_ = c.Error(apperror.ErrUnauthorized)
			c.Abort()
			return
		}

		actor, err := tokens.ResolveActor(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			_ = c.Error(apperror.Wrap(err, apperror.ErrCodeUnauthorized, "токен невалиден"))
			c.Abort()
			return
		}

		c.Set(ContextActorKey, actor)
		c.Next()
	}
}
