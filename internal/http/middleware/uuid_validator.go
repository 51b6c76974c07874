package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/hive-backend/internal/pkg/apperror"
)

// UUIDValidator проверяет, что параметры пути с указанными именами являются валидными UUID.
// Использование: api.GET("/gigs/:id", UUIDValidator("id"), h.GetGig)
func UUIDValidator(paramNames ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, name := range paramNames {
			if _, err := uuid.Parse(c.Param(name)); err != nil {
				_ = c.Error(apperror.Newf(apperror.ErrCodeValidation, "параметр %s должен быть валидным UUID", name))
				c.Abort()
				return
			}
		}
		c.Next()
	}
}
