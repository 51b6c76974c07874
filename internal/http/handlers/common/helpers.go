package common

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/hive-backend/internal/http/middleware"
	"github.com/ignatzorin/hive-backend/internal/models"
	"github.com/ignatzorin/hive-backend/internal/pkg/apperror"
)

// CurrentActor извлекает участника из Gin context.
func CurrentActor(c *gin.Context) (models.Actor, error) {
	raw, exists := c.Get(middleware.ContextActorKey)
	if !exists {
		return models.Actor{}, apperror.ErrUnauthorized
	}

	actor, ok := raw.(models.Actor)
	if !ok {
		return models.Actor{}, apperror.ErrUnauthorized
	}

	return actor, nil
}

// ParseUUIDParam parses UUID from URL parameter
func ParseUUIDParam(c *gin.Context, paramName string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(c.Param(paramName))
	if err != nil {
		return uuid.Nil, apperror.Newf(apperror.ErrCodeValidation, "параметр %s должен быть валидным UUID", paramName)
	}
	return parsed, nil
}

// BindJSON разбирает тело запроса. Ошибка разбора становится VALIDATION_ERROR.
func BindJSON(c *gin.Context, req interface{}) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, "некорректное тело запроса")
	}
	return nil
}

// Fail передаёт ошибку в ErrorHandler и прерывает цепочку.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ParseIntQuery safely reads an integer query parameter with a fallback value
func ParseIntQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// GetPagination extracts limit and offset from query parameters with defaults
func GetPagination(c *gin.Context) (limit, offset int) {
	limit = ParseIntQuery(c, "limit", 20)
	offset = ParseIntQuery(c, "offset", 0)
	if limit > 100 {
		limit = 100
	}
	if limit < 1 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return
}
