package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/hive-backend/internal/logger"
	"github.com/ignatzorin/hive-backend/internal/pkg/apperror"
)

// ErrorBody тело ответа с ошибкой. Code стабилен, клиенты ветвятся по нему.
type ErrorBody struct {
	Code       apperror.ErrorCode `json:"code"`
	Message    string             `json:"message"`
	RetryAfter int64              `json:"retry_after,omitempty"`
}

// ErrorResponse конверт {"error": {...}}.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorHandler обрабатывает ошибки централизованно.
// Типизированные ошибки отдаются как есть, остальные маскируются под INTERNAL_ERROR.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Проверяем, не был ли уже отправлен ответ
		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		var appErr *apperror.AppError
		if !errors.As(err, &appErr) {
			appErr = apperror.Wrap(err, apperror.ErrCodeInternal, "внутренняя ошибка сервера")
		}

		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}

		entry := logger.Log.WithFields(logrus.Fields{
			"code":   appErr.Code,
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
		message := appErr.Message
		if status >= http.StatusInternalServerError {
			entry.WithError(err).Error("request failed")
			if appErr.Code == apperror.ErrCodeInternal {
				message = "внутренняя ошибка сервера"
			}
		} else {
			entry.Debug(appErr.Message)
		}

		body := ErrorBody{Code: appErr.Code, Message: message}
		if appErr.Code == apperror.ErrCodeRateLimited {
			body.RetryAfter = appErr.RetryAfterSeconds()
			c.Header("Retry-After", strconv.FormatInt(body.RetryAfter, 10))
		}
		c.JSON(status, ErrorResponse{Error: body})
	}
}
