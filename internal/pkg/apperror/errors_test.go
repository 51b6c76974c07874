package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAppError_IsByCode(t *testing.T) {
	err := Newf(ErrCodeInvalidTransition, "переход %s недопустим", "open -> paid")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.NotErrorIs(t, err, ErrInvalidState)

	wrapped := fmt.Errorf("bid service: %w", err)
	assert.ErrorIs(t, wrapped, ErrInvalidTransition)
	assert.Equal(t, ErrCodeInvalidTransition, CodeOf(wrapped))
}

func TestAppError_HTTPStatus(t *testing.T) {
	tests := map[ErrorCode]int{
		ErrCodeValidation:        http.StatusBadRequest,
		ErrCodeNotFound:          http.StatusNotFound,
		ErrCodeInvalidTransition: http.StatusConflict,
		ErrCodeDuplicateBid:      http.StatusConflict,
		ErrCodeUnauthorized:      http.StatusUnauthorized,
		ErrCodeForbidden:         http.StatusForbidden,
		ErrCodeRateLimited:       http.StatusTooManyRequests,
		ErrCodeExternalFailure:   http.StatusBadGateway,
		ErrCodeInternal:          http.StatusInternalServerError,
	}
	for code, status := range tests {
		assert.Equal(t, status, New(code, "x").HTTPStatus, code)
	}
}

func TestCodeOf_Unknown(t *testing.T) {
	assert.Equal(t, ErrCodeInternal, CodeOf(errors.New("boom")))
}

func TestWrap_KeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, ErrCodeExternalFailure, "возврат не подтверждён")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, int64(1), RateLimited("x", time.Millisecond).RetryAfterSeconds())
	assert.Equal(t, int64(300), RateLimited("x", 5*time.Minute).RetryAfterSeconds())
	assert.Equal(t, int64(2), RateLimited("x", 1500*time.Millisecond).RetryAfterSeconds())
	assert.Zero(t, New(ErrCodeValidation, "x").RetryAfterSeconds())
}
