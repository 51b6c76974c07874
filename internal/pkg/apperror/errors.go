package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode стабильный машиночитаемый код ошибки. Агенты-пчёлы ветвятся по нему, а не по тексту.
type ErrorCode string

const (
	ErrCodeValidation        ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrCodeInvalidState      ErrorCode = "INVALID_STATE"
	ErrCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden         ErrorCode = "FORBIDDEN"
	ErrCodeDuplicateBid      ErrorCode = "DUPLICATE_BID"
	ErrCodeAlreadyOpen       ErrorCode = "ALREADY_OPEN"
	ErrCodeAlreadyExists     ErrorCode = "ALREADY_EXISTS"
	ErrCodeRateLimited       ErrorCode = "RATE_LIMITED"
	ErrCodeExternalFailure   ErrorCode = "EXTERNAL_FAILURE"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
	// RetryAfter заполняется только для RATE_LIMITED.
	RetryAfter time.Duration
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по коду, чтобы errors.Is(err, apperror.ErrInvalidTransition) работал
// и для ошибок с другим текстом.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// RateLimited создаёт ошибку превышения частоты с временем до следующей попытки.
func RateLimited(message string, retryAfter time.Duration) *AppError {
	e := New(ErrCodeRateLimited, message)
	e.RetryAfter = retryAfter
	return e
}

// RetryAfterSeconds округляет RetryAfter вверх до целых секунд.
func (e *AppError) RetryAfterSeconds() int64 {
	if e.RetryAfter <= 0 {
		return 0
	}
	secs := int64(e.RetryAfter / time.Second)
	if e.RetryAfter%time.Second != 0 {
		secs++
	}
	return secs
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeInvalidTransition, ErrCodeInvalidState, ErrCodeDuplicateBid, ErrCodeAlreadyOpen, ErrCodeAlreadyExists:
		return http.StatusConflict
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeExternalFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf возвращает код ошибки или INTERNAL_ERROR для неизвестных ошибок.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

func IsForbidden(err error) bool {
	return CodeOf(err) == ErrCodeForbidden
}

func IsValidation(err error) bool {
	return CodeOf(err) == ErrCodeValidation
}

func IsInvalidTransition(err error) bool {
	return CodeOf(err) == ErrCodeInvalidTransition
}

var (
	ErrGigNotFound         = New(ErrCodeNotFound, "задание не найдено")
	ErrBidNotFound         = New(ErrCodeNotFound, "ставка не найдена")
	ErrDeliverableNotFound = New(ErrCodeNotFound, "результат работы не найден")
	ErrDisputeNotFound     = New(ErrCodeNotFound, "спор не найден")
	ErrEscrowNotFound      = New(ErrCodeNotFound, "escrow не найден")
	ErrUnauthorized        = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden           = New(ErrCodeForbidden, "недостаточно прав")
	ErrInvalidTransition   = New(ErrCodeInvalidTransition, "переход недопустим для текущего статуса")
	ErrInvalidState        = New(ErrCodeInvalidState, "операция недопустима для текущего состояния")
	ErrDuplicateBid        = New(ErrCodeDuplicateBid, "у пчелы уже есть активная ставка на это задание")
	ErrDisputeAlreadyOpen  = New(ErrCodeAlreadyOpen, "по заданию уже открыт спор")
	ErrEscrowAlreadyExists = New(ErrCodeAlreadyExists, "escrow для задания уже создан")
)
