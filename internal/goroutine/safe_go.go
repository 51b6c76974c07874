package goroutine

import (
	"context"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/hive-backend/internal/logger"
)

// RecoveryHandler обрабатывает panic в горутинах
type RecoveryHandler struct {
	log func() logrus.FieldLogger
}

// NewRecoveryHandler создает обработчик с заданным логгером.
func NewRecoveryHandler(log logrus.FieldLogger) *RecoveryHandler {
	return &RecoveryHandler{log: func() logrus.FieldLogger { return log }}
}

// SafeGo запускает горутину с обработкой panic
func (rh *RecoveryHandler) SafeGo(name string, fn func()) {
	go rh.run(name, fn)
}

// SafeGoWithContext запускает горутину с контекстом и обработкой panic
func (rh *RecoveryHandler) SafeGoWithContext(ctx context.Context, name string, fn func(context.Context)) {
	go rh.run(name, func() { fn(ctx) })
}

// Run выполняет fn в текущей горутине, panic превращается в запись лога.
// Возвращает true, если fn завершилась без panic.
func (rh *RecoveryHandler) Run(name string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			rh.log().WithFields(logrus.Fields{
				"goroutine": name,
				"panic":     r,
				"stack":     string(debug.Stack()),
			}).Error("panic in goroutine")
			ok = false
		}
	}()
	fn()
	return true
}

func (rh *RecoveryHandler) run(name string, fn func()) {
	rh.Run(name, fn)
}

// DefaultRecoveryHandler пишет в глобальный логгер. Логгер берётся при каждом вызове,
// потому что logger.Init может заменить его после старта.
var DefaultRecoveryHandler = &RecoveryHandler{log: func() logrus.FieldLogger { return logger.Log }}

// SafeGo - упрощенная функция для запуска безопасной горутины
func SafeGo(name string, fn func()) {
	DefaultRecoveryHandler.SafeGo(name, fn)
}

// SafeGoWithContext - упрощенная функция для запуска безопасной горутины с контекстом
func SafeGoWithContext(ctx context.Context, name string, fn func(context.Context)) {
	DefaultRecoveryHandler.SafeGoWithContext(ctx, name, fn)
}
