package logger

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Log глобальный логгер. До Init пишет в stderr с уровнем info, чтобы тесты и CLI не падали на nil.
var Log = logrus.New()

// Init инициализирует структурированный логгер.
func Init(level string) {
	Log = logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)

	// Используем JSON формат для production, text для development
	Log.SetFormatter(&logrus.JSONFormatter{})
}

// SetTextFormatter устанавливает текстовый формат логов (для development).
func SetTextFormatter() {
	if Log != nil {
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
}

// SetOutput перенаправляет вывод (используется в тестах).
func SetOutput(w io.Writer) {
	Log.SetOutput(w)
}

// Op возвращает запись с полем операции.
func Op(op string) *logrus.Entry {
	return Log.WithField("op", op)
}
