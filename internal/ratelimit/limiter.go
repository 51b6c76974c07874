// Package ratelimit кулдауны бизнес-операций на ключ (участник, действие).
// Проверка и фиксация действия выполняются одной атомарной операцией хранилища.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Действия, для которых действуют кулдауны.
const (
	ActionPlaceBid       = "place_bid"
	ActionDisputeMessage = "dispute_message"
)

// Key идентифицирует счётчик.
type Key struct {
	EntityType string
	EntityID   string
	Action     string
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s", k.EntityType, k.EntityID, k.Action)
}

// Decision результат попытки. Для разрешённой попытки хранит, что именно было записано,
// чтобы Release мог вернуть прежнее состояние.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration

	at       time.Time
	previous *time.Time
	token    string
}

// Limiter разрешает действие, если предыдущего не было или с него прошло не меньше window.
// Разрешённое действие сразу фиксируется.
type Limiter interface {
	TryConsume(ctx context.Context, key Key, window time.Duration) (Decision, error)
	// Release отменяет разрешённую попытку, если после неё по ключу ничего не записывалось.
	// Нужен, когда само действие не состоялось.
	Release(ctx context.Context, key Key, d Decision) error
}

// Clock источник времени, подменяется в тестах.
type Clock func() time.Time

func allow() Decision { return Decision{Allowed: true} }

func allowAt(at time.Time, previous *time.Time) Decision {
	return Decision{Allowed: true, at: at, previous: previous}
}

func deny(last, now time.Time, window time.Duration) Decision {
	retry := window - now.Sub(last)
	if retry <= 0 {
		retry = time.Millisecond
	}
	return Decision{RetryAfter: retry}
}
