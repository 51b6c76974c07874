package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter хранит время последних действий в памяти процесса.
type MemoryLimiter struct {
	mu   sync.Mutex
	last map[Key]time.Time
	now  Clock
}

func NewMemoryLimiter(now Clock) *MemoryLimiter {
	if now == nil {
		now = time.Now
	}
	return &MemoryLimiter{last: make(map[Key]time.Time), now: now}
}

func (l *MemoryLimiter) TryConsume(_ context.Context, key Key, window time.Duration) (Decision, error) {
	if window <= 0 {
		return allow(), nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	last, ok := l.last[key]
	if ok && now.Sub(last) < window {
		return deny(last, now, window), nil
	}
	l.last[key] = now

	var previous *time.Time
	if ok {
		previous = &last
	}
	return allowAt(now, previous), nil
}

func (l *MemoryLimiter) Release(_ context.Context, key Key, d Decision) error {
	if !d.Allowed || d.at.IsZero() {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if cur, ok := l.last[key]; !ok || !cur.Equal(d.at) {
		return nil
	}
	if d.previous == nil {
		delete(l.last, key)
	} else {
		l.last[key] = *d.previous
	}
	return nil
}
