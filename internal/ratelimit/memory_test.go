package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemoryLimiter_Boundary(t *testing.T) {
	ctx := context.Background()
	window := 5 * time.Minute
	key := Key{EntityType: "bee", EntityID: "b1", Action: ActionPlaceBid}

	t.Run("за миллисекунду до границы отклоняется", func(t *testing.T) {
		clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
		l := NewMemoryLimiter(clock.Now)

		d, err := l.TryConsume(ctx, key, window)
		require.NoError(t, err)
		assert.True(t, d.Allowed)

		clock.Advance(window - time.Millisecond)
		d, err = l.TryConsume(ctx, key, window)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, time.Millisecond, d.RetryAfter)
	})

	t.Run("ровно на границе разрешено", func(t *testing.T) {
		clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
		l := NewMemoryLimiter(clock.Now)

		_, err := l.TryConsume(ctx, key, window)
		require.NoError(t, err)

		clock.Advance(window)
		d, err := l.TryConsume(ctx, key, window)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	})
}

func TestMemoryLimiter_RejectedAttemptDoesNotExtendWindow(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}
	l := NewMemoryLimiter(clock.Now)
	key := Key{EntityType: "bee", EntityID: "b1", Action: ActionPlaceBid}

	_, _ = l.TryConsume(ctx, key, time.Minute)
	clock.Advance(30 * time.Second)
	d, _ := l.TryConsume(ctx, key, time.Minute)
	assert.False(t, d.Allowed)
	assert.Equal(t, 30*time.Second, d.RetryAfter)

	clock.Advance(30 * time.Second)
	d, _ = l.TryConsume(ctx, key, time.Minute)
	assert.True(t, d.Allowed)
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLimiter(nil)

	a := Key{EntityType: "bee", EntityID: "a", Action: ActionPlaceBid}
	b := Key{EntityType: "bee", EntityID: "b", Action: ActionPlaceBid}
	msg := Key{EntityType: "bee", EntityID: "a", Action: ActionDisputeMessage}

	for _, k := range []Key{a, b, msg} {
		d, err := l.TryConsume(ctx, k, time.Hour)
		require.NoError(t, err)
		assert.True(t, d.Allowed, k.String())
	}
}

func TestMemoryLimiter_ZeroWindowDisabled(t *testing.T) {
	l := NewMemoryLimiter(nil)
	key := Key{EntityType: "human", EntityID: "h", Action: ActionDisputeMessage}
	for i := 0; i < 3; i++ {
		d, err := l.TryConsume(context.Background(), key, 0)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
}

func TestMemoryLimiter_ConcurrentAttemptsOnlyOnePasses(t *testing.T) {
	l := NewMemoryLimiter(nil)
	key := Key{EntityType: "bee", EntityID: "racer", Action: ActionPlaceBid}

	var allowed int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.TryConsume(context.Background(), key, time.Minute)
			if err == nil && d.Allowed {
				atomic.AddInt32(&allowed, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), allowed)
}

func TestMemoryLimiter_Release(t *testing.T) {
	ctx := context.Background()
	window := 5 * time.Minute
	key := Key{EntityType: "bee", EntityID: "b1", Action: ActionPlaceBid}
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewMemoryLimiter(clock.Now)

	d, err := l.TryConsume(ctx, key, window)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.NoError(t, l.Release(ctx, key, d))

	// Отменённая попытка не занимает окно.
	d, err = l.TryConsume(ctx, key, window)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	clock.Advance(window)
	second, err := l.TryConsume(ctx, key, window)
	require.NoError(t, err)
	require.True(t, second.Allowed)

	// Отмена старой попытки не трогает более новую запись.
	require.NoError(t, l.Release(ctx, key, d))
	denied, err := l.TryConsume(ctx, key, window)
	require.NoError(t, err)
	assert.False(t, denied.Allowed)

	// Отмена второй возвращает время первой.
	require.NoError(t, l.Release(ctx, key, second))
	clock.Advance(time.Second)
	d, err = l.TryConsume(ctx, key, window)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}
