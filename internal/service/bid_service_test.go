package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/hive-backend/internal/models"
	"github.com/ignatzorin/hive-backend/internal/notify"
	"github.com/ignatzorin/hive-backend/internal/pkg/apperror"
	"github.com/ignatzorin/hive-backend/internal/ratelimit"
)

// hookLimiter выполняет hook перед первой попыткой, чтобы сдвинуть состояние между проверками.
type hookLimiter struct {
	*ratelimit.MemoryLimiter
	once sync.Once
	hook func()
}

func (l *hookLimiter) TryConsume(ctx context.Context, key ratelimit.Key, window time.Duration) (ratelimit.Decision, error) {
	l.once.Do(func() {
		if l.hook != nil {
			l.hook()
		}
	})
	return l.MemoryLimiter.TryConsume(ctx, key, window)
}

func TestBidService_PlaceBid_Duplicate(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	owner := newOwner()
	gig := e.openGig(t, owner, 0)
	bee := newBee()
	e.bid(t, gig, bee)

	_, err := e.Bids.PlaceBid(ctx, bee, gig.ID, BidInput{Proposal: "ещё раз", EstimatedHours: 1})
	assert.ErrorIs(t, err, apperror.ErrDuplicateBid)
	assert.Contains(t, e.notifier.to(owner), notify.EventBidPlaced)
}

func TestBidService_PlaceBid_AfterWithdrawAllowed(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	gig := e.openGig(t, newOwner(), 0)
	bee := newBee()
	bid := e.bid(t, gig, bee)

	_, err := e.Bids.WithdrawBid(ctx, bee, bid.ID)
	require.NoError(t, err)

	e.clock.Advance(5 * time.Minute)
	_, err = e.Bids.PlaceBid(ctx, bee, gig.ID, BidInput{Proposal: "передумал", EstimatedHours: 2})
	assert.NoError(t, err)
}

func TestBidService_PlaceBid_Validation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	gig := e.openGig(t, newOwner(), 0)

	_, err := e.Bids.PlaceBid(ctx, newBee(), gig.ID, BidInput{Proposal: "", EstimatedHours: 1})
	assert.True(t, apperror.IsValidation(err))

	_, err = e.Bids.PlaceBid(ctx, newBee(), gig.ID, BidInput{Proposal: "x", EstimatedHours: 0})
	assert.True(t, apperror.IsValidation(err))

	_, err = e.Bids.PlaceBid(ctx, newOwner(), gig.ID, BidInput{Proposal: "x", EstimatedHours: 1})
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

// Сценарий C: ставка на задание в работе отклоняется и не создаётся.
func TestBidService_PlaceBid_GigInProgress(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	gig, _ := e.assigned(t, newOwner(), 0)

	_, err := e.Bids.PlaceBid(ctx, newBee(), gig.ID, BidInput{Proposal: "я тоже", EstimatedHours: 3})
	assert.True(t, apperror.IsInvalidTransition(err))

	bids, err := e.store.ListBidsByGig(ctx, gig.ID)
	require.NoError(t, err)
	assert.Len(t, bids, 1)
}

func TestBidService_PlaceBid_CooldownBoundary(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	owner := newOwner()
	first := e.openGig(t, owner, 0)
	second := e.openGig(t, owner, 0)
	third := e.openGig(t, owner, 0)
	bee := newBee()
	e.bid(t, first, bee)

	e.clock.Advance(5*time.Minute - time.Millisecond)
	_, err := e.Bids.PlaceBid(ctx, bee, second.ID, BidInput{Proposal: "x", EstimatedHours: 1})
	require.Error(t, err)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.ErrCodeRateLimited, appErr.Code)
	assert.Equal(t, time.Millisecond, appErr.RetryAfter)
	assert.Equal(t, int64(1), appErr.RetryAfterSeconds())

	e.clock.Advance(time.Millisecond)
	_, err = e.Bids.PlaceBid(ctx, bee, second.ID, BidInput{Proposal: "x", EstimatedHours: 1})
	require.NoError(t, err)

	// Отказ предварительной проверки по статусу или дубликату не расходует кулдаун.
	_, err = e.Bids.PlaceBid(ctx, bee, second.ID, BidInput{Proposal: "x", EstimatedHours: 1})
	assert.ErrorIs(t, err, apperror.ErrDuplicateBid)
	e.clock.Advance(5 * time.Minute)
	_, err = e.Bids.PlaceBid(ctx, bee, third.ID, BidInput{Proposal: "x", EstimatedHours: 1})
	assert.NoError(t, err)
}

func TestBidService_AcceptBid(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	owner := newOwner()
	gig := e.openGig(t, owner, 0)
	winner, loser := newBee(), newBee()
	winning := e.bid(t, gig, winner)
	losing := e.bid(t, gig, loser)

	_, err := e.Bids.AcceptBid(ctx, newOwner(), gig.ID, winning.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	a, err := e.Bids.AcceptBid(ctx, owner, gig.ID, winning.ID)
	require.NoError(t, err)
	assert.Equal(t, winner.ID, a.BeeID)
	assert.Equal(t, models.AssignmentStatusWorking, a.Status)
	assert.Equal(t, models.GigStatusInProgress, e.gig(t, gig.ID).Status)

	stored, err := e.store.GetBid(ctx, losing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BidStatusRejected, stored.Status)
	assert.Contains(t, e.notifier.to(winner), notify.EventBidAccepted)
	assert.Contains(t, e.notifier.to(loser), notify.EventBidRejected)

	_, err = e.Bids.AcceptBid(ctx, owner, gig.ID, losing.ID)
	assert.True(t, apperror.IsInvalidTransition(err))
}

func TestBidService_AcceptBid_Concurrent(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	owner := newOwner()
	gig := e.openGig(t, owner, 0)
	bids := []*models.Bid{e.bid(t, gig, newBee()), e.bid(t, gig, newBee())}

	var wg sync.WaitGroup
	errs := make([]error, len(bids))
	for i, bid := range bids {
		i, bid := i, bid
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = e.Bids.AcceptBid(ctx, owner, gig.ID, bid.ID)
		}()
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperror.IsInvalidTransition(err):
			conflicts++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)

	stored, err := e.store.ListBidsByGig(ctx, gig.ID)
	require.NoError(t, err)
	accepted := 0
	for _, b := range stored {
		if b.Status == models.BidStatusAccepted {
			accepted++
		}
	}
	assert.Equal(t, 1, accepted)
}

func TestBidService_WithdrawBid(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	owner := newOwner()
	gig := e.openGig(t, owner, 0)
	bee := newBee()
	bid := e.bid(t, gig, bee)

	_, err := e.Bids.WithdrawBid(ctx, newBee(), bid.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	withdrawn, err := e.Bids.WithdrawBid(ctx, bee, bid.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BidStatusWithdrawn, withdrawn.Status)

	_, err = e.Bids.WithdrawBid(ctx, bee, bid.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestBidService_UpdateAndListBids(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	owner := newOwner()
	gig := e.openGig(t, owner, 0)
	bee, other := newBee(), newBee()
	bid := e.bid(t, gig, bee)
	e.bid(t, gig, other)

	honey := int64(1200)
	updated, err := e.Bids.UpdateBid(ctx, bee, bid.ID, BidInput{Proposal: "уточнил", EstimatedHours: 4, HoneyRequested: &honey})
	require.NoError(t, err)
	assert.Equal(t, "уточнил", updated.Proposal)
	require.NotNil(t, updated.HoneyRequested)
	assert.Equal(t, honey, *updated.HoneyRequested)

	all, err := e.Bids.ListBids(ctx, owner, gig.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	own, err := e.Bids.ListBids(ctx, bee, gig.ID)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, bid.ID, own[0].ID)

	_, err = e.Bids.ListBids(ctx, newOwner(), gig.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestBidService_PlaceBid_FailedInsertReleasesCooldown(t *testing.T) {
	limiter := &hookLimiter{}
	e := newTestEngine(t, func(d *Deps) {
		limiter.MemoryLimiter = ratelimit.NewMemoryLimiter(ratelimit.Clock(d.Clock))
		d.Limiter = limiter
	})
	ctx := context.Background()
	owner := newOwner()
	closing := e.openGig(t, owner, 0)
	other := e.openGig(t, owner, 0)
	bee := newBee()

	// Задание отменяется после предварительной проверки, но до транзакции.
	limiter.hook = func() {
		_, err := e.Gigs.CancelGig(ctx, owner, closing.ID)
		require.NoError(t, err)
	}
	_, err := e.Bids.PlaceBid(ctx, bee, closing.ID, BidInput{Proposal: "x", EstimatedHours: 1})
	assert.True(t, apperror.IsInvalidTransition(err))

	_, err = e.Bids.PlaceBid(ctx, bee, other.ID, BidInput{Proposal: "x", EstimatedHours: 1})
	require.NoError(t, err)
}
