package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/hive-backend/internal/models"
	"github.com/ignatzorin/hive-backend/internal/notify"
	"github.com/ignatzorin/hive-backend/internal/pkg/apperror"
	"github.com/ignatzorin/hive-backend/internal/repository"
)

// Сценарий A: бесплатное задание проходит весь путь без escrow.
func TestDeliverableService_FreeGigLifecycle(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	owner := newOwner()
	gig, bee := e.assigned(t, owner, 0)

	d := e.submit(t, gig, bee)
	assert.Equal(t, models.GigStatusReview, e.gig(t, gig.ID).Status)
	assert.Equal(t, models.DeliverableTypeText, d.Type)

	approved, err := e.Deliverables.Approve(ctx, owner, gig.ID, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliverableStatusApproved, approved.Status)
	require.NotNil(t, approved.ReviewedBy)
	assert.Equal(t, owner.String(), *approved.ReviewedBy)

	done := e.gig(t, gig.ID)
	assert.Equal(t, models.GigStatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)

	_, err = e.store.GetEscrowByGig(ctx, gig.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	a, err := e.store.CurrentAssignment(ctx, gig.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentStatusReleased, a.Status)

	stats, err := e.Reputation.GetStats(ctx, models.ActorBee, bee.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.GigsCompleted)
	assert.Equal(t, 10, stats.Reputation)
	assert.Contains(t, e.notifier.to(bee), notify.EventDeliverableApproved)
}

func TestDeliverableService_Approve_ReleasesEscrow(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	owner := newOwner()
	gig, bee := e.assigned(t, owner, 5000)
	d := e.submit(t, gig, bee)

	_, err := e.Deliverables.Approve(ctx, owner, gig.ID, d.ID)
	require.NoError(t, err)

	escrow := e.escrowOf(t, gig.ID)
	assert.Equal(t, models.EscrowStatusReleased, escrow.Status)
	assert.Equal(t, int64(5000), escrow.ReleasedAmount)
	require.NotNil(t, escrow.BeeID)
	assert.Equal(t, bee.ID, *escrow.BeeID)

	// Повторная выплата невозможна.
	_, err = e.Escrow.Release(ctx, newArbiter(), gig.ID)
	assert.Equal(t, apperror.ErrCodeInvalidState, apperror.CodeOf(err))

	_, err = e.Deliverables.Approve(ctx, owner, gig.ID, d.ID)
	assert.True(t, apperror.IsInvalidTransition(err))
}

func TestDeliverableService_Submit_Preconditions(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	owner := newOwner()
	gig, bee := e.assigned(t, owner, 0)

	_, err := e.Deliverables.Submit(ctx, newBee(), gig.ID, SubmitInput{Title: "t", Content: "c"})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = e.Deliverables.Submit(ctx, bee, gig.ID, SubmitInput{Title: "t"})
	assert.True(t, apperror.IsValidation(err))

	_, err = e.Deliverables.Submit(ctx, bee, gig.ID, SubmitInput{Title: "t", Type: "video", Content: "c"})
	assert.True(t, apperror.IsValidation(err))

	d, err := e.Deliverables.Submit(ctx, bee, gig.ID, SubmitInput{Title: "t", URL: "https://example.com/out.zip"})
	require.NoError(t, err)
	assert.Equal(t, models.DeliverableTypeURL, d.Type)

	open := e.openGig(t, owner, 0)
	_, err = e.Deliverables.Submit(ctx, bee, open.ID, SubmitInput{Title: "t", Content: "c"})
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestDeliverableService_Approve_OnlyLatest(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	owner := newOwner()
	gig, bee := e.assigned(t, owner, 0)

	older := e.submit(t, gig, bee)
	e.clock.Advance(time.Minute)
	newer := e.submit(t, gig, bee)

	_, err := e.Deliverables.Approve(ctx, owner, gig.ID, older.ID)
	assert.True(t, apperror.IsInvalidTransition(err))

	_, err = e.Deliverables.Approve(ctx, owner, gig.ID, newer.ID)
	assert.NoError(t, err)
}

func TestDeliverableService_RevisionCap(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	owner := newOwner()
	gig, bee := e.assigned(t, owner, 0)

	for i := 0; i < DefaultConfig().MaxRevisions; i++ {
		d := e.submit(t, gig, bee)
		var err error
		if i%2 == 0 {
			_, err = e.Deliverables.RequestRevision(ctx, owner, gig.ID, d.ID, "переделать")
		} else {
			_, err = e.Deliverables.Reject(ctx, owner, gig.ID, d.ID, "не то")
		}
		require.NoError(t, err)
		assert.Equal(t, models.GigStatusInProgress, e.gig(t, gig.ID).Status)
		e.clock.Advance(time.Minute)
	}

	d := e.submit(t, gig, bee)
	_, err := e.Deliverables.RequestRevision(ctx, owner, gig.ID, d.ID, "ещё раз")
	assert.True(t, apperror.IsValidation(err))
	_, err = e.Deliverables.Reject(ctx, owner, gig.ID, d.ID, "нет")
	assert.True(t, apperror.IsValidation(err))

	current := e.gig(t, gig.ID)
	assert.Equal(t, models.GigStatusReview, current.Status)
	assert.Equal(t, DefaultConfig().MaxRevisions, current.RevisionCount)

	_, err = e.Deliverables.Approve(ctx, owner, gig.ID, d.ID)
	assert.NoError(t, err)
}

func TestDeliverableService_RequestRevision(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	owner := newOwner()
	gig, bee := e.assigned(t, owner, 5000)
	d := e.submit(t, gig, bee)

	_, err := e.Deliverables.RequestRevision(ctx, owner, gig.ID, d.ID, " ")
	assert.True(t, apperror.IsValidation(err))

	_, err = e.Deliverables.RequestRevision(ctx, bee, gig.ID, d.ID, "сам себе")
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	revised, err := e.Deliverables.RequestRevision(ctx, owner, gig.ID, d.ID, "добавьте легенду")
	require.NoError(t, err)
	assert.Equal(t, models.DeliverableStatusRevisionRequested, revised.Status)
	require.NotNil(t, revised.Feedback)
	assert.Equal(t, "добавьте легенду", *revised.Feedback)
	assert.Equal(t, models.EscrowStatusHeld, e.escrowOf(t, gig.ID).Status)
	assert.Contains(t, e.notifier.to(bee), notify.EventDeliverableRevisionRequested)
}

func TestDeliverableService_ListDeliverables(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	owner := newOwner()
	gig, bee := e.assigned(t, owner, 0)
	e.submit(t, gig, bee)

	items, err := e.Deliverables.ListDeliverables(ctx, owner, gig.ID)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	items, err = e.Deliverables.ListDeliverables(ctx, bee, gig.ID)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = e.Deliverables.ListDeliverables(ctx, newBee(), gig.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}
