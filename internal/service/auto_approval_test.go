package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/hive-backend/internal/models"
	"github.com/ignatzorin/hive-backend/internal/repository"
	"github.com/ignatzorin/hive-backend/internal/repository/memory"
)

// faultyStore ломает чтение отдельных заданий внутри транзакций.
type faultyStore struct {
	*memory.Store
	failGig  uuid.UUID
	panicGig uuid.UUID
}

func (s *faultyStore) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	return s.Store.InTx(ctx, func(tx repository.Tx) error {
		return fn(&faultyTx{Tx: tx, store: s})
	})
}

type faultyTx struct {
	repository.Tx
	store *faultyStore
}

func (t *faultyTx) GetGig(ctx context.Context, id uuid.UUID) (*models.Gig, error) {
	switch id {
	case t.store.failGig:
		return nil, errors.New("connection reset by peer")
	case t.store.panicGig:
		panic("corrupted row")
	}
	return t.Tx.GetGig(ctx, id)
}

func newFaultyEngine(t *testing.T, opts ...func(*Deps)) (*testEngine, *faultyStore) {
	t.Helper()
	var store *faultyStore
	e := newTestEngine(t, append([]func(*Deps){func(d *Deps) {
		store = &faultyStore{Store: d.Store.(*memory.Store)}
		d.Store = store
	}}, opts...)...)
	return e, store
}

const week = 7 * 24 * time.Hour

// Сценарий B: платное задание, владелец молчит неделю, таймер принимает результат и выплачивает escrow.
func TestAutoApproval_Sweep_ApprovesStaleDeliverable(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	owner := newOwner()
	gig, bee := e.assigned(t, owner, 5000)
	assert.Equal(t, int64(5000), e.escrowOf(t, gig.ID).Amount)
	d := e.submit(t, gig, bee)

	e.clock.Advance(week - time.Second)
	report, err := e.AutoApproval.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Scanned)
	assert.Equal(t, models.GigStatusReview, e.gig(t, gig.ID).Status)

	e.clock.Advance(time.Second)
	report, err = e.AutoApproval.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Scanned: 1, Approved: 1}, withoutTook(report))

	stored, err := e.store.GetDeliverable(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliverableStatusApproved, stored.Status)
	require.NotNil(t, stored.ReviewedBy)
	assert.Equal(t, models.AutoApprovalActor().String(), *stored.ReviewedBy)
	assert.Equal(t, models.GigStatusCompleted, e.gig(t, gig.ID).Status)
	assert.Equal(t, models.EscrowStatusReleased, e.escrowOf(t, gig.ID).Status)
}

func TestAutoApproval_Sweep_Idempotent(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	owner := newOwner()
	gig, bee := e.assigned(t, owner, 5000)
	e.submit(t, gig, bee)
	e.clock.Advance(week)

	_, err := e.AutoApproval.Sweep(ctx)
	require.NoError(t, err)
	before := *e.gig(t, gig.ID)
	escrowBefore := *e.escrowOf(t, gig.ID)

	report, err := e.AutoApproval.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{}, withoutTook(report))
	assert.Equal(t, before, *e.gig(t, gig.ID))
	assert.Equal(t, escrowBefore, *e.escrowOf(t, gig.ID))

	stats, err := e.Reputation.GetStats(ctx, models.ActorBee, bee.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.GigsCompleted)
	assert.Equal(t, int64(5000), stats.HoneyEarned)
}

func TestAutoApproval_Sweep_OverlappingRuns(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		gig, bee := e.assigned(t, newOwner(), 1000)
		e.submit(t, gig, bee)
	}
	e.clock.Advance(week)

	var wg sync.WaitGroup
	reports := make([]SweepReport, 3)
	for i := range reports {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := e.AutoApproval.Sweep(ctx)
			assert.NoError(t, err)
			reports[i] = r
		}()
	}
	wg.Wait()

	var approved, failed int
	for _, r := range reports {
		approved += r.Approved
		failed += r.Failed
		assert.Equal(t, r.Scanned, r.Approved+r.Skipped+r.Failed)
	}
	assert.Equal(t, 5, approved)
	assert.Zero(t, failed)
}

func TestAutoApproval_Sweep_SkipsDisputedAndRevised(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	owner := newOwner()
	disputed, bee := e.assigned(t, owner, 0)
	e.submit(t, disputed, bee)
	_, err := e.Disputes.Open(ctx, owner, disputed.ID, OpenDisputeInput{Reason: "не то"})
	require.NoError(t, err)

	revised, bee2 := e.assigned(t, owner, 0)
	d := e.submit(t, revised, bee2)
	_, err = e.Deliverables.RequestRevision(ctx, owner, revised.ID, d.ID, "доработать")
	require.NoError(t, err)

	e.clock.Advance(2 * week)
	report, err := e.AutoApproval.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Scanned)
	assert.Equal(t, models.GigStatusDisputed, e.gig(t, disputed.ID).Status)
	assert.Equal(t, models.GigStatusInProgress, e.gig(t, revised.ID).Status)
}

func TestAutoApproval_Sweep_IsolatesBrokenCandidates(t *testing.T) {
	e, store := newFaultyEngine(t)
	ctx := context.Background()

	var good []*models.Gig
	for i := 0; i < 3; i++ {
		gig, bee := e.assigned(t, newOwner(), 1000)
		e.submit(t, gig, bee)
		good = append(good, gig)
	}
	failing, bee := e.assigned(t, newOwner(), 1000)
	e.submit(t, failing, bee)
	panicking, bee2 := e.assigned(t, newOwner(), 0)
	e.submit(t, panicking, bee2)
	store.failGig, store.panicGig = failing.ID, panicking.ID

	e.clock.Advance(week)
	report, err := e.AutoApproval.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Scanned: 5, Approved: 3, Failed: 2}, withoutTook(report))

	for _, gig := range good {
		assert.Equal(t, models.GigStatusCompleted, e.gig(t, gig.ID).Status)
		assert.Equal(t, models.EscrowStatusReleased, e.escrowOf(t, gig.ID).Status)
	}
	assert.Equal(t, models.GigStatusReview, e.gig(t, failing.ID).Status)
	assert.Equal(t, models.EscrowStatusHeld, e.escrowOf(t, failing.ID).Status)
	assert.Equal(t, models.GigStatusReview, e.gig(t, panicking.ID).Status)
}

// Застрявший старый кандидат не должен съедать пакет: прогон листает дальше, а кандидат откладывается.
func TestAutoApproval_Sweep_StuckCandidateDoesNotStarveNewer(t *testing.T) {
	e, store := newFaultyEngine(t, func(d *Deps) { d.Config.SweepBatch = 1 })
	ctx := context.Background()

	stuck, bee := e.assigned(t, newOwner(), 0)
	e.submit(t, stuck, bee)
	e.clock.Advance(time.Second)
	healthy, bee2 := e.assigned(t, newOwner(), 0)
	e.submit(t, healthy, bee2)
	store.failGig = stuck.ID

	e.clock.Advance(week)
	report, err := e.AutoApproval.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Scanned: 2, Approved: 1, Failed: 1}, withoutTook(report))
	assert.Equal(t, models.GigStatusCompleted, e.gig(t, healthy.ID).Status)

	// До истечения отсрочки застрявший кандидат не выбирается.
	report, err = e.AutoApproval.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Scanned)

	store.failGig = uuid.Nil
	e.clock.Advance(DefaultConfig().SweepRetryBackoff)
	report, err = e.AutoApproval.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Scanned: 1, Approved: 1}, withoutTook(report))
	assert.Equal(t, models.GigStatusCompleted, e.gig(t, stuck.ID).Status)
}

func withoutTook(r SweepReport) SweepReport {
	r.Took = 0
	return r
}
