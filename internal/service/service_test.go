package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/hive-backend/internal/models"
	"github.com/ignatzorin/hive-backend/internal/notify"
	"github.com/ignatzorin/hive-backend/internal/payment"
	"github.com/ignatzorin/hive-backend/internal/repository/memory"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Notify(ev notify.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (n *recordingNotifier) to(recipient models.Actor) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, ev := range n.events {
		if ev.Recipient == recipient {
			out = append(out, ev.Kind)
		}
	}
	return out
}

type mockRefunder struct {
	mock.Mock
}

func (m *mockRefunder) Refund(ctx context.Context, req payment.RefundRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

type testEngine struct {
	*Services
	store    *memory.Store
	clock    *fakeClock
	notifier *recordingNotifier
	refunder *mockRefunder
}

// newTestEngine движок на памяти. opts подменяют зависимости до сборки сервисов.
func newTestEngine(t *testing.T, opts ...func(*Deps)) *testEngine {
	t.Helper()
	e := &testEngine{
		store:    memory.NewStore(),
		clock:    newFakeClock(),
		notifier: &recordingNotifier{},
		refunder: new(mockRefunder),
	}
	deps := Deps{
		Store:    e.store,
		Refunder: e.refunder,
		Notifier: e.notifier,
		Clock:    e.clock.Now,
		Config:   DefaultConfig(),
	}
	for _, opt := range opts {
		opt(&deps)
	}
	e.Services = New(deps)
	return e
}

func newOwner() models.Actor { return models.Human(uuid.New()) }
func newBee() models.Actor   { return models.Bee(uuid.New()) }

func newArbiter() models.Actor {
	return models.Actor{Type: models.ActorHuman, ID: uuid.New(), Role: models.RoleArbiter}
}

// openGig создаёт опубликованное задание. Для платного сначала подтверждается оплата.
func (e *testEngine) openGig(t *testing.T, owner models.Actor, price int64) *models.Gig {
	t.Helper()
	ctx := context.Background()
	gig, err := e.Gigs.CreateGig(ctx, owner, CreateGigInput{
		Title:       "Разметить датасет",
		Description: "Нужно разметить 500 изображений",
		Price:       price,
		Publish:     true,
	})
	require.NoError(t, err)
	if price > 0 {
		require.Equal(t, models.GigStatusDraft, gig.Status)
		_, err := e.Escrow.CreateHeld(ctx, CaptureInput{
			GigID:      gig.ID,
			OwnerID:    owner.ID,
			Amount:     price,
			PaymentRef: "pi_" + gig.ID.String()[:8],
		})
		require.NoError(t, err)
	}
	gig, err = e.Gigs.GetGig(ctx, gig.ID)
	require.NoError(t, err)
	require.Equal(t, models.GigStatusOpen, gig.Status)
	return gig
}

func (e *testEngine) bid(t *testing.T, gig *models.Gig, bee models.Actor) *models.Bid {
	t.Helper()
	bid, err := e.Bids.PlaceBid(context.Background(), bee, gig.ID, BidInput{Proposal: "Сделаю за день", EstimatedHours: 8})
	require.NoError(t, err)
	return bid
}

// assigned задание в работе у пчелы.
func (e *testEngine) assigned(t *testing.T, owner models.Actor, price int64) (*models.Gig, models.Actor) {
	t.Helper()
	gig := e.openGig(t, owner, price)
	bee := newBee()
	bid := e.bid(t, gig, bee)
	_, err := e.Bids.AcceptBid(context.Background(), owner, gig.ID, bid.ID)
	require.NoError(t, err)
	return gig, bee
}

func (e *testEngine) submit(t *testing.T, gig *models.Gig, bee models.Actor) *models.Deliverable {
	t.Helper()
	d, err := e.Deliverables.Submit(context.Background(), bee, gig.ID, SubmitInput{Title: "Результат", Content: "готово"})
	require.NoError(t, err)
	return d
}

func (e *testEngine) gig(t *testing.T, id uuid.UUID) *models.Gig {
	t.Helper()
	gig, err := e.Gigs.GetGig(context.Background(), id)
	require.NoError(t, err)
	return gig
}

func (e *testEngine) escrowOf(t *testing.T, gigID uuid.UUID) *models.Escrow {
	t.Helper()
	escrow, err := e.store.GetEscrowByGig(context.Background(), gigID)
	require.NoError(t, err)
	return escrow
}
