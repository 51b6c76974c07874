// Package memory хранилище движка в памяти процесса. Используется в тестах и при STORAGE_DRIVER=memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/hive-backend/internal/models"
	"github.com/ignatzorin/hive-backend/internal/repository"
)

type statsKey struct {
	partyType models.ActorType
	partyID   uuid.UUID
}

type state struct {
	gigs         map[uuid.UUID]models.Gig
	bids         map[uuid.UUID]models.Bid
	assignments  map[uuid.UUID]models.Assignment
	deliverables map[uuid.UUID]models.Deliverable
	escrows      map[uuid.UUID]models.Escrow
	disputes     map[uuid.UUID]models.Dispute
	messages     map[uuid.UUID]models.DisputeMessage
	stats        map[statsKey]models.PartyStats
}

func newState() *state {
	return &state{
		gigs:         map[uuid.UUID]models.Gig{},
		bids:         map[uuid.UUID]models.Bid{},
		assignments:  map[uuid.UUID]models.Assignment{},
		deliverables: map[uuid.UUID]models.Deliverable{},
		escrows:      map[uuid.UUID]models.Escrow{},
		disputes:     map[uuid.UUID]models.Dispute{},
		messages:     map[uuid.UUID]models.DisputeMessage{},
		stats:        map[statsKey]models.PartyStats{},
	}
}

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (s *state) clone() *state {
	return &state{
		gigs:         cloneMap(s.gigs),
		bids:         cloneMap(s.bids),
		assignments:  cloneMap(s.assignments),
		deliverables: cloneMap(s.deliverables),
		escrows:      cloneMap(s.escrows),
		disputes:     cloneMap(s.disputes),
		messages:     cloneMap(s.messages),
		stats:        cloneMap(s.stats),
	}
}

// Store сериализует все операции одним мьютексом. Транзакция работает на копии состояния
// и подменяет его только при успехе.
type Store struct {
	mu sync.Mutex
	st *state
}

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	return &Store{st: newState()}
}

var _ repository.Store = (*Store)(nil)

func (s *Store) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(&tx{st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

// auto выполняет одиночную операцию под мьютексом.
func (s *Store) auto(fn func(t *tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&tx{st: s.st})
}

// tx реализует repository.Tx над состоянием.
type tx struct {
	st *state
}

func (t *tx) GetGig(_ context.Context, id uuid.UUID) (*models.Gig, error) {
	g, ok := t.st.gigs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &g, nil
}

func (t *tx) ListGigs(_ context.Context, f repository.GigFilter) ([]models.Gig, error) {
	out := make([]models.Gig, 0)
	for _, g := range t.st.gigs {
		if f.Status != nil && g.Status != *f.Status {
			continue
		}
		if f.OwnerID != nil && g.OwnerID != *f.OwnerID {
			continue
		}
		if f.Category != "" && g.Category != f.Category {
			continue
		}
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Limit, f.Offset), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (t *tx) CreateGig(_ context.Context, g *models.Gig) error {
	if _, ok := t.st.gigs[g.ID]; ok {
		return repository.ErrDuplicate
	}
	t.st.gigs[g.ID] = *g
	return nil
}

func (t *tx) SaveGig(_ context.Context, g *models.Gig, expected models.GigStatus) error {
	cur, ok := t.st.gigs[g.ID]
	if !ok || cur.Status != expected || cur.Version != g.Version {
		return repository.ErrConflict
	}
	next := *g
	next.OwnerID = cur.OwnerID
	next.CreatedAt = cur.CreatedAt
	next.Version = cur.Version + 1
	t.st.gigs[g.ID] = next
	g.Version = next.Version
	return nil
}

func (t *tx) GetBid(_ context.Context, id uuid.UUID) (*models.Bid, error) {
	b, ok := t.st.bids[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (t *tx) FindLiveBid(_ context.Context, gigID, beeID uuid.UUID) (*models.Bid, error) {
	for _, b := range t.st.bids {
		if b.GigID == gigID && b.BeeID == beeID && b.IsLive() {
			return &b, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (t *tx) ListBidsByGig(_ context.Context, gigID uuid.UUID) ([]models.Bid, error) {
	out := make([]models.Bid, 0)
	for _, b := range t.st.bids {
		if b.GigID == gigID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (t *tx) CreateBid(ctx context.Context, b *models.Bid) error {
	if _, err := t.FindLiveBid(ctx, b.GigID, b.BeeID); err == nil {
		return repository.ErrDuplicate
	}
	t.st.bids[b.ID] = *b
	return nil
}

func (t *tx) SaveBid(_ context.Context, b *models.Bid, expected models.BidStatus) error {
	cur, ok := t.st.bids[b.ID]
	if !ok || cur.Status != expected {
		return repository.ErrConflict
	}
	if b.Status == models.BidStatusAccepted {
		for _, other := range t.st.bids {
			if other.GigID == b.GigID && other.ID != b.ID && other.Status == models.BidStatusAccepted {
				return repository.ErrDuplicate
			}
		}
	}
	t.st.bids[b.ID] = *b
	return nil
}

func (t *tx) RejectPendingBids(_ context.Context, gigID, exceptBidID uuid.UUID, at time.Time) (int64, error) {
	var n int64
	for id, b := range t.st.bids {
		if b.GigID != gigID || id == exceptBidID || b.Status != models.BidStatusPending {
			continue
		}
		b.Status = models.BidStatusRejected
		b.UpdatedAt = at
		t.st.bids[id] = b
		n++
	}
	return n, nil
}

func (t *tx) CreateAssignment(_ context.Context, a *models.Assignment) error {
	if a.Status == models.AssignmentStatusWorking {
		for _, other := range t.st.assignments {
			if other.GigID == a.GigID && other.Status == models.AssignmentStatusWorking {
				return repository.ErrDuplicate
			}
		}
	}
	t.st.assignments[a.ID] = *a
	return nil
}

func (t *tx) CurrentAssignment(_ context.Context, gigID uuid.UUID) (*models.Assignment, error) {
	var found *models.Assignment
	for _, a := range t.st.assignments {
		if a.GigID != gigID || a.Status == models.AssignmentStatusClosed {
			continue
		}
		if found == nil || a.AssignedAt.After(found.AssignedAt) {
			a := a
			found = &a
		}
	}
	if found == nil {
		return nil, repository.ErrNotFound
	}
	return found, nil
}

func (t *tx) SetAssignmentStatus(_ context.Context, id uuid.UUID, from, to models.AssignmentStatus, at time.Time) error {
	a, ok := t.st.assignments[id]
	if !ok || a.Status != from {
		return repository.ErrConflict
	}
	a.Status = to
	a.UpdatedAt = at
	t.st.assignments[id] = a
	return nil
}

func (t *tx) GetDeliverable(_ context.Context, id uuid.UUID) (*models.Deliverable, error) {
	d, ok := t.st.deliverables[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &d, nil
}

func (t *tx) LatestDeliverable(ctx context.Context, gigID uuid.UUID) (*models.Deliverable, error) {
	items, _ := t.ListDeliverablesByGig(ctx, gigID)
	if len(items) == 0 {
		return nil, repository.ErrNotFound
	}
	latest := items[len(items)-1]
	return &latest, nil
}

func (t *tx) ListDeliverablesByGig(_ context.Context, gigID uuid.UUID) ([]models.Deliverable, error) {
	out := make([]models.Deliverable, 0)
	for _, d := range t.st.deliverables {
		if d.GigID == gigID {
			out = append(out, d)
		}
	}
	sortDeliverables(out)
	return out, nil
}

// sortDeliverables по created_at, при равенстве по id, как ORDER BY в postgres-реализации.
func sortDeliverables(items []models.Deliverable) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID.String() < items[j].ID.String()
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}

func (t *tx) ListAutoApprovalCandidates(ctx context.Context, q repository.AutoApprovalQuery) ([]models.Deliverable, error) {
	out := make([]models.Deliverable, 0)
	for _, g := range t.st.gigs {
		if g.Status != models.GigStatusReview {
			continue
		}
		latest, err := t.LatestDeliverable(ctx, g.ID)
		if err != nil {
			continue
		}
		switch {
		case latest.Status != models.DeliverableStatusSubmitted, latest.CreatedAt.After(q.Before):
		case latest.SweepRetryAt != nil && latest.SweepRetryAt.After(q.Now):
		case q.After != nil && !afterCursor(*latest, *q.After):
		default:
			out = append(out, *latest)
		}
	}
	sortDeliverables(out)
	return page(out, q.Limit, 0), nil
}

// afterCursor d строго позже курсора в порядке (created_at, id).
func afterCursor(d models.Deliverable, c repository.CandidateCursor) bool {
	if d.CreatedAt.Equal(c.CreatedAt) {
		return d.ID.String() > c.ID.String()
	}
	return d.CreatedAt.After(c.CreatedAt)
}

func (t *tx) DeferAutoApproval(_ context.Context, id uuid.UUID, until time.Time) error {
	d, ok := t.st.deliverables[id]
	if !ok || d.Status != models.DeliverableStatusSubmitted {
		return nil
	}
	d.SweepRetryAt = &until
	t.st.deliverables[id] = d
	return nil
}

func (t *tx) CreateDeliverable(_ context.Context, d *models.Deliverable) error {
	t.st.deliverables[d.ID] = *d
	return nil
}

func (t *tx) SaveDeliverable(_ context.Context, d *models.Deliverable, expected models.DeliverableStatus) error {
	cur, ok := t.st.deliverables[d.ID]
	if !ok || cur.Status != expected {
		return repository.ErrConflict
	}
	t.st.deliverables[d.ID] = *d
	return nil
}

func (t *tx) GetEscrowByGig(_ context.Context, gigID uuid.UUID) (*models.Escrow, error) {
	for _, e := range t.st.escrows {
		if e.GigID == gigID {
			return &e, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (t *tx) CreateEscrow(ctx context.Context, e *models.Escrow) error {
	if _, err := t.GetEscrowByGig(ctx, e.GigID); err == nil {
		return repository.ErrDuplicate
	}
	t.st.escrows[e.ID] = *e
	return nil
}

func (t *tx) ClaimEscrowRefund(_ context.Context, id uuid.UUID, plan models.EscrowSettlement) error {
	e, ok := t.st.escrows[id]
	if !ok || e.Status != models.EscrowStatusHeld {
		return repository.ErrConflict
	}
	e.Status = models.EscrowStatusRefunding
	if plan.BeeID != nil {
		e.BeeID = plan.BeeID
	}
	e.ReleasedAmount = plan.Released
	e.RefundedAmount = plan.Refunded
	t.st.escrows[id] = e
	return nil
}

func (t *tx) SettleEscrow(_ context.Context, id uuid.UUID, from models.EscrowStatus, s models.EscrowSettlement, at time.Time) error {
	e, ok := t.st.escrows[id]
	if !ok || e.Status != from {
		return repository.ErrConflict
	}
	e.Status = s.Status
	if s.BeeID != nil {
		e.BeeID = s.BeeID
	}
	e.ReleasedAmount = s.Released
	e.RefundedAmount = s.Refunded
	e.ResolvedAt = &at
	t.st.escrows[id] = e
	return nil
}

func (t *tx) GetDispute(_ context.Context, id uuid.UUID) (*models.Dispute, error) {
	d, ok := t.st.disputes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &d, nil
}

func (t *tx) LatestDisputeByGig(_ context.Context, gigID uuid.UUID) (*models.Dispute, error) {
	var found *models.Dispute
	for _, d := range t.st.disputes {
		if d.GigID != gigID {
			continue
		}
		if found == nil || d.CreatedAt.After(found.CreatedAt) {
			d := d
			found = &d
		}
	}
	if found == nil {
		return nil, repository.ErrNotFound
	}
	return found, nil
}

func (t *tx) CreateDispute(ctx context.Context, d *models.Dispute) error {
	if latest, err := t.LatestDisputeByGig(ctx, d.GigID); err == nil && latest.IsOpen() {
		return repository.ErrDuplicate
	}
	t.st.disputes[d.ID] = *d
	return nil
}

func (t *tx) ResolveDispute(_ context.Context, d *models.Dispute) error {
	cur, ok := t.st.disputes[d.ID]
	if !ok || !cur.IsOpen() {
		return repository.ErrConflict
	}
	t.st.disputes[d.ID] = *d
	return nil
}

func (t *tx) CreateDisputeMessage(_ context.Context, m *models.DisputeMessage) error {
	t.st.messages[m.ID] = *m
	return nil
}

func (t *tx) ListDisputeMessages(_ context.Context, disputeID uuid.UUID) ([]models.DisputeMessage, error) {
	out := make([]models.DisputeMessage, 0)
	for _, m := range t.st.messages {
		if m.DisputeID == disputeID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (t *tx) GetPartyStats(_ context.Context, partyType models.ActorType, partyID uuid.UUID) (*models.PartyStats, error) {
	s, ok := t.st.stats[statsKey{partyType, partyID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (t *tx) ApplyStatsDelta(_ context.Context, partyType models.ActorType, partyID uuid.UUID, d models.StatsDelta, at time.Time) (*models.PartyStats, error) {
	key := statsKey{partyType, partyID}
	s, ok := t.st.stats[key]
	if !ok {
		s = models.PartyStats{PartyType: partyType, PartyID: partyID, Level: models.LevelLarva}
	}
	s.GigsCompleted += d.GigsCompleted
	s.HoneyEarned += d.HoneyEarned
	s.DisputesWon += d.DisputesWon
	s.DisputesLost += d.DisputesLost
	s.UpdatedAt = at
	t.st.stats[key] = s
	return &s, nil
}

func (t *tx) SetReputation(_ context.Context, partyType models.ActorType, partyID uuid.UUID, reputation int, level models.Level, at time.Time) error {
	key := statsKey{partyType, partyID}
	s, ok := t.st.stats[key]
	if !ok {
		return repository.ErrNotFound
	}
	s.Reputation = reputation
	s.Level = level
	s.UpdatedAt = at
	t.st.stats[key] = s
	return nil
}
