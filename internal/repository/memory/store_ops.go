package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/hive-backend/internal/models"
	"github.com/ignatzorin/hive-backend/internal/repository"
)

// Операции вне InTx: каждая выполняется атомарно под мьютексом хранилища.

func (s *Store) GetGig(ctx context.Context, id uuid.UUID) (*models.Gig, error) {
	var out *models.Gig
	err := s.auto(func(t *tx) error {
		var err error
		out, err = t.GetGig(ctx, id)
		return err
	})
	return out, err
}

func (s *Store) ListGigs(ctx context.Context, f repository.GigFilter) ([]models.Gig, error) {
	var out []models.Gig
	err := s.auto(func(t *tx) error {
		var err error
		out, err = t.ListGigs(ctx, f)
		return err
	})
	return out, err
}

func (s *Store) CreateGig(ctx context.Context, g *models.Gig) error {
	return s.auto(func(t *tx) error { return t.CreateGig(ctx, g) })
}

func (s *Store) SaveGig(ctx context.Context, g *models.Gig, expected models.GigStatus) error {
	return s.auto(func(t *tx) error { return t.SaveGig(ctx, g, expected) })
}

func (s *Store) GetBid(ctx context.Context, id uuid.UUID) (*models.Bid, error) {
	var out *models.Bid
	err := s.auto(func(t *tx) error {
		var err error
		out, err = t.GetBid(ctx, id)
		return err
	})
	return out, err
}

func (s *Store) FindLiveBid(ctx context.Context, gigID, beeID uuid.UUID) (*models.Bid, error) {
	var out *models.Bid
	err := s.auto(func(t *tx) error {
		var err error
		out, err = t.FindLiveBid(ctx, gigID, beeID)
		return err
	})
	return out, err
}

func (s *Store) ListBidsByGig(ctx context.Context, gigID uuid.UUID) ([]models.Bid, error) {
	var out []models.Bid
	err := s.auto(func(t *tx) error {
		var err error
		out, err = t.ListBidsByGig(ctx, gigID)
		return err
	})
	return out, err
}

func (s *Store) CreateBid(ctx context.Context, b *models.Bid) error {
	return s.auto(func(t *tx) error { return t.CreateBid(ctx, b) })
}

func (s *Store) SaveBid(ctx context.Context, b *models.Bid, expected models.BidStatus) error {
	return s.auto(func(t *tx) error { return t.SaveBid(ctx, b, expected) })
}

func (s *Store) RejectPendingBids(ctx context.Context, gigID, exceptBidID uuid.UUID, at time.Time) (int64, error) {
	var out int64
	err := s.auto(func(t *tx) error {
		var err error
		out, err = t.RejectPendingBids(ctx, gigID, exceptBidID, at)
		return err
	})
	return out, err
}

func (s *Store) CreateAssignment(ctx context.Context, a *models.Assignment) error {
	return s.auto(func(t *tx) error { return t.CreateAssignment(ctx, a) })
}

func (s *Store) CurrentAssignment(ctx context.Context, gigID uuid.UUID) (*models.Assignment, error) {
	var out *models.Assignment
	err := s.auto(func(t *tx) error {
		var err error
		out, err = t.CurrentAssignment(ctx, gigID)
		return err
	})
	return out, err
}

func (s *Store) SetAssignmentStatus(ctx context.Context, id uuid.UUID, from, to models.AssignmentStatus, at time.Time) error {
	return s.auto(func(t *tx) error { return t.SetAssignmentStatus(ctx, id, from, to, at) })
}

func (s *Store) GetDeliverable(ctx context.Context, id uuid.UUID) (*models.Deliverable, error) {
	var out *models.Deliverable
	err := s.auto(func(t *tx) error {
		var err error
		out, err = t.GetDeliverable(ctx, id)
		return err
	})
	return out, err
}

func (s *Store) LatestDeliverable(ctx context.Context, gigID uuid.UUID) (*models.Deliverable, error) {
	var out *models.Deliverable
	err := s.auto(func(t *tx) error {
		var err error
		out, err = t.LatestDeliverable(ctx, gigID)
		return err
	})
	return out, err
}

func (s *Store) ListDeliverablesByGig(ctx context.Context, gigID uuid.UUID) ([]models.Deliverable, error) {
	var out []models.Deliverable
	err := s.auto(func(t *tx) error {
		var err error
		out, err = t.ListDeliverablesByGig(ctx, gigID)
		return err
	})
	return out, err
}

func (s *Store) ListAutoApprovalCandidates(ctx context.Context, q repository.AutoApprovalQuery) ([]models.Deliverable, error) {
	var out []models.Deliverable
	err := s.auto(func(t *tx) error {
		var err error
		out, err = t.ListAutoApprovalCandidates(ctx, q)
		return err
	})
	return out, err
}

func (s *Store) DeferAutoApproval(ctx context.Context, id uuid.UUID, until time.Time) error {
	return s.auto(func(t *tx) error { return t.DeferAutoApproval(ctx, id, until) })
}

func (s *Store) CreateDeliverable(ctx context.Context, d *models.Deliverable) error {
	return s.auto(func(t *tx) error { return t.CreateDeliverable(ctx, d) })
}

func (s *Store) SaveDeliverable(ctx context.Context, d *models.Deliverable, expected models.DeliverableStatus) error {
	return s.auto(func(t *tx) error { return t.SaveDeliverable(ctx, d, expected) })
}

func (s *Store) GetEscrowByGig(ctx context.Context, gigID uuid.UUID) (*models.Escrow, error) {
	var out *models.Escrow
	err := s.auto(func(t *tx) error {
		var err error
		out, err = t.GetEscrowByGig(ctx, gigID)
		return err
	})
	return out, err
}

func (s *Store) CreateEscrow(ctx context.Context, e *models.Escrow) error {
	return s.auto(func(t *tx) error { return t.CreateEscrow(ctx, e) })
}

func (s *Store) ClaimEscrowRefund(ctx context.Context, id uuid.UUID, plan models.EscrowSettlement) error {
	return s.auto(func(t *tx) error { return t.ClaimEscrowRefund(ctx, id, plan) })
}

func (s *Store) SettleEscrow(ctx context.Context, id uuid.UUID, from models.EscrowStatus, settle models.EscrowSettlement, at time.Time) error {
	return s.auto(func(t *tx) error { return t.SettleEscrow(ctx, id, from, settle, at) })
}

func (s *Store) GetDispute(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var out *models.Dispute
	err := s.auto(func(t *tx) error {
		var err error
		out, err = t.GetDispute(ctx, id)
		return err
	})
	return out, err
}

func (s *Store) LatestDisputeByGig(ctx context.Context, gigID uuid.UUID) (*models.Dispute, error) {
	var out *models.Dispute
	err := s.auto(func(t *tx) error {
		var err error
		out, err = t.LatestDisputeByGig(ctx, gigID)
		return err
	})
	return out, err
}

func (s *Store) CreateDispute(ctx context.Context, d *models.Dispute) error {
	return s.auto(func(t *tx) error { return t.CreateDispute(ctx, d) })
}

func (s *Store) ResolveDispute(ctx context.Context, d *models.Dispute) error {
	return s.auto(func(t *tx) error { return t.ResolveDispute(ctx, d) })
}

func (s *Store) CreateDisputeMessage(ctx context.Context, m *models.DisputeMessage) error {
	return s.auto(func(t *tx) error { return t.CreateDisputeMessage(ctx, m) })
}

func (s *Store) ListDisputeMessages(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeMessage, error) {
	var out []models.DisputeMessage
	err := s.auto(func(t *tx) error {
		var err error
		out, err = t.ListDisputeMessages(ctx, disputeID)
		return err
	})
	return out, err
}

func (s *Store) GetPartyStats(ctx context.Context, partyType models.ActorType, partyID uuid.UUID) (*models.PartyStats, error) {
	var out *models.PartyStats
	err := s.auto(func(t *tx) error {
		var err error
		out, err = t.GetPartyStats(ctx, partyType, partyID)
		return err
	})
	return out, err
}

func (s *Store) ApplyStatsDelta(ctx context.Context, partyType models.ActorType, partyID uuid.UUID, d models.StatsDelta, at time.Time) (*models.PartyStats, error) {
	var out *models.PartyStats
	err := s.auto(func(t *tx) error {
		var err error
		out, err = t.ApplyStatsDelta(ctx, partyType, partyID, d, at)
		return err
	})
	return out, err
}

func (s *Store) SetReputation(ctx context.Context, partyType models.ActorType, partyID uuid.UUID, reputation int, level models.Level, at time.Time) error {
	return s.auto(func(t *tx) error { return t.SetReputation(ctx, partyType, partyID, reputation, level, at) })
}
