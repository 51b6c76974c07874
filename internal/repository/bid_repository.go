package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/hive-backend/internal/models"
	"github.com/ignatzorin/hive-backend/internal/repository/common"
)

func (q queries) GetBid(ctx context.Context, id uuid.UUID) (*models.Bid, error) {
	return common.GetByID[models.Bid](ctx, q.ext, "bids", id, false, ErrNotFound)
}

// FindLiveBid ставка пчелы на задание в любом статусе, кроме withdrawn.
func (q queries) FindLiveBid(ctx context.Context, gigID, beeID uuid.UUID) (*models.Bid, error) {
	var bid models.Bid
	query := `SELECT * FROM bids WHERE gig_id = $1 AND bee_id = $2 AND status <> 'withdrawn'`
	if err := sqlx.GetContext(ctx, q.ext, &bid, query, gigID, beeID); err != nil {
		return nil, mapError(err)
	}
	return &bid, nil
}

func (q queries) ListBidsByGig(ctx context.Context, gigID uuid.UUID) ([]models.Bid, error) {
	var bids []models.Bid
	query := `SELECT * FROM bids WHERE gig_id = $1 ORDER BY created_at`
	if err := sqlx.SelectContext(ctx, q.ext, &bids, query, gigID); err != nil {
		return nil, fmt.Errorf("bid repository: list %w", err)
	}
	return bids, nil
}

// CreateBid нарушение uq_bids_gig_bee_live возвращается как ErrDuplicate.
func (q queries) CreateBid(ctx context.Context, b *models.Bid) error {
	query := `
		INSERT INTO bids (id, gig_id, bee_id, proposal, estimated_hours, honey_requested, status, created_at, updated_at)
		VALUES (:id, :gig_id, :bee_id, :proposal, :estimated_hours, :honey_requested, :status, :created_at, :updated_at)
	`
	if _, err := sqlx.NamedExecContext(ctx, q.ext, query, b); err != nil {
		return mapError(err)
	}
	return nil
}

func (q queries) SaveBid(ctx context.Context, b *models.Bid, expected models.BidStatus) error {
	query := `
		UPDATE bids
		SET proposal = $1, estimated_hours = $2, honey_requested = $3, status = $4, updated_at = $5
		WHERE id = $6 AND status = $7
	`
	res, err := q.ext.ExecContext(ctx, query,
		b.Proposal, b.EstimatedHours, b.HoneyRequested, b.Status, b.UpdatedAt, b.ID, expected)
	return expectOne(res, err)
}

// RejectPendingBids отклоняет все pending ставки задания, кроме принятой.
func (q queries) RejectPendingBids(ctx context.Context, gigID, exceptBidID uuid.UUID, at time.Time) (int64, error) {
	res, err := q.ext.ExecContext(ctx, `
		UPDATE bids SET status = 'rejected', updated_at = $1
		WHERE gig_id = $2 AND id <> $3 AND status = 'pending'
	`, at, gigID, exceptBidID)
	if err != nil {
		return 0, fmt.Errorf("bid repository: reject pending %w", err)
	}
	return res.RowsAffected()
}
