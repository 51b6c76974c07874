package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/hive-backend/internal/models"
	"github.com/ignatzorin/hive-backend/internal/repository/common"
)

func (q queries) GetDispute(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	return common.GetByID[models.Dispute](ctx, q.ext, "disputes", id, false, ErrNotFound)
}

func (q queries) LatestDisputeByGig(ctx context.Context, gigID uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	query := `SELECT * FROM disputes WHERE gig_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`
	err := sqlx.GetContext(ctx, q.ext, &d, query, gigID)
	if err != nil {
		return nil, mapError(err)
	}
	return &d, nil
}

// CreateDispute второй open спор по заданию упирается в uq_disputes_gig_open.
func (q queries) CreateDispute(ctx context.Context, d *models.Dispute) error {
	query := `
		INSERT INTO disputes (id, gig_id, assignment_id, opened_by_type, opened_by_id, reason, evidence, status,
		                      gig_status_at_open, resolution, resolution_note, escrow_decision, resolved_by,
		                      created_at, decided_at)
		VALUES (:id, :gig_id, :assignment_id, :opened_by_type, :opened_by_id, :reason, :evidence, :status,
		        :gig_status_at_open, :resolution, :resolution_note, :escrow_decision, :resolved_by,
		        :created_at, :decided_at)
	`
	if _, err := sqlx.NamedExecContext(ctx, q.ext, query, d); err != nil {
		return mapError(err)
	}
	return nil
}

func (q queries) ResolveDispute(ctx context.Context, d *models.Dispute) error {
	res, err := q.ext.ExecContext(ctx, `
		UPDATE disputes
		SET status = $1, resolution = $2, resolution_note = $3, escrow_decision = $4, resolved_by = $5, decided_at = $6
		WHERE id = $7 AND status = 'open'
	`, d.Status, d.Resolution, d.ResolutionNote, d.EscrowDecision, d.ResolvedBy, d.DecidedAt, d.ID)
	return expectOne(res, err)
}

func (q queries) CreateDisputeMessage(ctx context.Context, m *models.DisputeMessage) error {
	query := `
		INSERT INTO dispute_messages (id, dispute_id, sender_type, sender_id, content, created_at)
		VALUES (:id, :dispute_id, :sender_type, :sender_id, :content, :created_at)
	`
	if _, err := sqlx.NamedExecContext(ctx, q.ext, query, m); err != nil {
		return mapError(err)
	}
	return nil
}

func (q queries) ListDisputeMessages(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeMessage, error) {
	var msgs []models.DisputeMessage
	query := `SELECT * FROM dispute_messages WHERE dispute_id = $1 ORDER BY created_at, id`
	if err := sqlx.SelectContext(ctx, q.ext, &msgs, query, disputeID); err != nil {
		return nil, fmt.Errorf("dispute repository: list messages %w", err)
	}
	return msgs, nil
}
