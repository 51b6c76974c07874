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

func (q queries) GetDeliverable(ctx context.Context, id uuid.UUID) (*models.Deliverable, error) {
	return common.GetByID[models.Deliverable](ctx, q.ext, "deliverables", id, false, ErrNotFound)
}

func (q queries) LatestDeliverable(ctx context.Context, gigID uuid.UUID) (*models.Deliverable, error) {
	var d models.Deliverable
	query := `SELECT * FROM deliverables WHERE gig_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`
	if err := sqlx.GetContext(ctx, q.ext, &d, query, gigID); err != nil {
		return nil, mapError(err)
	}
	return &d, nil
}

func (q queries) ListDeliverablesByGig(ctx context.Context, gigID uuid.UUID) ([]models.Deliverable, error) {
	var items []models.Deliverable
	query := `SELECT * FROM deliverables WHERE gig_id = $1 ORDER BY created_at`
	if err := sqlx.SelectContext(ctx, q.ext, &items, query, gigID); err != nil {
		return nil, fmt.Errorf("deliverable repository: list %w", err)
	}
	return items, nil
}

func (q queries) ListAutoApprovalCandidates(ctx context.Context, aq AutoApprovalQuery) ([]models.Deliverable, error) {
	var (
		afterAt *time.Time
		afterID uuid.UUID
	)
	if aq.After != nil {
		afterAt, afterID = &aq.After.CreatedAt, aq.After.ID
	}

	var items []models.Deliverable
	query := `
		SELECT d.* FROM deliverables d
		JOIN gigs g ON g.id = d.gig_id
		WHERE d.status = 'submitted'
		  AND g.status = 'review'
		  AND d.created_at <= $1
		  AND (d.sweep_retry_at IS NULL OR d.sweep_retry_at <= $2)
		  AND ($3::timestamptz IS NULL OR (d.created_at, d.id) > ($3::timestamptz, $4::uuid))
		  AND NOT EXISTS (
		      SELECT 1 FROM deliverables newer
		      WHERE newer.gig_id = d.gig_id AND newer.created_at > d.created_at
		  )
		ORDER BY d.created_at, d.id
		LIMIT $5
	`
	if err := sqlx.SelectContext(ctx, q.ext, &items, query, aq.Before, aq.Now, afterAt, afterID, aq.Limit); err != nil {
		return nil, fmt.Errorf("deliverable repository: auto-approval candidates %w", err)
	}
	return items, nil
}

func (q queries) DeferAutoApproval(ctx context.Context, id uuid.UUID, until time.Time) error {
	_, err := q.ext.ExecContext(ctx,
		`UPDATE deliverables SET sweep_retry_at = $1 WHERE id = $2 AND status = 'submitted'`, until, id)
	if err != nil {
		return fmt.Errorf("deliverable repository: defer auto-approval %w", err)
	}
	return nil
}

func (q queries) CreateDeliverable(ctx context.Context, d *models.Deliverable) error {
	query := `
		INSERT INTO deliverables (id, gig_id, bee_id, title, type, content, url, status, feedback, reviewed_by, reviewed_at, created_at)
		VALUES (:id, :gig_id, :bee_id, :title, :type, :content, :url, :status, :feedback, :reviewed_by, :reviewed_at, :created_at)
	`
	if _, err := sqlx.NamedExecContext(ctx, q.ext, query, d); err != nil {
		return mapError(err)
	}
	return nil
}

func (q queries) SaveDeliverable(ctx context.Context, d *models.Deliverable, expected models.DeliverableStatus) error {
	res, err := q.ext.ExecContext(ctx, `
		UPDATE deliverables SET status = $1, feedback = $2, reviewed_by = $3, reviewed_at = $4
		WHERE id = $5 AND status = $6
	`, d.Status, d.Feedback, d.ReviewedBy, d.ReviewedAt, d.ID, expected)
	return expectOne(res, err)
}
