package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/hive-backend/internal/models"
)

func (q queries) CreateAssignment(ctx context.Context, a *models.Assignment) error {
	query := `
		INSERT INTO assignments (id, gig_id, bee_id, bid_id, status, assigned_at, updated_at)
		VALUES (:id, :gig_id, :bee_id, :bid_id, :status, :assigned_at, :updated_at)
	`
	if _, err := sqlx.NamedExecContext(ctx, q.ext, query, a); err != nil {
		return mapError(err)
	}
	return nil
}

func (q queries) CurrentAssignment(ctx context.Context, gigID uuid.UUID) (*models.Assignment, error) {
	var a models.Assignment
	query := `
		SELECT * FROM assignments
		WHERE gig_id = $1 AND status <> 'closed'
		ORDER BY assigned_at DESC
		LIMIT 1
	`
	if err := sqlx.GetContext(ctx, q.ext, &a, query, gigID); err != nil {
		return nil, mapError(err)
	}
	return &a, nil
}

func (q queries) SetAssignmentStatus(ctx context.Context, id uuid.UUID, from, to models.AssignmentStatus, at time.Time) error {
	res, err := q.ext.ExecContext(ctx, `
		UPDATE assignments SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4
	`, to, at, id, from)
	return expectOne(res, err)
}
