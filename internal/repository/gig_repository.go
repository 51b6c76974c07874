package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/hive-backend/internal/models"
	"github.com/ignatzorin/hive-backend/internal/repository/common"
)

// GetGig возвращает задание по идентификатору. В транзакции строка блокируется FOR UPDATE,
// чтобы операции над одним заданием выстраивались в очередь.
func (q queries) GetGig(ctx context.Context, id uuid.UUID) (*models.Gig, error) {
	return common.GetByID[models.Gig](ctx, q.ext, "gigs", id, q.inTx, ErrNotFound)
}

// ListGigs возвращает задания по фильтру, новые первыми.
func (q queries) ListGigs(ctx context.Context, filter GigFilter) ([]models.Gig, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		conds = append(conds, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}

	query := `SELECT * FROM gigs`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	var gigs []models.Gig
	if err := sqlx.SelectContext(ctx, q.ext, &gigs, query, args...); err != nil {
		return nil, fmt.Errorf("gig repository: list %w", err)
	}
	return gigs, nil
}

// CreateGig сохраняет новое задание.
func (q queries) CreateGig(ctx context.Context, g *models.Gig) error {
	query := `
		INSERT INTO gigs (id, owner_id, title, description, requirements, price, category, status,
		                  version, revision_count, deadline, completed_at, created_at, updated_at)
		VALUES (:id, :owner_id, :title, :description, :requirements, :price, :category, :status,
		        :version, :revision_count, :deadline, :completed_at, :created_at, :updated_at)
	`
	if _, err := sqlx.NamedExecContext(ctx, q.ext, query, g); err != nil {
		return mapError(err)
	}
	return nil
}

// SaveGig CAS по (status, version).
func (q queries) SaveGig(ctx context.Context, g *models.Gig, expected models.GigStatus) error {
	query := `
		UPDATE gigs
		SET title = $1, description = $2, requirements = $3, price = $4, category = $5, status = $6,
		    revision_count = $7, deadline = $8, completed_at = $9, updated_at = $10, version = version + 1
		WHERE id = $11 AND status = $12 AND version = $13
	`
	res, err := q.ext.ExecContext(ctx, query,
		g.Title, g.Description, g.Requirements, g.Price, g.Category, g.Status,
		g.RevisionCount, g.Deadline, g.CompletedAt, g.UpdatedAt,
		g.ID, expected, g.Version,
	)
	if err := expectOne(res, err); err != nil {
		return err
	}
	g.Version++
	return nil
}
