package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/hive-backend/internal/models"
)

func (q queries) GetEscrowByGig(ctx context.Context, gigID uuid.UUID) (*models.Escrow, error) {
	var e models.Escrow
	if err := sqlx.GetContext(ctx, q.ext, &e, `SELECT * FROM escrows WHERE gig_id = $1`, gigID); err != nil {
		return nil, mapError(err)
	}
	return &e, nil
}

// CreateEscrow повторная доставка вебхука упирается в uq_escrows_gig и даёт ErrDuplicate.
func (q queries) CreateEscrow(ctx context.Context, e *models.Escrow) error {
	query := `
		INSERT INTO escrows (id, gig_id, owner_id, bee_id, amount, released_amount, refunded_amount, status,
		                     external_payment_ref, created_at, resolved_at)
		VALUES (:id, :gig_id, :owner_id, :bee_id, :amount, :released_amount, :refunded_amount, :status,
		        :external_payment_ref, :created_at, :resolved_at)
	`
	if _, err := sqlx.NamedExecContext(ctx, q.ext, query, e); err != nil {
		return mapError(err)
	}
	return nil
}

func (q queries) ClaimEscrowRefund(ctx context.Context, id uuid.UUID, plan models.EscrowSettlement) error {
	res, err := q.ext.ExecContext(ctx, `
		UPDATE escrows
		SET status = 'refunding', bee_id = COALESCE($1, bee_id), released_amount = $2, refunded_amount = $3
		WHERE id = $4 AND status = 'held'
	`, plan.BeeID, plan.Released, plan.Refunded, id)
	return expectOne(res, err)
}

func (q queries) SettleEscrow(ctx context.Context, id uuid.UUID, from models.EscrowStatus, s models.EscrowSettlement, at time.Time) error {
	res, err := q.ext.ExecContext(ctx, `
		UPDATE escrows
		SET status = $1, bee_id = COALESCE($2, bee_id), released_amount = $3, refunded_amount = $4, resolved_at = $5
		WHERE id = $6 AND status = $7
	`, s.Status, s.BeeID, s.Released, s.Refunded, at, id, from)
	return expectOne(res, err)
}
