package ratelimit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// PostgresLimiter хранит записи в таблице rate_limits.
type PostgresLimiter struct {
	db  *sqlx.DB
	now Clock
}

func NewPostgresLimiter(db *sqlx.DB, now Clock) *PostgresLimiter {
	if now == nil {
		now = time.Now
	}
	return &PostgresLimiter{db: db, now: now}
}

// TryConsume upsert с условием: строка обновляется только если окно истекло,
// поэтому два параллельных запроса не могут пройти оба.
func (l *PostgresLimiter) TryConsume(ctx context.Context, key Key, window time.Duration) (Decision, error) {
	if window <= 0 {
		return allow(), nil
	}

	now := l.now().UTC()
	// prev читается в том же снимке, что и upsert, то есть до записи.
	query := `
		WITH prev AS (
			SELECT last_action_at FROM rate_limits WHERE entity_type = $1 AND entity_id = $2 AND action = $3
		)
		INSERT INTO rate_limits (entity_type, entity_id, action, last_action_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (entity_type, entity_id, action) DO UPDATE
			SET last_action_at = EXCLUDED.last_action_at
			WHERE rate_limits.last_action_at <= $5
		RETURNING last_action_at AS stored, (SELECT last_action_at FROM prev) AS previous
	`
	var row struct {
		Stored   time.Time  `db:"stored"`
		Previous *time.Time `db:"previous"`
	}
	err := l.db.GetContext(ctx, &row, query, key.EntityType, key.EntityID, key.Action, now, now.Add(-window))
	if err == nil {
		return allowAt(row.Stored, row.Previous), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Decision{}, fmt.Errorf("rate limiter: consume %s: %w", key, err)
	}

	var last time.Time
	err = l.db.GetContext(ctx, &last, `
		SELECT last_action_at FROM rate_limits WHERE entity_type = $1 AND entity_id = $2 AND action = $3
	`, key.EntityType, key.EntityID, key.Action)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limiter: read %s: %w", key, err)
	}
	return deny(last, now, window), nil
}

// Release возвращает предыдущее время действия (или удаляет запись), только если последним
// записано именно отменяемое действие.
func (l *PostgresLimiter) Release(ctx context.Context, key Key, d Decision) error {
	if !d.Allowed || d.at.IsZero() {
		return nil
	}

	var err error
	if d.previous == nil {
		_, err = l.db.ExecContext(ctx, `
			DELETE FROM rate_limits
			WHERE entity_type = $1 AND entity_id = $2 AND action = $3 AND last_action_at = $4
		`, key.EntityType, key.EntityID, key.Action, d.at)
	} else {
		_, err = l.db.ExecContext(ctx, `
			UPDATE rate_limits SET last_action_at = $5
			WHERE entity_type = $1 AND entity_id = $2 AND action = $3 AND last_action_at = $4
		`, key.EntityType, key.EntityID, key.Action, d.at, *d.previous)
	}
	if err != nil {
		return fmt.Errorf("rate limiter: release %s: %w", key, err)
	}
	return nil
}
