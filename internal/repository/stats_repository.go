package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/hive-backend/internal/models"
)

func (q queries) GetPartyStats(ctx context.Context, partyType models.ActorType, partyID uuid.UUID) (*models.PartyStats, error) {
	var s models.PartyStats
	query := `SELECT * FROM party_stats WHERE party_type = $1 AND party_id = $2`
	if err := sqlx.GetContext(ctx, q.ext, &s, query, partyType, partyID); err != nil {
		return nil, mapError(err)
	}
	return &s, nil
}

// ApplyStatsDelta атомарный инкремент через upsert, без read-then-write.
func (q queries) ApplyStatsDelta(ctx context.Context, partyType models.ActorType, partyID uuid.UUID, d models.StatsDelta, at time.Time) (*models.PartyStats, error) {
	var s models.PartyStats
	query := `
		INSERT INTO party_stats (party_type, party_id, gigs_completed, honey_earned, disputes_won, disputes_lost, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (party_type, party_id) DO UPDATE SET
			gigs_completed = party_stats.gigs_completed + EXCLUDED.gigs_completed,
			honey_earned   = party_stats.honey_earned + EXCLUDED.honey_earned,
			disputes_won   = party_stats.disputes_won + EXCLUDED.disputes_won,
			disputes_lost  = party_stats.disputes_lost + EXCLUDED.disputes_lost,
			updated_at     = EXCLUDED.updated_at
		RETURNING *
	`
	err := sqlx.GetContext(ctx, q.ext, &s, query,
		partyType, partyID, d.GigsCompleted, d.HoneyEarned, d.DisputesWon, d.DisputesLost, at)
	if err != nil {
		return nil, mapError(err)
	}
	return &s, nil
}

func (q queries) SetReputation(ctx context.Context, partyType models.ActorType, partyID uuid.UUID, reputation int, level models.Level, at time.Time) error {
	res, err := q.ext.ExecContext(ctx, `
		UPDATE party_stats SET reputation = $1, level = $2, updated_at = $3
		WHERE party_type = $4 AND party_id = $5
	`, reputation, level, at, partyType, partyID)
	if err := expectOne(res, err); err != nil {
		if err == ErrConflict {
			return ErrNotFound
		}
		return err
	}
	return nil
}
