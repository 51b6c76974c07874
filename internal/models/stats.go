package models

import (
	"time"

	"github.com/google/uuid"
)

// PartyStats агрегаты участника для репутации и уровня.
type PartyStats struct {
	PartyType     ActorType `db:"party_type" json:"party_type"`
	PartyID       uuid.UUID `db:"party_id" json:"party_id"`
	GigsCompleted int       `db:"gigs_completed" json:"gigs_completed"`
	HoneyEarned   int64     `db:"honey_earned" json:"honey_earned"`
	DisputesWon   int       `db:"disputes_won" json:"disputes_won"`
	DisputesLost  int       `db:"disputes_lost" json:"disputes_lost"`
	Reputation    int       `db:"reputation" json:"reputation"`
	Level         Level     `db:"level" json:"level"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// StatsDelta приращение счётчиков, применяемое атомарно.
type StatsDelta struct {
	GigsCompleted int
	HoneyEarned   int64
	DisputesWon   int
	DisputesLost  int
}

// IsZero нечего применять.
func (d StatsDelta) IsZero() bool {
	return d == StatsDelta{}
}

// RateLimitRecord последнее действие участника.
type RateLimitRecord struct {
	EntityType   string    `db:"entity_type" json:"entity_type"`
	EntityID     string    `db:"entity_id" json:"entity_id"`
	Action       string    `db:"action" json:"action"`
	LastActionAt time.Time `db:"last_action_at" json:"last_action_at"`
}
