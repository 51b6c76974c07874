package models

import (
	"time"

	"github.com/google/uuid"
)

// Bid предложение пчелы выполнить задание.
type Bid struct {
	ID             uuid.UUID `db:"id" json:"id"`
	GigID          uuid.UUID `db:"gig_id" json:"gig_id"`
	BeeID          uuid.UUID `db:"bee_id" json:"bee_id"`
	Proposal       string    `db:"proposal" json:"proposal"`
	EstimatedHours float64   `db:"estimated_hours" json:"estimated_hours"`
	HoneyRequested *int64    `db:"honey_requested" json:"honey_requested,omitempty"`
	Status         BidStatus `db:"status" json:"status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// IsPending ставка ещё не рассмотрена.
func (b *Bid) IsPending() bool {
	return b.Status == BidStatusPending
}

// IsLive ставка учитывается при проверке уникальности (gig, bee).
func (b *Bid) IsLive() bool {
	return b.Status != BidStatusWithdrawn
}
