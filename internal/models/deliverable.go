package models

import (
	"time"

	"github.com/google/uuid"
)

// Deliverable результат работы, отправленный назначенной пчелой.
type Deliverable struct {
	ID         uuid.UUID         `db:"id" json:"id"`
	GigID      uuid.UUID         `db:"gig_id" json:"gig_id"`
	BeeID      uuid.UUID         `db:"bee_id" json:"bee_id"`
	Title      string            `db:"title" json:"title"`
	Type       DeliverableType   `db:"type" json:"type"`
	Content    string            `db:"content" json:"content,omitempty"`
	URL        string            `db:"url" json:"url,omitempty"`
	Status     DeliverableStatus `db:"status" json:"status"`
	Feedback   *string           `db:"feedback" json:"feedback,omitempty"`
	ReviewedBy *string           `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time        `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt  time.Time         `db:"created_at" json:"created_at"`
	// SweepRetryAt до этого момента прогон автоподтверждения кандидата не выбирает.
	SweepRetryAt *time.Time `db:"sweep_retry_at" json:"-"`
}
