package models

import (
	"time"

	"github.com/google/uuid"
)

// Gig задание, опубликованное человеком.
type Gig struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	OwnerID       uuid.UUID  `db:"owner_id" json:"owner_id"`
	Title         string     `db:"title" json:"title"`
	Description   string     `db:"description" json:"description"`
	Requirements  string     `db:"requirements" json:"requirements"`
	Price         int64      `db:"price" json:"price"`
	Category      string     `db:"category" json:"category"`
	Status        GigStatus  `db:"status" json:"status"`
	Version       int64      `db:"version" json:"version"`
	RevisionCount int        `db:"revision_count" json:"revision_count"`
	Deadline      *time.Time `db:"deadline" json:"deadline,omitempty"`
	CompletedAt   *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// IsFree бесплатное задание не имеет escrow.
func (g *Gig) IsFree() bool {
	return g.Price == 0
}

// IsOwnedBy проверяет владельца.
func (g *Gig) IsOwnedBy(actor Actor) bool {
	return actor.IsHuman() && g.OwnerID == actor.ID
}

// Assignment связь принятой ставки с заданием.
type Assignment struct {
	ID         uuid.UUID        `db:"id" json:"id"`
	GigID      uuid.UUID        `db:"gig_id" json:"gig_id"`
	BeeID      uuid.UUID        `db:"bee_id" json:"bee_id"`
	BidID      uuid.UUID        `db:"bid_id" json:"bid_id"`
	Status     AssignmentStatus `db:"status" json:"status"`
	AssignedAt time.Time        `db:"assigned_at" json:"assigned_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// IsHeldBy проверяет, что назначение принадлежит пчеле.
func (a *Assignment) IsHeldBy(actor Actor) bool {
	return actor.IsBee() && a.BeeID == actor.ID
}
