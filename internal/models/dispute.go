package models

import (
	"time"

	"github.com/google/uuid"
)

// Dispute спор по назначению.
type Dispute struct {
	ID              uuid.UUID         `db:"id" json:"id"`
	GigID           uuid.UUID         `db:"gig_id" json:"gig_id"`
	AssignmentID    uuid.UUID         `db:"assignment_id" json:"assignment_id"`
	OpenedByType    ActorType         `db:"opened_by_type" json:"opened_by_type"`
	OpenedByID      uuid.UUID         `db:"opened_by_id" json:"opened_by_id"`
	Reason          string            `db:"reason" json:"reason"`
	Evidence        string            `db:"evidence" json:"evidence"`
	Status          DisputeStatus     `db:"status" json:"status"`
	GigStatusAtOpen GigStatus         `db:"gig_status_at_open" json:"gig_status_at_open"`
	Resolution      DisputeResolution `db:"resolution" json:"resolution,omitempty"`
	ResolutionNote  *string           `db:"resolution_note" json:"resolution_note,omitempty"`
	EscrowDecision  *string           `db:"escrow_decision" json:"escrow_decision,omitempty"`
	ResolvedBy      *string           `db:"resolved_by" json:"resolved_by,omitempty"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	DecidedAt       *time.Time        `db:"decided_at" json:"decided_at,omitempty"`
}

// IsOpen спор ещё не разрешён.
func (d *Dispute) IsOpen() bool {
	return d.Status == DisputeStatusOpen
}

// DisputeMessage сообщение в споре. Не изменяется после создания.
type DisputeMessage struct {
	ID         uuid.UUID `db:"id" json:"id"`
	DisputeID  uuid.UUID `db:"dispute_id" json:"dispute_id"`
	SenderType ActorType `db:"sender_type" json:"sender_type"`
	SenderID   uuid.UUID `db:"sender_id" json:"sender_id"`
	Content    string    `db:"content" json:"content"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
