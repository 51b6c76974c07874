package models

import (
	"time"

	"github.com/google/uuid"
)

// Escrow удерживаемые средства оплаченного задания.
type Escrow struct {
	ID                 uuid.UUID    `db:"id" json:"id"`
	GigID              uuid.UUID    `db:"gig_id" json:"gig_id"`
	OwnerID            uuid.UUID    `db:"owner_id" json:"owner_id"`
	BeeID              *uuid.UUID   `db:"bee_id" json:"bee_id,omitempty"`
	Amount             int64        `db:"amount" json:"amount"`
	ReleasedAmount     int64        `db:"released_amount" json:"released_amount"`
	RefundedAmount     int64        `db:"refunded_amount" json:"refunded_amount"`
	Status             EscrowStatus `db:"status" json:"status"`
	ExternalPaymentRef string       `db:"external_payment_ref" json:"external_payment_ref"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
	ResolvedAt         *time.Time   `db:"resolved_at" json:"resolved_at,omitempty"`
}

// IsHeld средства ещё не распределены.
func (e *Escrow) IsHeld() bool {
	return e.Status == EscrowStatusHeld
}

// IsRefunding возврат зафиксирован, но ещё не подтверждён. Суммы распределения уже записаны.
func (e *Escrow) IsRefunding() bool {
	return e.Status == EscrowStatusRefunding
}

// PlannedSettlement итог, зафиксированный при переходе в refunding.
func (e *Escrow) PlannedSettlement() EscrowSettlement {
	st := EscrowSettlement{Status: EscrowStatusRefunded, BeeID: e.BeeID, Released: e.ReleasedAmount, Refunded: e.RefundedAmount}
	if e.ReleasedAmount > 0 {
		st.Status = EscrowStatusReleased
	}
	return st
}

// RefundIdempotencyKey ключ идемпотентности внешнего возврата, повтор не вернёт деньги дважды.
func (e *Escrow) RefundIdempotencyKey() string {
	return "refund:" + e.ID.String()
}

// EscrowSettlement итоговое распределение суммы escrow.
type EscrowSettlement struct {
	Status   EscrowStatus
	BeeID    *uuid.UUID
	Released int64
	Refunded int64
}
