package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/hive-backend/internal/models"
)

// GigFilter параметры выборки заданий.
type GigFilter struct {
	Status   *models.GigStatus
	OwnerID  *uuid.UUID
	Category string
	Limit    int
	Offset   int
}

// CandidateCursor позиция keyset-пагинации кандидатов автоподтверждения.
type CandidateCursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// AutoApprovalQuery выборка кандидатов: submitted результаты заданий в review, созданные не позже Before,
// не отложенные на момент Now, строго после After в порядке (created_at, id).
type AutoApprovalQuery struct {
	Before time.Time
	Now    time.Time
	After  *CandidateCursor
	Limit  int
}

// Tx набор операций хранилища. Все методы записи работают как compare-and-set: при несовпадении
// ожидаемого состояния возвращают ErrConflict и ничего не меняют.
// Внутри InTx чтение задания блокирует его строку до конца транзакции.
type Tx interface {
	GetGig(ctx context.Context, id uuid.UUID) (*models.Gig, error)
	ListGigs(ctx context.Context, filter GigFilter) ([]models.Gig, error)
	CreateGig(ctx context.Context, gig *models.Gig) error
	// SaveGig записывает gig, если в хранилище status == expected и version == gig.Version.
	// При успехе gig.Version увеличивается.
	SaveGig(ctx context.Context, gig *models.Gig, expected models.GigStatus) error

	GetBid(ctx context.Context, id uuid.UUID) (*models.Bid, error)
	FindLiveBid(ctx context.Context, gigID, beeID uuid.UUID) (*models.Bid, error)
	ListBidsByGig(ctx context.Context, gigID uuid.UUID) ([]models.Bid, error)
	CreateBid(ctx context.Context, bid *models.Bid) error
	SaveBid(ctx context.Context, bid *models.Bid, expected models.BidStatus) error
	RejectPendingBids(ctx context.Context, gigID, exceptBidID uuid.UUID, at time.Time) (int64, error)

	CreateAssignment(ctx context.Context, a *models.Assignment) error
	// CurrentAssignment последнее незакрытое назначение на задание.
	CurrentAssignment(ctx context.Context, gigID uuid.UUID) (*models.Assignment, error)
	SetAssignmentStatus(ctx context.Context, id uuid.UUID, from, to models.AssignmentStatus, at time.Time) error

	GetDeliverable(ctx context.Context, id uuid.UUID) (*models.Deliverable, error)
	LatestDeliverable(ctx context.Context, gigID uuid.UUID) (*models.Deliverable, error)
	ListDeliverablesByGig(ctx context.Context, gigID uuid.UUID) ([]models.Deliverable, error)
	// ListAutoApprovalCandidates последние submitted результаты заданий в review по AutoApprovalQuery.
	ListAutoApprovalCandidates(ctx context.Context, q AutoApprovalQuery) ([]models.Deliverable, error)
	// DeferAutoApproval откладывает submitted результат до until. Уже рассмотренный не меняется.
	DeferAutoApproval(ctx context.Context, id uuid.UUID, until time.Time) error
	CreateDeliverable(ctx context.Context, d *models.Deliverable) error
	SaveDeliverable(ctx context.Context, d *models.Deliverable, expected models.DeliverableStatus) error

	GetEscrowByGig(ctx context.Context, gigID uuid.UUID) (*models.Escrow, error)
	CreateEscrow(ctx context.Context, e *models.Escrow) error
	// ClaimEscrowRefund held → refunding с записью будущего распределения.
	ClaimEscrowRefund(ctx context.Context, id uuid.UUID, plan models.EscrowSettlement) error
	// SettleEscrow переводит escrow из from в итоговое состояние.
	SettleEscrow(ctx context.Context, id uuid.UUID, from models.EscrowStatus, s models.EscrowSettlement, at time.Time) error

	GetDispute(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	// LatestDisputeByGig последний спор задания в любом статусе. Открытый спор всегда последний.
	LatestDisputeByGig(ctx context.Context, gigID uuid.UUID) (*models.Dispute, error)
	CreateDispute(ctx context.Context, d *models.Dispute) error
	// ResolveDispute записывает решение, если спор ещё open.
	ResolveDispute(ctx context.Context, d *models.Dispute) error
	CreateDisputeMessage(ctx context.Context, m *models.DisputeMessage) error
	ListDisputeMessages(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeMessage, error)

	GetPartyStats(ctx context.Context, partyType models.ActorType, partyID uuid.UUID) (*models.PartyStats, error)
	// ApplyStatsDelta прибавляет счётчики (создавая запись при необходимости) и возвращает итог.
	ApplyStatsDelta(ctx context.Context, partyType models.ActorType, partyID uuid.UUID, delta models.StatsDelta, at time.Time) (*models.PartyStats, error)
	SetReputation(ctx context.Context, partyType models.ActorType, partyID uuid.UUID, reputation int, level models.Level, at time.Time) error
}

// Store хранилище движка. Методы Tx вне InTx выполняются как отдельные операции.
type Store interface {
	Tx
	// InTx выполняет fn атомарно: при ошибке ни одно изменение не сохраняется.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}
