package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/hive-backend/internal/models"
	"github.com/ignatzorin/hive-backend/internal/notify"
	"github.com/ignatzorin/hive-backend/internal/payment"
	"github.com/ignatzorin/hive-backend/internal/pkg/apperror"
	"github.com/ignatzorin/hive-backend/internal/repository"
)

// EscrowService учёт удерживаемых средств. Переходы held → released|refunded и held → refunding → итог.
type EscrowService struct {
	*base
}

// CaptureInput подтверждение оплаты от платёжного провайдера.
type CaptureInput struct {
	GigID      uuid.UUID
	OwnerID    uuid.UUID
	Amount     int64
	PaymentRef string
}

// CreateHeld создаёт escrow после подтверждённой оплаты. Повторная доставка вебхука даёт AlreadyExists.
// Черновик в той же транзакции публикуется.
func (s *EscrowService) CreateHeld(ctx context.Context, in CaptureInput) (*models.Escrow, error) {
	ref := strings.TrimSpace(in.PaymentRef)
	if ref == "" {
		return nil, validation("payment_ref обязателен")
	}

	var escrow *models.Escrow
	err := s.inTx(ctx, func(tx repository.Tx, _ *[]notify.Event) error {
		gig, err := getGig(ctx, tx, in.GigID)
		if err != nil {
			return err
		}

		existing, err := escrowOf(ctx, tx, gig.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperror.ErrEscrowAlreadyExists
		}

		if gig.IsFree() {
			return validation("бесплатное задание не требует escrow")
		}
		if in.Amount != gig.Price {
			return apperror.Newf(apperror.ErrCodeValidation, "сумма оплаты %d не совпадает с ценой %d", in.Amount, gig.Price)
		}
		if in.OwnerID != gig.OwnerID {
			return validation("плательщик не является владельцем задания")
		}
		if gig.Status != models.GigStatusDraft && gig.Status != models.GigStatusOpen {
			return apperror.Newf(apperror.ErrCodeInvalidState, "оплата задания в статусе %s не принимается", gig.Status)
		}

		now := s.now()
		escrow = &models.Escrow{
			ID:                 uuid.New(),
			GigID:              gig.ID,
			OwnerID:            gig.OwnerID,
			Amount:             in.Amount,
			Status:             models.EscrowStatusHeld,
			ExternalPaymentRef: ref,
			CreatedAt:          now,
		}
		if err := tx.CreateEscrow(ctx, escrow); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperror.ErrEscrowAlreadyExists
			}
			return internal(err)
		}

		if gig.Status == models.GigStatusDraft {
			return transition(ctx, tx, gig, models.GigStatusOpen, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := opLog("escrow.create_held", models.Actor{Type: models.ActorSystem, Role: "payment"})
	log.WithField("gig_id", in.GigID).WithField("escrow_id", escrow.ID).WithField("amount", escrow.Amount).Info("escrow held")
	return escrow, nil
}

// Release выплачивает удерживаемую сумму пчеле. Только для завершённого задания, чей escrow
// остался held: в работе и на проверке деньги распределяет приёмка или спор.
func (s *EscrowService) Release(ctx context.Context, actor models.Actor, gigID uuid.UUID) (*models.Escrow, error) {
	if !canSettle(actor) {
		return nil, apperror.ErrForbidden
	}

	var escrow *models.Escrow
	err := s.inTx(ctx, func(tx repository.Tx, _ *[]notify.Event) error {
		gig, err := getGig(ctx, tx, gigID)
		if err != nil {
			return err
		}
		if gig.Status != models.GigStatusCompleted {
			return apperror.Newf(apperror.ErrCodeInvalidTransition, "выплата escrow из статуса %s недопустима", gig.Status)
		}
		escrow, err = heldEscrow(ctx, tx, gigID)
		if err != nil {
			return err
		}
		beeID, err := assignedBee(ctx, tx, gigID)
		if err != nil {
			return err
		}
		if beeID == uuid.Nil {
			return apperror.New(apperror.ErrCodeInvalidState, "у задания нет назначенной пчелы")
		}
		return settle(ctx, tx, escrow, releaseTo(beeID, escrow.Amount), s.now())
	})
	if err != nil {
		return nil, err
	}

	opLog("escrow.release", actor).WithField("gig_id", gigID).WithField("escrow_id", escrow.ID).Info("escrow released")
	return escrow, nil
}

// Refund повторяет возврат владельцу по отменённому заданию. Escrow held сначала резервируется
// (refunding), затем вызывается провайдер, затем возврат фиксируется.
func (s *EscrowService) Refund(ctx context.Context, actor models.Actor, gigID uuid.UUID) (*models.Escrow, error) {
	if !canSettle(actor) {
		return nil, apperror.ErrForbidden
	}

	var escrow *models.Escrow
	err := s.inTx(ctx, func(tx repository.Tx, _ *[]notify.Event) error {
		gig, err := getGig(ctx, tx, gigID)
		if err != nil {
			return err
		}
		if gig.Status != models.GigStatusCancelled {
			return apperror.Newf(apperror.ErrCodeInvalidTransition, "возврат escrow из статуса %s недопустим", gig.Status)
		}
		escrow, err = tx.GetEscrowByGig(ctx, gigID)
		if err != nil {
			return storeErr(err, apperror.ErrEscrowNotFound)
		}
		switch {
		case escrow.IsHeld():
			return claimRefund(ctx, tx, escrow, refundAll(escrow.Amount))
		case escrow.IsRefunding():
			return nil
		default:
			return apperror.Newf(apperror.ErrCodeInvalidState, "escrow уже в статусе %s", escrow.Status)
		}
	})
	if err != nil {
		return nil, err
	}

	escrow, err = s.completeRefund(ctx, escrow)
	if err != nil {
		return nil, err
	}
	opLog("escrow.refund", actor).WithField("gig_id", gigID).WithField("escrow_id", escrow.ID).Info("escrow refunded")
	return escrow, nil
}

// GetEscrow escrow задания для его владельца, назначенной пчелы или арбитра.
func (s *EscrowService) GetEscrow(ctx context.Context, actor models.Actor, gigID uuid.UUID) (*models.Escrow, error) {
	gig, err := getGig(ctx, s.store, gigID)
	if err != nil {
		return nil, err
	}
	if !canSettle(actor) {
		a, err := currentAssignment(ctx, s.store, gigID)
		if err != nil {
			return nil, err
		}
		if !isParty(actor, gig, a) {
			return nil, apperror.ErrForbidden
		}
	}

	escrow, err := s.store.GetEscrowByGig(ctx, gigID)
	if err != nil {
		return nil, storeErr(err, apperror.ErrEscrowNotFound)
	}
	return escrow, nil
}

// completeRefund вызывает провайдера на зафиксированную сумму возврата и переводит refunding → итог.
// Повтор безопасен: ключ идемпотентности и сумма берутся из записанного распределения.
func (s *EscrowService) completeRefund(ctx context.Context, escrow *models.Escrow) (*models.Escrow, error) {
	if err := s.refundExternal(ctx, escrow, escrow.RefundedAmount); err != nil {
		return nil, err
	}

	err := s.inTx(ctx, func(tx repository.Tx, _ *[]notify.Event) error {
		current, err := tx.GetEscrowByGig(ctx, escrow.GigID)
		if err != nil {
			return storeErr(err, apperror.ErrEscrowNotFound)
		}
		escrow = current
		if !current.IsRefunding() {
			// Параллельный повтор уже зафиксировал возврат.
			if current.Status == models.EscrowStatusRefunded {
				return nil
			}
			return apperror.Newf(apperror.ErrCodeInvalidState, "escrow уже в статусе %s", current.Status)
		}
		return finishRefund(ctx, tx, current, s.now())
	})
	if err != nil {
		return nil, err
	}
	return escrow, nil
}

// refundExternal вызывает провайдера. Сбой провайдера всегда EXTERNAL_FAILURE.
func (s *EscrowService) refundExternal(ctx context.Context, escrow *models.Escrow, amount int64) error {
	if amount <= 0 {
		return nil
	}
	if s.refunder == nil {
		return apperror.New(apperror.ErrCodeExternalFailure, "платёжный провайдер не настроен")
	}

	req := payment.RefundRequest{
		PaymentRef:     escrow.ExternalPaymentRef,
		Amount:         amount,
		IdempotencyKey: escrow.RefundIdempotencyKey(),
	}
	if err := s.refunder.Refund(ctx, req); err != nil {
		log := opLog("escrow.refund_external", models.Actor{Type: models.ActorSystem, Role: "payment"})
		log.WithField("escrow_id", escrow.ID).WithError(err).Warn("external refund failed")
		return apperror.Wrap(err, apperror.ErrCodeExternalFailure, "возврат средств не подтверждён, повторите позже")
	}
	return nil
}

// canSettle прямые операции с escrow доступны арбитру и системным процессам.
func canSettle(actor models.Actor) bool {
	return actor.IsArbiter() || actor.Type == models.ActorSystem
}

// heldEscrow escrow задания в статусе held. Уже распределённый даёт InvalidState.
func heldEscrow(ctx context.Context, tx repository.Tx, gigID uuid.UUID) (*models.Escrow, error) {
	escrow, err := tx.GetEscrowByGig(ctx, gigID)
	if err != nil {
		return nil, storeErr(err, apperror.ErrEscrowNotFound)
	}
	if !escrow.IsHeld() {
		return nil, apperror.Newf(apperror.ErrCodeInvalidState, "escrow уже в статусе %s", escrow.Status)
	}
	return escrow, nil
}

// settle CAS held → итог. Проигравший параллельный вызов получает InvalidState.
func settle(ctx context.Context, tx repository.Tx, escrow *models.Escrow, st models.EscrowSettlement, now time.Time) error {
	return settleFrom(ctx, tx, escrow, models.EscrowStatusHeld, st, now)
}

// finishRefund refunding → зафиксированный при резервировании итог.
func finishRefund(ctx context.Context, tx repository.Tx, escrow *models.Escrow, now time.Time) error {
	return settleFrom(ctx, tx, escrow, models.EscrowStatusRefunding, escrow.PlannedSettlement(), now)
}

// claimRefund CAS held → refunding. Записанное распределение переживает сбой провайдера,
// и все последующие попытки идут ровно по нему.
func claimRefund(ctx context.Context, tx repository.Tx, escrow *models.Escrow, plan models.EscrowSettlement) error {
	if err := tx.ClaimEscrowRefund(ctx, escrow.ID, plan); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return apperror.New(apperror.ErrCodeInvalidState, "escrow уже распределяется")
		}
		return storeErr(err, apperror.ErrEscrowNotFound)
	}
	escrow.Status = models.EscrowStatusRefunding
	if plan.BeeID != nil {
		escrow.BeeID = plan.BeeID
	}
	escrow.ReleasedAmount = plan.Released
	escrow.RefundedAmount = plan.Refunded
	return nil
}

func settleFrom(ctx context.Context, tx repository.Tx, escrow *models.Escrow, from models.EscrowStatus, st models.EscrowSettlement, now time.Time) error {
	if err := tx.SettleEscrow(ctx, escrow.ID, from, st, now); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return apperror.New(apperror.ErrCodeInvalidState, "escrow уже распределён")
		}
		return storeErr(err, apperror.ErrEscrowNotFound)
	}
	escrow.Status = st.Status
	if st.BeeID != nil {
		escrow.BeeID = st.BeeID
	}
	escrow.ReleasedAmount = st.Released
	escrow.RefundedAmount = st.Refunded
	escrow.ResolvedAt = timePtr(now)
	return nil
}

func releaseTo(beeID uuid.UUID, amount int64) models.EscrowSettlement {
	return models.EscrowSettlement{Status: models.EscrowStatusReleased, BeeID: &beeID, Released: amount}
}

func refundAll(amount int64) models.EscrowSettlement {
	return models.EscrowSettlement{Status: models.EscrowStatusRefunded, Refunded: amount}
}
