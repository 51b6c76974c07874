package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/hive-backend/internal/domain/valueobject"
	"github.com/ignatzorin/hive-backend/internal/models"
	"github.com/ignatzorin/hive-backend/internal/notify"
	"github.com/ignatzorin/hive-backend/internal/pkg/apperror"
	"github.com/ignatzorin/hive-backend/internal/ratelimit"
	"github.com/ignatzorin/hive-backend/internal/repository"
	inputvalidation "github.com/ignatzorin/hive-backend/internal/validation"
)

// DisputeService споры между владельцем и пчелой.
type DisputeService struct {
	*base
	escrow *EscrowService
}

// OpenDisputeInput причина и доказательства.
type OpenDisputeInput struct {
	Reason   string
	Evidence string
}

// ResolveInput решение арбитра. BeeShare обязателен только для split.
type ResolveInput struct {
	Decision string
	Note     string
	BeeShare string
}

// Open открывает спор. Проверка на уже открытый спор идёт раньше проверки статуса,
// чтобы повторный запрос получал ALREADY_OPEN, а не INVALID_TRANSITION.
func (s *DisputeService) Open(ctx context.Context, actor models.Actor, gigID uuid.UUID, in OpenDisputeInput) (*models.Dispute, error) {
	if !actor.IsHuman() && !actor.IsBee() {
		return nil, apperror.ErrForbidden
	}
	reason := strings.TrimSpace(in.Reason)
	if err := inputvalidation.ValidateDisputeReason(reason, in.Evidence); err != nil {
		return nil, invalid(err)
	}

	var dispute *models.Dispute
	err := s.inTx(ctx, func(tx repository.Tx, out *[]notify.Event) error {
		gig, err := getGig(ctx, tx, gigID)
		if err != nil {
			return err
		}
		a, err := currentAssignment(ctx, tx, gig.ID)
		if err != nil {
			return err
		}
		if !isParty(actor, gig, a) {
			return apperror.ErrForbidden
		}

		latest, err := tx.LatestDisputeByGig(ctx, gig.ID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
		case err != nil:
			return internal(err)
		case latest.IsOpen():
			return apperror.ErrDisputeAlreadyOpen
		case gig.Status == models.GigStatusCompleted:
			return apperror.New(apperror.ErrCodeInvalidState, "спор по заданию уже был разрешён")
		}

		now := s.now()
		if err := s.checkDisputable(gig, a, now); err != nil {
			return err
		}

		dispute = &models.Dispute{
			ID:              uuid.New(),
			GigID:           gig.ID,
			AssignmentID:    a.ID,
			OpenedByType:    actor.Type,
			OpenedByID:      actor.ID,
			Reason:          reason,
			Evidence:        strings.TrimSpace(in.Evidence),
			Status:          models.DisputeStatusOpen,
			GigStatusAtOpen: gig.Status,
			CreatedAt:       now,
		}
		if err := tx.CreateDispute(ctx, dispute); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperror.ErrDisputeAlreadyOpen
			}
			return internal(err)
		}
		if err := transition(ctx, tx, gig, models.GigStatusDisputed, now); err != nil {
			return err
		}
		if err := tx.SetAssignmentStatus(ctx, a.ID, a.Status, models.AssignmentStatusDisputed, now); err != nil {
			return storeErr(err, apperror.ErrGigNotFound)
		}

		*out = append(*out, notify.Event{
			Recipient: counterpart(actor, gig, a.BeeID),
			Kind:      notify.EventDisputeOpened,
			Payload:   map[string]any{"gig_id": gig.ID, "dispute_id": dispute.ID, "reason": reason},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	opLog("dispute.open", actor).WithField("gig_id", gigID).WithField("dispute_id", dispute.ID).Info("dispute opened")
	return dispute, nil
}

// checkDisputable спор возможен в работе и на проверке, а после завершения только в окне DisputeGraceWindow.
func (s *DisputeService) checkDisputable(gig *models.Gig, a *models.Assignment, now time.Time) error {
	if !valueobject.AllowsDispute(gig.Status) {
		return apperror.Newf(apperror.ErrCodeInvalidTransition, "спор из статуса %s недопустим", gig.Status)
	}
	switch gig.Status {
	case models.GigStatusInProgress, models.GigStatusReview:
		if a == nil || a.Status != models.AssignmentStatusWorking {
			return apperror.New(apperror.ErrCodeInvalidState, "у задания нет рабочего назначения")
		}
	case models.GigStatusCompleted:
		if a == nil || a.Status != models.AssignmentStatusReleased {
			return apperror.New(apperror.ErrCodeInvalidState, "у задания нет назначения")
		}
		if gig.CompletedAt == nil || now.Sub(*gig.CompletedAt) > s.cfg.DisputeGraceWindow {
			return apperror.New(apperror.ErrCodeInvalidTransition, "срок для спора по завершённому заданию истёк")
		}
	}
	return nil
}

// AddMessage добавляет сообщение стороны спора.
func (s *DisputeService) AddMessage(ctx context.Context, actor models.Actor, disputeID uuid.UUID, content string) (*models.DisputeMessage, error) {
	content = strings.TrimSpace(content)
	if err := inputvalidation.ValidateMessageContent(content); err != nil {
		return nil, invalid(err)
	}

	dispute, gig, beeID, err := s.loadParty(ctx, s.store, actor, disputeID, false)
	if err != nil {
		return nil, err
	}
	if !dispute.IsOpen() {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "спор уже разрешён")
	}
	release, err := s.consumeCooldown(ctx, actor, ratelimit.ActionDisputeMessage, s.cfg.DisputeMessageCooldown)
	if err != nil {
		return nil, err
	}

	var msg *models.DisputeMessage
	err = s.inTx(ctx, func(tx repository.Tx, out *[]notify.Event) error {
		current, err := tx.GetDispute(ctx, disputeID)
		if err != nil {
			return storeErr(err, apperror.ErrDisputeNotFound)
		}
		if !current.IsOpen() {
			return apperror.New(apperror.ErrCodeInvalidState, "спор уже разрешён")
		}

		msg = &models.DisputeMessage{
			ID:         uuid.New(),
			DisputeID:  disputeID,
			SenderType: actor.Type,
			SenderID:   actor.ID,
			Content:    content,
			CreatedAt:  s.now(),
		}
		if err := tx.CreateDisputeMessage(ctx, msg); err != nil {
			return internal(err)
		}
		*out = append(*out, notify.Event{
			Recipient: counterpart(actor, gig, beeID),
			Kind:      notify.EventDisputeMessage,
			Payload:   map[string]any{"dispute_id": disputeID, "message_id": msg.ID},
		})
		return nil
	})
	if err != nil {
		release()
		return nil, err
	}
	return msg, nil
}

// settlement распределение escrow по решению.
type settlement struct {
	decision models.DisputeResolution
	bee      int64
	owner    int64
}

func (st settlement) escrowDecision(escrow *models.Escrow) string {
	switch {
	case escrow == nil:
		return "no_escrow"
	case !escrow.IsHeld() && !escrow.IsRefunding():
		return "already_released"
	case st.decision == models.ResolutionSplit:
		return fmt.Sprintf("split:bee=%d,owner=%d", st.bee, st.owner)
	case st.decision == models.ResolutionRefund:
		return fmt.Sprintf("refunded:%d", st.owner)
	default:
		return fmt.Sprintf("released:%d", st.bee)
	}
}

// escrowPlan итог escrow для решения. beeID нужен, если пчеле что-то причитается.
func (st settlement) escrowPlan(beeID uuid.UUID) models.EscrowSettlement {
	if st.bee == 0 {
		return refundAll(st.owner)
	}
	return models.EscrowSettlement{Status: models.EscrowStatusReleased, BeeID: &beeID, Released: st.bee, Refunded: st.owner}
}

// matches решение совпадает с уже зарезервированным распределением escrow.
func (st settlement) matches(escrow *models.Escrow) bool {
	return escrow.ReleasedAmount == st.bee && escrow.RefundedAmount == st.owner
}

// Resolve решение арбитра. Если владельцу причитается возврат, решение сначала резервируется
// на escrow (held → refunding) в отдельной транзакции, затем вызывается провайдер, затем спор закрывается.
// Конкурирующее решение проигрывает на резервировании, до внешнего вызова. Повтор после сбоя
// провайдера принимается только с тем же распределением.
func (s *DisputeService) Resolve(ctx context.Context, actor models.Actor, disputeID uuid.UUID, in ResolveInput) (*models.Dispute, error) {
	if !actor.IsArbiter() {
		return nil, apperror.ErrForbidden
	}
	decision := models.DisputeResolution(strings.TrimSpace(in.Decision))
	if _, ok := models.ValidResolutions[decision]; !ok {
		return nil, validation("решение должно быть release, refund или split")
	}
	var share decimal.Decimal
	if decision == models.ResolutionSplit {
		var err error
		if share, err = valueobject.ParseShare(strings.TrimSpace(in.BeeShare)); err != nil {
			return nil, err
		}
	}

	var (
		dispute *models.Dispute
		escrow  *models.Escrow
		st      settlement
	)
	err := s.inTx(ctx, func(tx repository.Tx, _ *[]notify.Event) error {
		var err error
		dispute, err = tx.GetDispute(ctx, disputeID)
		if err != nil {
			return storeErr(err, apperror.ErrDisputeNotFound)
		}
		if !dispute.IsOpen() {
			return apperror.New(apperror.ErrCodeInvalidState, "спор уже разрешён")
		}
		gig, err := getGig(ctx, tx, dispute.GigID)
		if err != nil {
			return err
		}
		escrow, err = escrowOf(ctx, tx, dispute.GigID)
		if err != nil {
			return err
		}
		if st, err = planResolution(gig, dispute, escrow, decision, share); err != nil {
			return err
		}

		switch {
		case escrow == nil:
		case escrow.IsRefunding():
			if !st.matches(escrow) {
				return apperror.Newf(apperror.ErrCodeInvalidState,
					"по спору уже выполняется возврат %d владельцу и %d пчеле, повторите то же решение", escrow.RefundedAmount, escrow.ReleasedAmount)
			}
		case escrow.IsHeld() && st.owner > 0:
			beeID, err := assignedBee(ctx, tx, gig.ID)
			if err != nil {
				return err
			}
			return claimRefund(ctx, tx, escrow, st.escrowPlan(beeID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if escrow != nil && escrow.IsRefunding() {
		if err := s.escrow.refundExternal(ctx, escrow, escrow.RefundedAmount); err != nil {
			return nil, err
		}
	}

	err = s.inTx(ctx, func(tx repository.Tx, out *[]notify.Event) error {
		return s.resolveInTx(ctx, tx, actor, dispute, st, in.Note, out)
	})
	if err != nil {
		if st.owner > 0 {
			opLog("dispute.resolve", actor).WithField("dispute_id", disputeID).WithError(err).
				Error("refund confirmed but resolution not recorded, retry resolve")
		}
		return nil, err
	}

	opLog("dispute.resolve", actor).WithField("dispute_id", disputeID).WithField("gig_id", dispute.GigID).
		WithField("decision", decision).Info("dispute resolved")
	return dispute, nil
}

// planResolution распределение по решению. После выплаты пчеле (спор по завершённому заданию)
// допустимо только release: вернуть уже выплаченное нельзя, а отмена не отменяет засчитанную работу.
func planResolution(gig *models.Gig, dispute *models.Dispute, escrow *models.Escrow, decision models.DisputeResolution, share decimal.Decimal) (settlement, error) {
	st := settlement{decision: decision}
	completed := dispute.GigStatusAtOpen == models.GigStatusCompleted || gig.CompletedAt != nil
	if decision != models.ResolutionRelease && completed {
		return st, apperror.New(apperror.ErrCodeInvalidState, "задание уже завершено и выплачено пчеле, возможно только решение release")
	}

	var amount int64
	if escrow != nil {
		if !escrow.IsHeld() && !escrow.IsRefunding() && decision != models.ResolutionRelease {
			return st, apperror.New(apperror.ErrCodeInvalidState, "escrow уже выплачен пчеле, возможно только решение release")
		}
		if escrow.IsHeld() || escrow.IsRefunding() {
			amount = escrow.Amount
		}
	}

	switch decision {
	case models.ResolutionRelease:
		st.bee = amount
	case models.ResolutionRefund:
		st.owner = amount
	case models.ResolutionSplit:
		var err error
		if st.bee, st.owner, err = valueobject.SplitAmount(amount, share); err != nil {
			return st, err
		}
		if amount > 0 && st.bee == 0 {
			return st, validation("доля пчелы слишком мала: split не выплачивает пчеле ничего, используйте refund")
		}
	}
	return st, nil
}

func (s *DisputeService) resolveInTx(ctx context.Context, tx repository.Tx, actor models.Actor, dispute *models.Dispute, st settlement, note string, out *[]notify.Event) error {
	current, err := tx.GetDispute(ctx, dispute.ID)
	if err != nil {
		return storeErr(err, apperror.ErrDisputeNotFound)
	}
	if !current.IsOpen() {
		return apperror.New(apperror.ErrCodeInvalidState, "спор уже разрешён")
	}
	*dispute = *current

	gig, err := getGig(ctx, tx, dispute.GigID)
	if err != nil {
		return err
	}
	a, err := currentAssignment(ctx, tx, gig.ID)
	if err != nil {
		return err
	}
	if a == nil || a.ID != dispute.AssignmentID {
		return apperror.New(apperror.ErrCodeInvalidState, "назначение спора не найдено")
	}

	now := s.now()
	escrow, err := escrowOf(ctx, tx, gig.ID)
	if err != nil {
		return err
	}
	// Решение записывается до settle, чтобы escrowDecision видел исходный статус escrow.
	dispute.EscrowDecision = strPtr(st.escrowDecision(escrow))
	switch {
	case escrow == nil:
	case escrow.IsRefunding():
		if !st.matches(escrow) {
			return apperror.New(apperror.ErrCodeInvalidState, "escrow зарезервирован под другое решение")
		}
		if err := finishRefund(ctx, tx, escrow, now); err != nil {
			return err
		}
	case escrow.IsHeld():
		// Возврат без резервирования не фиксируется: деньги не должны уйти мимо провайдера.
		if st.owner > 0 {
			return apperror.New(apperror.ErrCodeInvalidState, "escrow изменился во время решения спора, повторите")
		}
		if err := settle(ctx, tx, escrow, st.escrowPlan(a.BeeID), now); err != nil {
			return err
		}
	}

	wasCompleted := dispute.GigStatusAtOpen == models.GigStatusCompleted
	beeDelta := models.StatsDelta{}
	ownerDelta := models.StatsDelta{}
	switch st.decision {
	case models.ResolutionRefund:
		if err := transition(ctx, tx, gig, models.GigStatusCancelled, now); err != nil {
			return err
		}
		if err := tx.SetAssignmentStatus(ctx, a.ID, models.AssignmentStatusDisputed, models.AssignmentStatusClosed, now); err != nil {
			return storeErr(err, apperror.ErrGigNotFound)
		}
		beeDelta.DisputesLost = 1
		ownerDelta.DisputesWon = 1
	default:
		if gig.CompletedAt == nil {
			gig.CompletedAt = timePtr(now)
		}
		if err := transition(ctx, tx, gig, models.GigStatusCompleted, now); err != nil {
			return err
		}
		if err := tx.SetAssignmentStatus(ctx, a.ID, models.AssignmentStatusDisputed, models.AssignmentStatusReleased, now); err != nil {
			return storeErr(err, apperror.ErrGigNotFound)
		}
		if !wasCompleted {
			beeDelta.GigsCompleted = 1
			beeDelta.HoneyEarned = st.bee
		}
		if st.decision == models.ResolutionRelease {
			beeDelta.DisputesWon = 1
			ownerDelta.DisputesLost = 1
		}
	}
	if err := applyStats(ctx, tx, models.ActorBee, a.BeeID, beeDelta, now); err != nil {
		return err
	}
	if err := applyStats(ctx, tx, models.ActorHuman, gig.OwnerID, ownerDelta, now); err != nil {
		return err
	}

	dispute.Status = models.DisputeStatusResolved
	dispute.Resolution = st.decision
	if note = strings.TrimSpace(note); note != "" {
		dispute.ResolutionNote = strPtr(note)
	}
	dispute.ResolvedBy = strPtr(actor.String())
	dispute.DecidedAt = timePtr(now)
	if err := tx.ResolveDispute(ctx, dispute); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return apperror.New(apperror.ErrCodeInvalidState, "спор уже разрешён")
		}
		return internal(err)
	}

	payload := map[string]any{"dispute_id": dispute.ID, "gig_id": gig.ID, "decision": st.decision}
	*out = append(*out,
		notify.Event{Recipient: models.Human(gig.OwnerID), Kind: notify.EventDisputeResolved, Payload: payload},
		notify.Event{Recipient: models.Bee(a.BeeID), Kind: notify.EventDisputeResolved, Payload: payload},
	)
	return nil
}

// Get спор для сторон и арбитра.
func (s *DisputeService) Get(ctx context.Context, actor models.Actor, disputeID uuid.UUID) (*models.Dispute, error) {
	dispute, _, _, err := s.loadParty(ctx, s.store, actor, disputeID, true)
	return dispute, err
}

// GetByGig последний спор задания.
func (s *DisputeService) GetByGig(ctx context.Context, actor models.Actor, gigID uuid.UUID) (*models.Dispute, error) {
	latest, err := s.store.LatestDisputeByGig(ctx, gigID)
	if err != nil {
		return nil, storeErr(err, apperror.ErrDisputeNotFound)
	}
	return s.Get(ctx, actor, latest.ID)
}

// ListMessages сообщения спора по времени.
func (s *DisputeService) ListMessages(ctx context.Context, actor models.Actor, disputeID uuid.UUID) ([]models.DisputeMessage, error) {
	if _, _, _, err := s.loadParty(ctx, s.store, actor, disputeID, true); err != nil {
		return nil, err
	}
	msgs, err := s.store.ListDisputeMessages(ctx, disputeID)
	if err != nil {
		return nil, internal(err)
	}
	return msgs, nil
}

// loadParty спор, задание и пчела задания. Чужой участник получает Forbidden, арбитр допускается при allowArbiter.
func (s *DisputeService) loadParty(ctx context.Context, tx repository.Tx, actor models.Actor, disputeID uuid.UUID, allowArbiter bool) (*models.Dispute, *models.Gig, uuid.UUID, error) {
	dispute, err := tx.GetDispute(ctx, disputeID)
	if err != nil {
		return nil, nil, uuid.Nil, storeErr(err, apperror.ErrDisputeNotFound)
	}
	gig, err := getGig(ctx, tx, dispute.GigID)
	if err != nil {
		return nil, nil, uuid.Nil, err
	}
	beeID, err := assignedBee(ctx, tx, gig.ID)
	if err != nil {
		return nil, nil, uuid.Nil, err
	}

	switch {
	case allowArbiter && actor.IsArbiter():
	case gig.IsOwnedBy(actor):
	case actor.IsBee() && actor.ID == beeID:
	default:
		return nil, nil, uuid.Nil, apperror.ErrForbidden
	}
	return dispute, gig, beeID, nil
}

// assignedBee пчела принятой ставки. Принятая ставка не меняет статус, поэтому ответ верен и после закрытия назначения.
func assignedBee(ctx context.Context, tx repository.Tx, gigID uuid.UUID) (uuid.UUID, error) {
	bids, err := tx.ListBidsByGig(ctx, gigID)
	if err != nil {
		return uuid.Nil, internal(err)
	}
	for _, b := range bids {
		if b.Status == models.BidStatusAccepted {
			return b.BeeID, nil
		}
	}
	return uuid.Nil, nil
}

// counterpart вторая сторона спора.
func counterpart(actor models.Actor, gig *models.Gig, beeID uuid.UUID) models.Actor {
	if actor.IsBee() {
		return models.Human(gig.OwnerID)
	}
	return models.Bee(beeID)
}
