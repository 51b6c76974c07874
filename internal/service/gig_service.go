package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/hive-backend/internal/domain/valueobject"
	"github.com/ignatzorin/hive-backend/internal/models"
	"github.com/ignatzorin/hive-backend/internal/notify"
	"github.com/ignatzorin/hive-backend/internal/pkg/apperror"
	"github.com/ignatzorin/hive-backend/internal/repository"
	inputvalidation "github.com/ignatzorin/hive-backend/internal/validation"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// GigService отвечает за жизненный цикл задания.
type GigService struct {
	*base
	escrow *EscrowService
}

// CreateGigInput данные нового задания.
type CreateGigInput struct {
	Title        string
	Description  string
	Requirements string
	Price        int64
	Category     string
	Deadline     *time.Time
	// Publish сразу открывает бесплатное задание. Платное остаётся draft до подтверждения оплаты.
	Publish bool
}

// UpdateGigInput изменяемые поля. nil означает "не менять".
type UpdateGigInput struct {
	Title        *string
	Description  *string
	Requirements *string
	Category     *string
	Price        *int64
	Deadline     *time.Time
}

// ListGigsInput фильтр списка.
type ListGigsInput struct {
	Status   string
	OwnerID  *uuid.UUID
	Category string
	Limit    int
	Offset   int
}

// CreateGig создаёт задание от имени человека.
func (s *GigService) CreateGig(ctx context.Context, actor models.Actor, in CreateGigInput) (*models.Gig, error) {
	if !actor.IsHuman() {
		return nil, apperror.ErrForbidden
	}

	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	if err := inputvalidation.ValidateGig(title, description, in.Requirements, in.Category); err != nil {
		return nil, invalid(err)
	}
	price, err := valueobject.NewPrice(in.Price)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if in.Deadline != nil && !in.Deadline.After(now) {
		return nil, validation("дедлайн должен быть в будущем")
	}

	gig := &models.Gig{
		ID:           uuid.New(),
		OwnerID:      actor.ID,
		Title:        title,
		Description:  description,
		Requirements: strings.TrimSpace(in.Requirements),
		Price:        price,
		Category:     strings.TrimSpace(in.Category),
		Status:       models.GigStatusDraft,
		Version:      1,
		Deadline:     in.Deadline,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.Publish && gig.IsFree() {
		gig.Status = models.GigStatusOpen
	}

	if err := s.store.CreateGig(ctx, gig); err != nil {
		return nil, internal(err)
	}

	opLog("gig.create", actor).WithField("gig_id", gig.ID).WithField("status", gig.Status).Info("gig created")
	return gig, nil
}

// UpdateGig меняет поля задания в draft/open. Цена меняется только в draft.
func (s *GigService) UpdateGig(ctx context.Context, actor models.Actor, gigID uuid.UUID, in UpdateGigInput) (*models.Gig, error) {
	var gig *models.Gig
	err := s.inTx(ctx, func(tx repository.Tx, _ *[]notify.Event) error {
		var err error
		gig, err = getGig(ctx, tx, gigID)
		if err != nil {
			return err
		}
		if !gig.IsOwnedBy(actor) {
			return apperror.ErrForbidden
		}
		if gig.Status != models.GigStatusDraft && gig.Status != models.GigStatusOpen {
			return apperror.Newf(apperror.ErrCodeInvalidState, "задание в статусе %s нельзя редактировать", gig.Status)
		}

		if in.Title != nil {
			if gig.Title = strings.TrimSpace(*in.Title); gig.Title == "" {
				return validation("название не может быть пустым")
			}
		}
		if in.Description != nil {
			if gig.Description = strings.TrimSpace(*in.Description); gig.Description == "" {
				return validation("описание не может быть пустым")
			}
		}
		if in.Requirements != nil {
			gig.Requirements = strings.TrimSpace(*in.Requirements)
		}
		if in.Category != nil {
			gig.Category = strings.TrimSpace(*in.Category)
		}
		if in.Price != nil && *in.Price != gig.Price {
			if gig.Status != models.GigStatusDraft {
				return apperror.New(apperror.ErrCodeInvalidState, "цену можно менять только в черновике")
			}
			price, err := valueobject.NewPrice(*in.Price)
			if err != nil {
				return err
			}
			gig.Price = price
		}
		if err := inputvalidation.ValidateGig(gig.Title, gig.Description, gig.Requirements, gig.Category); err != nil {
			return invalid(err)
		}
		now := s.now()
		if in.Deadline != nil {
			if !in.Deadline.After(now) {
				return validation("дедлайн должен быть в будущем")
			}
			gig.Deadline = in.Deadline
		}

		gig.UpdatedAt = now
		return storeErr(tx.SaveGig(ctx, gig, gig.Status), apperror.ErrGigNotFound)
	})
	if err != nil {
		return nil, err
	}
	return gig, nil
}

// PublishGig draft → open. Платному заданию нужен удерживаемый escrow.
func (s *GigService) PublishGig(ctx context.Context, actor models.Actor, gigID uuid.UUID) (*models.Gig, error) {
	var gig *models.Gig
	err := s.inTx(ctx, func(tx repository.Tx, _ *[]notify.Event) error {
		var err error
		gig, err = getGig(ctx, tx, gigID)
		if err != nil {
			return err
		}
		if !gig.IsOwnedBy(actor) {
			return apperror.ErrForbidden
		}
		if gig.Status != models.GigStatusDraft {
			return apperror.Newf(apperror.ErrCodeInvalidTransition, "публикация из статуса %s недопустима", gig.Status)
		}
		if !gig.IsFree() {
			escrow, err := escrowOf(ctx, tx, gig.ID)
			if err != nil {
				return err
			}
			if escrow == nil || !escrow.IsHeld() {
				return apperror.New(apperror.ErrCodeInvalidState, "платное задание публикуется после подтверждения оплаты")
			}
		}
		return transition(ctx, tx, gig, models.GigStatusOpen, s.now())
	})
	if err != nil {
		return nil, err
	}
	opLog("gig.publish", actor).WithField("gig_id", gig.ID).Info("gig published")
	return gig, nil
}

// CancelGig open → cancelled. Ожидающие ставки отклоняются, удерживаемый escrow возвращается владельцу.
// Возврат резервируется в той же транзакции, что и отмена, поэтому принять ставку по отменяемому
// заданию уже нельзя. Если провайдер не подтвердил возврат, escrow остаётся refunding
// и возврат повторяется через EscrowService.Refund.
func (s *GigService) CancelGig(ctx context.Context, actor models.Actor, gigID uuid.UUID) (*models.Gig, error) {
	var (
		gig    *models.Gig
		escrow *models.Escrow
	)
	err := s.inTx(ctx, func(tx repository.Tx, out *[]notify.Event) error {
		var err error
		gig, err = getGig(ctx, tx, gigID)
		if err != nil {
			return err
		}
		if !gig.IsOwnedBy(actor) {
			return apperror.ErrForbidden
		}
		if gig.Status != models.GigStatusOpen {
			return apperror.Newf(apperror.ErrCodeInvalidTransition, "отмена из статуса %s недопустима", gig.Status)
		}

		bids, err := tx.ListBidsByGig(ctx, gig.ID)
		if err != nil {
			return internal(err)
		}
		for _, bid := range bids {
			if bid.Status == models.BidStatusAccepted {
				return apperror.New(apperror.ErrCodeInvalidTransition, "у задания уже есть принятая ставка")
			}
		}

		now := s.now()
		if err := transition(ctx, tx, gig, models.GigStatusCancelled, now); err != nil {
			return err
		}
		if _, err := tx.RejectPendingBids(ctx, gig.ID, uuid.Nil, now); err != nil {
			return internal(err)
		}
		for _, bid := range bids {
			if bid.Status == models.BidStatusPending {
				*out = append(*out, notify.Event{
					Recipient: models.Bee(bid.BeeID),
					Kind:      notify.EventGigCancelled,
					Payload:   map[string]any{"gig_id": gig.ID, "bid_id": bid.ID},
				})
			}
		}

		escrow, err = escrowOf(ctx, tx, gig.ID)
		if err != nil || escrow == nil || !escrow.IsHeld() {
			return err
		}
		return claimRefund(ctx, tx, escrow, refundAll(escrow.Amount))
	})
	if err != nil {
		return nil, err
	}

	log := opLog("gig.cancel", actor).WithField("gig_id", gig.ID)
	log.Info("gig cancelled")

	if escrow != nil && escrow.IsRefunding() {
		if _, err := s.escrow.completeRefund(ctx, escrow); err != nil {
			log.WithError(err).Warn("refund after cancel failed, escrow stays refunding")
			return gig, err
		}
	}
	return gig, nil
}

// MarkPaid completed → paid после внешней выплаты. Назначение закрывается.
func (s *GigService) MarkPaid(ctx context.Context, actor models.Actor, gigID uuid.UUID) (*models.Gig, error) {
	if actor.Type != models.ActorSystem && !actor.IsArbiter() {
		return nil, apperror.ErrForbidden
	}

	var gig *models.Gig
	err := s.inTx(ctx, func(tx repository.Tx, out *[]notify.Event) error {
		var err error
		gig, err = getGig(ctx, tx, gigID)
		if err != nil {
			return err
		}
		if gig.Status != models.GigStatusCompleted {
			return apperror.Newf(apperror.ErrCodeInvalidTransition, "выплата из статуса %s недопустима", gig.Status)
		}
		if escrow, err := escrowOf(ctx, tx, gig.ID); err != nil {
			return err
		} else if escrow != nil && (escrow.IsHeld() || escrow.IsRefunding()) {
			return apperror.New(apperror.ErrCodeInvalidState, "escrow ещё не распределён")
		}

		now := s.now()
		if err := transition(ctx, tx, gig, models.GigStatusPaid, now); err != nil {
			return err
		}
		a, err := currentAssignment(ctx, tx, gig.ID)
		if err != nil {
			return err
		}
		if a != nil {
			if err := tx.SetAssignmentStatus(ctx, a.ID, a.Status, models.AssignmentStatusClosed, now); err != nil {
				return storeErr(err, apperror.ErrGigNotFound)
			}
			*out = append(*out, notify.Event{
				Recipient: models.Bee(a.BeeID),
				Kind:      notify.EventGigPaid,
				Payload:   map[string]any{"gig_id": gig.ID},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	opLog("gig.mark_paid", actor).WithField("gig_id", gig.ID).Info("gig paid")
	return gig, nil
}

// GetGig возвращает задание.
func (s *GigService) GetGig(ctx context.Context, gigID uuid.UUID) (*models.Gig, error) {
	gig, err := s.store.GetGig(ctx, gigID)
	if err != nil {
		return nil, storeErr(err, apperror.ErrGigNotFound)
	}
	return gig, nil
}

// ListGigs список заданий по фильтру.
func (s *GigService) ListGigs(ctx context.Context, in ListGigsInput) ([]models.Gig, error) {
	filter := repository.GigFilter{
		OwnerID:  in.OwnerID,
		Category: strings.TrimSpace(in.Category),
		Limit:    in.Limit,
		Offset:   in.Offset,
	}
	if in.Status != "" {
		status, err := valueobject.NewGigStatus(in.Status)
		if err != nil {
			return nil, err
		}
		filter.Status = &status
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	gigs, err := s.store.ListGigs(ctx, filter)
	if err != nil {
		return nil, internal(err)
	}
	return gigs, nil
}
