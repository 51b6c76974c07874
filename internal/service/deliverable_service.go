package service

import (
	"context"
	"errors"
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

// DeliverableService результаты работы и их приёмка.
type DeliverableService struct {
	*base
}

// SubmitInput результат, отправляемый пчелой.
type SubmitInput struct {
	Title   string
	Type    string
	Content string
	URL     string
}

// Submit создаёт результат от назначенной пчелы и переводит задание в review.
func (s *DeliverableService) Submit(ctx context.Context, actor models.Actor, gigID uuid.UUID, in SubmitInput) (*models.Deliverable, error) {
	if !actor.IsBee() {
		return nil, apperror.ErrForbidden
	}

	title := strings.TrimSpace(in.Title)
	content := strings.TrimSpace(in.Content)
	url := strings.TrimSpace(in.URL)
	if err := inputvalidation.ValidateDeliverable(title, content, url); err != nil {
		return nil, invalid(err)
	}
	typ := models.DeliverableType(strings.TrimSpace(in.Type))
	if typ == "" {
		typ = models.DeliverableTypeText
		if content == "" {
			typ = models.DeliverableTypeURL
		}
	}
	if _, ok := models.ValidDeliverableTypes[typ]; !ok {
		return nil, validation("некорректный тип результата")
	}

	var d *models.Deliverable
	err := s.inTx(ctx, func(tx repository.Tx, out *[]notify.Event) error {
		gig, err := getGig(ctx, tx, gigID)
		if err != nil {
			return err
		}
		a, err := currentAssignment(ctx, tx, gig.ID)
		if err != nil {
			return err
		}
		if a == nil || !a.IsHeldBy(actor) {
			return apperror.ErrForbidden
		}
		if a.Status != models.AssignmentStatusWorking {
			return apperror.Newf(apperror.ErrCodeInvalidState, "назначение в статусе %s", a.Status)
		}
		if !valueobject.AcceptsDeliverables(gig.Status) {
			return apperror.Newf(apperror.ErrCodeInvalidTransition, "задание в статусе %s не принимает результаты", gig.Status)
		}

		now := s.now()
		d = &models.Deliverable{
			ID:        uuid.New(),
			GigID:     gig.ID,
			BeeID:     actor.ID,
			Title:     title,
			Type:      typ,
			Content:   content,
			URL:       url,
			Status:    models.DeliverableStatusSubmitted,
			CreatedAt: now,
		}
		if err := tx.CreateDeliverable(ctx, d); err != nil {
			return internal(err)
		}
		if gig.Status != models.GigStatusReview {
			if err := transition(ctx, tx, gig, models.GigStatusReview, now); err != nil {
				return err
			}
		}

		*out = append(*out, notify.Event{
			Recipient: models.Human(gig.OwnerID),
			Kind:      notify.EventDeliverableSubmitted,
			Payload:   map[string]any{"gig_id": gig.ID, "deliverable_id": d.ID},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	opLog("deliverable.submit", actor).WithField("gig_id", gigID).WithField("deliverable_id", d.ID).Info("deliverable submitted")
	return d, nil
}

// Approve ручная приёмка владельцем.
func (s *DeliverableService) Approve(ctx context.Context, actor models.Actor, gigID, deliverableID uuid.UUID) (*models.Deliverable, error) {
	if !actor.IsHuman() {
		return nil, apperror.ErrForbidden
	}

	var d *models.Deliverable
	err := s.inTx(ctx, func(tx repository.Tx, out *[]notify.Event) error {
		var err error
		d, err = s.approveInTx(ctx, tx, actor, gigID, deliverableID, out)
		return err
	})
	if err != nil {
		return nil, err
	}

	opLog("deliverable.approve", actor).WithField("gig_id", gigID).WithField("deliverable_id", deliverableID).Info("deliverable approved")
	return d, nil
}

// approveInTx общий путь ручной и автоматической приёмки: результат approved, задание completed,
// escrow released, назначение released, статистика пчелы.
func (s *DeliverableService) approveInTx(ctx context.Context, tx repository.Tx, actor models.Actor, gigID, deliverableID uuid.UUID, out *[]notify.Event) (*models.Deliverable, error) {
	gig, d, err := s.loadForReview(ctx, tx, actor, gigID, deliverableID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	d.Status = models.DeliverableStatusApproved
	d.ReviewedBy = strPtr(actor.String())
	d.ReviewedAt = timePtr(now)
	if err := saveDeliverable(ctx, tx, d); err != nil {
		return nil, err
	}

	gig.CompletedAt = timePtr(now)
	if err := transition(ctx, tx, gig, models.GigStatusCompleted, now); err != nil {
		return nil, err
	}

	a, err := currentAssignment(ctx, tx, gig.ID)
	if err != nil {
		return nil, err
	}
	if a == nil || a.Status != models.AssignmentStatusWorking {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "у задания нет рабочего назначения")
	}
	if err := tx.SetAssignmentStatus(ctx, a.ID, models.AssignmentStatusWorking, models.AssignmentStatusReleased, now); err != nil {
		return nil, storeErr(err, apperror.ErrGigNotFound)
	}

	var honey int64
	escrow, err := escrowOf(ctx, tx, gig.ID)
	if err != nil {
		return nil, err
	}
	if escrow != nil {
		if err := settle(ctx, tx, escrow, releaseTo(a.BeeID, escrow.Amount), now); err != nil {
			return nil, err
		}
		honey = escrow.Amount
	}

	delta := models.StatsDelta{GigsCompleted: 1, HoneyEarned: honey}
	if err := applyStats(ctx, tx, models.ActorBee, a.BeeID, delta, now); err != nil {
		return nil, err
	}

	*out = append(*out, notify.Event{
		Recipient: models.Bee(a.BeeID),
		Kind:      notify.EventDeliverableApproved,
		Payload:   map[string]any{"gig_id": gig.ID, "deliverable_id": d.ID, "honey": honey, "by": actor.String()},
	})
	return d, nil
}

// RequestRevision возвращает задание пчеле на доработку.
func (s *DeliverableService) RequestRevision(ctx context.Context, actor models.Actor, gigID, deliverableID uuid.UUID, feedback string) (*models.Deliverable, error) {
	return s.sendBack(ctx, actor, gigID, deliverableID, feedback, models.DeliverableStatusRevisionRequested, notify.EventDeliverableRevisionRequested)
}

// Reject отклоняет результат без завершения задания. Escrow не трогается.
func (s *DeliverableService) Reject(ctx context.Context, actor models.Actor, gigID, deliverableID uuid.UUID, feedback string) (*models.Deliverable, error) {
	return s.sendBack(ctx, actor, gigID, deliverableID, feedback, models.DeliverableStatusRejected, notify.EventDeliverableRejected)
}

// sendBack review → in_progress. Доработка и отклонение вместе ограничены MaxRevisions.
func (s *DeliverableService) sendBack(ctx context.Context, actor models.Actor, gigID, deliverableID uuid.UUID, feedback string, to models.DeliverableStatus, kind string) (*models.Deliverable, error) {
	feedback = strings.TrimSpace(feedback)
	if err := inputvalidation.ValidateFeedback(feedback); err != nil {
		return nil, invalid(err)
	}
	if !actor.IsHuman() {
		return nil, apperror.ErrForbidden
	}

	var d *models.Deliverable
	err := s.inTx(ctx, func(tx repository.Tx, out *[]notify.Event) error {
		gig, loaded, err := s.loadForReview(ctx, tx, actor, gigID, deliverableID)
		if err != nil {
			return err
		}
		d = loaded
		if limit := s.cfg.MaxRevisions; limit > 0 && gig.RevisionCount >= limit {
			return apperror.Newf(apperror.ErrCodeValidation,
				"лимит доработок (%d) исчерпан: примите результат или откройте спор", limit)
		}

		now := s.now()
		d.Status = to
		d.Feedback = strPtr(feedback)
		d.ReviewedBy = strPtr(actor.String())
		d.ReviewedAt = timePtr(now)
		if err := saveDeliverable(ctx, tx, d); err != nil {
			return err
		}

		gig.RevisionCount++
		if err := transition(ctx, tx, gig, models.GigStatusInProgress, now); err != nil {
			return err
		}

		*out = append(*out, notify.Event{
			Recipient: models.Bee(d.BeeID),
			Kind:      kind,
			Payload:   map[string]any{"gig_id": gig.ID, "deliverable_id": d.ID, "feedback": feedback},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	opLog("deliverable."+string(to), actor).WithField("gig_id", gigID).WithField("deliverable_id", deliverableID).Info("deliverable sent back")
	return d, nil
}

// loadForReview общие предусловия решения по результату: владелец (или автоприёмка),
// результат submitted и последний, задание в review.
func (s *DeliverableService) loadForReview(ctx context.Context, tx repository.Tx, actor models.Actor, gigID, deliverableID uuid.UUID) (*models.Gig, *models.Deliverable, error) {
	gig, err := getGig(ctx, tx, gigID)
	if err != nil {
		return nil, nil, err
	}
	isAuto := actor.Type == models.ActorSystem && actor.Role == models.RoleAutoApproval
	if !isAuto && !gig.IsOwnedBy(actor) {
		return nil, nil, apperror.ErrForbidden
	}

	d, err := tx.GetDeliverable(ctx, deliverableID)
	if err != nil {
		return nil, nil, storeErr(err, apperror.ErrDeliverableNotFound)
	}
	if d.GigID != gig.ID {
		return nil, nil, apperror.ErrDeliverableNotFound
	}
	if d.Status != models.DeliverableStatusSubmitted {
		return nil, nil, apperror.Newf(apperror.ErrCodeInvalidTransition, "результат уже в статусе %s", d.Status)
	}
	latest, err := tx.LatestDeliverable(ctx, gig.ID)
	if err != nil {
		return nil, nil, storeErr(err, apperror.ErrDeliverableNotFound)
	}
	if latest.ID != d.ID {
		return nil, nil, apperror.New(apperror.ErrCodeInvalidTransition, "решение принимается только по последнему результату")
	}
	if gig.Status != models.GigStatusReview {
		return nil, nil, apperror.Newf(apperror.ErrCodeInvalidTransition, "задание в статусе %s", gig.Status)
	}
	return gig, d, nil
}

func saveDeliverable(ctx context.Context, tx repository.Tx, d *models.Deliverable) error {
	err := tx.SaveDeliverable(ctx, d, models.DeliverableStatusSubmitted)
	if errors.Is(err, repository.ErrConflict) {
		return apperror.New(apperror.ErrCodeInvalidTransition, "результат уже рассмотрен")
	}
	return storeErr(err, apperror.ErrDeliverableNotFound)
}

// ListDeliverables результаты задания для его сторон и арбитра.
func (s *DeliverableService) ListDeliverables(ctx context.Context, actor models.Actor, gigID uuid.UUID) ([]models.Deliverable, error) {
	gig, err := getGig(ctx, s.store, gigID)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListDeliverablesByGig(ctx, gigID)
	if err != nil {
		return nil, internal(err)
	}
	if gig.IsOwnedBy(actor) || actor.IsArbiter() {
		return items, nil
	}

	a, err := currentAssignment(ctx, s.store, gigID)
	if err != nil {
		return nil, err
	}
	if isParty(actor, gig, a) || authoredAny(actor, items) {
		return items, nil
	}
	return nil, apperror.ErrForbidden
}

func authoredAny(actor models.Actor, items []models.Deliverable) bool {
	if !actor.IsBee() {
		return false
	}
	for _, d := range items {
		if d.BeeID == actor.ID {
			return true
		}
	}
	return false
}

// autoApprovalCutoff результаты, созданные не позже этого момента, приёмка закрывает автоматически.
func (s *DeliverableService) autoApprovalCutoff(now time.Time) time.Time {
	return now.Add(-s.cfg.AutoApproveAfter)
}
