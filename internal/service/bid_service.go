package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/ignatzorin/hive-backend/internal/models"
	"github.com/ignatzorin/hive-backend/internal/notify"
	"github.com/ignatzorin/hive-backend/internal/pkg/apperror"
	"github.com/ignatzorin/hive-backend/internal/ratelimit"
	"github.com/ignatzorin/hive-backend/internal/repository"
	inputvalidation "github.com/ignatzorin/hive-backend/internal/validation"
)

// BidService ставки пчёл на открытые задания.
type BidService struct {
	*base
}

// BidInput предложение пчелы.
type BidInput struct {
	Proposal       string
	EstimatedHours float64
	HoneyRequested *int64
}

func (in BidInput) validate() error {
	if err := inputvalidation.ValidateProposal(in.Proposal, in.EstimatedHours); err != nil {
		return invalid(err)
	}
	if in.HoneyRequested != nil && *in.HoneyRequested < 0 {
		return validation("запрошенная награда не может быть отрицательной")
	}
	return nil
}

// PlaceBid создаёт ставку. Порядок проверок: статус задания, дубликат, кулдаун.
func (s *BidService) PlaceBid(ctx context.Context, actor models.Actor, gigID uuid.UUID, in BidInput) (*models.Bid, error) {
	if !actor.IsBee() {
		return nil, apperror.ErrForbidden
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	if err := s.checkBidAllowed(ctx, s.store, gigID, actor.ID); err != nil {
		return nil, err
	}
	release, err := s.consumeCooldown(ctx, actor, ratelimit.ActionPlaceBid, s.cfg.BidCooldown)
	if err != nil {
		return nil, err
	}

	var bid *models.Bid
	err = s.inTx(ctx, func(tx repository.Tx, out *[]notify.Event) error {
		// Повторная проверка: задание могло закрыться, пока шёл кулдаун.
		if err := s.checkBidAllowed(ctx, tx, gigID, actor.ID); err != nil {
			return err
		}
		gig, err := getGig(ctx, tx, gigID)
		if err != nil {
			return err
		}

		now := s.now()
		bid = &models.Bid{
			ID:             uuid.New(),
			GigID:          gigID,
			BeeID:          actor.ID,
			Proposal:       strings.TrimSpace(in.Proposal),
			EstimatedHours: in.EstimatedHours,
			HoneyRequested: in.HoneyRequested,
			Status:         models.BidStatusPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.CreateBid(ctx, bid); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperror.ErrDuplicateBid
			}
			return internal(err)
		}

		*out = append(*out, notify.Event{
			Recipient: models.Human(gig.OwnerID),
			Kind:      notify.EventBidPlaced,
			Payload:   map[string]any{"gig_id": gig.ID, "bid_id": bid.ID, "bee_id": actor.ID},
		})
		return nil
	})
	if err != nil {
		// Ставка не создана: окно кулдауна возвращается пчеле.
		release()
		return nil, err
	}

	opLog("bid.place", actor).WithField("gig_id", gigID).WithField("bid_id", bid.ID).Info("bid placed")
	return bid, nil
}

func (s *BidService) checkBidAllowed(ctx context.Context, tx repository.Tx, gigID, beeID uuid.UUID) error {
	gig, err := getGig(ctx, tx, gigID)
	if err != nil {
		return err
	}
	if gig.Status != models.GigStatusOpen {
		return apperror.Newf(apperror.ErrCodeInvalidTransition, "задание в статусе %s не принимает ставки", gig.Status)
	}
	_, err = tx.FindLiveBid(ctx, gigID, beeID)
	switch {
	case err == nil:
		return apperror.ErrDuplicateBid
	case errors.Is(err, repository.ErrNotFound):
		return nil
	default:
		return internal(err)
	}
}

// UpdateBid меняет условия pending ставки на открытом задании.
func (s *BidService) UpdateBid(ctx context.Context, actor models.Actor, bidID uuid.UUID, in BidInput) (*models.Bid, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var bid *models.Bid
	err := s.inTx(ctx, func(tx repository.Tx, _ *[]notify.Event) error {
		var err error
		bid, err = tx.GetBid(ctx, bidID)
		if err != nil {
			return storeErr(err, apperror.ErrBidNotFound)
		}
		if !actor.IsBee() || bid.BeeID != actor.ID {
			return apperror.ErrForbidden
		}
		if !bid.IsPending() {
			return apperror.Newf(apperror.ErrCodeInvalidState, "ставку в статусе %s нельзя изменить", bid.Status)
		}
		gig, err := getGig(ctx, tx, bid.GigID)
		if err != nil {
			return err
		}
		if gig.Status != models.GigStatusOpen {
			return apperror.Newf(apperror.ErrCodeInvalidTransition, "задание в статусе %s", gig.Status)
		}

		bid.Proposal = strings.TrimSpace(in.Proposal)
		bid.EstimatedHours = in.EstimatedHours
		bid.HoneyRequested = in.HoneyRequested
		bid.UpdatedAt = s.now()
		return storeErr(tx.SaveBid(ctx, bid, models.BidStatusPending), apperror.ErrBidNotFound)
	})
	if err != nil {
		return nil, err
	}
	return bid, nil
}

// WithdrawBid отзывает pending ставку. Уже рассмотренная ставка даёт NotFound.
func (s *BidService) WithdrawBid(ctx context.Context, actor models.Actor, bidID uuid.UUID) (*models.Bid, error) {
	var bid *models.Bid
	err := s.inTx(ctx, func(tx repository.Tx, _ *[]notify.Event) error {
		var err error
		bid, err = tx.GetBid(ctx, bidID)
		if err != nil {
			return storeErr(err, apperror.ErrBidNotFound)
		}
		if !actor.IsBee() || bid.BeeID != actor.ID {
			return apperror.ErrForbidden
		}
		if !bid.IsPending() {
			return apperror.ErrBidNotFound
		}

		bid.Status = models.BidStatusWithdrawn
		bid.UpdatedAt = s.now()
		if err := tx.SaveBid(ctx, bid, models.BidStatusPending); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return apperror.ErrBidNotFound
			}
			return storeErr(err, apperror.ErrBidNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	opLog("bid.withdraw", actor).WithField("bid_id", bid.ID).Info("bid withdrawn")
	return bid, nil
}

// AcceptBid атомарно: ставка accepted, остальные pending rejected, назначение working, задание in_progress.
// Второй параллельный accept на том же задании проигрывает CAS и получает InvalidTransition.
func (s *BidService) AcceptBid(ctx context.Context, actor models.Actor, gigID, bidID uuid.UUID) (*models.Assignment, error) {
	var assignment *models.Assignment
	err := s.inTx(ctx, func(tx repository.Tx, out *[]notify.Event) error {
		gig, err := getGig(ctx, tx, gigID)
		if err != nil {
			return err
		}
		if !gig.IsOwnedBy(actor) {
			return apperror.ErrForbidden
		}
		if gig.Status != models.GigStatusOpen {
			return apperror.Newf(apperror.ErrCodeInvalidTransition, "принять ставку в статусе %s нельзя", gig.Status)
		}

		bid, err := tx.GetBid(ctx, bidID)
		if err != nil {
			return storeErr(err, apperror.ErrBidNotFound)
		}
		if bid.GigID != gig.ID {
			return apperror.ErrBidNotFound
		}
		if !bid.IsPending() {
			return apperror.Newf(apperror.ErrCodeInvalidTransition, "ставка в статусе %s", bid.Status)
		}

		bids, err := tx.ListBidsByGig(ctx, gig.ID)
		if err != nil {
			return internal(err)
		}

		now := s.now()
		if err := transition(ctx, tx, gig, models.GigStatusInProgress, now); err != nil {
			return err
		}

		bid.Status = models.BidStatusAccepted
		bid.UpdatedAt = now
		if err := tx.SaveBid(ctx, bid, models.BidStatusPending); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperror.New(apperror.ErrCodeInvalidTransition, "на задание уже принята ставка")
			}
			return storeErr(err, apperror.ErrBidNotFound)
		}
		if _, err := tx.RejectPendingBids(ctx, gig.ID, bid.ID, now); err != nil {
			return internal(err)
		}

		assignment = &models.Assignment{
			ID:         uuid.New(),
			GigID:      gig.ID,
			BeeID:      bid.BeeID,
			BidID:      bid.ID,
			Status:     models.AssignmentStatusWorking,
			AssignedAt: now,
			UpdatedAt:  now,
		}
		if err := tx.CreateAssignment(ctx, assignment); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperror.New(apperror.ErrCodeInvalidTransition, "у задания уже есть активное назначение")
			}
			return internal(err)
		}

		*out = append(*out, notify.Event{
			Recipient: models.Bee(bid.BeeID),
			Kind:      notify.EventBidAccepted,
			Payload:   map[string]any{"gig_id": gig.ID, "bid_id": bid.ID, "assignment_id": assignment.ID},
		})
		for _, other := range bids {
			if other.ID != bid.ID && other.Status == models.BidStatusPending {
				*out = append(*out, notify.Event{
					Recipient: models.Bee(other.BeeID),
					Kind:      notify.EventBidRejected,
					Payload:   map[string]any{"gig_id": gig.ID, "bid_id": other.ID},
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	opLog("bid.accept", actor).WithField("gig_id", gigID).WithField("bid_id", bidID).Info("bid accepted")
	return assignment, nil
}

// ListBids владелец видит все ставки задания, пчела только свои.
func (s *BidService) ListBids(ctx context.Context, actor models.Actor, gigID uuid.UUID) ([]models.Bid, error) {
	gig, err := getGig(ctx, s.store, gigID)
	if err != nil {
		return nil, err
	}
	if !gig.IsOwnedBy(actor) && !actor.IsBee() && !actor.IsArbiter() {
		return nil, apperror.ErrForbidden
	}

	bids, err := s.store.ListBidsByGig(ctx, gigID)
	if err != nil {
		return nil, internal(err)
	}
	if !actor.IsBee() {
		return bids, nil
	}

	own := make([]models.Bid, 0, 1)
	for _, b := range bids {
		if b.BeeID == actor.ID {
			own = append(own, b)
		}
	}
	return own, nil
}
