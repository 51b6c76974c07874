package service

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ignatzorin/hive-backend/internal/goroutine"
	"github.com/ignatzorin/hive-backend/internal/models"
	"github.com/ignatzorin/hive-backend/internal/notify"
	"github.com/ignatzorin/hive-backend/internal/pkg/apperror"
	"github.com/ignatzorin/hive-backend/internal/repository"
)

// AutoApprovalService периодическая приёмка результатов, на которые владелец не ответил.
type AutoApprovalService struct {
	*base
	deliverables *DeliverableService
}

// SweepReport итог одного прогона.
type SweepReport struct {
	Scanned  int           `json:"scanned"`
	Approved int           `json:"approved"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Took     time.Duration `json:"took"`
}

// Sweep принимает просроченные результаты. Каждый кандидат перепроверяется в своей транзакции,
// поэтому параллельные и повторные прогоны безопасны: уже закрытое задание просто пропускается.
// Кандидаты читаются страницами по (created_at, id) до короткой страницы. Ошибка одного кандидата
// не прерывает пакет, а сам кандидат откладывается на SweepRetryBackoff.
func (s *AutoApprovalService) Sweep(ctx context.Context) (SweepReport, error) {
	started := s.now()
	actor := models.AutoApprovalActor()
	log := opLog("auto_approval.sweep", actor)

	batch := s.cfg.SweepBatch
	if batch <= 0 {
		batch = 100
	}
	parallelism := s.cfg.SweepParallelism
	if parallelism <= 0 {
		parallelism = 1
	}

	var (
		scanned                   int
		approved, skipped, failed atomic.Int64
		listErr                   error
	)
	query := repository.AutoApprovalQuery{
		Before: s.deliverables.autoApprovalCutoff(started),
		Now:    started,
		Limit:  batch,
	}
	for ctx.Err() == nil {
		candidates, err := s.store.ListAutoApprovalCandidates(ctx, query)
		if err != nil {
			listErr = err
			break
		}
		scanned += len(candidates)

		var g errgroup.Group
		g.SetLimit(parallelism)
		for _, d := range candidates {
			d := d
			g.Go(func() error {
				switch s.sweepOne(ctx, actor, d) {
				case sweepApproved:
					approved.Add(1)
				case sweepSkipped:
					skipped.Add(1)
				default:
					failed.Add(1)
				}
				return nil
			})
		}
		_ = g.Wait()

		if len(candidates) < batch {
			break
		}
		last := candidates[len(candidates)-1]
		query.After = &repository.CandidateCursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}

	report := SweepReport{
		Scanned:  scanned,
		Approved: int(approved.Load()),
		Skipped:  int(skipped.Load()),
		Failed:   int(failed.Load()),
		Took:     s.now().Sub(started),
	}
	log.WithField("scanned", report.Scanned).
		WithField("approved", report.Approved).
		WithField("skipped", report.Skipped).
		WithField("failed", report.Failed).
		Info("sweep finished")

	if listErr != nil {
		return report, internal(listErr)
	}
	if err := ctx.Err(); err != nil {
		return report, internal(err)
	}
	return report, nil
}

type sweepOutcome int

const (
	sweepApproved sweepOutcome = iota
	sweepSkipped
	sweepFailed
)

// sweepOne обрабатывает одного кандидата. Panic считается ошибкой кандидата.
func (s *AutoApprovalService) sweepOne(ctx context.Context, actor models.Actor, d models.Deliverable) sweepOutcome {
	entry := opLog("auto_approval.sweep", actor).WithField("gig_id", d.GigID).WithField("deliverable_id", d.ID)

	var err error
	ok := goroutine.NewRecoveryHandler(entry).Run("auto_approval.candidate", func() {
		err = s.inTx(ctx, func(tx repository.Tx, out *[]notify.Event) error {
			_, err := s.deliverables.approveInTx(ctx, tx, actor, d.GigID, d.ID, out)
			return err
		})
	})

	outcome := sweepFailed
	switch {
	case !ok:
		entry.Error("auto-approval panicked")
	case err == nil:
		entry.Info("deliverable auto-approved")
		return sweepApproved
	case isStaleCandidate(err):
		entry.WithField("code", apperror.CodeOf(err)).Debug("candidate skipped")
		outcome = sweepSkipped
	default:
		entry.WithError(err).Error("auto-approval failed")
	}

	// Кандидат, который остался submitted, не должен занимать голову следующих выборок.
	if backoff := s.cfg.SweepRetryBackoff; backoff > 0 {
		if err := s.store.DeferAutoApproval(ctx, d.ID, s.now().Add(backoff)); err != nil {
			entry.WithError(err).Warn("failed to defer candidate")
		}
	}
	return outcome
}

// isStaleCandidate состояние изменилось после выборки: кто-то успел принять, вернуть или оспорить результат.
func isStaleCandidate(err error) bool {
	switch apperror.CodeOf(err) {
	case apperror.ErrCodeInvalidTransition, apperror.ErrCodeInvalidState, apperror.ErrCodeNotFound:
		return true
	default:
		return false
	}
}
