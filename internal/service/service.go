package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/hive-backend/internal/config"
	"github.com/ignatzorin/hive-backend/internal/domain/valueobject"
	"github.com/ignatzorin/hive-backend/internal/logger"
	"github.com/ignatzorin/hive-backend/internal/models"
	"github.com/ignatzorin/hive-backend/internal/notify"
	"github.com/ignatzorin/hive-backend/internal/payment"
	"github.com/ignatzorin/hive-backend/internal/pkg/apperror"
	"github.com/ignatzorin/hive-backend/internal/ratelimit"
	"github.com/ignatzorin/hive-backend/internal/repository"
)

// Clock источник времени движка, подменяется в тестах.
type Clock func() time.Time

// Notifier очередь уведомлений. Notify не блокирует и не возвращает ошибок.
type Notifier interface {
	Notify(ev notify.Event)
}

// Refunder внешний возврат средств. nil означает подтверждённый возврат.
type Refunder interface {
	Refund(ctx context.Context, req payment.RefundRequest) error
}

// Config параметры движка.
type Config struct {
	config.EngineConfig
	BidCooldown            time.Duration
	DisputeMessageCooldown time.Duration
}

// DefaultConfig значения по умолчанию.
func DefaultConfig() Config {
	return Config{
		EngineConfig: config.DefaultEngineConfig(),
		BidCooldown:  5 * time.Minute,
	}
}

// Deps зависимости движка.
type Deps struct {
	Store    repository.Store
	Limiter  ratelimit.Limiter
	Refunder Refunder
	Notifier Notifier
	Clock    Clock
	Config   Config
}

// Services все сервисы движка. HTTP, CLI и таймер работают только через них.
type Services struct {
	Gigs         *GigService
	Bids         *BidService
	Deliverables *DeliverableService
	AutoApproval *AutoApprovalService
	Escrow       *EscrowService
	Disputes     *DisputeService
	Reputation   *ReputationService
}

// New собирает сервисы.
func New(deps Deps) *Services {
	b := newBase(deps)
	escrow := &EscrowService{base: b}
	deliverables := &DeliverableService{base: b}
	return &Services{
		Gigs:         &GigService{base: b, escrow: escrow},
		Bids:         &BidService{base: b},
		Deliverables: deliverables,
		AutoApproval: &AutoApprovalService{base: b, deliverables: deliverables},
		Escrow:       escrow,
		Disputes:     &DisputeService{base: b, escrow: escrow},
		Reputation:   &ReputationService{base: b},
	}
}

type noopNotifier struct{}

func (noopNotifier) Notify(notify.Event) {}

// base общие зависимости и помощники сервисов.
type base struct {
	store    repository.Store
	limiter  ratelimit.Limiter
	refunder Refunder
	notifier Notifier
	clock    Clock
	cfg      Config
}

func newBase(deps Deps) *base {
	b := &base{
		store:    deps.Store,
		limiter:  deps.Limiter,
		refunder: deps.Refunder,
		notifier: deps.Notifier,
		clock:    deps.Clock,
		cfg:      deps.Config,
	}
	if b.notifier == nil {
		b.notifier = noopNotifier{}
	}
	if b.clock == nil {
		b.clock = time.Now
	}
	if b.limiter == nil {
		b.limiter = ratelimit.NewMemoryLimiter(func() time.Time { return b.clock() })
	}
	return b
}

func (b *base) now() time.Time {
	return b.clock().UTC()
}

// emit отправляет уведомления после фиксации транзакции.
func (b *base) emit(events []notify.Event) {
	now := b.now()
	for _, ev := range events {
		if ev.CreatedAt.IsZero() {
			ev.CreatedAt = now
		}
		b.notifier.Notify(ev)
	}
}

// inTx выполняет fn в транзакции и только после фиксации рассылает собранные уведомления.
func (b *base) inTx(ctx context.Context, fn func(tx repository.Tx, out *[]notify.Event) error) error {
	var events []notify.Event
	err := b.store.InTx(ctx, func(tx repository.Tx) error {
		events = events[:0]
		return fn(tx, &events)
	})
	if err != nil {
		return internal(err)
	}
	b.emit(events)
	return nil
}

// consumeCooldown расходует кулдаун и возвращает функцию отмены на случай, если действие не состоялось.
func (b *base) consumeCooldown(ctx context.Context, actor models.Actor, action string, window time.Duration) (func(), error) {
	key := ratelimit.Key{EntityType: string(actor.Type), EntityID: actor.ID.String(), Action: action}
	d, err := b.limiter.TryConsume(ctx, key, window)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось проверить ограничение частоты")
	}
	if !d.Allowed {
		return nil, apperror.RateLimited("слишком частые действия, повторите позже", d.RetryAfter)
	}
	return func() {
		if err := b.limiter.Release(context.WithoutCancel(ctx), key, d); err != nil {
			opLog("cooldown.release", actor).WithField("action", action).WithError(err).Warn("cooldown not released")
		}
	}, nil
}

// transition переводит задание по ребру графа. CAS по (status, version) в хранилище
// отсекает параллельного победителя: проигравший получает InvalidTransition.
func transition(ctx context.Context, tx repository.Tx, gig *models.Gig, to models.GigStatus, now time.Time) error {
	from := gig.Status
	if !valueobject.CanTransition(from, to) {
		return apperror.Newf(apperror.ErrCodeInvalidTransition, "переход %s → %s недопустим", from, to)
	}
	gig.Status = to
	gig.UpdatedAt = now
	if err := tx.SaveGig(ctx, gig, from); err != nil {
		gig.Status = from
		return storeErr(err, apperror.ErrGigNotFound)
	}
	return nil
}

// storeErr переводит ошибки хранилища в типизированные ошибки движка.
func storeErr(err error, notFound *apperror.AppError) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return notFound
	case errors.Is(err, repository.ErrConflict):
		return apperror.Wrap(err, apperror.ErrCodeInvalidTransition, "состояние изменилось параллельно, повторите запрос")
	default:
		return internal(err)
	}
}

// internal пропускает типизированные ошибки, остальное считает сбоем инфраструктуры.
func internal(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "операция прервана")
	}
	return apperror.Wrap(err, apperror.ErrCodeInternal, "внутренняя ошибка хранилища")
}

func validation(msg string) error {
	return apperror.New(apperror.ErrCodeValidation, msg)
}

// invalid оборачивает ошибку проверки ввода в VALIDATION_ERROR.
func invalid(err error) error {
	if err == nil {
		return nil
	}
	return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
}

func opLog(op string, actor models.Actor) *logrus.Entry {
	return logger.Op(op).WithField("actor", actor.String())
}

func getGig(ctx context.Context, tx repository.Tx, id uuid.UUID) (*models.Gig, error) {
	gig, err := tx.GetGig(ctx, id)
	if err != nil {
		return nil, storeErr(err, apperror.ErrGigNotFound)
	}
	return gig, nil
}

// escrowOf escrow задания или nil, если его нет (бесплатное задание).
func escrowOf(ctx context.Context, tx repository.Tx, gigID uuid.UUID) (*models.Escrow, error) {
	e, err := tx.GetEscrowByGig(ctx, gigID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, internal(err)
	}
	return e, nil
}

// currentAssignment незакрытое назначение или nil.
func currentAssignment(ctx context.Context, tx repository.Tx, gigID uuid.UUID) (*models.Assignment, error) {
	a, err := tx.CurrentAssignment(ctx, gigID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, internal(err)
	}
	return a, nil
}

// isParty владелец задания или пчела текущего назначения.
func isParty(actor models.Actor, gig *models.Gig, a *models.Assignment) bool {
	if gig.IsOwnedBy(actor) {
		return true
	}
	return a != nil && a.IsHeldBy(actor)
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }
