// Package notify асинхронная очередь исходящих уведомлений. Постановка в очередь не блокирует
// вызывающего, ошибки доставки только логируются.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/hive-backend/internal/goroutine"
	"github.com/ignatzorin/hive-backend/internal/logger"
	"github.com/ignatzorin/hive-backend/internal/models"
)

// Виды событий.
const (
	EventBidPlaced                    = "bid.placed"
	EventBidAccepted                  = "bid.accepted"
	EventBidRejected                  = "bid.rejected"
	EventDeliverableSubmitted         = "deliverable.submitted"
	EventDeliverableApproved          = "deliverable.approved"
	EventDeliverableRevisionRequested = "deliverable.revision_requested"
	EventDeliverableRejected          = "deliverable.rejected"
	EventDisputeOpened                = "dispute.opened"
	EventDisputeMessage               = "dispute.message"
	EventDisputeResolved              = "dispute.resolved"
	EventGigCancelled                 = "gig.cancelled"
	EventGigPaid                      = "gig.paid"
)

// Event уведомление одному получателю.
type Event struct {
	Recipient models.Actor `json:"recipient"`
	Kind      string       `json:"kind"`
	Payload   any          `json:"payload,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// Sink канал доставки (websocket, лог, e-mail шлюз).
type Sink interface {
	Deliver(ctx context.Context, ev Event) error
}

// Dispatcher ограниченная очередь с пулом воркеров.
type Dispatcher struct {
	queue   chan Event
	sinks   []Sink
	workers int

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher создаёт диспетчер. Воркеры стартуют в Start.
func NewDispatcher(buffer, workers int, sinks ...Sink) *Dispatcher {
	if buffer <= 0 {
		buffer = 1
	}
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{
		queue:   make(chan Event, buffer),
		sinks:   sinks,
		workers: workers,
	}
}

// Start запускает воркеры. Они работают до Close.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		goroutine.SafeGo("notify-worker", func() {
			defer d.wg.Done()
			for ev := range d.queue {
				d.deliver(ctx, ev)
			}
		})
	}
}

// Notify ставит событие в очередь. Переполненная или закрытая очередь отбрасывает событие.
func (d *Dispatcher) Notify(ev Event) {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	select {
	case d.queue <- ev:
	default:
		logger.Log.WithFields(logrus.Fields{
			"kind":      ev.Kind,
			"recipient": ev.Recipient.String(),
		}).Warn("notify: очередь переполнена, событие отброшено")
	}
}

// Close прекращает приём и ждёт, пока воркеры разберут очередь.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) {
	for _, sink := range d.sinks {
		// panic одного канала не мешает остальным.
		goroutine.DefaultRecoveryHandler.Run("notify-sink", func() {
			if err := sink.Deliver(ctx, ev); err != nil {
				logger.Log.WithError(err).WithFields(logrus.Fields{
					"kind":      ev.Kind,
					"recipient": ev.Recipient.String(),
				}).Warn("notify: доставка не удалась")
			}
		})
	}
}

// LogSink пишет уведомления в лог. Используется в development и как запасной канал.
type LogSink struct{}

func (LogSink) Deliver(_ context.Context, ev Event) error {
	logger.Log.WithFields(logrus.Fields{
		"kind":      ev.Kind,
		"recipient": ev.Recipient.String(),
	}).Info("notification")
	return nil
}

// SinkFunc адаптер функции к Sink.
type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) Deliver(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}
