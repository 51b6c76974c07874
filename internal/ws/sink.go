package ws

import (
	"context"

	"github.com/ignatzorin/hive-backend/internal/notify"
)

// Sink доставляет уведомления очереди notify подключённым участникам.
type Sink struct {
	hub *Hub
}

func NewSink(hub *Hub) *Sink {
	return &Sink{hub: hub}
}

// Deliver офлайн-получатель не считается ошибкой.
func (s *Sink) Deliver(ctx context.Context, ev notify.Event) error {
	if s.hub.Connected(ev.Recipient) == 0 {
		return nil
	}
	return s.hub.BroadcastTo(ctx, ev.Recipient, ev.Kind, ev.Payload)
}
