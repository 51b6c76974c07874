package payment

import (
	"context"

	"github.com/ignatzorin/hive-backend/internal/logger"
)

// DevRefunder подтверждает любой возврат и только пишет его в лог.
// Используется вне production, когда PAYMENT_API_URL не задан.
type DevRefunder struct{}

func (DevRefunder) Refund(_ context.Context, req RefundRequest) error {
	logger.Op("payment.refund").WithField("payment_ref", req.PaymentRef).
		WithField("amount", req.Amount).
		WithField("idempotency_key", req.IdempotencyKey).
		Warn("refund confirmed without payment gateway")
	return nil
}
