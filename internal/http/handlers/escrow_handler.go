package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/hive-backend/internal/http/handlers/common"
	"github.com/ignatzorin/hive-backend/internal/payment"
	"github.com/ignatzorin/hive-backend/internal/pkg/apperror"
	"github.com/ignatzorin/hive-backend/internal/service"
)

// maxWebhookBody тело вебхука платёжного шлюза небольшое.
const maxWebhookBody = 64 << 10

type EscrowHandler struct {
	escrow        *service.EscrowService
	webhookSecret string
}

func NewEscrowHandler(escrow *service.EscrowService, webhookSecret string) *EscrowHandler {
	return &EscrowHandler{escrow: escrow, webhookSecret: webhookSecret}
}

// GetEscrow GET /gigs/:id/escrow
func (h *EscrowHandler) GetEscrow(c *gin.Context) {
	actor, gigID, ok := actorAndID(c, "id")
	if !ok {
		return
	}

	escrow, err := h.escrow.GetEscrow(c.Request.Context(), actor, gigID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, escrow)
}

// Release POST /gigs/:id/escrow/release
func (h *EscrowHandler) Release(c *gin.Context) {
	actor, gigID, ok := actorAndID(c, "id")
	if !ok {
		return
	}

	escrow, err := h.escrow.Release(c.Request.Context(), actor, gigID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, escrow)
}

// Refund POST /gigs/:id/escrow/refund
func (h *EscrowHandler) Refund(c *gin.Context) {
	actor, gigID, ok := actorAndID(c, "id")
	if !ok {
		return
	}

	escrow, err := h.escrow.Refund(c.Request.Context(), actor, gigID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, escrow)
}

// PaymentWebhook POST /webhooks/payments
// Шлюз повторяет доставку до ответа 2xx, поэтому повтор уже обработанного события отвечает 200.
func (h *EscrowHandler) PaymentWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	body, err := c.GetRawData()
	if err != nil {
		common.Fail(c, apperror.Wrap(err, apperror.ErrCodeValidation, "не удалось прочитать тело вебхука"))
		return
	}

	ev, err := payment.ParseCaptureEvent(h.webhookSecret, body, c.GetHeader(payment.SignatureHeader))
	switch {
	case errors.Is(err, payment.ErrBadSignature):
		common.Fail(c, apperror.Wrap(err, apperror.ErrCodeUnauthorized, "неверная подпись вебхука"))
		return
	case err != nil:
		common.Fail(c, apperror.Wrap(err, apperror.ErrCodeValidation, "некорректное тело вебхука"))
		return
	}

	if ev.Type != payment.EventPaymentCaptured {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	escrow, err := h.escrow.CreateHeld(c.Request.Context(), service.CaptureInput{
		GigID:      ev.GigID,
		OwnerID:    ev.OwnerID,
		Amount:     ev.Amount,
		PaymentRef: ev.PaymentRef,
	})
	if errors.Is(err, apperror.ErrEscrowAlreadyExists) {
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		return
	}
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, escrow)
}
