package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// SignatureHeader заголовок с HMAC-SHA256 тела запроса в hex.
const SignatureHeader = "X-Payment-Signature"

var ErrBadSignature = errors.New("payment: неверная подпись вебхука")

// CaptureEvent событие "платёж подтверждён".
type CaptureEvent struct {
	Type       string    `json:"type"`
	GigID      uuid.UUID `json:"gig_id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	Amount     int64     `json:"amount"`
	PaymentRef string    `json:"payment_ref"`
}

// EventPaymentCaptured единственный тип события, который создаёт escrow.
const EventPaymentCaptured = "payment.captured"

// Sign подпись тела секретом, используется шлюзом и в тестах.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature сравнение за постоянное время.
func VerifySignature(secret string, body []byte, signature string) error {
	got, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(signature), "sha256="))
	if err != nil || len(got) == 0 {
		return ErrBadSignature
	}
	want, _ := hex.DecodeString(Sign(secret, body))
	if !hmac.Equal(got, want) {
		return ErrBadSignature
	}
	return nil
}

// ParseCaptureEvent проверяет подпись и разбирает событие.
func ParseCaptureEvent(secret string, body []byte, signature string) (*CaptureEvent, error) {
	if err := VerifySignature(secret, body, signature); err != nil {
		return nil, err
	}
	var ev CaptureEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("payment: некорректное тело вебхука: %w", err)
	}
	return &ev, nil
}
