package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefundClient_SendsIdempotencyKey(t *testing.T) {
	var gotKey, gotAuth string
	var gotBody RefundRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/refunds", r.URL.Path)
		gotKey = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"status":"succeeded"}`))
	}))
	defer srv.Close()

	c := NewRefundClient(srv.URL+"/", "key-1")
	err := c.Refund(context.Background(), RefundRequest{PaymentRef: "pi_1", Amount: 2500, IdempotencyKey: "refund:abc"})
	require.NoError(t, err)

	assert.Equal(t, "refund:abc", gotKey)
	assert.Equal(t, "Bearer key-1", gotAuth)
	assert.Equal(t, "pi_1", gotBody.PaymentRef)
	assert.Equal(t, int64(2500), gotBody.Amount)
}

func TestRefundClient_Failures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"5xx": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		},
		"не подтверждён": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"pending"}`))
		},
		"мусор": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()
			err := NewRefundClient(srv.URL, "").Refund(context.Background(), RefundRequest{PaymentRef: "pi", Amount: 1})
			assert.Error(t, err)
		})
	}

	err := NewRefundClient("", "").Refund(context.Background(), RefundRequest{})
	assert.Error(t, err)
}

func TestParseCaptureEvent(t *testing.T) {
	secret := "whsec"
	ev := CaptureEvent{Type: EventPaymentCaptured, GigID: uuid.New(), OwnerID: uuid.New(), Amount: 5000, PaymentRef: "pi_9"}
	body, err := json.Marshal(ev)
	require.NoError(t, err)

	parsed, err := ParseCaptureEvent(secret, body, Sign(secret, body))
	require.NoError(t, err)
	assert.Equal(t, ev, *parsed)

	parsed, err = ParseCaptureEvent(secret, body, "sha256="+Sign(secret, body))
	require.NoError(t, err)
	assert.Equal(t, ev.GigID, parsed.GigID)

	_, err = ParseCaptureEvent(secret, body, Sign("other", body))
	assert.ErrorIs(t, err, ErrBadSignature)

	_, err = ParseCaptureEvent(secret, body, "not-hex")
	assert.ErrorIs(t, err, ErrBadSignature)

	tampered := append([]byte{}, body...)
	tampered[len(tampered)-2] = 'x'
	_, err = ParseCaptureEvent(secret, tampered, Sign(secret, body))
	assert.ErrorIs(t, err, ErrBadSignature)
}
