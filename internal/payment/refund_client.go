package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RefundRequest возврат средств по платежу. Amount в минимальных единицах валюты.
type RefundRequest struct {
	PaymentRef     string `json:"payment_ref"`
	Amount         int64  `json:"amount"`
	IdempotencyKey string `json:"-"`
}

// RefundClient вызывает внешний платёжный шлюз. Повтор с тем же ключом идемпотентности
// не возвращает деньги второй раз.
type RefundClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewRefundClient создаёт экземпляр клиента.
func NewRefundClient(baseURL, apiKey string) *RefundClient {
	return &RefundClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type refundResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Refund возвращает nil только при подтверждённом возврате.
func (c *RefundClient) Refund(ctx context.Context, req RefundRequest) error {
	if c.baseURL == "" {
		return fmt.Errorf("payment: PAYMENT_API_URL не настроен")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("payment: не удалось сериализовать запрос: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/refunds", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("payment: не удалось создать запрос: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("payment: запрос возврата не выполнен: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("payment: шлюз ответил %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed refundResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("payment: некорректный ответ шлюза: %w", err)
	}
	if parsed.Status != "succeeded" {
		return fmt.Errorf("payment: возврат не подтверждён: status=%q %s", parsed.Status, parsed.Error)
	}
	return nil
}
