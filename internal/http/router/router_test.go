package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/hive-backend/internal/config"
	"github.com/ignatzorin/hive-backend/internal/http/handlers"
	"github.com/ignatzorin/hive-backend/internal/http/middleware"
	"github.com/ignatzorin/hive-backend/internal/identity"
	"github.com/ignatzorin/hive-backend/internal/logger"
	"github.com/ignatzorin/hive-backend/internal/models"
	"github.com/ignatzorin/hive-backend/internal/payment"
	"github.com/ignatzorin/hive-backend/internal/repository/memory"
	"github.com/ignatzorin/hive-backend/internal/service"
)

const webhookSecret = "test-webhook-secret"

type okRefunder struct{}

func (okRefunder) Refund(context.Context, payment.RefundRequest) error { return nil }

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testServer struct {
	t      *testing.T
	engine *gin.Engine
	tokens *identity.TokenManager
	clock  *testClock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger.SetOutput(io.Discard)

	clock := &testClock{now: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
	svc := service.New(service.Deps{
		Store:    memory.NewStore(),
		Refunder: okRefunder{},
		Clock:    clock.Now,
		Config:   service.DefaultConfig(),
	})
	tokens := identity.NewTokenManager("test-jwt-secret", time.Hour)
	cfg := &config.Config{
		Env:             "test",
		RateLimitLimit:  1000,
		RateLimitPeriod: time.Minute,
	}

	h := Handlers{
		Health:       handlers.NewHealthHandler(nil, config.StorageDriverMemory),
		Gigs:         handlers.NewGigHandler(svc.Gigs),
		Bids:         handlers.NewBidHandler(svc.Bids),
		Deliverables: handlers.NewDeliverableHandler(svc.Deliverables),
		Escrow:       handlers.NewEscrowHandler(svc.Escrow, webhookSecret),
		Disputes:     handlers.NewDisputeHandler(svc.Disputes),
		Stats:        handlers.NewStatsHandler(svc.Reputation, svc.AutoApproval),
	}

	return &testServer{
		t:      t,
		engine: SetupRouter(cfg, h, tokens, nil),
		tokens: tokens,
		clock:  clock,
	}
}

func (s *testServer) do(method, path string, actor *models.Actor, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		token, err := s.tokens.Issue(*actor)
		require.NoError(s.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return string(decode[middleware.ErrorResponse](t, w).Error.Code)
}

func human() models.Actor { return models.Human(uuid.New()) }
func bee() models.Actor   { return models.Bee(uuid.New()) }

func arbiter() models.Actor {
	a := models.Human(uuid.New())
	a.Role = models.RoleArbiter
	return a
}

func (s *testServer) createGig(owner models.Actor, price int64, publish bool) models.Gig {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/gigs", &owner, map[string]any{
		"title":       "Логотип для пасеки",
		"description": "Векторный логотип в двух цветах",
		"price":       price,
		"publish":     publish,
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Gig](s.t, w)
}

func (s *testServer) placeBid(gigID uuid.UUID, b models.Actor) models.Bid {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/gigs/"+gigID.String()+"/bids", &b, map[string]any{
		"proposal":        "Сделаю за вечер",
		"estimated_hours": 3,
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Bid](s.t, w)
}

func (s *testServer) assigned(owner models.Actor) (models.Gig, models.Actor) {
	s.t.Helper()
	gig := s.createGig(owner, 0, true)
	b := bee()
	bid := s.placeBid(gig.ID, b)
	w := s.do(http.MethodPost, "/api/gigs/"+gig.ID.String()+"/bids/"+bid.ID.String()+"/accept", &owner, nil)
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	return gig, b
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[handlers.HealthResponse](t, w)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, config.StorageDriverMemory, resp.Checks["storage"])
}

func TestRouter_CreateGig_Unauthorized(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/gigs", nil, map[string]any{"title": "x", "description": "y"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, w))
}

func TestRouter_GetGig_InvalidID(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/gigs/invalid-uuid", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))

	w = s.do(http.MethodGet, "/api/gigs/"+uuid.NewString(), nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, w))
}

func TestRouter_FreeGigLifecycle(t *testing.T) {
	s := newTestServer(t)
	owner := human()
	gig, b := s.assigned(owner)

	w := s.do(http.MethodPost, "/api/gigs/"+gig.ID.String()+"/deliverables", &b, map[string]any{
		"title":   "Логотип v1",
		"content": "svg внутри",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	d := decode[models.Deliverable](t, w)

	w = s.do(http.MethodPost, "/api/gigs/"+gig.ID.String()+"/deliverables/"+d.ID.String()+"/approve", &b, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/gigs/"+gig.ID.String()+"/deliverables/"+d.ID.String()+"/approve", &owner, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.DeliverableStatusApproved, decode[models.Deliverable](t, w).Status)

	w = s.do(http.MethodGet, "/api/gigs/"+gig.ID.String(), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.GigStatusCompleted, decode[models.Gig](t, w).Status)

	w = s.do(http.MethodGet, "/api/stats/bee/"+b.ID.String(), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[models.PartyStats](t, w)
	assert.Equal(t, 1, stats.GigsCompleted)
	assert.Equal(t, 10, stats.Reputation)
}

func TestRouter_PlaceBid_Conflicts(t *testing.T) {
	s := newTestServer(t)
	owner := human()
	gig := s.createGig(owner, 0, true)
	b := bee()
	s.placeBid(gig.ID, b)

	w := s.do(http.MethodPost, "/api/gigs/"+gig.ID.String()+"/bids", &b, map[string]any{
		"proposal":        "ещё раз",
		"estimated_hours": 1,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DUPLICATE_BID", errorCode(t, w))

	w = s.do(http.MethodPost, "/api/gigs/"+gig.ID.String()+"/bids", &owner, map[string]any{
		"proposal":        "владелец",
		"estimated_hours": 1,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_PlaceBid_Cooldown(t *testing.T) {
	s := newTestServer(t)
	owner := human()
	first := s.createGig(owner, 0, true)
	second := s.createGig(owner, 0, true)
	b := bee()
	s.placeBid(first.ID, b)

	w := s.do(http.MethodPost, "/api/gigs/"+second.ID.String()+"/bids", &b, map[string]any{
		"proposal":        "сразу второе",
		"estimated_hours": 1,
	})
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "300", w.Header().Get("Retry-After"))
	resp := decode[middleware.ErrorResponse](t, w)
	assert.Equal(t, "RATE_LIMITED", string(resp.Error.Code))
	assert.Equal(t, int64(300), resp.Error.RetryAfter)

	s.clock.Advance(5 * time.Minute)
	s.placeBid(second.ID, b)
}

func TestRouter_PaymentWebhook(t *testing.T) {
	s := newTestServer(t)
	owner := human()
	gig := s.createGig(owner, 5000, true)
	assert.Equal(t, models.GigStatusDraft, gig.Status)

	body, err := json.Marshal(payment.CaptureEvent{
		Type:       payment.EventPaymentCaptured,
		GigID:      gig.ID,
		OwnerID:    owner.ID,
		Amount:     5000,
		PaymentRef: "pay_123",
	})
	require.NoError(t, err)

	send := func(signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/payments", bytes.NewReader(body))
		req.Header.Set(payment.SignatureHeader, signature)
		w := httptest.NewRecorder()
		s.engine.ServeHTTP(w, req)
		return w
	}

	w := send("deadbeef")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = send(payment.Sign(webhookSecret, body))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	escrow := decode[models.Escrow](t, w)
	assert.Equal(t, models.EscrowStatusHeld, escrow.Status)

	// Повторная доставка не создаёт второй escrow.
	w = send(payment.Sign(webhookSecret, body))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "duplicate", decode[map[string]string](t, w)["status"])

	w = s.do(http.MethodGet, "/api/gigs/"+gig.ID.String(), nil, nil)
	assert.Equal(t, models.GigStatusOpen, decode[models.Gig](t, w).Status)

	w = s.do(http.MethodGet, "/api/gigs/"+gig.ID.String()+"/escrow", &owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(5000), decode[models.Escrow](t, w).Amount)
}

func TestRouter_DisputeResolve(t *testing.T) {
	s := newTestServer(t)
	owner := human()
	gig, b := s.assigned(owner)

	w := s.do(http.MethodPost, "/api/gigs/"+gig.ID.String()+"/disputes", &owner, map[string]any{"reason": "пчела пропала"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	dispute := decode[models.Dispute](t, w)

	w = s.do(http.MethodPost, "/api/gigs/"+gig.ID.String()+"/disputes", &b, map[string]any{"reason": "нет, я здесь"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_OPEN", errorCode(t, w))

	w = s.do(http.MethodPost, "/api/disputes/"+dispute.ID.String()+"/messages", &b, map[string]any{"content": "работа почти готова"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/disputes/"+dispute.ID.String()+"/resolve", &b, map[string]any{"decision": "release"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	arb := arbiter()
	w = s.do(http.MethodGet, "/api/disputes/"+dispute.ID.String()+"/messages", &arb, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/api/disputes/"+dispute.ID.String()+"/resolve", &arb, map[string]any{
		"decision": "refund",
		"note":     "работа не сдана",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resolved := decode[models.Dispute](t, w)
	assert.Equal(t, models.DisputeStatusResolved, resolved.Status)

	w = s.do(http.MethodGet, "/api/gigs/"+gig.ID.String(), nil, nil)
	assert.Equal(t, models.GigStatusCancelled, decode[models.Gig](t, w).Status)
}

func TestRouter_Sweep_RequiresArbiter(t *testing.T) {
	s := newTestServer(t)
	owner := human()

	w := s.do(http.MethodPost, "/api/admin/sweep", &owner, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	arb := arbiter()
	w = s.do(http.MethodPost, "/api/admin/sweep", &arb, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decode[service.SweepReport](t, w).Scanned)
}
