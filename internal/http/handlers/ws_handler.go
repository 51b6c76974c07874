package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/ignatzorin/hive-backend/internal/http/handlers/common"
	"github.com/ignatzorin/hive-backend/internal/identity"
	"github.com/ignatzorin/hive-backend/internal/logger"
	"github.com/ignatzorin/hive-backend/internal/pkg/apperror"
	"github.com/ignatzorin/hive-backend/internal/ws"
)

// WSHandler отвечает за установку WebSocket соединений для уведомлений.
type WSHandler struct {
	hub          *ws.Hub
	tokenManager *identity.TokenManager
	upgrader     websocket.Upgrader
}

// NewWSHandler создаёт новый хэндлер.
func NewWSHandler(hub *ws.Hub, tokens *identity.TokenManager) *WSHandler {
	return &WSHandler{
		hub:          hub,
		tokenManager: tokens,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handle обслуживает GET /ws?token=...
// Браузер не умеет ставить заголовки на upgrade, поэтому токен передаётся в query.
func (h *WSHandler) Handle(c *gin.Context) {
	rawToken := c.Query("token")
	if rawToken == "" {
		common.Fail(c, apperror.New(apperror.ErrCodeUnauthorized, "access токен обязателен"))
		return
	}

	actor, err := h.tokenManager.ResolveActor(rawToken)
	if err != nil {
		common.Fail(c, apperror.Wrap(err, apperror.ErrCodeUnauthorized, "невалидный access токен"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade уже ответил клиенту кодом ошибки.
		logger.Log.WithError(err).WithField("actor", actor.String()).Warn("ws upgrade failed")
		return
	}

	client := ws.NewClient(conn, h.hub, actor)
	h.hub.Register(client)

	client.Run(c.Request.Context())
}
