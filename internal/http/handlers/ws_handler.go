package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/au-lex/safeqly-backend/internal/logger"
	"github.com/au-lex/safeqly-backend/internal/service"
	"github.com/au-lex/safeqly-backend/internal/ws"
)

// WSHandler поднимает WebSocket соединения, по которым пользователь
// получает события сделок, споров и кошелька в реальном времени.
type WSHandler struct {
	hub      *ws.Hub
	tokens   *service.TokenManager
	upgrader websocket.Upgrader
}

// NewWSHandler создаёт новый хэндлер.
func NewWSHandler(hub *ws.Hub, tokens *service.TokenManager) *WSHandler {
	return &WSHandler{
		hub:    hub,
		tokens: tokens,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handle обслуживает GET /api/ws. Браузерный WebSocket API не умеет
// выставлять заголовки, поэтому токен принимается и query параметром.
func (h *WSHandler) Handle(c *gin.Context) {
	userID, ok := h.authenticate(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "требуется access токен"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade сам пишет ответ клиенту при ошибке рукопожатия.
		if logger.Log != nil {
			logger.Log.WithField("error", err.Error()).Warn("ws handler: upgrade не удался")
		}
		return
	}

	client := ws.NewClient(conn, h.hub, userID)
	h.hub.Register(client)
	client.Run(c.Request.Context())
}

// authenticate извлекает и проверяет access токен. Админские токены
// не принимаются: realtime канал только пользовательский.
func (h *WSHandler) authenticate(c *gin.Context) (uuid.UUID, bool) {
	raw := c.Query("token")
	if raw == "" {
		raw = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}
	if raw == "" {
		return uuid.Nil, false
	}

	userID, _, scope, err := h.tokens.ParseAccess(raw)
	if err != nil || userID == uuid.Nil || scope != service.ScopeUser {
		return uuid.Nil, false
	}
	return userID, true
}
