package system

import (
	"go-estimate/internal/features/notification"
	"go-estimate/pkg/utils"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

// WebSocketController keeps one live connection per client registered in
// the notification hub so approval events reach open browser tabs.
type WebSocketController struct {
	Hub    *notification.Hub
	Logger *zap.Logger
}

func NewWebSocketController(hub *notification.Hub, logger *zap.Logger) *WebSocketController {
	return &WebSocketController{Hub: hub, Logger: logger}
}

func (h *WebSocketController) HandleWebSocket(c *websocket.Conn) {
	// Browsers cannot set headers on websocket upgrades, so the token
	// rides in the query string.
	claims, err := utils.ValidateToken(c.Query("token"))
	if err != nil {
		h.Logger.Debug("websocket auth failed", zap.Error(err))
		c.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized"))
		c.Close()
		return
	}

	h.Hub.Register(claims.UserID, c)
	defer func() {
		h.Hub.Unregister(claims.UserID, c)
		c.Close()
	}()

	// Drain the read side; pushes happen from the hub.
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
}
