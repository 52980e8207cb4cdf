package notification

import (
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

// Hub fans live notifications out to connected websocket clients. A user may
// hold several connections (tabs); each gets every push.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]map[*websocket.Conn]struct{}
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		conns:  make(map[string]map[*websocket.Conn]struct{}),
		logger: logger,
	}
}

func (h *Hub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*websocket.Conn]struct{})
	}
	h.conns[userID][conn] = struct{}{}
}

func (h *Hub) Unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.conns[userID]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(h.conns, userID)
		}
	}
}

// Push sends a payload to every connection the user holds. Write failures
// are logged and the connection is left for the read loop to reap.
func (h *Hub) Push(userID string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("notification push: marshal failed", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.conns[userID] {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug("notification push: write failed",
				zap.String("user_id", userID),
				zap.Error(err))
		}
	}
}
