// Package hub is the payment-hub push channel: a websocket endpoint that
// delivers "payment status changed" events to the authenticated user's open
// connections, fed either directly or through the redis bridge so every API
// instance sees gateway callbacks.
package hub

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"libra-pay/internal/domain"
)

const (
	// ChannelName identifies the push channel on the wire and in redis.
	ChannelName = "payment-hub"
	// EventVerifyPaymentStatus is the only event the hub emits today.
	EventVerifyPaymentStatus = "ReceiveVerifyPaymentStatus"
)

// StatusMessage is the wire payload for a status change.
type StatusMessage struct {
	Event  string                   `json:"event"`
	Status domain.TransactionStatus `json:"status"`
}

type Hub struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[uuid.UUID]map[*websocket.Conn]struct{}
}

func New(logger *zap.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect from the admin SPA origin; CORS is
			// enforced at the API layer.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[uuid.UUID]map[*websocket.Conn]struct{}),
	}
}

// Serve upgrades the request and keeps the connection registered under userID
// until the peer goes away. The read loop only drains control frames; the hub
// is push-only.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	h.register(userID, conn)
	h.logger.Debug("hub client connected", zap.String("user_id", userID.String()))

	go func() {
		defer func() {
			h.unregister(userID, conn)
			conn.Close()
			h.logger.Debug("hub client disconnected", zap.String("user_id", userID.String()))
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}

// Publish pushes a status change to every open connection of one user. Dead
// connections are dropped on write failure.
func (h *Hub) Publish(userID uuid.UUID, status domain.TransactionStatus) {
	msg := StatusMessage{Event: EventVerifyPaymentStatus, Status: status}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns[userID] {
		if err := conn.WriteJSON(msg); err != nil {
			h.logger.Warn("hub write failed, dropping connection",
				zap.String("user_id", userID.String()), zap.Error(err))
			conn.Close()
			delete(h.conns[userID], conn)
		}
	}
	if len(h.conns[userID]) == 0 {
		delete(h.conns, userID)
	}
}

// Shutdown closes every registered connection.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, conns := range h.conns {
		for conn := range conns {
			conn.Close()
		}
		delete(h.conns, userID)
	}
}

func (h *Hub) register(userID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*websocket.Conn]struct{})
	}
	h.conns[userID][conn] = struct{}{}
}

func (h *Hub) unregister(userID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns[userID], conn)
	if len(h.conns[userID]) == 0 {
		delete(h.conns, userID)
	}
}
