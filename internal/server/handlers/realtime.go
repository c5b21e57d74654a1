package handlers

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"

	"github.com/halvard/coxswain/internal/realtime"
)

// RealtimeHandler handles WebSocket connections for execution event streams.
type RealtimeHandler struct {
	broker *realtime.Broker
}

// NewRealtimeHandler creates a new realtime handler.
func NewRealtimeHandler(broker *realtime.Broker) *RealtimeHandler {
	return &RealtimeHandler{broker: broker}
}

// HandleWebSocket upgrades the connection and streams execution events until
// the peer disconnects.
func (h *RealtimeHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to accept WebSocket connection")
		return
	}

	client := realtime.NewClient(conn, h.broker)
	if !h.broker.RegisterClient(client) {
		conn.Close(websocket.StatusTryAgainLater, "too many connections")
		return
	}

	client.Run()
}
