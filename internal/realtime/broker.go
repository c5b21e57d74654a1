// Package realtime fans execution status events out to WebSocket clients.
package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/halvard/coxswain/internal/config"
	"github.com/halvard/coxswain/internal/metrics"
)

// Broker manages WebSocket clients and broadcasts execution events to all of
// them. Slow clients drop events rather than block the publisher.
type Broker struct {
	maxConnections int
	bufferSize     int

	mu      sync.RWMutex
	clients map[string]*Client
	closed  bool
}

// NewBroker creates a broker from realtime configuration.
func NewBroker(cfg *config.RealtimeConfig) *Broker {
	return &Broker{
		maxConnections: cfg.MaxConnections,
		bufferSize:     cfg.BufferSize,
		clients:        make(map[string]*Client),
	}
}

// PublishExecutionEvent broadcasts one status transition. Implements the
// status service's event sink.
func (b *Broker) PublishExecutionEvent(jobID, status, message string) {
	event := Event{
		Type:      EventTypeExecution,
		JobID:     jobID,
		Status:    status,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("Failed to encode execution event")
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, client := range b.clients {
		client.Send(data)
	}
}

// RegisterClient adds a new client. Returns false when the broker is at its
// connection limit or shutting down.
func (b *Broker) RegisterClient(client *Client) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || len(b.clients) >= b.maxConnections {
		return false
	}

	b.clients[client.ID] = client
	metrics.SetRealtimeConnections(len(b.clients))
	log.Debug().Str("client_id", client.ID).Int("total_clients", len(b.clients)).Msg("Client connected")
	return true
}

// UnregisterClient removes a client.
func (b *Broker) UnregisterClient(clientID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.clients[clientID]; !ok {
		return
	}

	delete(b.clients, clientID)
	metrics.SetRealtimeConnections(len(b.clients))
	log.Debug().Str("client_id", clientID).Int("total_clients", len(b.clients)).Msg("Client disconnected")
}

// BufferSize returns the per-client send buffer size.
func (b *Broker) BufferSize() int {
	return b.bufferSize
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Stop disconnects every client and refuses new ones.
func (b *Broker) Stop() {
	b.mu.Lock()
	b.closed = true
	clients := make([]*Client, 0, len(b.clients))
	for _, client := range b.clients {
		clients = append(clients, client)
	}
	b.clients = make(map[string]*Client)
	b.mu.Unlock()

	for _, client := range clients {
		client.CloseGoingAway()
	}

	metrics.SetRealtimeConnections(0)
}
