package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Client represents a connected WebSocket subscriber.
type Client struct {
	ID     string
	conn   *websocket.Conn
	broker *Broker
	sendCh chan []byte

	closeOnce sync.Once
	done      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a client over an accepted WebSocket connection.
func NewClient(conn *websocket.Conn, broker *Broker) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		ID:     uuid.New().String(),
		conn:   conn,
		broker: broker,
		sendCh: make(chan []byte, broker.BufferSize()),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Run services the connection until the peer disconnects.
func (c *Client) Run() {
	go c.writePump()
	go c.pingPump()
	c.readPump()
}

// Send queues an event for delivery, dropping it if the client is backed up.
func (c *Client) Send(data []byte) {
	select {
	case <-c.done:
	case c.sendCh <- data:
	default:
		log.Debug().Str("client_id", c.ID).Msg("Dropping event for slow client")
	}
}

// Close terminates the connection and removes the client from the broker.
func (c *Client) Close() {
	c.shutdown(websocket.StatusNormalClosure, "closing")
	c.broker.UnregisterClient(c.ID)
}

// CloseGoingAway terminates the connection during broker shutdown. The
// broker has already dropped its reference.
func (c *Client) CloseGoingAway() {
	c.shutdown(websocket.StatusGoingAway, "server shutting down")
}

func (c *Client) shutdown(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancel()
		c.conn.Close(code, reason)
	})
}

func (c *Client) readPump() {
	defer c.Close()

	for {
		// Incoming frames are only read to detect disconnects; the stream
		// is one-way.
		if _, _, err := c.conn.Read(c.ctx); err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure &&
				websocket.CloseStatus(err) != websocket.StatusGoingAway {
				log.Debug().Err(err).Str("client_id", c.ID).Msg("WebSocket read ended")
			}
			return
		}
	}
}

func (c *Client) writePump() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.sendCh:
			ctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
			err := c.conn.Write(ctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				log.Debug().Err(err).Str("client_id", c.ID).Msg("WebSocket write failed")
				c.Close()
				return
			}
		}
	}
}

func (c *Client) pingPump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				c.Close()
				return
			}
		}
	}
}
