package websocket

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
	sendQueueSize  = 256
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// MessageHandler processes one inbound frame of a client.
type MessageHandler interface {
	HandleMessage(ctx context.Context, client *Client, message []byte)
}

// Client represents a single socket connection. Its ID is the connection id used
// by the session registry.
type Client struct {
	ID     string
	Origin string
	Conn   *websocket.Conn
	Send   chan []byte

	channels map[string]bool
	mu       sync.RWMutex

	sendMu sync.Mutex
	closed bool

	connectedAt time.Time
	logger      *Logger
}

func NewClient(conn *websocket.Conn, origin string, logger *Logger) *Client {
	return &Client{
		ID:          uuid.New().String(),
		Origin:      origin,
		Conn:        conn,
		Send:        make(chan []byte, sendQueueSize),
		channels:    make(map[string]bool),
		connectedAt: time.Now(),
		logger:      logger,
	}
}

func (c *Client) addChannel(channel string) {
	c.mu.Lock()
	c.channels[channel] = true
	c.mu.Unlock()
}

func (c *Client) removeChannel(channel string) {
	c.mu.Lock()
	delete(c.channels, channel)
	c.mu.Unlock()
}

func (c *Client) IsSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channels[channel]
}

// Channels returns a copy of all subscribed channels
func (c *Client) Channels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	channels := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		channels = append(channels, ch)
	}
	return channels
}

// SendMessage queues msg without blocking. A full queue drops the message.
func (c *Client) SendMessage(msg []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- msg:
		return true
	default:
		if c.logger != nil {
			c.logger.Warn("send queue full", "", c.ID, zap.Int("size", len(msg)))
		}
		return false
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// ReadPump feeds inbound frames to handler until the connection fails.
func (c *Client) ReadPump(ctx context.Context, handler MessageHandler) {
	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("unexpected close", "", c.ID, err)
			}
			return
		}
		message = bytes.TrimSpace(bytes.Replace(message, newline, space, -1))
		if len(message) == 0 {
			continue
		}
		handler.HandleMessage(ctx, c, message)
	}
}

// WritePump writes queued messages one frame each and pings the peer.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
