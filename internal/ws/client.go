package ws

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Clients only ever send
	// control frames; anything larger is a misbehaving peer.
	maxMessageSize = 512

	// Outbound buffer per connection. A full buffer means the peer cannot
	// keep up and the connection is dropped rather than blocking fan-out.
	sendBufferSize = 64
)

// socket is the subset of *websocket.Conn the client uses.
type socket interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Client represents one live socket belonging to an authenticated user.
// The connection handle is owned exclusively by the client's two pumps;
// no other goroutine touches it.
type Client struct {
	userID string
	conn   socket
	hub    *Hub
	logger *slog.Logger

	send      chan []byte
	closeOnce sync.Once
	closed    chan struct{}
}

func newClient(userID string, conn socket, hub *Hub, logger *slog.Logger) *Client {
	return &Client{
		userID: userID,
		conn:   conn,
		hub:    hub,
		logger: logger.With("user_id", userID),
		send:   make(chan []byte, sendBufferSize),
		closed: make(chan struct{}),
	}
}

// UserID returns the identity this connection authenticated as.
func (c *Client) UserID() string { return c.userID }

// enqueue hands a message to the client's write pump without blocking.
// Returns false when the client is closed or its buffer is full; the caller
// treats that as a delivery failure and removes the connection.
func (c *Client) enqueue(message []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}

	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// close marks the client closed and closes the underlying connection.
// Safe to call multiple times and from any goroutine.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		if err := c.conn.Close(); err != nil {
			c.logger.Debug("error closing websocket connection", "error", err)
		}
	})
}

// writePump pumps messages from the send channel to the websocket connection.
// A goroutine running writePump is started for each connection; it is the
// only writer on the connection, which keeps per-connection delivery FIFO.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

// readPump drains inbound frames so control messages are processed and a
// closed peer is detected promptly. On exit the connection is deregistered
// before any further delivery can target it.
func (c *Client) readPump() {
	defer func() {
		c.hub.Leave(c)
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		// Inbound payloads are ignored; this stream is server→client only.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read failed", "error", err)
			}
			return
		}
	}
}
