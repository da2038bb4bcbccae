package server

import (
	"time"

	"github.com/gorilla/websocket"

	"knibbles-server/logger"
)

const (
	// WebSocket heartbeat settings to detect disconnected clients.
	pingInterval = 10 * time.Second // Frequency of sending ping messages
	pongWait     = 60 * time.Second // Time to wait for a pong before giving up
	writeWait    = 5 * time.Second  // Deadline for a single outbound write
)

// WebSocketClient represents a single connected participant.
type WebSocketClient struct {
	conn     *websocket.Conn
	send     chan []byte
	playerID string
	done     chan struct{}
}

// NewWebSocketClient wraps a raw connection with buffered outbound delivery.
func NewWebSocketClient(conn *websocket.Conn, playerID string) *WebSocketClient {
	return &WebSocketClient{
		conn:     conn,
		send:     make(chan []byte, 256),
		playerID: playerID,
		done:     make(chan struct{}),
	}
}

// ReadPump continuously reads messages from the connection and hands them to
// the server's message handler. It unregisters the client on any read error.
func (c *WebSocketClient) ReadPump(s *Server) {
	defer func() {
		s.unregister(c)
		close(c.done)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(1 << 16)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.Warnf("client %s: unexpected close: %v", c.playerID, err)
			}
			return
		}
		s.handleClientMessage(c, message)
	}
}

// WritePump drains the send queue to the connection and keeps the heartbeat
// alive with periodic pings.
func (c *WebSocketClient) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// Enqueue pushes a payload onto the send queue without blocking. Full queues
// drop the message; stale snapshots are cheaper than a stalled tick loop.
func (c *WebSocketClient) Enqueue(payload []byte) {
	select {
	case c.send <- payload:
	default:
		logger.Log.Warnf("client %s: send buffer full, dropping message", c.playerID)
	}
}
