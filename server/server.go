// Package server is the websocket boundary adapter: it upgrades connections,
// validates inbound payloads and posts typed commands into the engine inbox,
// and carries outbound broadcasts back to connected participants.
package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"knibbles-server/game"
	"knibbles-server/logger"
)

// Server maps participant ids to live websocket clients and implements
// game.Sender for outbound delivery.
type Server struct {
	engine   *game.Engine
	upgrader websocket.Upgrader

	clientsMu sync.RWMutex
	clients   map[string]*WebSocketClient
}

// New creates a Server. Bind must be called with the engine before serving.
func New() *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Allow all origins for development. RESTRICT THIS IN PRODUCTION!
				return true
			},
		},
		clients: make(map[string]*WebSocketClient),
	}
}

// Bind attaches the engine the adapter dispatches into.
func (s *Server) Bind(e *game.Engine) {
	s.engine = e
}

// HandleConnections upgrades an HTTP request to a websocket, assigns the
// connection its participant id and starts the read/write pumps.
func (s *Server) HandleConnections(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Warnf("websocket upgrade failed: %v", err)
		return
	}

	playerID := uuid.New().String()
	client := NewWebSocketClient(conn, playerID)

	s.clientsMu.Lock()
	s.clients[playerID] = client
	s.clientsMu.Unlock()

	welcome, _ := json.Marshal(map[string]any{
		"type":     "connected",
		"playerId": playerID,
	})
	client.Enqueue(welcome)
	logger.Log.Infof("client %s connected from %s", playerID, conn.RemoteAddr())

	go client.WritePump()
	go client.ReadPump(s)
}

// Send implements game.Sender. Unknown participant ids are dropped; the
// engine may broadcast to a player whose transport already went away.
func (s *Server) Send(playerID string, payload []byte) {
	// Enqueue stays under the read lock: unregister closes the send queue
	// under the write lock, so holding the lock here keeps the queue open
	// for the duration of the enqueue. Enqueue never blocks.
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	client, ok := s.clients[playerID]
	if !ok {
		return
	}
	client.Enqueue(payload)
}

// unregister drops the client and tells the engine the participant is gone.
func (s *Server) unregister(c *WebSocketClient) {
	s.clientsMu.Lock()
	if _, ok := s.clients[c.playerID]; ok {
		delete(s.clients, c.playerID)
		close(c.send)
	}
	s.clientsMu.Unlock()

	s.engine.Dispatch(game.LeaveCommand{PlayerID: c.playerID})
	logger.Log.Infof("client %s disconnected", c.playerID)
}
