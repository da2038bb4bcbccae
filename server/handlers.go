package server

import (
	"encoding/json"
	"strings"

	"knibbles-server/game"
	"knibbles-server/logger"
)

const maxNameLength = 24

// sanitizeName trims, defaults and caps a display name. The cap counts
// runes, not bytes, so multi-byte names are never cut mid-character.
func sanitizeName(raw string) string {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "anonymous"
	}
	if runes := []rune(name); len(runes) > maxNameLength {
		name = string(runes[:maxNameLength])
	}
	return name
}

// clientMessage is the generic envelope of messages from the client.
type clientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// joinRequestData carries a "join" message payload.
type joinRequestData struct {
	Name   string `json:"name"`
	RoomID string `json:"roomId"`
}

// moveRequestData carries a "move" message payload. Both components must be
// normalized into [-1, 1]; the core trusts this range and does not re-clamp.
type moveRequestData struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// handleClientMessage validates an inbound payload and posts the matching
// command into the engine inbox. Structural and range validation happens
// entirely here; rejected payloads get an error message back and never
// reach the core.
func (s *Server) handleClientMessage(c *WebSocketClient, message []byte) {
	var msg clientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		logger.Log.Debugf("client %s: malformed message: %v", c.playerID, err)
		c.Enqueue(game.NewErrorPayload("invalid-input", "malformed message"))
		return
	}

	switch msg.Type {
	case "join":
		var data joinRequestData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.Enqueue(game.NewErrorPayload("invalid-input", "malformed join payload"))
			return
		}
		s.engine.Dispatch(game.JoinCommand{PlayerID: c.playerID, Name: sanitizeName(data.Name), RoomID: data.RoomID})
	case "start_match":
		s.engine.Dispatch(game.StartMatchCommand{PlayerID: c.playerID})
	case "move":
		var data moveRequestData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.Enqueue(game.NewErrorPayload("invalid-input", "malformed move payload"))
			return
		}
		if data.DX < -1 || data.DX > 1 || data.DY < -1 || data.DY > 1 {
			c.Enqueue(game.NewErrorPayload("invalid-input", "move direction out of range"))
			return
		}
		s.engine.Dispatch(game.MoveCommand{PlayerID: c.playerID, DirX: data.DX, DirY: data.DY})
	case "split":
		s.engine.Dispatch(game.SplitCommand{PlayerID: c.playerID})
	case "spit":
		s.engine.Dispatch(game.SpitCommand{PlayerID: c.playerID})
	case "leave":
		s.engine.Dispatch(game.LeaveCommand{PlayerID: c.playerID})
	default:
		logger.Log.Debugf("client %s: unknown message type %q", c.playerID, msg.Type)
		c.Enqueue(game.NewErrorPayload("invalid-input", "unknown message type"))
	}
}
