package game

import (
	"encoding/json"

	"knibbles-server/config"
	"knibbles-server/logger"
	"knibbles-server/physics"
)

// Sender carries outbound payloads across the boundary to connected
// participants. The websocket adapter implements it; tests use fakes.
type Sender interface {
	Send(playerID string, payload []byte)
}

// PlayerSnapshot is the outward-facing view of one player. IsAlive is
// synthesized at serialization time for client convenience; internally,
// absence from the player map is the only death signal.
type PlayerSnapshot struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	X         float64      `json:"x"`
	Y         float64      `json:"y"`
	Radius    float64      `json:"radius"`
	VelocityX float64      `json:"velocityX"`
	VelocityY float64      `json:"velocityY"`
	Score     int          `json:"score"`
	Color     config.Color `json:"color"`
	IsAlive   bool         `json:"isAlive"`
}

// KnibbleSnapshot is the outward-facing view of one knibble.
type KnibbleSnapshot struct {
	ID     string       `json:"id"`
	X      float64      `json:"x"`
	Y      float64      `json:"y"`
	Radius float64      `json:"radius"`
	Color  config.Color `json:"color"`
}

// SpitBlobSnapshot is a placeholder payload shape reserved for a future
// ejected-mass projectile. The simulation never instantiates one; the list
// in RoomSnapshot is always empty.
type SpitBlobSnapshot struct {
	ID     string       `json:"id"`
	X      float64      `json:"x"`
	Y      float64      `json:"y"`
	Radius float64      `json:"radius"`
	Color  config.Color `json:"color"`
}

// RoomSnapshot is the full serializable state of a room at a point in time.
type RoomSnapshot struct {
	RoomID    string             `json:"roomId"`
	Status    Status             `json:"status"`
	HostID    string             `json:"hostId"`
	StartTime int64              `json:"startTime"`
	EndTime   int64              `json:"endTime"`
	Bounds    physics.Bounds     `json:"bounds"`
	Players   []PlayerSnapshot   `json:"players"`
	Knibbles  []KnibbleSnapshot  `json:"knibbles"`
	SpitBlobs []SpitBlobSnapshot `json:"spitBlobs"`
}

// Outbound message types understood by clients.
const (
	MsgSnapshot       = "snapshot"
	MsgPlayerJoined   = "player_joined"
	MsgPlayerLeft     = "player_left"
	MsgMatchStarted   = "match_started"
	MsgMatchEnded     = "match_ended"
	MsgPlayerEaten    = "player_eaten"
	MsgKnibbleSpawned = "knibble_spawned"
	MsgError          = "error"
)

type snapshotMessage struct {
	Type string       `json:"type"`
	Room RoomSnapshot `json:"room"`
}

type playerJoinedMessage struct {
	Type   string         `json:"type"`
	RoomID string         `json:"roomId"`
	Player PlayerSnapshot `json:"player"`
}

type playerLeftMessage struct {
	Type     string `json:"type"`
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
}

type matchStartedMessage struct {
	Type        string       `json:"type"`
	CountdownMs int64        `json:"countdownMs"`
	Room        RoomSnapshot `json:"room"`
}

type matchEndedMessage struct {
	Type   string          `json:"type"`
	Winner *PlayerSnapshot `json:"winner,omitempty"`
	Room   RoomSnapshot    `json:"room"`
}

type playerEatenMessage struct {
	Type     string `json:"type"`
	RoomID   string `json:"roomId"`
	EaterID  string `json:"eaterId"`
	VictimID string `json:"victimId"`
}

type knibbleSpawnedMessage struct {
	Type    string          `json:"type"`
	RoomID  string          `json:"roomId"`
	Knibble KnibbleSnapshot `json:"knibble"`
}

// ErrorMessage is sent to a single originating participant when a request
// is refused.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorPayload builds the outbound error payload for a refusal.
func NewErrorPayload(code, message string) []byte {
	return mustMarshal(ErrorMessage{Type: MsgError, Code: code, Message: message})
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		logger.Log.Errorf("marshal outbound message: %v", err)
		return nil
	}
	return b
}
