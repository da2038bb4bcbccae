package game

import (
	"fmt"
	"time"

	"knibbles-server/config"
	"knibbles-server/physics"
)

// Status is the room lifecycle state. Transitions are monotonic:
// WAITING -> STARTING -> PLAYING -> FINISHED.
type Status int

const (
	StatusWaiting Status = iota
	StatusStarting
	StatusPlaying
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "WAITING"
	case StatusStarting:
		return "STARTING"
	case StatusPlaying:
		return "PLAYING"
	case StatusFinished:
		return "FINISHED"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// MarshalJSON serializes the status as its string name for clients.
func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Player is a connected participant's avatar. It is owned exclusively by the
// room that created it; presence in the room's player map is the
// authoritative liveness signal.
type Player struct {
	ID     string
	Name   string
	Color  config.Color
	Pos    physics.Vec2
	Vel    physics.Vec2
	Radius float64

	Score         int
	LastSplitTime time.Time
	LastSpitTime  time.Time
}

// Knibble is a passive food pellet. Consuming one grows the player slightly.
type Knibble struct {
	ID     string
	Pos    physics.Vec2
	Radius float64
	Color  config.Color
}

// nowMillis returns the current wall clock in epoch milliseconds, the unit
// used for all lifecycle timestamps in outward payloads.
func nowMillis() int64 {
	return time.Now().UnixMilli()
}
