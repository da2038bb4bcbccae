package config

import "time"

// Game World Dimensions
const (
	WORLD_WIDTH  = 2000.0 // Arena width in pixels
	WORLD_HEIGHT = 2000.0 // Arena height in pixels
)

// Room capacity limits.
const (
	MIN_PLAYERS = 2
	MAX_PLAYERS = 8
)

// TICK_INTERVAL is the simulation update interval (20 ticks per second).
const TICK_INTERVAL = 50 * time.Millisecond

// Player movement and size parameters.
const (
	PlayerStartRadius = 10.0
	PlayerMaxSpeed    = 4.0 // pixels per tick at full input deflection
	PlayerMinRadius   = 5.0
)

// Split action parameters.
const (
	SplitMinRadius     = 30.0
	SplitBurstFraction = 0.5
	SplitCooldown      = 1 * time.Second
)

// Spit action parameters.
const (
	SpitMinRadius = 15.0
	SpitShrink    = 5.0
	SpitImpulse   = 3.0
	SpitCooldown  = 500 * time.Millisecond
)

// EatMargin: the eater's radius must strictly exceed the victim's radius
// times this margin. Near-equal sizes bounce off with no effect.
const EatMargin = 1.1

// EatGrowthFraction of the victim's radius (rounded) is added to the eater.
const EatGrowthFraction = 0.1

// Knibble parameters.
const (
	KnibbleRadius        = 5.0
	KnibbleGrowth        = 1.0
	KnibbleScore         = 1
	KnibbleSpawnDelayMin = 2 * time.Second
	KnibbleSpawnDelayMax = 5 * time.Second
)

// Match lifecycle timing.
const (
	CountdownDuration = 3 * time.Second
	MatchDuration     = 5 * time.Minute
)

// Color represents a simplified RGBA representation sent to clients.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
	A uint8 `json:"a"`
}

// Predefined Colors
var (
	Blue    = Color{R: 0, G: 121, B: 241, A: 255}
	Red     = Color{R: 230, G: 41, B: 55, A: 255}
	Green   = Color{R: 0, G: 228, B: 48, A: 255}
	Yellow  = Color{R: 253, G: 249, B: 0, A: 255}
	Magenta = Color{R: 255, G: 0, B: 255, A: 255}
	Cyan    = Color{R: 0, G: 255, B: 255, A: 255}
	Orange  = Color{R: 255, G: 165, B: 0, A: 255}
	Purple  = Color{R: 128, G: 0, B: 128, A: 255}
)

// PlayerPalette is assigned round-robin as players join a room.
var PlayerPalette = []Color{Blue, Red, Green, Yellow, Magenta, Cyan, Orange, Purple}

// KnibblePalette is drawn from at random by the knibble spawner.
var KnibblePalette = []Color{Green, Yellow, Cyan, Orange, Purple, Magenta}
