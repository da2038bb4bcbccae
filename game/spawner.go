package game

import (
	"time"

	"github.com/google/uuid"

	"knibbles-server/config"
	"knibbles-server/logger"
)

// scheduleKnibbleSpawn arms the one-shot spawn timer with a fresh randomized
// delay. The delay is drawn per spawn rather than using a fixed-period
// ticker, so rooms never spawn in lockstep.
func (r *Room) scheduleKnibbleSpawn() {
	delay := config.KnibbleSpawnDelayMin +
		time.Duration(r.rng.Int63n(int64(config.KnibbleSpawnDelayMax-config.KnibbleSpawnDelayMin)))
	r.spawnTimer = time.AfterFunc(delay, func() {
		r.exec(r.spawnKnibble)
	})
}

// spawnKnibble inserts one knibble at a uniform random interior point and
// reschedules itself. A timer that fires after the room finished is a
// silent no-op.
func (r *Room) spawnKnibble() {
	if r.Status == StatusFinished {
		return
	}
	k := &Knibble{
		ID:     uuid.New().String(),
		Pos:    r.randomInteriorPoint(config.KnibbleRadius),
		Radius: config.KnibbleRadius,
		Color:  config.KnibblePalette[r.rng.Intn(len(config.KnibblePalette))],
	}
	r.Knibbles[k.ID] = k
	logger.Log.Debugf("room %s: knibble %s spawned at (%.0f, %.0f)", r.ID, k.ID, k.Pos.X, k.Pos.Y)
	r.BroadcastAll(mustMarshal(knibbleSpawnedMessage{
		Type:   MsgKnibbleSpawned,
		RoomID: r.ID,
		Knibble: KnibbleSnapshot{
			ID: k.ID, X: k.Pos.X, Y: k.Pos.Y, Radius: k.Radius, Color: k.Color,
		},
	}))
	r.scheduleKnibbleSpawn()
}
