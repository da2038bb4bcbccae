package game

import (
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"knibbles-server/config"
	"knibbles-server/logger"
	"knibbles-server/physics"
)

// Room owns one match's full state: entities, lifecycle status, bounds and
// timers. All mutation happens on the engine goroutine; timer callbacks are
// funneled back through exec so no two mutations ever interleave.
type Room struct {
	ID     string
	Status Status
	HostID string

	// StartTime is rewritten once when STARTING -> PLAYING fires, so match
	// duration bookkeeping measures from the actual start, not the
	// countdown target. Both are epoch milliseconds.
	StartTime int64
	EndTime   int64

	Bounds   physics.Bounds
	Players  map[string]*Player
	Knibbles map[string]*Knibble

	// participants is the connection association: every id broadcasts are
	// addressed to. A player removed from Players is removed here too.
	participants map[string]struct{}

	sender   Sender
	exec     func(func())
	rng      *rand.Rand
	colorIdx int

	countdownTimer *time.Timer
	spawnTimer     *time.Timer
}

// NewRoom creates a room in the WAITING state and starts its knibble
// spawner. exec must serialize the given function onto the goroutine that
// owns this room's state; the engine provides it in production and tests
// may pass a synchronous func(f func()) { f() }.
func NewRoom(id string, sender Sender, exec func(func())) *Room {
	r := &Room{
		ID:           id,
		Status:       StatusWaiting,
		Bounds:       physics.Bounds{X: 0, Y: 0, Width: config.WORLD_WIDTH, Height: config.WORLD_HEIGHT},
		Players:      make(map[string]*Player),
		Knibbles:     make(map[string]*Knibble),
		participants: make(map[string]struct{}),
		sender:       sender,
		exec:         exec,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	r.scheduleKnibbleSpawn()
	return r
}

// PlayerCount returns the number of players currently in the room.
func (r *Room) PlayerCount() int {
	return len(r.Players)
}

// HasParticipant reports whether the given id is associated with this room.
func (r *Room) HasParticipant(id string) bool {
	_, ok := r.participants[id]
	return ok
}

// AddPlayer joins a participant to the room. The first joiner becomes the
// host. Returns ErrRoomFull at capacity.
func (r *Room) AddPlayer(id, name string) (*Player, error) {
	if len(r.Players) >= config.MAX_PLAYERS {
		return nil, ErrRoomFull
	}
	color := config.PlayerPalette[r.colorIdx%len(config.PlayerPalette)]
	r.colorIdx++

	p := &Player{
		ID:     id,
		Name:   name,
		Color:  color,
		Pos:    r.randomInteriorPoint(config.PlayerStartRadius),
		Radius: config.PlayerStartRadius,
	}
	r.Players[id] = p
	r.participants[id] = struct{}{}
	if r.HostID == "" {
		r.HostID = id
	}

	logger.Log.Infof("room %s: player %s (%s) joined, %d/%d", r.ID, id, name, len(r.Players), config.MAX_PLAYERS)
	r.BroadcastAll(mustMarshal(playerJoinedMessage{Type: MsgPlayerJoined, RoomID: r.ID, Player: r.snapshotPlayer(p)}))
	// The joiner also gets the full current state immediately.
	r.sendTo(id, mustMarshal(snapshotMessage{Type: MsgSnapshot, Room: r.Snapshot()}))
	return p, nil
}

// RemovePlayer removes a participant from both the entity and connection
// maps. Calling it twice on the same id is safe.
func (r *Room) RemovePlayer(id string) {
	if _, ok := r.Players[id]; !ok {
		delete(r.participants, id)
		return
	}
	delete(r.Players, id)
	delete(r.participants, id)
	logger.Log.Infof("room %s: player %s left, %d remain", r.ID, id, len(r.Players))
	r.BroadcastAll(mustMarshal(playerLeftMessage{Type: MsgPlayerLeft, RoomID: r.ID, PlayerID: id}))
}

// UpdateVelocity sets the player's velocity from a normalized direction.
// The boundary adapter has already validated dirX/dirY into [-1, 1]; the
// room trusts the range and does not re-clamp.
func (r *Room) UpdateVelocity(id string, dirX, dirY float64) {
	p, ok := r.Players[id]
	if !ok {
		return
	}
	p.Vel.X = dirX * config.PlayerMaxSpeed
	p.Vel.Y = dirY * config.PlayerMaxSpeed
}

// Split halves the player's radius and spawns a controllable fragment offset
// from the original. The original shrinks in place so its id keeps routing
// input. Requests below the minimum radius are silent no-ops; requests
// inside the cooldown window are refused.
func (r *Room) Split(id string) error {
	p, ok := r.Players[id]
	if !ok {
		return ErrNotInRoom
	}
	if time.Since(p.LastSplitTime) < config.SplitCooldown {
		return ErrActionCooldown
	}
	if p.Radius < config.SplitMinRadius {
		return nil
	}

	half := math.Max(p.Radius/2, config.PlayerMinRadius)
	p.Radius = half
	p.LastSplitTime = time.Now()

	dirX, dirY := headingOf(p)
	frag := &Player{
		ID:    uuid.New().String(),
		Name:  p.Name,
		Color: p.Color,
		Pos: physics.Vec2{
			X: p.Pos.X + dirX*half*2,
			Y: p.Pos.Y + dirY*half*2,
		},
		Vel: physics.Vec2{
			X: p.Vel.X * config.SplitBurstFraction,
			Y: p.Vel.Y * config.SplitBurstFraction,
		},
		Radius:        half,
		LastSplitTime: p.LastSplitTime,
	}
	r.Players[frag.ID] = frag
	r.participants[frag.ID] = struct{}{}
	logger.Log.Debugf("room %s: player %s split, fragment %s", r.ID, id, frag.ID)
	return nil
}

// Spit shrinks the player by a fixed amount and adds a forward velocity
// impulse along the current heading. Below the minimum radius it is a
// silent no-op; inside the cooldown window it is refused.
func (r *Room) Spit(id string) error {
	p, ok := r.Players[id]
	if !ok {
		return ErrNotInRoom
	}
	if time.Since(p.LastSpitTime) < config.SpitCooldown {
		return ErrActionCooldown
	}
	if p.Radius < config.SpitMinRadius {
		return nil
	}

	p.Radius = math.Max(p.Radius-config.SpitShrink, config.PlayerMinRadius)
	angle := math.Atan2(p.Vel.Y, p.Vel.X)
	p.Vel.X += config.SpitImpulse * math.Cos(angle)
	p.Vel.Y += config.SpitImpulse * math.Sin(angle)
	p.LastSpitTime = time.Now()
	return nil
}

// StartMatch transitions WAITING -> STARTING on the host's request. The
// countdown target is written into StartTime and a one-shot timer schedules
// the automatic STARTING -> PLAYING transition.
func (r *Room) StartMatch(requesterID string) error {
	if requesterID != r.HostID {
		return ErrNotHost
	}
	if r.Status != StatusWaiting {
		return ErrAlreadyStarted
	}

	r.Status = StatusStarting
	r.StartTime = nowMillis() + config.CountdownDuration.Milliseconds()
	logger.Log.Infof("room %s: match starting, countdown %v", r.ID, config.CountdownDuration)
	r.BroadcastAll(mustMarshal(matchStartedMessage{
		Type:        MsgMatchStarted,
		CountdownMs: config.CountdownDuration.Milliseconds(),
		Room:        r.Snapshot(),
	}))
	r.countdownTimer = time.AfterFunc(config.CountdownDuration, func() {
		r.exec(r.beginPlay)
	})
	return nil
}

// beginPlay fires when the countdown elapses. StartTime is overwritten with
// the actual transition time so duration bookkeeping is exact.
func (r *Room) beginPlay() {
	if r.Status != StatusStarting {
		// Stale countdown after the room finished or was evicted.
		return
	}
	r.Status = StatusPlaying
	r.StartTime = nowMillis()
	logger.Log.Infof("room %s: match playing", r.ID)
	r.BroadcastAll(mustMarshal(snapshotMessage{Type: MsgSnapshot, Room: r.Snapshot()}))
}

// Update advances the simulation by one tick: movement for every entity,
// then collision resolution, then the terminal lifecycle check. It is a
// no-op unless the room is PLAYING.
func (r *Room) Update() {
	if r.Status != StatusPlaying {
		return
	}

	// Movement is fully applied before any collision is evaluated.
	for _, p := range r.Players {
		physics.IntegrateAndBounce(&p.Pos, &p.Vel, p.Radius, r.Bounds)
	}
	r.resolveCollisions()
	r.checkEndConditions()
}

// checkEndConditions fires PLAYING -> FINISHED when one or zero players
// remain or the match duration has elapsed.
func (r *Room) checkEndConditions() {
	elapsed := nowMillis() - r.StartTime
	if len(r.Players) > 1 && elapsed < config.MatchDuration.Milliseconds() {
		return
	}
	r.finish()
}

// finish performs the terminal transition: it records the end time, cancels
// standing timers, computes the winner and broadcasts the final snapshot.
func (r *Room) finish() {
	r.Status = StatusFinished
	r.EndTime = nowMillis()
	r.stopTimers()

	var winner *PlayerSnapshot
	if len(r.Players) == 1 {
		for _, p := range r.Players {
			ps := r.snapshotPlayer(p)
			winner = &ps
		}
	}
	if winner != nil {
		logger.Log.Infof("room %s: match ended, winner %s", r.ID, winner.ID)
	} else {
		logger.Log.Infof("room %s: match ended, no winner (%d survivors)", r.ID, len(r.Players))
	}
	r.BroadcastAll(mustMarshal(matchEndedMessage{Type: MsgMatchEnded, Winner: winner, Room: r.Snapshot()}))
}

// stopTimers cancels the countdown and knibble-spawn timers. Safe to call
// more than once; the engine also calls it defensively at eviction.
func (r *Room) stopTimers() {
	if r.countdownTimer != nil {
		r.countdownTimer.Stop()
		r.countdownTimer = nil
	}
	if r.spawnTimer != nil {
		r.spawnTimer.Stop()
		r.spawnTimer = nil
	}
}

// Snapshot builds the full serializable state of the room.
func (r *Room) Snapshot() RoomSnapshot {
	snap := RoomSnapshot{
		RoomID:    r.ID,
		Status:    r.Status,
		HostID:    r.HostID,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		Bounds:    r.Bounds,
		Players:   make([]PlayerSnapshot, 0, len(r.Players)),
		Knibbles:  make([]KnibbleSnapshot, 0, len(r.Knibbles)),
		SpitBlobs: []SpitBlobSnapshot{},
	}
	for _, p := range r.Players {
		snap.Players = append(snap.Players, r.snapshotPlayer(p))
	}
	for _, k := range r.Knibbles {
		snap.Knibbles = append(snap.Knibbles, KnibbleSnapshot{
			ID: k.ID, X: k.Pos.X, Y: k.Pos.Y, Radius: k.Radius, Color: k.Color,
		})
	}
	return snap
}

// BroadcastAll sends a payload to every participant in the room.
func (r *Room) BroadcastAll(payload []byte) {
	if payload == nil || r.sender == nil {
		return
	}
	for id := range r.participants {
		r.sender.Send(id, payload)
	}
}

func (r *Room) sendTo(id string, payload []byte) {
	if payload == nil || r.sender == nil {
		return
	}
	r.sender.Send(id, payload)
}

func (r *Room) snapshotPlayer(p *Player) PlayerSnapshot {
	return PlayerSnapshot{
		ID:        p.ID,
		Name:      p.Name,
		X:         p.Pos.X,
		Y:         p.Pos.Y,
		Radius:    p.Radius,
		VelocityX: p.Vel.X,
		VelocityY: p.Vel.Y,
		Score:     p.Score,
		Color:     p.Color,
		IsAlive:   true,
	}
}

// randomInteriorPoint picks a uniform random position keeping the whole
// circle of the given radius inside the bounds.
func (r *Room) randomInteriorPoint(radius float64) physics.Vec2 {
	return physics.Vec2{
		X: r.Bounds.X + radius + r.rng.Float64()*(r.Bounds.Width-2*radius),
		Y: r.Bounds.Y + radius + r.rng.Float64()*(r.Bounds.Height-2*radius),
	}
}

// headingOf returns the unit direction of the player's velocity, defaulting
// to +X for a stationary player.
func headingOf(p *Player) (float64, float64) {
	mag := math.Hypot(p.Vel.X, p.Vel.Y)
	if mag == 0 {
		return 1, 0
	}
	return p.Vel.X / mag, p.Vel.Y / mag
}
