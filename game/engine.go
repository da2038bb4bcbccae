package game

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"knibbles-server/config"
	"knibbles-server/logger"
)

// Commands posted into the engine inbox. The boundary adapter builds these
// from validated inbound events; timers post ExecCommand.

// JoinCommand joins a participant to a room, creating the room if the id is
// unknown. An empty RoomID asks the engine to mint a fresh room.
type JoinCommand struct {
	PlayerID string
	Name     string
	RoomID   string
}

// StartMatchCommand requests the WAITING -> STARTING transition (host only).
type StartMatchCommand struct {
	PlayerID string
}

// MoveCommand carries a normalized movement direction in [-1, 1].
type MoveCommand struct {
	PlayerID string
	DirX     float64
	DirY     float64
}

// SplitCommand requests a split for the player.
type SplitCommand struct {
	PlayerID string
}

// SpitCommand requests a spit for the player.
type SpitCommand struct {
	PlayerID string
}

// LeaveCommand removes a participant from their room, if any. Issued both
// for explicit leave requests and transport disconnects.
type LeaveCommand struct {
	PlayerID string
}

// ExecCommand runs an arbitrary function on the engine goroutine. Room
// timers use it so every state mutation stays serialized.
type ExecCommand struct {
	Fn func()
}

// RoomInfo is the lightweight room listing served over REST.
type RoomInfo struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Players int    `json:"players"`
}

// Engine owns the set of live rooms and the single goroutine that mutates
// them. Inbound events and timer callbacks arrive through the inbox; the
// global ticker advances every room in sequence.
type Engine struct {
	inbox  chan any
	rooms  map[string]*Room
	sender Sender
	quit   chan struct{}
	once   sync.Once

	Metrics *Metrics

	// infoMu guards the room listing snapshot read by the HTTP layer; the
	// simulation itself never takes a lock.
	infoMu sync.RWMutex
	info   []RoomInfo
}

// NewEngine creates an engine that fans broadcasts out through sender.
func NewEngine(sender Sender) *Engine {
	return &Engine{
		inbox:   make(chan any, 256),
		rooms:   make(map[string]*Room),
		sender:  sender,
		quit:    make(chan struct{}),
		Metrics: &Metrics{},
		info:    []RoomInfo{},
	}
}

// Dispatch posts a command into the engine inbox. It blocks if the inbox is
// full and returns silently once the engine has stopped.
func (e *Engine) Dispatch(cmd any) {
	select {
	case e.inbox <- cmd:
	case <-e.quit:
	}
}

// exec is the serialization hook handed to rooms for timer callbacks.
func (e *Engine) exec(fn func()) {
	e.Dispatch(ExecCommand{Fn: fn})
}

// Run is the engine main loop. All room state is owned by this goroutine.
func (e *Engine) Run() {
	ticker := time.NewTicker(config.TICK_INTERVAL)
	defer ticker.Stop()
	logger.Log.Infof("engine: running at %v per tick", config.TICK_INTERVAL)

	for {
		select {
		case <-e.quit:
			e.shutdown()
			return
		case cmd := <-e.inbox:
			e.handleCommand(cmd)
		case <-ticker.C:
			e.tick()
		}
	}
}

// Stop signals the engine loop to shut down. Safe to call more than once.
func (e *Engine) Stop() {
	e.once.Do(func() { close(e.quit) })
}

func (e *Engine) shutdown() {
	for id, room := range e.rooms {
		room.stopTimers()
		delete(e.rooms, id)
	}
	logger.Log.Info("engine: stopped, all rooms closed")
}

// GetOrCreateRoom returns the room with the given id, constructing it with
// the fixed capacity and tick configuration if it does not exist.
func (e *Engine) GetOrCreateRoom(id string) *Room {
	if r, ok := e.rooms[id]; ok {
		return r
	}
	r := NewRoom(id, e.sender, e.exec)
	e.rooms[id] = r
	e.Metrics.IncRoomsCreated()
	logger.Log.Infof("engine: room %s created", id)
	return r
}

// FindRoomByParticipant scans live rooms for the one holding the given
// participant. Returns nil when the participant is in no room.
func (e *Engine) FindRoomByParticipant(id string) *Room {
	for _, r := range e.rooms {
		if r.HasParticipant(id) {
			return r
		}
	}
	return nil
}

// RemoveParticipant delegates removal to the owning room, if any.
func (e *Engine) RemoveParticipant(id string) {
	if r := e.FindRoomByParticipant(id); r != nil {
		r.RemovePlayer(id)
	}
}

// RoomCount returns the number of live rooms. Engine goroutine only.
func (e *Engine) RoomCount() int {
	return len(e.rooms)
}

func (e *Engine) handleCommand(cmd any) {
	e.Metrics.IncCommandsApplied()
	switch c := cmd.(type) {
	case JoinCommand:
		// A participant holds at most one avatar: joining again would
		// either strand a ghost in the old room or reset the current one.
		if e.FindRoomByParticipant(c.PlayerID) != nil {
			e.refuse(c.PlayerID, ErrAlreadyInRoom)
			return
		}
		roomID := c.RoomID
		if roomID == "" {
			roomID = uuid.New().String()
		}
		room := e.GetOrCreateRoom(roomID)
		if _, err := room.AddPlayer(c.PlayerID, c.Name); err != nil {
			e.refuse(c.PlayerID, err)
		}
	case StartMatchCommand:
		room := e.FindRoomByParticipant(c.PlayerID)
		if room == nil {
			e.refuse(c.PlayerID, ErrNotInRoom)
			return
		}
		if err := room.StartMatch(c.PlayerID); err != nil {
			e.refuse(c.PlayerID, err)
		}
	case MoveCommand:
		room := e.FindRoomByParticipant(c.PlayerID)
		if room == nil {
			return // movement from a roomless participant is dropped
		}
		room.UpdateVelocity(c.PlayerID, c.DirX, c.DirY)
	case SplitCommand:
		room := e.FindRoomByParticipant(c.PlayerID)
		if room == nil {
			e.refuse(c.PlayerID, ErrNotInRoom)
			return
		}
		if err := room.Split(c.PlayerID); err != nil {
			e.refuse(c.PlayerID, err)
		}
	case SpitCommand:
		room := e.FindRoomByParticipant(c.PlayerID)
		if room == nil {
			e.refuse(c.PlayerID, ErrNotInRoom)
			return
		}
		if err := room.Spit(c.PlayerID); err != nil {
			e.refuse(c.PlayerID, err)
		}
	case LeaveCommand:
		e.RemoveParticipant(c.PlayerID)
	case ExecCommand:
		c.Fn()
	default:
		logger.Log.Warnf("engine: unknown command %T", cmd)
	}
}

// refuse sends a typed refusal to the single originating participant.
func (e *Engine) refuse(playerID string, err error) {
	e.Metrics.IncErrorsSent()
	if e.sender == nil {
		return
	}
	var re *RuleError
	if errors.As(err, &re) {
		e.sender.Send(playerID, NewErrorPayload(re.Code, re.Message))
		return
	}
	e.sender.Send(playerID, NewErrorPayload("internal", "request failed"))
}

// tick advances every live room once. FINISHED rooms are evicted here, which
// is always after their terminal broadcast went out on the tick (or command)
// that performed the transition. Deserted rooms go the same way so their
// spawn timers stop broadcasting to nobody. One room failing must not stop
// the rest.
func (e *Engine) tick() {
	start := time.Now()
	for id, room := range e.rooms {
		if room.Status == StatusFinished || room.PlayerCount() == 0 {
			room.stopTimers()
			delete(e.rooms, id)
			e.Metrics.IncRoomsEvicted()
			logger.Log.Infof("engine: room %s evicted", id)
			continue
		}
		e.updateRoom(room)
	}
	e.Metrics.AddTick(time.Since(start).Nanoseconds())
	e.refreshRoomInfo()
}

// updateRoom runs one room's tick inside a recover boundary so a panic in
// one room cannot abort the scheduler loop for the others.
func (e *Engine) updateRoom(room *Room) {
	defer func() {
		if rec := recover(); rec != nil {
			e.Metrics.IncTickPanics()
			logger.Log.Errorf("engine: room %s update panicked: %v", room.ID, rec)
		}
	}()
	room.Update()
	if room.Status == StatusPlaying {
		room.BroadcastAll(mustMarshal(snapshotMessage{Type: MsgSnapshot, Room: room.Snapshot()}))
	}
}

// refreshRoomInfo republishes the lightweight room listing for REST readers.
func (e *Engine) refreshRoomInfo() {
	info := make([]RoomInfo, 0, len(e.rooms))
	for id, r := range e.rooms {
		info = append(info, RoomInfo{ID: id, Status: r.Status.String(), Players: r.PlayerCount()})
	}
	e.infoMu.Lock()
	e.info = info
	e.infoMu.Unlock()
}

// RoomInfos returns the last published room listing. Safe for concurrent use.
func (e *Engine) RoomInfos() []RoomInfo {
	e.infoMu.RLock()
	defer e.infoMu.RUnlock()
	out := make([]RoomInfo, len(e.info))
	copy(out, e.info)
	return out
}
