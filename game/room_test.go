package game

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"knibbles-server/config"
	"knibbles-server/physics"
)

// fakeSender records every payload addressed to every participant.
type fakeSender struct {
	mu   sync.Mutex
	msgs map[string][][]byte
}

func newFakeSender() *fakeSender {
	return &fakeSender{msgs: make(map[string][][]byte)}
}

func (f *fakeSender) Send(playerID string, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(payload))
	copy(cp, payload)
	f.msgs[playerID] = append(f.msgs[playerID], cp)
}

// messagesOfType returns the decoded payloads of the given type sent to id.
func (f *fakeSender) messagesOfType(id, msgType string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]any
	for _, b := range f.msgs[id] {
		var m map[string]any
		if err := json.Unmarshal(b, &m); err != nil {
			continue
		}
		if m["type"] == msgType {
			out = append(out, m)
		}
	}
	return out
}

func newTestRoom(t *testing.T) (*Room, *fakeSender) {
	t.Helper()
	fs := newFakeSender()
	r := NewRoom("room-1", fs, func(fn func()) { fn() })
	t.Cleanup(r.stopTimers)
	return r, fs
}

// addTestPlayer joins a player and pins deterministic position and size.
func addTestPlayer(t *testing.T, r *Room, id string, x, y, radius float64) *Player {
	t.Helper()
	p, err := r.AddPlayer(id, "player "+id)
	if err != nil {
		t.Fatalf("add player %s: %v", id, err)
	}
	p.Pos = physics.Vec2{X: x, Y: y}
	p.Radius = radius
	return p
}

func TestAddPlayerAssignsHostAndSpawnsInside(t *testing.T) {
	r, fs := newTestRoom(t)

	p, err := r.AddPlayer("p1", "alice")
	if err != nil {
		t.Fatalf("add player: %v", err)
	}
	if r.HostID != "p1" {
		t.Fatalf("first joiner should be host, got %q", r.HostID)
	}
	if p.Pos.X < r.Bounds.X+p.Radius || p.Pos.X > r.Bounds.X+r.Bounds.Width-p.Radius ||
		p.Pos.Y < r.Bounds.Y+p.Radius || p.Pos.Y > r.Bounds.Y+r.Bounds.Height-p.Radius {
		t.Fatalf("spawn outside interior: %+v", p.Pos)
	}

	// Second joiner does not displace the host.
	if _, err := r.AddPlayer("p2", "bob"); err != nil {
		t.Fatalf("add second player: %v", err)
	}
	if r.HostID != "p1" {
		t.Fatalf("host changed on second join: %q", r.HostID)
	}
	if len(fs.messagesOfType("p1", MsgPlayerJoined)) != 2 {
		t.Fatalf("host should have seen both join broadcasts")
	}
	if len(fs.messagesOfType("p2", MsgSnapshot)) == 0 {
		t.Fatalf("joiner should receive an initial snapshot")
	}
}

func TestAddPlayerRoomFull(t *testing.T) {
	r, _ := newTestRoom(t)
	for i := 0; i < config.MAX_PLAYERS; i++ {
		if _, err := r.AddPlayer(string(rune('a'+i)), "p"); err != nil {
			t.Fatalf("join %d: %v", i, err)
		}
	}
	_, err := r.AddPlayer("overflow", "late")
	if !errors.Is(err, ErrRoomFull) {
		t.Fatalf("expected ErrRoomFull, got %v", err)
	}
	if r.PlayerCount() != config.MAX_PLAYERS {
		t.Fatalf("rejected join mutated state: %d players", r.PlayerCount())
	}
}

func TestRemovePlayerIdempotent(t *testing.T) {
	r, _ := newTestRoom(t)
	addTestPlayer(t, r, "p1", 100, 100, 10)
	addTestPlayer(t, r, "p2", 200, 200, 10)

	r.RemovePlayer("p1")
	if r.PlayerCount() != 1 {
		t.Fatalf("expected 1 player, got %d", r.PlayerCount())
	}
	r.RemovePlayer("p1") // second removal must leave state unchanged
	r.RemovePlayer("never-joined")
	if r.PlayerCount() != 1 {
		t.Fatalf("idempotent removal violated: %d players", r.PlayerCount())
	}
	if r.HasParticipant("p1") {
		t.Fatal("removed player still a participant")
	}
}

func TestUpdateVelocityScalesByMaxSpeed(t *testing.T) {
	r, _ := newTestRoom(t)
	p := addTestPlayer(t, r, "p1", 100, 100, 10)

	r.UpdateVelocity("p1", 1, -0.5)
	if p.Vel.X != config.PlayerMaxSpeed || p.Vel.Y != -0.5*config.PlayerMaxSpeed {
		t.Fatalf("unexpected velocity %+v", p.Vel)
	}
	r.UpdateVelocity("ghost", 1, 1) // unknown id is a no-op
}

func TestEatMarginExactBoundaryFavorsSurvival(t *testing.T) {
	cases := []struct {
		name    string
		eaterR  float64
		victimR float64
		wantEat bool
	}{
		{"well above margin", 23, 20, true},
		{"exactly at margin", 22, 20, false}, // 22 is not > 20*1.1
		{"just above margin", 20, 18, true},  // 20 > 19.8
		{"near equal", 20, 19, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r, _ := newTestRoom(t)
			eater := addTestPlayer(t, r, "big", 100, 100, c.eaterR)
			addTestPlayer(t, r, "small", 101, 100, c.victimR)
			r.resolveCollisions()

			_, victimAlive := r.Players["small"]
			if c.wantEat && victimAlive {
				t.Fatalf("radius %v should eat radius %v", c.eaterR, c.victimR)
			}
			if !c.wantEat && !victimAlive {
				t.Fatalf("radius %v should NOT eat radius %v", c.eaterR, c.victimR)
			}
			if !c.wantEat && eater.Radius != c.eaterR {
				t.Fatalf("bounce must have no effect, radius changed to %v", eater.Radius)
			}
		})
	}
}

func TestEatScenario(t *testing.T) {
	r, fs := newTestRoom(t)
	eater := addTestPlayer(t, r, "big", 100, 100, 20)
	addTestPlayer(t, r, "small", 105, 100, 15)
	r.Status = StatusPlaying
	r.StartTime = nowMillis()

	r.Update()

	if eater.Radius != 22 {
		t.Fatalf("expected radius 20 + round(15*0.1) = 22, got %v", eater.Radius)
	}
	if eater.Score != 15 {
		t.Fatalf("expected score 15, got %d", eater.Score)
	}
	snap := r.Snapshot()
	for _, p := range snap.Players {
		if p.ID == "small" {
			t.Fatal("victim still present in snapshot")
		}
	}
	if len(fs.messagesOfType("big", MsgPlayerEaten)) != 1 {
		t.Fatal("expected a player_eaten broadcast")
	}
}

func TestKnibbleSingleConsumption(t *testing.T) {
	r, _ := newTestRoom(t)
	p1 := addTestPlayer(t, r, "p1", 100, 100, 10)
	p2 := addTestPlayer(t, r, "p2", 102, 100, 10)
	k := &Knibble{ID: "k1", Pos: physics.Vec2{X: 101, Y: 100}, Radius: config.KnibbleRadius}
	r.Knibbles[k.ID] = k

	r.resolveKnibbleCollisions()

	if _, ok := r.Knibbles["k1"]; ok {
		t.Fatal("knibble should be consumed")
	}
	grew := 0
	if p1.Radius > 10 {
		grew++
	}
	if p2.Radius > 10 {
		grew++
	}
	if grew != 1 {
		t.Fatalf("knibble consumed by %d players, want exactly 1", grew)
	}
	if p1.Score+p2.Score != config.KnibbleScore {
		t.Fatalf("unexpected combined score %d", p1.Score+p2.Score)
	}
}

func TestSplit(t *testing.T) {
	r, _ := newTestRoom(t)
	p := addTestPlayer(t, r, "p1", 500, 500, 40)
	r.UpdateVelocity("p1", 1, 0)

	if err := r.Split("p1"); err != nil {
		t.Fatalf("split: %v", err)
	}
	if p.Radius != 20 {
		t.Fatalf("original should shrink in place to 20, got %v", p.Radius)
	}
	if r.PlayerCount() != 2 {
		t.Fatalf("expected a fragment, have %d players", r.PlayerCount())
	}
	if _, ok := r.Players["p1"]; !ok {
		t.Fatal("original id must survive the split for input routing")
	}

	// Immediate retry is inside the cooldown window.
	if err := r.Split("p1"); !errors.Is(err, ErrActionCooldown) {
		t.Fatalf("expected ErrActionCooldown, got %v", err)
	}
}

func TestSplitBelowThresholdIsNoOp(t *testing.T) {
	r, _ := newTestRoom(t)
	p := addTestPlayer(t, r, "p1", 500, 500, 20)
	if err := r.Split("p1"); err != nil {
		t.Fatalf("sub-threshold split should be a silent no-op, got %v", err)
	}
	if p.Radius != 20 || r.PlayerCount() != 1 {
		t.Fatal("sub-threshold split mutated state")
	}
}

func TestSpit(t *testing.T) {
	r, _ := newTestRoom(t)
	p := addTestPlayer(t, r, "p1", 500, 500, 20)
	r.UpdateVelocity("p1", 1, 0)
	before := p.Vel.X

	if err := r.Spit("p1"); err != nil {
		t.Fatalf("spit: %v", err)
	}
	if p.Radius != 20-config.SpitShrink {
		t.Fatalf("expected radius %v, got %v", 20-config.SpitShrink, p.Radius)
	}
	if p.Vel.X <= before {
		t.Fatalf("expected forward impulse, velocity %v -> %v", before, p.Vel.X)
	}
	if err := r.Spit("p1"); !errors.Is(err, ErrActionCooldown) {
		t.Fatalf("expected ErrActionCooldown, got %v", err)
	}

	// Below the spit threshold nothing happens.
	q := addTestPlayer(t, r, "p2", 600, 600, 10)
	if err := r.Spit("p2"); err != nil {
		t.Fatalf("sub-threshold spit should be a silent no-op, got %v", err)
	}
	if q.Radius != 10 {
		t.Fatalf("sub-threshold spit shrank player to %v", q.Radius)
	}
}

func TestStartMatchHostOnly(t *testing.T) {
	r, fs := newTestRoom(t)
	addTestPlayer(t, r, "host", 100, 100, 10)
	addTestPlayer(t, r, "guest", 200, 200, 10)

	if err := r.StartMatch("guest"); !errors.Is(err, ErrNotHost) {
		t.Fatalf("expected ErrNotHost, got %v", err)
	}
	if r.Status != StatusWaiting {
		t.Fatalf("refused start mutated status to %v", r.Status)
	}

	if err := r.StartMatch("host"); err != nil {
		t.Fatalf("host start: %v", err)
	}
	if r.Status != StatusStarting {
		t.Fatalf("expected STARTING, got %v", r.Status)
	}
	if len(fs.messagesOfType("guest", MsgMatchStarted)) != 1 {
		t.Fatal("expected match_started broadcast")
	}

	if err := r.StartMatch("host"); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestCountdownRefreshesStartTime(t *testing.T) {
	r, _ := newTestRoom(t)
	addTestPlayer(t, r, "host", 100, 100, 10)
	addTestPlayer(t, r, "guest", 200, 200, 10)
	if r.PlayerCount() != 2 {
		t.Fatalf("expected playerCount 2, got %d", r.PlayerCount())
	}

	if err := r.StartMatch("host"); err != nil {
		t.Fatalf("start: %v", err)
	}
	countdownTarget := r.StartTime
	wantTarget := nowMillis() + config.CountdownDuration.Milliseconds()
	if countdownTarget < wantTarget-100 || countdownTarget > wantTarget+100 {
		t.Fatalf("countdown target %d not near %d", countdownTarget, wantTarget)
	}

	// Simulate the countdown elapsing.
	r.beginPlay()
	if r.Status != StatusPlaying {
		t.Fatalf("expected PLAYING, got %v", r.Status)
	}
	now := nowMillis()
	if r.StartTime > now || r.StartTime < now-100 {
		t.Fatalf("start time %d not refreshed to actual transition time %d", r.StartTime, now)
	}
	if r.StartTime >= countdownTarget {
		t.Fatal("refreshed start time should precede the original countdown target")
	}
}

func TestLifecycleMonotonic(t *testing.T) {
	r, _ := newTestRoom(t)
	addTestPlayer(t, r, "host", 100, 100, 10)

	r.Status = StatusPlaying
	r.StartTime = nowMillis()
	r.finish()
	if r.Status != StatusFinished {
		t.Fatalf("expected FINISHED, got %v", r.Status)
	}

	// No operation may regress the status.
	if err := r.StartMatch("host"); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted after finish, got %v", err)
	}
	r.beginPlay()
	r.Update()
	if r.Status != StatusFinished {
		t.Fatalf("status regressed to %v", r.Status)
	}
}

func TestTimeoutWithSurvivorsHasNoWinner(t *testing.T) {
	r, fs := newTestRoom(t)
	addTestPlayer(t, r, "p1", 100, 100, 10)
	addTestPlayer(t, r, "p2", 1900, 1900, 10)
	r.Status = StatusPlaying
	r.StartTime = nowMillis() - config.MatchDuration.Milliseconds() - 1000

	r.Update()

	if r.Status != StatusFinished {
		t.Fatalf("expected FINISHED on timeout, got %v", r.Status)
	}
	if r.EndTime == 0 {
		t.Fatal("end time not recorded")
	}
	ended := fs.messagesOfType("p1", MsgMatchEnded)
	if len(ended) != 1 {
		t.Fatalf("expected one match_ended, got %d", len(ended))
	}
	if _, hasWinner := ended[0]["winner"]; hasWinner {
		t.Fatal("two survivors at timeout must yield no winner")
	}
}

func TestLastSurvivorWins(t *testing.T) {
	r, fs := newTestRoom(t)
	addTestPlayer(t, r, "big", 100, 100, 30)
	addTestPlayer(t, r, "small", 103, 100, 10)
	r.Status = StatusPlaying
	r.StartTime = nowMillis()

	r.Update()

	if r.Status != StatusFinished {
		t.Fatalf("expected FINISHED with one survivor, got %v", r.Status)
	}
	ended := fs.messagesOfType("big", MsgMatchEnded)
	if len(ended) != 1 {
		t.Fatalf("expected one match_ended, got %d", len(ended))
	}
	winner, ok := ended[0]["winner"].(map[string]any)
	if !ok || winner["id"] != "big" {
		t.Fatalf("expected winner big, got %v", ended[0]["winner"])
	}
}

func TestSpawnKnibbleAfterFinishIsNoOp(t *testing.T) {
	r, _ := newTestRoom(t)
	r.Status = StatusFinished
	r.spawnKnibble()
	if len(r.Knibbles) != 0 {
		t.Fatal("spawn callback after finish must not resurrect the knibble map")
	}
}

func TestSpawnKnibbleInsertsAndBroadcasts(t *testing.T) {
	r, fs := newTestRoom(t)
	addTestPlayer(t, r, "p1", 100, 100, 10)

	r.spawnKnibble()

	if len(r.Knibbles) != 1 {
		t.Fatalf("expected 1 knibble, got %d", len(r.Knibbles))
	}
	for _, k := range r.Knibbles {
		if k.Pos.X < r.Bounds.X || k.Pos.X > r.Bounds.X+r.Bounds.Width ||
			k.Pos.Y < r.Bounds.Y || k.Pos.Y > r.Bounds.Y+r.Bounds.Height {
			t.Fatalf("knibble spawned outside bounds: %+v", k.Pos)
		}
	}
	if len(fs.messagesOfType("p1", MsgKnibbleSpawned)) != 1 {
		t.Fatal("expected knibble_spawned broadcast")
	}
}

func TestUpdateIsGatedOnPlaying(t *testing.T) {
	r, _ := newTestRoom(t)
	p := addTestPlayer(t, r, "p1", 100, 100, 10)
	r.UpdateVelocity("p1", 1, 0)

	r.Update() // WAITING: no physics
	if p.Pos.X != 100 {
		t.Fatalf("movement applied while WAITING: %v", p.Pos.X)
	}

	r.Status = StatusStarting
	r.Update()
	if p.Pos.X != 100 {
		t.Fatalf("movement applied while STARTING: %v", p.Pos.X)
	}

	r.Status = StatusPlaying
	r.StartTime = nowMillis()
	addTestPlayer(t, r, "p2", 1500, 1500, 10) // keep the match alive
	r.Update()
	if p.Pos.X != 100+config.PlayerMaxSpeed {
		t.Fatalf("expected x %v, got %v", 100+config.PlayerMaxSpeed, p.Pos.X)
	}
}

func TestMovementAppliedBeforeCollisions(t *testing.T) {
	// Two apart players whose movement this tick brings them into overlap:
	// the collision must be resolved in the same tick.
	r, _ := newTestRoom(t)
	big := addTestPlayer(t, r, "big", 100, 100, 20)
	addTestPlayer(t, r, "small", 140, 100, 10)
	addTestPlayer(t, r, "far", 1500, 1500, 10)
	big.Vel.X = 12 // moves to 112 this tick; distance 28 < 30 -> overlap
	r.Status = StatusPlaying
	r.StartTime = nowMillis()

	r.Update()

	if _, alive := r.Players["small"]; alive {
		t.Fatal("collision from this tick's movement was not resolved")
	}
	if big.Score == 0 {
		t.Fatal("eater score not credited")
	}
}

// Ensure time-based fields marshal as expected in the snapshot payload.
func TestSnapshotShape(t *testing.T) {
	r, _ := newTestRoom(t)
	addTestPlayer(t, r, "p1", 100, 100, 10)
	r.Knibbles["k1"] = &Knibble{ID: "k1", Pos: physics.Vec2{X: 50, Y: 50}, Radius: config.KnibbleRadius}

	b, err := json.Marshal(r.Snapshot())
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if m["status"] != "WAITING" {
		t.Fatalf("status should marshal as string, got %v", m["status"])
	}
	players := m["players"].([]any)
	if players[0].(map[string]any)["isAlive"] != true {
		t.Fatal("snapshot must synthesize isAlive=true for present players")
	}
	if _, ok := m["spitBlobs"].([]any); !ok {
		t.Fatal("spitBlobs must serialize as an empty list, not null")
	}
}
