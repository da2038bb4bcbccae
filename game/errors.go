package game

// RuleError is a typed business-rule refusal. It is returned by room and
// engine operations when a request is well-formed but not permitted; no
// state mutation occurs. The Code travels to the originating client in the
// outbound error message.
type RuleError struct {
	Code    string
	Message string
}

func (e *RuleError) Error() string { return e.Message }

var (
	// ErrRoomFull is returned when a join would exceed the room capacity.
	ErrRoomFull = &RuleError{Code: "room-full", Message: "room is at capacity"}
	// ErrNotHost is returned when a non-host participant requests start.
	ErrNotHost = &RuleError{Code: "not-host", Message: "only the host can start the match"}
	// ErrNotInRoom is returned when an action arrives from a participant
	// that is not in any live room.
	ErrNotInRoom = &RuleError{Code: "not-in-room", Message: "you are not in a room"}
	// ErrAlreadyInRoom is returned when a participant that is already in a
	// room requests another join. Joining again would either leave a ghost
	// avatar behind or reset the existing one.
	ErrAlreadyInRoom = &RuleError{Code: "already-in-room", Message: "you are already in a room"}
	// ErrAlreadyStarted is returned when start is requested after the room
	// left the WAITING state.
	ErrAlreadyStarted = &RuleError{Code: "already-started", Message: "match already started"}
	// ErrActionCooldown is returned when split or spit is requested before
	// the per-action cooldown has elapsed.
	ErrActionCooldown = &RuleError{Code: "action-cooldown", Message: "action is on cooldown"}
)
