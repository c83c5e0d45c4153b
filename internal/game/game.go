package game

import "encoding/json"

// Broadcast as a Delta target means every attached slot.
const Broadcast = -1

// Delta is one outbound state change. Deltas are fanned out in the order the
// engine produced them, which is the order the mutations happened.
type Delta struct {
	Event   string // outbound message type ("update", "set_hand", ...)
	Target  int    // Broadcast or a specific slot index
	Exclude int    // slot to skip when Target == Broadcast; Broadcast = none
	Payload any
}

// ToAll builds a broadcast delta.
func ToAll(event string, payload any) Delta {
	return Delta{Event: event, Target: Broadcast, Exclude: Broadcast, Payload: payload}
}

// ToSlot builds a delta visible to a single slot only.
func ToSlot(slot int, event string, payload any) Delta {
	return Delta{Event: event, Target: slot, Exclude: Broadcast, Payload: payload}
}

// ToOthers builds a broadcast delta that skips one slot, used for the public
// half of a private/public pair (full hand to the owner, count to the rest).
func ToOthers(slot int, event string, payload any) Delta {
	return Delta{Event: event, Target: Broadcast, Exclude: slot, Payload: payload}
}

// Result is the outcome of one player action. A failed action carries a
// "CODE: message" error for the acting player and no deltas; state is
// untouched.
type Result struct {
	Success bool
	Message string
	Deltas  []Delta
}

func Fail(message string) Result {
	return Result{Success: false, Message: message}
}

func OK(deltas ...Delta) Result {
	return Result{Success: true, Deltas: deltas}
}

// Engine is the authoritative state machine for one game session. The
// variant set is closed: uno.Game and mad.Game. Implementations are not
// safe for concurrent use; the session layer serializes access.
type Engine interface {
	// Type returns the game-type key used for persistence and routing.
	Type() string

	// Capacity returns the fixed player-slot count.
	Capacity() int

	// Winner returns the winning slot, or Broadcast (-1) while in progress.
	// Once set it never changes; further actions are rejected.
	Winner() int

	// HandleAction validates and applies one player action. It never
	// mutates state on a failed result.
	HandleAction(slot int, payload json.RawMessage) Result

	// Snapshot returns the full client-facing state as seen by one slot:
	// that slot's private values in full, everyone else's as counts.
	Snapshot(slot int) any

	// Serialize and Restore round-trip the complete authoritative state,
	// deck order included.
	Serialize() ([]byte, error)
	Restore(data []byte) error
}
