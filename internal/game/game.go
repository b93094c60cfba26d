// internal/game/game.go
//
// The extension contract every game implementation provides. A game never
// touches the network, the player registry, or the scheduler: its handlers
// receive a read-only snapshot of the lobby's common state, mutate only
// their own fields, and declare consequences by returning Updates. The
// dispatch runtime enacts those consequences (broadcasts, timers) after the
// handler returns.
//
// All handlers run on the runtime's event loop, one call per lobby at a
// time, so implementations need no locking. Handlers must not block.
package game

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Common is the read-only view of a lobby's shared state handed to every
// plug-in call. Plug-ins must treat it as borrowed for the duration of the
// call: no mutation, no retention.
type Common struct {
	GameID  uuid.UUID
	Leader  uuid.UUID
	Members map[uuid.UUID]bool
}

// HasMember reports whether the player is a member of the lobby.
func (c *Common) HasMember(player uuid.UUID) bool {
	return c.Members[player]
}

// SortedMembers returns the member ids in bytewise UUID order.
func (c *Common) SortedMembers() []uuid.UUID {
	members := make([]uuid.UUID, 0, len(c.Members))
	for id := range c.Members {
		members = append(members, id)
	}
	sort.Slice(members, func(i, j int) bool {
		return LessID(members[i], members[j])
	})
	return members
}

// SortIDs sorts UUIDs in place in bytewise order.
func SortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool {
		return LessID(ids[i], ids[j])
	})
}

// LessID orders UUIDs bytewise. Used for member sorting and the
// deterministic leader-reassignment tie-break.
func LessID(a, b uuid.UUID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Timer is a single-shot event registration: at the deadline the runtime
// calls the lobby's OnEvent with the event id, provided the lobby still
// exists.
type Timer struct {
	At      time.Time
	EventID uuid.UUID
}

// Updates is what a handler wants the runtime to do after it returns:
// broadcast the lobby state if the public view changed, and arm any number
// of single-shot timers.
type Updates struct {
	Changed bool
	Timers  []Timer
}

// None reports that nothing changed.
func None() Updates { return Updates{} }

// Changed reports that the public state changed and needs a broadcast.
func Changed() Updates { return Updates{Changed: true} }

// ScheduleAt registers a timer without marking the state changed.
func ScheduleAt(at time.Time, eventID uuid.UUID) Updates {
	return Updates{Timers: []Timer{{At: at, EventID: eventID}}}
}

// Merge composes two Updates: the changed flags are or-ed, the timer lists
// concatenated.
func (u Updates) Merge(other Updates) Updates {
	return Updates{
		Changed: u.Changed || other.Changed,
		Timers:  append(u.Timers, other.Timers...),
	}
}

// WithTimer returns a copy of u with one more timer registration.
func (u Updates) WithTimer(at time.Time, eventID uuid.UUID) Updates {
	u.Timers = append(u.Timers, Timer{At: at, EventID: eventID})
	return u
}

// Reply is a game's answer to the client that sent an inner message: either
// a success value or a game-defined error value. Both sides are arbitrary
// JSON-marshalable data.
type Reply struct {
	Value any
	Err   bool
}

// Ok builds a success reply.
func Ok(value any) Reply { return Reply{Value: value} }

// Fail builds a game-defined error reply.
func Fail(value any) Reply { return Reply{Value: value, Err: true} }

// Game is the capability set a game implementation supplies. Embed Base to
// inherit do-nothing defaults for everything except PublicState and
// OnMessage.
type Game interface {
	// PublicState derives the view shown to every member. The returned
	// value is marshaled to JSON once per broadcast.
	PublicState(c *Common) any

	// StateForPlayer derives the per-player private view.
	StateForPlayer(c *Common, player uuid.UUID) any

	// CanJoin gates JoinGame requests.
	CanJoin(c *Common) bool

	// CanReconnect gates the per-lobby reconnect flow when a player
	// identifies with a reconnection secret.
	CanReconnect(c *Common) bool

	OnJoin(c *Common, player uuid.UUID) Updates
	OnLeave(c *Common, player uuid.UUID) Updates
	OnKick(c *Common, player uuid.UUID) Updates
	OnDisconnect(c *Common, player uuid.UUID) Updates
	OnReconnect(c *Common, player uuid.UUID) Updates

	// OnEvent is called when a timer registered through Updates fires.
	OnEvent(c *Common, eventID uuid.UUID) Updates

	// OnMessage handles a game-specific client message. The Reply is sent
	// back to that client only; the Updates apply to the whole lobby.
	OnMessage(c *Common, player uuid.UUID, message json.RawMessage) (Updates, Reply)
}

// Base provides default implementations for the optional parts of Game:
// joins and reconnects always allowed, lifecycle hooks and timer events
// change nothing, no private state.
type Base struct{}

func (Base) StateForPlayer(*Common, uuid.UUID) any    { return nil }
func (Base) CanJoin(*Common) bool                     { return true }
func (Base) CanReconnect(*Common) bool                { return true }
func (Base) OnJoin(*Common, uuid.UUID) Updates        { return None() }
func (Base) OnLeave(*Common, uuid.UUID) Updates       { return None() }
func (Base) OnKick(*Common, uuid.UUID) Updates        { return None() }
func (Base) OnDisconnect(*Common, uuid.UUID) Updates  { return None() }
func (Base) OnReconnect(*Common, uuid.UUID) Updates   { return None() }
func (Base) OnEvent(*Common, uuid.UUID) Updates       { return None() }
