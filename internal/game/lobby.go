// internal/game/lobby.go
package game

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Lobby pairs a lobby's common state (leader, member set) with the game
// plug-in's own state. It is owned exclusively by the dispatch runtime; all
// methods assume they are called from the runtime's event loop, so there is
// no locking here. The facade methods forward to the plug-in with a
// read-only view of the common state.
type Lobby struct {
	ID     uuid.UUID
	Mode   string
	common Common
	state  Game
}

// NewLobby creates an empty lobby around a freshly constructed game state.
// The creator is added through AddMember, same as any later joiner. Mode is
// the registered game type name, kept for listings and history records.
func NewLobby(id uuid.UUID, mode string, state Game) *Lobby {
	return &Lobby{
		ID:   id,
		Mode: mode,
		common: Common{
			GameID:  id,
			Members: make(map[uuid.UUID]bool),
		},
		state: state,
	}
}

// Leader returns the current leader. Meaningless while the lobby is empty.
func (l *Lobby) Leader() uuid.UUID { return l.common.Leader }

// Empty reports whether the lobby has no members.
func (l *Lobby) Empty() bool { return len(l.common.Members) == 0 }

// HasMember reports whether the player is a member.
func (l *Lobby) HasMember(player uuid.UUID) bool { return l.common.HasMember(player) }

// MemberCount returns the number of members.
func (l *Lobby) MemberCount() int { return len(l.common.Members) }

// SortedMembers returns member ids in bytewise UUID order.
func (l *Lobby) SortedMembers() []uuid.UUID { return l.common.SortedMembers() }

// AddMember inserts a player. The first member becomes leader.
func (l *Lobby) AddMember(player uuid.UUID) {
	if len(l.common.Members) == 0 {
		l.common.Leader = player
	}
	l.common.Members[player] = true
}

// RemoveMember removes a player, returning false if they were not a member.
// If the removed player was the leader, leadership passes to the remaining
// member with the smallest id; an emptied lobby keeps no leader and should
// be disposed of by the caller.
func (l *Lobby) RemoveMember(player uuid.UUID) bool {
	if !l.common.Members[player] {
		return false
	}
	delete(l.common.Members, player)

	if player == l.common.Leader {
		var next uuid.UUID
		found := false
		for id := range l.common.Members {
			if !found || LessID(id, next) {
				next = id
				found = true
			}
		}
		l.common.Leader = next
	}
	return true
}

// SetLeader reassigns leadership, returning false if the target is not a
// member.
func (l *Lobby) SetLeader(player uuid.UUID) bool {
	if !l.common.Members[player] {
		return false
	}
	l.common.Leader = player
	return true
}

func (l *Lobby) PublicState() any { return l.state.PublicState(&l.common) }

func (l *Lobby) StateForPlayer(player uuid.UUID) any {
	return l.state.StateForPlayer(&l.common, player)
}

func (l *Lobby) CanJoin() bool      { return l.state.CanJoin(&l.common) }
func (l *Lobby) CanReconnect() bool { return l.state.CanReconnect(&l.common) }

func (l *Lobby) OnJoin(player uuid.UUID) Updates  { return l.state.OnJoin(&l.common, player) }
func (l *Lobby) OnLeave(player uuid.UUID) Updates { return l.state.OnLeave(&l.common, player) }
func (l *Lobby) OnKick(player uuid.UUID) Updates  { return l.state.OnKick(&l.common, player) }

func (l *Lobby) OnDisconnect(player uuid.UUID) Updates {
	return l.state.OnDisconnect(&l.common, player)
}

func (l *Lobby) OnReconnect(player uuid.UUID) Updates {
	return l.state.OnReconnect(&l.common, player)
}

func (l *Lobby) OnEvent(eventID uuid.UUID) Updates {
	return l.state.OnEvent(&l.common, eventID)
}

func (l *Lobby) OnMessage(player uuid.UUID, message json.RawMessage) (Updates, Reply) {
	return l.state.OnMessage(&l.common, player, message)
}
