// internal/server/publish.go
package server

import "github.com/google/uuid"

// publishPlan accumulates, while one event is processed, the minimal set of
// lobby state sends to flush afterwards. Per lobby the plan is either a
// broadcast to all current members (nil set) or a targeted send to specific
// players. A broadcast absorbs any targeted sends for the same lobby.
type publishPlan struct {
	targets map[uuid.UUID]map[uuid.UUID]bool
}

func newPublishPlan() *publishPlan {
	return &publishPlan{targets: make(map[uuid.UUID]map[uuid.UUID]bool)}
}

// AddAll marks the lobby for a full broadcast, overriding any partial set.
func (p *publishPlan) AddAll(gameID uuid.UUID) {
	p.targets[gameID] = nil
}

// Add marks a single player for a targeted send. A no-op if the lobby is
// already marked for broadcast.
func (p *publishPlan) Add(gameID, playerID uuid.UUID) {
	set, exists := p.targets[gameID]
	if exists && set == nil {
		return
	}
	if set == nil {
		set = make(map[uuid.UUID]bool)
		p.targets[gameID] = set
	}
	set[playerID] = true
}

// Empty reports whether there is nothing to flush.
func (p *publishPlan) Empty() bool { return len(p.targets) == 0 }

// Reset clears the plan for the next event.
func (p *publishPlan) Reset() {
	p.targets = make(map[uuid.UUID]map[uuid.UUID]bool)
}
