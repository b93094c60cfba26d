// internal/game/registry.go
package game

import "sort"

// Constructor builds a fresh game state for a new lobby.
type Constructor func() Game

// Registry maps game type names to constructors. Registration happens while
// wiring the server, before the runtime starts; afterwards the table is
// read-only and safe to share.
type Registry struct {
	constructors map[string]Constructor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register adds a game type. Registering the same name twice replaces the
// earlier constructor.
func (r *Registry) Register(name string, ctor Constructor) {
	r.constructors[name] = ctor
}

// Build instantiates a fresh game state for the named type, or returns
// false if the type is unknown.
func (r *Registry) Build(name string) (Game, bool) {
	ctor, ok := r.constructors[name]
	if !ok {
		return nil, false
	}
	return ctor(), true
}

// Names returns the registered game type names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
