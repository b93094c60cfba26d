// internal/server/events.go
package server

import (
	"context"

	"github.com/google/uuid"

	"gamehub/internal/protocol"
)

// WriteHalf is the outbound side of a connection, moved into the runtime
// when the connection is announced. The runtime is its only writer.
type WriteHalf interface {
	// Write sends one text frame. Failures are treated as transient; the
	// connection's eventual Disconnected event reconciles state.
	Write(ctx context.Context, data []byte) error

	// Close tears the connection down with a reason. Used when a second
	// connection claims the same identity.
	Close(reason string) error
}

// event is an input to the dispatch runtime. Connection adapters produce
// them; the runtime's loop is the sole consumer.
type event interface{ isEvent() }

type connectedEvent struct {
	connID uuid.UUID
	write  WriteHalf
}

type disconnectedEvent struct {
	connID uuid.UUID
}

type messageEvent struct {
	connID  uuid.UUID
	message *protocol.ClientMessage
}

type invalidMessageEvent struct {
	connID uuid.UUID
	err    error
}

// snapshotEvent requests a point-in-time view of runtime state, for the
// admin API. Answered on the resp channel by the loop itself so no lock is
// needed.
type snapshotEvent struct {
	resp chan Snapshot
}

func (connectedEvent) isEvent()      {}
func (disconnectedEvent) isEvent()   {}
func (messageEvent) isEvent()        {}
func (invalidMessageEvent) isEvent() {}
func (snapshotEvent) isEvent()       {}
