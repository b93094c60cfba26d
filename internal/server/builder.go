// internal/server/builder.go
package server

import (
	"github.com/sirupsen/logrus"

	"gamehub/internal/game"
	"gamehub/internal/history"
	"gamehub/internal/identity"
)

// Builder wires a Runtime: registered game types plus optional overrides for
// the logger, the history recorder, the reported version, and the MAC key.
type Builder struct {
	logger   *logrus.Logger
	registry *game.Registry
	recorder *history.Recorder
	version  string
	key      []byte
}

// NewBuilder returns a builder with no game types registered.
func NewBuilder() *Builder {
	return &Builder{registry: game.NewRegistry()}
}

// Register adds a game type under the given name.
func (b *Builder) Register(name string, ctor game.Constructor) *Builder {
	b.registry.Register(name, ctor)
	return b
}

// WithLogger overrides the default logger.
func (b *Builder) WithLogger(logger *logrus.Logger) *Builder {
	b.logger = logger
	return b
}

// WithRecorder attaches a history recorder. A nil recorder disables history.
func (b *Builder) WithRecorder(r *history.Recorder) *Builder {
	b.recorder = r
	return b
}

// WithVersion sets the version string sent in the server_info greeting.
func (b *Builder) WithVersion(v string) *Builder {
	b.version = v
	return b
}

// WithKey pins the identity MAC key instead of generating a random one.
// Intended for tests that need to mint reconnection secrets up front.
func (b *Builder) WithKey(key []byte) *Builder {
	b.key = key
	return b
}

// Build constructs the runtime. The caller starts it with Run and mounts
// WSHandler on its HTTP mux.
func (b *Builder) Build() (*Runtime, error) {
	logger := b.logger
	if logger == nil {
		logger = logrus.New()
	}

	var auth *identity.Authenticator
	var err error
	if b.key != nil {
		auth, err = identity.NewFromKey(b.key)
	} else {
		auth, err = identity.New()
	}
	if err != nil {
		return nil, err
	}

	return newRuntime(logger, b.registry, auth, b.recorder, b.version), nil
}
