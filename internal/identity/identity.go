// internal/identity/identity.go
//
// Process-scoped identity authenticator. Player ids are random UUIDs; the
// reconnection secret handed to a client is a keyed MAC over the id, so
// identity continuity survives a dropped socket without any server-side
// session storage. The key is generated at startup and never leaves the
// process, which also means tokens intentionally stop verifying after a
// restart.
package identity

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// KeySize is the length of the process MAC key in bytes.
const KeySize = 32

// TagSize is the length of a reconnection secret in bytes.
const TagSize = blake2b.Size256

// Authenticator issues player ids and signs/verifies reconnection secrets.
// It is safe for shared read-only use from multiple goroutines.
type Authenticator struct {
	key []byte
}

// New creates an authenticator with a fresh random key.
func New() (*Authenticator, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating authenticator key: %w", err)
	}
	return &Authenticator{key: key}, nil
}

// NewFromKey creates an authenticator with a fixed key, for tests.
func NewFromKey(key []byte) (*Authenticator, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("authenticator key must be %d bytes, got %d", KeySize, len(key))
	}
	a := &Authenticator{key: make([]byte, KeySize)}
	copy(a.key, key)
	return a, nil
}

// NewPlayerID returns a fresh uniformly random player id.
func (a *Authenticator) NewPlayerID() uuid.UUID {
	return uuid.New()
}

// Sign computes the reconnection secret for a player id.
func (a *Authenticator) Sign(playerID uuid.UUID) []byte {
	h, err := blake2b.New256(a.key)
	if err != nil {
		// Only reachable with an oversized key, which the constructors forbid.
		panic(fmt.Sprintf("identity: keyed blake2b init: %v", err))
	}
	h.Write(playerID[:])
	return h.Sum(nil)
}

// Verify reports whether secret is the tag this process issued for playerID.
// The comparison is constant-time.
func (a *Authenticator) Verify(playerID uuid.UUID, secret []byte) bool {
	if len(secret) != TagSize {
		return false
	}
	expected := a.Sign(playerID)
	return subtle.ConstantTimeCompare(expected, secret) == 1
}
