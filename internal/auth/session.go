// internal/auth/session.go
//
// Admin session tokens for the HTTP admin surface. Player identity on the
// game protocol is handled separately (internal/identity); these JWTs only
// gate the /admin endpoints. The ed25519 key pair is generated at startup,
// so admin sessions do not survive a restart either.
package auth

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gamehub/internal/config"
)

var (
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// tokenTTL of zero means tokens never expire.
	tokenTTL time.Duration
)

// Init generates a fresh ed25519 key pair and reads the session TTL from
// ADMIN_TOKEN_TTL (default 12h, "0s" for no expiry).
func Init() error {
	var err error
	publicKey, privateKey, err = ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("generating admin session key pair: %w", err)
	}
	tokenTTL = config.GetEnvDuration("ADMIN_TOKEN_TTL", 12*time.Hour)
	return nil
}

// CreateJWT issues a signed admin session token with "sub" = subject.
func CreateJWT(subject string) (string, error) {
	claims := jwt.MapClaims{
		"sub": subject,
	}
	if tokenTTL > 0 {
		claims["exp"] = time.Now().Add(tokenTTL).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(privateKey)
}

// AuthenticateJWT verifies a token and returns its subject.
func AuthenticateJWT(tokenString string) (string, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid jwt claims")
	}
	subject, ok := claims["sub"].(string)
	if !ok {
		return "", fmt.Errorf("missing sub in jwt")
	}
	return subject, nil
}
