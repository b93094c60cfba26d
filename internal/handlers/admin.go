// internal/handlers/admin.go
//
// Read-only admin surface over the runtime: login against a shared token,
// then lobby listings and server stats. All state reads go through
// Runtime.Snapshot, which answers on the event loop, so these handlers never
// race with the game protocol.
package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"gamehub/internal/auth"
	"gamehub/internal/config"
	"gamehub/internal/server"
)

const sessionCookieName = "gamehub_admin"

type loginRequest struct {
	Token string `json:"token"`
}

// AdminLoginHandler exchanges the shared ADMIN_TOKEN for a session cookie.
// When ADMIN_TOKEN is unset the admin surface is disabled entirely.
func AdminLoginHandler(logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		expected := config.GetEnv("ADMIN_TOKEN", "")
		if expected == "" {
			http.Error(w, "admin access disabled", http.StatusForbidden)
			return
		}

		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if subtle.ConstantTimeCompare([]byte(req.Token), []byte(expected)) != 1 {
			logger.Warnf("failed admin login from %s", r.RemoteAddr)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		session, err := auth.CreateJWT("admin")
		if err != nil {
			logger.Errorf("creating admin session: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookieName,
			Value:    session,
			Path:     "/admin",
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		})
		logger.Infof("admin login from %s", r.RemoteAddr)
		w.WriteHeader(http.StatusNoContent)
	}
}

// RequireAdmin gates a handler behind a valid admin session cookie.
func RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil {
			http.Error(w, "not authenticated", http.StatusUnauthorized)
			return
		}
		if _, err := auth.AuthenticateJWT(cookie.Value); err != nil {
			http.Error(w, "not authenticated", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// AdminLobbiesHandler lists the live lobbies.
func AdminLobbiesHandler(logger *logrus.Logger, rt *server.Runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := snapshot(r, rt)
		if err != nil {
			logger.Errorf("admin lobby snapshot: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		lobbies := snap.Lobbies
		if lobbies == nil {
			lobbies = []server.LobbySummary{}
		}
		writeJSON(w, lobbies)
	}
}

// AdminStatsHandler reports connection, player, lobby and timer counts.
func AdminStatsHandler(logger *logrus.Logger, rt *server.Runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := snapshot(r, rt)
		if err != nil {
			logger.Errorf("admin stats snapshot: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{
			"connections":        snap.Connections,
			"identified_players": snap.IdentifiedPlayers,
			"lobbies":            len(snap.Lobbies),
			"pending_timers":     snap.PendingTimers,
			"game_modes":         snap.GameModes,
		})
	}
}

func snapshot(r *http.Request, rt *server.Runtime) (server.Snapshot, error) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	return rt.Snapshot(ctx)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
