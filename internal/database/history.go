// internal/database/history.go
package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"gamehub/internal/history"
)

// EnsureHistorySchema creates the historian's tables when missing. Schema
// changes beyond this are handled out of band.
func EnsureHistorySchema(ctx context.Context) error {
	_, err := DB.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS lobbies (
			id UUID PRIMARY KEY,
			mode TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'open',
			opened_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			closed_at TIMESTAMPTZ
		);
		CREATE TABLE IF NOT EXISTS lobby_actions (
			id BIGSERIAL PRIMARY KEY,
			game_id UUID NOT NULL,
			player_id UUID,
			action TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			occurred_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS lobby_actions_game_idx ON lobby_actions (game_id, occurred_at);
	`)
	return err
}

// InsertRecordTx persists one history record inside the given transaction,
// maintaining the lobbies summary row alongside the action log.
func InsertRecordTx(ctx context.Context, tx pgx.Tx, rec history.Record) error {
	occurredAt := time.UnixMilli(rec.Timestamp)

	switch rec.Action {
	case history.ActionLobbyCreated:
		_, err := tx.Exec(ctx, `
			INSERT INTO lobbies (id, mode, status, opened_at)
			VALUES ($1, $2, 'open', $3)
			ON CONFLICT (id) DO NOTHING
		`, rec.GameID, rec.Detail, occurredAt)
		if err != nil {
			return err
		}
	case history.ActionLobbyClosed:
		_, err := tx.Exec(ctx, `
			UPDATE lobbies
			SET status = 'closed', closed_at = $2
			WHERE id = $1 AND status = 'open'
		`, rec.GameID, occurredAt)
		if err != nil {
			return err
		}
	}

	var playerID any
	if rec.PlayerID != uuid.Nil {
		playerID = rec.PlayerID
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO lobby_actions (game_id, player_id, action, detail, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.GameID, playerID, rec.Action, rec.Detail, occurredAt)
	return err
}
