// internal/database/db.go
//
// Postgres pool for the historian. The game server itself never touches the
// database; lobby state is in-memory only and history flows through Redis.
package database

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"gamehub/internal/config"
)

var DB *pgxpool.Pool

func connString() string {
	u := url.URL{
		Scheme: "postgres",
		User: url.UserPassword(
			config.GetEnv("POSTGRES_USER", "postgres"),
			config.GetEnv("POSTGRES_PASSWORD", ""),
		),
		Host: fmt.Sprintf("%s:%s",
			config.GetEnv("PG_HOST", "localhost"),
			config.GetEnv("PG_PORT", "5432"),
		),
		Path: config.GetEnv("PG_DATABASE", "gamehub"),
	}
	return u.String()
}

// ConnectDB initializes the shared pool from the POSTGRES_* / PG_* env
// vars. Fatal on failure: the historian is useless without its store.
func ConnectDB() {
	cfg, err := pgxpool.ParseConfig(connString())
	if err != nil {
		log.Fatalf("unable to parse pgx config: %v", err)
	}
	cfg.MaxConns = int32(config.GetEnvInt("PG_MAX_CONNS", 4))

	DB, err = pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		log.Fatalf("unable to create pgx pool: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := DB.Ping(ctx); err != nil {
		log.Fatalf("db ping error: %v", err)
	}

	log.Printf("Connected to database %s on %s",
		config.GetEnv("PG_DATABASE", "gamehub"), config.GetEnv("PG_HOST", "localhost"))
}
