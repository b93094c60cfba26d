// internal/history/recorder.go
//
// Asynchronous lobby history pipeline. The dispatch runtime emits one
// Record per interesting lobby event; the recorder forwards them to a Redis
// list from a background goroutine, where the historian service (see
// cmd/historian) picks them up and persists them to Postgres. The runtime
// side never blocks: if the buffer is full the record is dropped with a
// warning.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"gamehub/internal/config"
)

// DefaultQueueName is the Redis list the recorder pushes to.
const DefaultQueueName = "gamehub_actions"

// Lobby history actions.
const (
	ActionLobbyCreated   = "lobby_created"
	ActionLobbyClosed    = "lobby_closed"
	ActionPlayerJoined   = "player_joined"
	ActionPlayerLeft     = "player_left"
	ActionPlayerKicked   = "player_kicked"
	ActionLeaderPromoted = "leader_promoted"
	ActionInnerMessage   = "inner_message"
)

// Record is a single lobby history entry.
type Record struct {
	GameID    uuid.UUID `json:"game_id"`
	PlayerID  uuid.UUID `json:"player_id"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// Recorder buffers records and pushes them to Redis in the background. A
// nil *Recorder is valid and records nothing, so callers don't need to
// guard the disabled case.
type Recorder struct {
	rdb    *redis.Client
	queue  string
	logger *logrus.Logger
	ch     chan Record
	done   chan struct{}
}

// Connect builds a recorder from the environment. Returns (nil, nil) when
// REDIS_ADDR is unset, which disables history entirely.
func Connect(logger *logrus.Logger) (*Recorder, error) {
	addr := config.GetEnv("REDIS_ADDR", "")
	if addr == "" {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   config.GetEnvInt("REDIS_DB", 0),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis at %s: %w", addr, err)
	}

	r := &Recorder{
		rdb:    rdb,
		queue:  config.GetEnv("HISTORIAN_QUEUE_NAME", DefaultQueueName),
		logger: logger,
		ch:     make(chan Record, 256),
		done:   make(chan struct{}),
	}
	go r.pushLoop()
	return r, nil
}

// Record enqueues a history entry without blocking. Entries are dropped if
// the buffer is full or the recorder is nil.
func (r *Recorder) Record(rec Record) {
	if r == nil {
		return
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().UnixMilli()
	}
	select {
	case r.ch <- rec:
	default:
		r.logger.Warnf("history buffer full, dropping %s for lobby %s", rec.Action, rec.GameID)
	}
}

// Close stops the push loop after draining buffered records.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	close(r.ch)
	<-r.done
}

func (r *Recorder) pushLoop() {
	defer close(r.done)
	for rec := range r.ch {
		data, err := json.Marshal(rec)
		if err != nil {
			r.logger.Warnf("marshal history record: %v", err)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err = r.rdb.RPush(ctx, r.queue, data).Err()
		cancel()
		if err != nil {
			r.logger.Warnf("RPush to %s: %v", r.queue, err)
		}
	}
}
