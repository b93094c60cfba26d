// cmd/historian/main.go is an asynchronous historian service that pops lobby
// history records from a Redis queue and persists them to PostgreSQL.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"

	"gamehub/internal/config"
	"gamehub/internal/database"
	"gamehub/internal/history"
)

// HistorianService encapsulates the Redis + DB logic for capturing lobby
// history records in batches.
type HistorianService struct {
	redisClient *redis.Client
	queueName   string
	batchSize   int
	flushDelay  time.Duration

	batchMu  sync.Mutex
	batch    []history.Record
	ctx      context.Context
	cancelFn context.CancelFunc
}

// NewHistorianService constructs a HistorianService from environment
// variables or defaults.
func NewHistorianService() *HistorianService {
	rdb := redis.NewClient(&redis.Options{
		Addr: config.GetEnv("REDIS_ADDR", "localhost:6379"),
		DB:   config.GetEnvInt("REDIS_DB", 0),
	})

	batchSize := config.GetEnvInt("HISTORIAN_BATCH_SIZE", 20)
	ctx, cancel := context.WithCancel(context.Background())
	return &HistorianService{
		redisClient: rdb,
		queueName:   config.GetEnv("HISTORIAN_QUEUE_NAME", history.DefaultQueueName),
		batchSize:   batchSize,
		flushDelay:  config.GetEnvDuration("HISTORIAN_FLUSH_INTERVAL", 500*time.Millisecond),
		batch:       make([]history.Record, 0, batchSize),
		ctx:         ctx,
		cancelFn:    cancel,
	}
}

// Run connects to the database, starts the queue reader, and blocks until
// the service is stopped.
func (hs *HistorianService) Run() {
	database.ConnectDB()
	if err := database.EnsureHistorySchema(hs.ctx); err != nil {
		log.Fatalf("ensuring history schema: %v", err)
	}

	go hs.readRedisLoop()

	log.Println("gamehub-historian service started.")
	<-hs.ctx.Done()
	hs.flushBatchToDB()
	log.Println("gamehub-historian shut down.")
}

// Stop cancels the service context.
func (hs *HistorianService) Stop() {
	hs.cancelFn()
}

// readRedisLoop continuously uses BLPop to retrieve records from the Redis
// queue, flushing the accumulated batch on a timer.
func (hs *HistorianService) readRedisLoop() {
	ticker := time.NewTicker(hs.flushDelay)
	defer ticker.Stop()

	for {
		select {
		case <-hs.ctx.Done():
			return

		case <-ticker.C:
			hs.flushBatchToDB()

		default:
			// BLPop with a short timeout so context cancellation is handled.
			res, err := hs.redisClient.BLPop(hs.ctx, 3*time.Second, hs.queueName).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && !errors.Is(err, context.Canceled) {
					log.Printf("[ERROR] BLPop: %v\n", err)
				}
				continue
			}
			if len(res) < 2 {
				continue
			}

			// res[0] is the queue name and res[1] the payload.
			var rec history.Record
			if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
				log.Printf("invalid history record: %v\n", err)
				continue
			}
			hs.appendToBatch(rec)
		}
	}
}

// appendToBatch adds a record to the in-memory batch and flushes if the
// threshold is reached.
func (hs *HistorianService) appendToBatch(rec history.Record) {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()

	hs.batch = append(hs.batch, rec)
	if len(hs.batch) >= hs.batchSize {
		hs.flushBatchLocked()
	}
}

// flushBatchToDB flushes the current batch to the database.
func (hs *HistorianService) flushBatchToDB() {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()
	hs.flushBatchLocked()
}

func (hs *HistorianService) flushBatchLocked() {
	if len(hs.batch) == 0 {
		return
	}
	batchCopy := make([]history.Record, len(hs.batch))
	copy(batchCopy, hs.batch)
	hs.batch = hs.batch[:0]

	ctx := context.Background()
	err := beginTxFunc(ctx, database.DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range batchCopy {
			if err := database.InsertRecordTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("inserting %s record: %w", rec.Action, err)
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("[ERROR] flushing batch: %v\n", err)
	} else {
		log.Printf("Flushed %d records to DB.\n", len(batchCopy))
	}
}

// beginTxFunc starts a transaction on the pool, calls f, and commits or
// rolls back as needed.
func beginTxFunc(ctx context.Context, pool *pgxpool.Pool, txOptions pgx.TxOptions, f func(tx pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, txOptions)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := f(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func main() {
	hs := NewHistorianService()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		hs.Stop()
	}()

	hs.Run()
}
