package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/litera-backend/internal/config"
	"github.com/stemsi/litera-backend/internal/model"
	"github.com/stemsi/litera-backend/internal/repository"
)

// CheckpointWorker consumes persist_progress_queue and UPSERTs reading
// progress documents to PostgreSQL. Sessions write checkpoints to Redis and
// this queue so a tick never waits on the database.
type CheckpointWorker struct {
	progressRepo *repository.ProgressRepository
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewCheckpointWorker creates a new CheckpointWorker.
func NewCheckpointWorker(progressRepo *repository.ProgressRepository, rdb *redis.Client, log zerolog.Logger) *CheckpointWorker {
	return &CheckpointWorker{
		progressRepo: progressRepo,
		rdb:          rdb,
		log:          log.With().Str("component", "checkpoint_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *CheckpointWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *CheckpointWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or timeout (1 second).
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.PersistProgressQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			if err.Error() != "redis: nil" {
				w.log.Error().Err(err).Msg("BLPop error")
			}
		}
		return
	}

	if len(result) < 2 {
		return
	}

	var progress model.ReadingProgress
	if err := json.Unmarshal([]byte(result[1]), &progress); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		return
	}

	if err := w.progressRepo.Upsert(ctx, &progress); err != nil {
		w.log.Error().Err(err).
			Int("student_id", progress.StudentID).
			Str("book_id", progress.BookID.String()).
			Msg("Persist error, retrying in 5s")
		// Push back to queue for retry.
		w.rdb.RPush(ctx, config.WorkerKey.PersistProgressQueue, result[1])
		time.Sleep(5 * time.Second)
	}
}

// drain processes all remaining items in the queue before shutdown.
func (w *CheckpointWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.PersistProgressQueue).Result()
		if err != nil {
			break
		}

		var progress model.ReadingProgress
		if err := json.Unmarshal([]byte(result), &progress); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		if err := w.progressRepo.Upsert(ctx, &progress); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, config.WorkerKey.PersistProgressQueue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining checkpoints")
	}
}
