package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/litera-backend/internal/config"
	"github.com/stemsi/litera-backend/internal/service"
)

// PurgeWorker consumes purge_audio_queue and removes all stored audio for a
// (student, book) pair. Admin resets enqueue here so the HTTP path returns
// before the filesystem work runs.
type PurgeWorker struct {
	audioSvc *service.AudioService
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewPurgeWorker creates a new PurgeWorker.
func NewPurgeWorker(audioSvc *service.AudioService, rdb *redis.Client, log zerolog.Logger) *PurgeWorker {
	return &PurgeWorker{
		audioSvc: audioSvc,
		rdb:      rdb,
		log:      log.With().Str("component", "purge_worker").Logger(),
	}
}

type purgeJob struct {
	StudentID int    `json:"student_id"`
	BookID    string `json:"book_id"`
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *PurgeWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *PurgeWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.PurgeAudioQueue).Result()
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

	if err := w.purge(ctx, result[1]); err != nil {
		w.log.Error().Err(err).Msg("Purge error, retrying in 5s")
		w.rdb.RPush(ctx, config.WorkerKey.PurgeAudioQueue, result[1])
		time.Sleep(5 * time.Second)
	}
}

func (w *PurgeWorker) purge(ctx context.Context, raw string) error {
	var job purgeJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		// Malformed jobs are dropped, not retried.
		w.log.Error().Err(err).Msg("Unmarshal error")
		return nil
	}

	bookID, err := uuid.Parse(job.BookID)
	if err != nil {
		w.log.Error().Err(err).Str("book_id", job.BookID).Msg("Bad book ID in purge job")
		return nil
	}

	if err := w.audioSvc.DeleteAll(ctx, job.StudentID, bookID); err != nil {
		return err
	}

	w.log.Info().
		Int("student_id", job.StudentID).
		Str("book_id", job.BookID).
		Msg("Audio purged")
	return nil
}

// drain processes all remaining items in the queue before shutdown.
func (w *PurgeWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.PurgeAudioQueue).Result()
		if err != nil {
			break
		}
		if err := w.purge(ctx, result); err != nil {
			w.log.Error().Err(err).Msg("Drain purge error")
			w.rdb.RPush(ctx, config.WorkerKey.PurgeAudioQueue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining purge jobs")
	}
}
