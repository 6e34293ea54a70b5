package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/litera-backend/internal/config"
	"github.com/stemsi/litera-backend/internal/database"
	"github.com/stemsi/litera-backend/internal/logger"
	"github.com/stemsi/litera-backend/internal/repository"
	"github.com/stemsi/litera-backend/internal/service"
)

// Ops tool: wipe one student x book reading progress and queue the audio
// purge, the same idempotent path the admin reset endpoint takes.
func main() {
	var (
		studentID int
		bookIDStr string
	)
	flag.IntVar(&studentID, "student", 0, "Student ID")
	flag.StringVar(&bookIDStr, "book", "", "Book UUID")
	flag.Parse()

	if studentID <= 0 || bookIDStr == "" {
		fmt.Println("Usage: reset-progress -student <id> -book <uuid>")
		os.Exit(1)
	}

	bookID, err := uuid.Parse(bookIDStr)
	if err != nil {
		fmt.Printf("Invalid book UUID: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	bookRepo := repository.NewBookRepository(pool)
	progressRepo := repository.NewProgressRepository(pool)
	stickerRepo := repository.NewStickerRepository(pool)

	audioService := service.NewAudioService(cfg, log)
	bookService := service.NewBookService(bookRepo, progressRepo, stickerRepo, rdb, log)
	readingService := service.NewReadingService(bookService, audioService, progressRepo, rdb, log)

	if err := readingService.ResetProgress(ctx, studentID, bookID); err != nil {
		log.Fatal().Err(err).Msg("Reset failed")
	}

	fmt.Printf("Progress for student %d on book %s wiped; audio purge queued.\n", studentID, bookID)
	fmt.Println("Run the server (or wait for its purge worker) to process the queue.")
}
