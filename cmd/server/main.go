package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/litera-backend/internal/config"
	"github.com/stemsi/litera-backend/internal/database"
	"github.com/stemsi/litera-backend/internal/handler"
	"github.com/stemsi/litera-backend/internal/logger"
	"github.com/stemsi/litera-backend/internal/repository"
	"github.com/stemsi/litera-backend/internal/router"
	"github.com/stemsi/litera-backend/internal/service"
	"github.com/stemsi/litera-backend/internal/validator"
	"github.com/stemsi/litera-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Litera Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	studentRepo := repository.NewStudentRepository(pool)
	adminRepo := repository.NewAdminRepository(pool)
	roleRepo := repository.NewRoleRepository(pool)
	bookRepo := repository.NewBookRepository(pool)
	progressRepo := repository.NewProgressRepository(pool)
	quizRepo := repository.NewQuizRepository(pool)
	stickerRepo := repository.NewStickerRepository(pool)
	settingRepo := repository.NewSettingRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb)
	studentService := service.NewStudentService(studentRepo)
	adminService := service.NewAdminService(adminRepo, roleRepo)
	audioService := service.NewAudioService(cfg, log)
	bookService := service.NewBookService(bookRepo, progressRepo, stickerRepo, rdb, log)
	readingService := service.NewReadingService(bookService, audioService, progressRepo, rdb, log)
	quizService := service.NewQuizService(quizRepo, progressRepo, stickerRepo, rdb, log)
	mediaService := service.NewMediaService(cfg)
	adminUserService := service.NewAdminUserService(pool)
	adminRoleService := service.NewAdminRoleService(roleRepo)
	settingService := service.NewSettingService(settingRepo, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:          handler.NewAuthHandler(authService, studentService, adminService),
		StudentPortal: handler.NewStudentPortalHandler(studentService, bookService, readingService, quizService),
		StudentMgmt:   handler.NewStudentManagementHandler(studentService, authService, readingService),
		Book:          handler.NewBookHandler(bookService, quizService),
		Media:         handler.NewMediaHandler(mediaService),
		WS:            handler.NewWSHandler(studentService, readingService, log, cfg.AllowedOrigins),
		AdminUser:     handler.NewAdminUserHandler(adminUserService),
		AdminRole:     handler.NewAdminRoleHandler(adminRoleService),
		Setting:       handler.NewSettingHandler(settingService),
		System:        handler.NewSystemHandler(rdb, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	checkpointWorker := worker.NewCheckpointWorker(progressRepo, rdb, log)
	purgeWorker := worker.NewPurgeWorker(audioService, rdb, log)

	go checkpointWorker.Start(workerCtx)
	go purgeWorker.Start(workerCtx)

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load the per-grade book catalogs into Redis BEFORE accepting traffic
	// so the morning login rush never stampedes PostgreSQL.
	if err := bookService.Prewarm(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout). Live reading
	//    sessions checkpoint on socket close, so the queue fills up now.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
