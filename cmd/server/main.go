package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nefziamine/skill-evaluator/internal/config"
	"github.com/nefziamine/skill-evaluator/internal/database"
	"github.com/nefziamine/skill-evaluator/internal/event"
	"github.com/nefziamine/skill-evaluator/internal/handler"
	"github.com/nefziamine/skill-evaluator/internal/logger"
	"github.com/nefziamine/skill-evaluator/internal/repository"
	"github.com/nefziamine/skill-evaluator/internal/router"
	"github.com/nefziamine/skill-evaluator/internal/service"
	"github.com/nefziamine/skill-evaluator/internal/validator"
	"github.com/nefziamine/skill-evaluator/internal/worker"
	"github.com/rs/zerolog"
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
		Msg("Starting skill evaluator backend")

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

	// ─── Connect to RabbitMQ ───────────────────────────────────────────
	publisher, err := event.NewEventPublisher(cfg.AMQPURL, log)
	if err != nil {
		log.Warn().Err(err).Msg("Event publisher unavailable, continuing without events")
		publisher, _ = event.NewEventPublisher("", log)
	}
	defer publisher.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	userRepo := repository.NewUserRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	testRepo := repository.NewTestRepository(pool)
	sessionRepo := repository.NewTestSessionRepository(pool)
	settingRepo := repository.NewSettingRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, userRepo, rdb)
	settingService := service.NewSettingService(settingRepo, log)
	questionService := service.NewQuestionService(questionRepo)
	testService := service.NewTestService(testRepo, questionRepo, rdb, log)
	sessionService := service.NewSessionService(cfg, sessionRepo, testService, settingService, rdb, publisher, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:      handler.NewAuthHandler(authService, log),
		Candidate: handler.NewCandidateHandler(testService, sessionService, log),
		Question:  handler.NewQuestionHandler(questionService, log),
		Test:      handler.NewTestHandler(testService, sessionService, log),
		AdminUser: handler.NewAdminUserHandler(authService, log),
		Setting:   handler.NewSettingHandler(settingService, log),
		System:    handler.NewSystemHandler(pool, rdb, log),
		WS:        handler.NewWSHandler(sessionService, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	autosaveWorker := worker.NewAutosaveWorker(sessionRepo, rdb, log)
	expiryWorker := worker.NewExpiryWorker(sessionService, cfg.ExpirySweep, log)

	workers.Add(2)
	go func() {
		defer workers.Done()
		autosaveWorker.Start(workerCtx)
	}()
	go func() {
		defer workers.Done()
		expiryWorker.Start(workerCtx)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, authService, handlers, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for the autosave queue to drain.
	workerCancel()
	drained := make(chan struct{})
	go func() {
		workers.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(10 * time.Second):
		log.Warn().Msg("Workers did not stop in time")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
