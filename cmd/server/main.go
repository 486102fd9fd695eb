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

	"github.com/elivate/elivate-backend/internal/cache"
	"github.com/elivate/elivate-backend/internal/config"
	"github.com/elivate/elivate-backend/internal/database"
	"github.com/elivate/elivate-backend/internal/handler"
	"github.com/elivate/elivate-backend/internal/logger"
	"github.com/elivate/elivate-backend/internal/middleware"
	"github.com/elivate/elivate-backend/internal/repository"
	"github.com/elivate/elivate-backend/internal/router"
	"github.com/elivate/elivate-backend/internal/service"
	"github.com/elivate/elivate-backend/internal/validator"
	"github.com/elivate/elivate-backend/internal/worker"
	"github.com/rs/zerolog"
	"k8s.io/utils/clock"
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
		Msg("Starting Elivate Backend")

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
	questionRepo := repository.NewQuestionRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	verifier := service.NewTokenVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	sessionService := service.NewExamSessionService(service.ExamSessionDeps{
		Questions: questionRepo,
		Cache:     cache.NewRedisSessionCache(rdb),
		Sink:      worker.NewAttemptQueue(rdb),
		Notifier:  service.NewAchievementPublisher(rdb),
		Clock:     clock.RealClock{},
		Grace:     cfg.SessionGrace,
	}, log)
	catalogService := service.NewCatalogService(questionRepo)
	attemptService := service.NewAttemptService(attemptRepo)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Catalog:     handler.NewCatalogHandler(catalogService),
		ExamSession: handler.NewExamSessionHandler(sessionService),
		Attempt:     handler.NewAttemptHandler(attemptService),
		WS:          handler.NewWSHandler(sessionService, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	attemptWorker := worker.NewAttemptWorker(attemptRepo, rdb, log)
	workers.Add(1)
	go func() {
		defer workers.Done()
		attemptWorker.Start(workerCtx)
	}()

	limiter := middleware.NewRateLimiter(cfg.SessionRatePerMinute, time.Minute)
	workers.Add(1)
	go func() {
		defer workers.Done()
		sweepVisitors(workerCtx, limiter)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(verifier, limiter, handlers, cfg, log)

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

	// 2. Stop countdowns and hand pending attempts to the queue. Sessions
	// stay in Redis and resume on the next start.
	sessionService.Shutdown()

	// 3. Stop background workers; the attempt worker flushes its batch.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

func sweepVisitors(ctx context.Context, limiter *middleware.RateLimiter) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Sweep(10 * time.Minute)
		}
	}
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
