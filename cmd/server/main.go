// Package main is the entrypoint for the PhotoPilot API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/photopilot/photopilot/internal/ai/factory"
	"github.com/photopilot/photopilot/internal/api"
	"github.com/photopilot/photopilot/internal/api/handler"
	mw "github.com/photopilot/photopilot/internal/api/middleware"
	"github.com/photopilot/photopilot/internal/api/response"
	"github.com/photopilot/photopilot/internal/assets"
	"github.com/photopilot/photopilot/internal/cache"
	"github.com/photopilot/photopilot/internal/config"
	"github.com/photopilot/photopilot/internal/feed"
	"github.com/photopilot/photopilot/internal/jobs"
	"github.com/photopilot/photopilot/internal/store"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env if present; real environments set vars directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("parse redis URL: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	redisCache := cache.NewRedisCacheFromClient(redisClient)

	provider, err := factory.NewProvider(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}
	slog.Info("vision provider initialized", "provider", provider.Name())

	pgStore := store.NewPostgresStore(pool)
	assetClient := assets.NewHTTPClient(cfg.Assets.BaseURL, cfg.Assets.Token, cfg.Assets.Timeout)

	publisher := feed.NewRedisPublisher(redisClient)
	broker := feed.NewBroker(redisClient)
	defer broker.Close()

	processor := jobs.NewProcessor(jobs.ProcessorConfig{
		Store:            pgStore,
		Assets:           assetClient,
		Provider:         provider,
		Publisher:        publisher,
		InferencePerSec:  cfg.Worker.InferencePerSec,
		HandleTTL:        cfg.Assets.HandleTTL,
		InferenceTimeout: cfg.AI.InferenceTimeout,
	})
	worker := jobs.NewWorker(jobs.WorkerConfig{
		Store:           pgStore,
		Cache:           redisCache,
		Publisher:       publisher,
		Processor:       processor,
		ChunkSize:       cfg.Worker.ChunkSize,
		InterChunkDelay: cfg.Worker.InterChunkDelay,
	})
	jobService := jobs.NewService(pgStore, redisCache, publisher, worker)

	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, 60)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler: healthHandler(pgStore, redisCache),

		CreateJobHandler: handler.NewCreateJobHandler(jobService),
		GetJobHandler:    handler.NewGetJobHandler(jobService),
		ListJobsHandler:  handler.NewListJobsHandler(jobService),

		ListPhotosHandler:   handler.NewListPhotosHandler(pgStore),
		RegisterPhoto:       handler.NewRegisterPhotoHandler(pgStore, publisher),
		RenamePhotoHandler:  handler.NewRenamePhotoHandler(pgStore, publisher),
		DeletePhotosHandler: handler.NewDeletePhotosHandler(pgStore, assetClient, publisher),

		EventsHandler: handler.NewEventsHandler(broker),

		CreateKeyHandler: handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:  handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // the SSE feed holds connections open
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		if checks["database"] != "ok" || checks["cache"] != "ok" {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
