// Package main is the entrypoint for the PulseHound pipeline server.
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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kiranshivaraju/pulsehound/internal/aggregate"
	"github.com/kiranshivaraju/pulsehound/internal/ai/factory"
	"github.com/kiranshivaraju/pulsehound/internal/api"
	"github.com/kiranshivaraju/pulsehound/internal/api/handler"
	"github.com/kiranshivaraju/pulsehound/internal/api/response"
	"github.com/kiranshivaraju/pulsehound/internal/cache"
	"github.com/kiranshivaraju/pulsehound/internal/config"
	"github.com/kiranshivaraju/pulsehound/internal/detect"
	"github.com/kiranshivaraju/pulsehound/internal/dispatch"
	"github.com/kiranshivaraju/pulsehound/internal/metrics"
	"github.com/kiranshivaraju/pulsehound/internal/notify"
	"github.com/kiranshivaraju/pulsehound/internal/scheduler"
	"github.com/kiranshivaraju/pulsehound/internal/snapshot"
	"github.com/kiranshivaraju/pulsehound/internal/store"

	"github.com/jackc/pgx/v5/pgxpool"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Best-effort: a missing .env is fine outside local development.
	_ = godotenv.Load()

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, failing fast on invalid values
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"ai_providers", cfg.AI.Providers(),
		"aggregation_interval", cfg.Pipeline.AggregationInterval,
		"detection_interval", cfg.Pipeline.DetectionInterval,
		"env", cfg.Server.Env,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to both stores, with bounded retries at fixed delay
	pool, err := connectDatabase(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	redisCache, err := connectRedis(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisCache.Close()
	slog.Info("redis connected")

	// 4. Create AI provider chain (may be empty: dispatch then aborts cleanly)
	providers, err := factory.NewChain(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI providers: %w", err)
	}
	if len(providers) == 0 {
		slog.Warn("no AI providers configured, root-cause analysis disabled")
	}

	// 5. Notification sink: NATS when configured, otherwise a noop
	var notifier notify.Notifier = notify.Noop{}
	if cfg.NATS.URL != "" {
		n, err := notify.NewNATSNotifier(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		notifier = n
		slog.Info("nats connected", "subject", cfg.NATS.Subject)
	} else {
		slog.Warn("NATS_URL not set, notifications disabled")
	}
	defer notifier.Close()

	// 6. Wire the pipeline
	pgStore := store.NewPostgresStore(pool)
	snapStore := snapshot.NewStore(redisCache)
	cooldown := detect.NewCooldown(cfg.Pipeline.Cooldown)

	aggregator := aggregate.New(pgStore, snapStore,
		cfg.Pipeline.AggregationWindowMins, cfg.Pipeline.SnapshotTTL)

	dispatcher := dispatch.New(pgStore, redisCache, providers, notifier, dispatch.Options{
		LookbackMinutes:  cfg.Pipeline.ContextLookbackMins,
		MaxContextLines:  cfg.Pipeline.ContextMaxLines,
		AnalysisTTL:      cfg.Pipeline.AnalysisTTL,
		InferenceTimeout: cfg.AI.InferenceTimeout,
	})

	sched := scheduler.New(aggregator, snapStore, cooldown, dispatcher,
		cfg.Pipeline.AggregationInterval, cfg.Pipeline.DetectionInterval,
		cfg.Pipeline.HistorySnapshots)

	// 7. Metrics + HTTP surface
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	router := api.NewRouter(api.Dependencies{
		HealthHandler:  healthHandler(cfg, pgStore, redisCache, notifier),
		ListAnalyses:   handler.ListAnalyses(pgStore),
		MetricsHandler: promhttp.Handler(),
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
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

	// 8. Run the pipeline until shutdown
	schedDone := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(schedDone)
	}()
	slog.Info("pipeline started")

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining...")
	}

	// Stop accepting scheduled ticks; an in-flight cycle may finish or be
	// abandoned.
	<-schedDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// connectDatabase retries the initial connection a bounded number of times
// with a fixed delay, then gives up and lets the process exit non-zero.
func connectDatabase(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	var lastErr error
	for attempt := 1; attempt <= cfg.Pipeline.StartupMaxAttempts; attempt++ {
		pool, err := store.Connect(ctx, cfg.Database)
		if err == nil {
			return pool, nil
		}
		lastErr = err
		slog.Warn("database not reachable, retrying",
			"attempt", attempt, "max_attempts", cfg.Pipeline.StartupMaxAttempts, "error", err)
		select {
		case <-time.After(cfg.Pipeline.StartupRetryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func connectRedis(ctx context.Context, cfg *config.Config) (*cache.RedisCache, error) {
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.Pipeline.StartupMaxAttempts; attempt++ {
		if err := redisCache.Ping(ctx); err == nil {
			return redisCache, nil
		} else {
			lastErr = err
			slog.Warn("redis not reachable, retrying",
				"attempt", attempt, "max_attempts", cfg.Pipeline.StartupMaxAttempts, "error", err)
		}
		select {
		case <-time.After(cfg.Pipeline.StartupRetryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// healthHandler reports configured-vs-unconfigured status of the pipeline's
// collaborators plus live connectivity checks.
func healthHandler(cfg *config.Config, s store.Store, c cache.Cache, n notify.Notifier) http.HandlerFunc {
	_, notificationsEnabled := n.(*notify.NATSNotifier)

	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"raw_store":      "ok",
			"snapshot_store": "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["raw_store"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["snapshot_store"] = "degraded"
		}

		degraded := checks["raw_store"] != "ok" || checks["snapshot_store"] != "ok"
		status := "ok"
		if degraded {
			status = "degraded"
		}
		body := map[string]any{
			"status":   status,
			"services": checks,
			"pipeline": map[string]any{
				"detection_interval":    cfg.Pipeline.DetectionInterval.String(),
				"aggregation_interval":  cfg.Pipeline.AggregationInterval.String(),
				"cooldown_window":       cfg.Pipeline.Cooldown.String(),
				"ai_providers":          cfg.AI.Providers(),
				"notifications_enabled": notificationsEnabled,
			},
		}

		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", body)
			return
		}

		response.JSON(w, body)
	}
}
