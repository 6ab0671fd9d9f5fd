/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave request engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env, config.yml and environment (config package)
  2. Parse command-line flags (override config)
  3. Build logger and metrics registry
  4. Initialize SQLite store, seed the preset policy catalog if empty
  5. Build notifier (Redis when REDIS_URL is set, always the log notifier)
  6. Create request service, sweeper, handlers and router
  7. Run HTTP server and sweep scheduler under one errgroup

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: PORT or 8080)
  -db      SQLite database path (default: DB_PATH or licenses.db)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the sweep scheduler
  4. Close database connection

ENVIRONMENT:
  See config/config.go for every key.

EXAMPLES:
  # Run with file database
  ./server -db="./data/licenses.db"

  # Run with in-memory database and Redis notifications
  REDIS_URL=redis://localhost:6379/0 ./server -db=":memory:"

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Sweep scheduler
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/warp/license-engine/api"
	"github.com/warp/license-engine/config"
	"github.com/warp/license-engine/factory"
	"github.com/warp/license-engine/license"
	"github.com/warp/license-engine/notify"
	"github.com/warp/license-engine/observability"
	"github.com/warp/license-engine/store/sqlite"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.AppEnv)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, *port, *dbPath, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
	logger.Info("server stopped")
}

func run(cfg *config.Config, port int, dbPath string, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(reg)

	// Initialize store
	store, err := sqlite.New(dbPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	if cfg.PolicySeed {
		if err := seedPolicies(ctx, store, logger); err != nil {
			return err
		}
	}

	notifier, closeNotifier, err := buildNotifier(cfg, logger)
	if err != nil {
		return err
	}
	defer closeNotifier()

	// Services
	svc := license.NewRequestService(store, store, logger, metrics)
	svc.Notifier = notifier
	svc.Classifier = license.NewKeywordClassifier()
	sweeper := license.NewExpirationSweeper(store, store, notifier, logger, metrics)

	handler := api.NewHandler(svc, sweeper, store, store, logger)
	handler.Ping = store.Ping
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.Origins(),
		Gatherer:       reg,
	})

	scheduler := api.NewSweepScheduler(sweeper, logger)
	scheduler.CheckInterval = cfg.SweepInterval
	scheduler.Enabled = cfg.SweepEnabled

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", zap.Int("port", port), zap.String("db", dbPath))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// seedPolicies stores the preset catalog when no policy exists yet.
func seedPolicies(ctx context.Context, store *sqlite.Store, logger *zap.Logger) error {
	existing, err := store.ListPolicies(ctx)
	if err != nil {
		return fmt.Errorf("list policies: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	presets, err := factory.NewPolicyFactory().ParseCatalog(factory.PresetCatalogJSON())
	if err != nil {
		return fmt.Errorf("parse preset catalog: %w", err)
	}
	for _, p := range presets {
		if err := store.SavePolicy(ctx, p); err != nil {
			return fmt.Errorf("seed policy %s: %w", p.ID, err)
		}
	}
	logger.Info("seeded preset policy catalog", zap.Int("policies", len(presets)))
	return nil
}

func buildNotifier(cfg *config.Config, logger *zap.Logger) (license.Notifier, func(), error) {
	fanout := notify.Fanout{notify.LogNotifier{Logger: logger}}
	if cfg.RedisURL == "" {
		return fanout, func() {}, nil
	}

	rdb, err := notify.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	fanout = append(fanout, notify.NewRedisNotifier(rdb, cfg.NotifyChannelPrefix))
	logger.Info("redis notifications enabled", zap.String("prefix", cfg.NotifyChannelPrefix))
	return fanout, func() { _ = rdb.Close() }, nil
}
