package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"galaxy-server/internal/galaxy"
	"galaxy-server/internal/middleware"
	"galaxy-server/internal/server"
	serverHandlers "galaxy-server/internal/server/handlers"
	"galaxy-server/internal/shared/config"
	"galaxy-server/internal/shared/database"
	"galaxy-server/internal/shared/logger"
	"galaxy-server/internal/shared/redis"
	"galaxy-server/internal/tables"
	"galaxy-server/internal/task"
	"galaxy-server/internal/universe"
)

func main() {
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init()

	if err := run(); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.GlobalConfig
	log := slog.With("component", "main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		repo     universe.Repository
		dbPinger serverHandlers.Pinger
	)
	if cfg.Database.Enabled {
		db, err := database.Connect(ctx)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		var migrations fs.FS = universe.Migrations
		if cfg.Database.MigrationsPath != "" {
			migrations = os.DirFS(cfg.Database.MigrationsPath)
		}
		if err := db.RunMigrations(ctx, migrations); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		repo = universe.NewPostgresRepository(db, slog.Default())
		dbPinger = db.PingContext
	} else {
		log.Info("Database disabled, committed regions live in memory only")
		repo = universe.NewMemoryRepository()
	}

	rdb, err := redis.Connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer rdb.Close()

	var (
		taskStore   task.Store
		locker      galaxy.Locker
		redisPinger serverHandlers.Pinger
	)
	if rdb != nil {
		taskStore = task.NewRedisStore(rdb.Client, cfg.Generation.TaskTTL)
		locker = galaxy.NewRedisLocker(rdb.Client, slog.Default())
		redisPinger = rdb.Ping
	} else {
		taskStore = task.NewMemoryStore(cfg.Generation.TaskTTL)
		locker = galaxy.NewMemoryLocker()
	}

	t, err := tables.Load(cfg.Generation.TablesPath)
	if err != nil {
		return fmt.Errorf("failed to load generation tables: %w", err)
	}

	store := universe.NewStore()
	archive := universe.NewArchive(cfg.Generation.ArchiveDir, slog.Default())
	restored, err := archive.Restore(store)
	if err != nil {
		return fmt.Errorf("failed to restore archived regions: %w", err)
	}
	hydrated, err := store.Hydrate(ctx, repo)
	if err != nil {
		return fmt.Errorf("failed to load committed regions: %w", err)
	}
	log.Info("Committed regions loaded", "from_archive", restored, "from_database", hydrated)

	blueprint, err := galaxy.NewBlueprint(t, store, repo, archive, locker, galaxy.Options{
		Workers:     cfg.Generation.Workers,
		DefaultSeed: cfg.Generation.DefaultSeed,
		LockTTL:     cfg.Generation.LockTTL,
	}, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to build generation pipeline: %w", err)
	}
	tasks := task.NewManager(taskStore, slog.Default())
	service := galaxy.NewService(blueprint, tasks, slog.Default())

	health := serverHandlers.NewHealthHandler(dbPinger, redisPinger, store)
	mux := server.NewRoutes(service, health, cfg.Frontend.URL, slog.Default()).Setup()

	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.BurstSize,
		Enabled:           cfg.RateLimit.Enabled,
	})
	go limiter.Run(ctx)

	handler := middleware.NewCORS(cfg.Frontend).Middleware(limiter.Middleware(mux))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Galaxy server starting", "port", cfg.Server.Port, "environment", cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to serve: %w", err)
		}
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shut down HTTP server", "error", err)
	}
	if err := service.Shutdown(shutdownCtx); err != nil {
		log.Error("Generation tasks did not stop in time", "error", err)
	}
	log.Info("Server stopped")
	return nil
}
