package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tendant/circle-rides/circlerides"
	"github.com/tendant/circle-rides/internal/config"
	"github.com/tendant/circle-rides/internal/housekeeping"
	"github.com/tendant/circle-rides/pkg/carpool"
	"github.com/tendant/circle-rides/pkg/repository"
	"github.com/tendant/circle-rides/pkg/repository/memory"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svcCfg := circlerides.Config{
		JWTSecret:             cfg.JWTSecret,
		JWTIssuer:             cfg.JWTIssuer,
		MemberInvitationQuota: cfg.MemberInvitationQuota,
		RateLimit:             cfg.RateLimit,
		SecurityHeaders:       cfg.SecurityHeaders,
		MaxBodyBytes:          cfg.MaxBodyBytes,
		Logger:                logger,
	}

	switch cfg.StorageDriver {
	case config.StorageMemory:
		logger.Warn("using in-memory storage; data is lost on restart")
		svcCfg.Store = memory.New()
	default:
		db, err := openDatabase(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		svcCfg.DB = db
	}

	svc, err := circlerides.New(svcCfg)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      svc.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server", "addr", server.Addr, "storage", cfg.StorageDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.HousekeepingEnabled {
		scheduler, err := newScheduler(cfg, logger, svc.Rides())
		if err != nil {
			return err
		}
		scheduler.Start()
		g.Go(func() error {
			<-gctx.Done()
			scheduler.Stop()
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sql.DB, error) {
	db, err := repository.NewDB(repository.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("connected to database", "host", cfg.DBHost, "name", cfg.DBName)

	if cfg.AutoMigrate {
		if err := repository.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("database schema applied")
	}
	return db, nil
}

func newScheduler(cfg *config.Config, logger *slog.Logger, rides *carpool.RideService) (*housekeeping.Scheduler, error) {
	return housekeeping.NewScheduler(housekeeping.Config{
		Schedule: cfg.HousekeepingSchedule,
		Lookback: cfg.HousekeepingLookback,
		Logger:   logger,
	}, rides)
}
