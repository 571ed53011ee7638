// Package housekeeping runs periodic maintenance over rides.
package housekeeping

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/tendant/circle-rides/pkg/domain"
)

// RideSweeper is the slice of the ride board the scheduler needs.
type RideSweeper interface {
	RidesEndingBetween(ctx context.Context, start, end time.Time) ([]*domain.Ride, error)
	DeactivateRides(ctx context.Context, ids []uuid.UUID) (int, error)
}

// Config holds scheduler settings.
type Config struct {
	// Schedule is a cron spec or descriptor such as "@hourly".
	Schedule string
	// Lookback is how far back from now arrivals are swept.
	Lookback time.Duration
	// JobTimeout bounds a single run.
	JobTimeout time.Duration
	Logger     *slog.Logger
	Now        func() time.Time
}

// Scheduler deactivates rides whose arrival time has passed.
type Scheduler struct {
	cron   *cron.Cron
	rides  RideSweeper
	config Config
}

// NewScheduler creates a scheduler. The schedule is parsed up front so a bad
// spec fails at startup.
func NewScheduler(cfg Config, rides RideSweeper) (*Scheduler, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Minute
	}
	if cfg.Lookback <= 0 {
		return nil, fmt.Errorf("housekeeping lookback must be positive, got %s", cfg.Lookback)
	}

	logger := cronLogger{cfg.Logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		rides:  rides,
		config: cfg,
	}

	if _, err := s.cron.AddFunc(cfg.Schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid housekeeping schedule %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.config.Logger.Info("housekeeping scheduler started", "schedule", s.config.Schedule, "lookback", s.config.Lookback.String())
}

// Stop waits for a running job to finish and stops the scheduler.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.config.Logger.Info("housekeeping scheduler stopped")
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.JobTimeout)
	defer cancel()

	if _, err := s.RunOnce(ctx); err != nil {
		s.config.Logger.Error("housekeeping run failed", "error", err)
	}
}

// RunOnce deactivates active rides that arrived within the lookback window
// ending now and returns how many were changed.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	now := s.config.Now()
	start := now.Add(-s.config.Lookback)

	rides, err := s.rides.RidesEndingBetween(ctx, start, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list finished rides: %w", err)
	}
	if len(rides) == 0 {
		return 0, nil
	}

	ids := make([]uuid.UUID, 0, len(rides))
	for _, r := range rides {
		ids = append(ids, r.ID)
	}

	n, err := s.rides.DeactivateRides(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate rides: %w", err)
	}

	s.config.Logger.Info("deactivated finished rides",
		"count", n,
		"window_start", start,
		"window_end", now,
	)
	return n, nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
