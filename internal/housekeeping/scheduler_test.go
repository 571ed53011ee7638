package housekeeping

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/circle-rides/pkg/carpool"
	"github.com/tendant/circle-rides/pkg/domain"
	"github.com/tendant/circle-rides/pkg/repository/memory"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunOnce_DeactivatesArrivedRides(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	store := memory.New()
	cfg := carpool.Config{Logger: discardLogger(), Now: clk.Now}

	memberships := carpool.NewMembershipService(cfg, store)
	rides := carpool.NewRideService(cfg, store)

	owner := uuid.New()
	circle, _, err := memberships.CreateCircleWithOwner(ctx, carpool.CircleSpec{Slug: "commuters", Name: "Commuters", IsPublic: true}, owner)
	require.NoError(t, err)

	short, err := rides.Create(ctx, circle.ID, owner, carpool.RideSpec{
		DepartureLocation: "North",
		ArrivalLocation:   "South",
		DepartureDate:     clk.Now().Add(time.Hour),
		ArrivalDate:       clk.Now().Add(2 * time.Hour),
		AvailableSeats:    3,
	})
	require.NoError(t, err)
	long, err := rides.Create(ctx, circle.ID, owner, carpool.RideSpec{
		DepartureLocation: "North",
		ArrivalLocation:   "Far South",
		DepartureDate:     clk.Now().Add(time.Hour),
		ArrivalDate:       clk.Now().Add(10 * time.Hour),
		AvailableSeats:    3,
	})
	require.NoError(t, err)

	s, err := NewScheduler(Config{Schedule: "@hourly", Lookback: 2 * time.Hour, Logger: discardLogger(), Now: clk.Now}, rides)
	require.NoError(t, err)

	n, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	clk.Advance(3 * time.Hour)
	n, err = s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := rides.Get(ctx, owner, short.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	got, err = rides.Get(ctx, owner, long.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)

	// A second sweep over the same window finds nothing left to do.
	n, err = s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

type failingSweeper struct{}

func (failingSweeper) RidesEndingBetween(context.Context, time.Time, time.Time) ([]*domain.Ride, error) {
	return nil, errors.New("database unavailable")
}

func (failingSweeper) DeactivateRides(context.Context, []uuid.UUID) (int, error) {
	return 0, nil
}

func TestRunOnce_PropagatesErrors(t *testing.T) {
	s, err := NewScheduler(Config{Schedule: "@hourly", Lookback: time.Hour, Logger: discardLogger()}, failingSweeper{})
	require.NoError(t, err)

	_, err = s.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestNewScheduler_Validation(t *testing.T) {
	_, err := NewScheduler(Config{Schedule: "not a schedule", Lookback: time.Hour}, failingSweeper{})
	assert.Error(t, err)

	_, err = NewScheduler(Config{Schedule: "@hourly"}, failingSweeper{})
	assert.Error(t, err)

	s, err := NewScheduler(Config{Schedule: "*/5 * * * *", Lookback: time.Hour, Logger: discardLogger()}, failingSweeper{})
	require.NoError(t, err)
	s.Start()
	s.Stop()
}
