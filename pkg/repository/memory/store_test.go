package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/circle-rides/pkg/carpool"
	"github.com/tendant/circle-rides/pkg/domain"
)

func seedCircle(t *testing.T, s *Store, slug string) *domain.Circle {
	t.Helper()
	now := time.Now()
	c := &domain.Circle{ID: uuid.New(), Slug: slug, Name: slug, IsPublic: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.InTx(context.Background(), func(tx carpool.Tx) error {
		return tx.CreateCircle(context.Background(), c)
	}))
	return c
}

func TestStore_RollbackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx carpool.Tx) error {
		c := &domain.Circle{ID: uuid.New(), Slug: "rolled-back", Name: "x"}
		require.NoError(t, tx.CreateCircle(ctx, c))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = s.InTx(ctx, func(tx carpool.Tx) error {
		_, err := tx.GetCircleBySlug(ctx, "rolled-back")
		return err
	})
	assert.ErrorIs(t, err, domain.ErrCircleNotFound)
}

func TestStore_CancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())

	err := s.InTx(ctx, func(tx carpool.Tx) error {
		cancel()
		return tx.CreateCircle(ctx, &domain.Circle{ID: uuid.New(), Slug: "late", Name: "x"})
	})
	assert.ErrorIs(t, err, context.Canceled)

	err = s.InTx(context.Background(), func(tx carpool.Tx) error {
		_, err := tx.GetCircleBySlug(context.Background(), "late")
		return err
	})
	assert.ErrorIs(t, err, domain.ErrCircleNotFound)
}

func TestStore_UniquenessRules(t *testing.T) {
	s := New()
	ctx := context.Background()
	circle := seedCircle(t, s, "unique")
	user := uuid.New()
	now := time.Now()

	err := s.InTx(ctx, func(tx carpool.Tx) error {
		return tx.CreateCircle(ctx, &domain.Circle{ID: uuid.New(), Slug: "unique", Name: "dup"})
	})
	assert.ErrorIs(t, err, domain.ErrSlugTaken)

	first := &domain.Membership{ID: uuid.New(), UserID: user, CircleID: circle.ID, IsActive: true, CreatedAt: now}
	require.NoError(t, s.InTx(ctx, func(tx carpool.Tx) error { return tx.CreateMembership(ctx, first) }))

	err = s.InTx(ctx, func(tx carpool.Tx) error {
		return tx.CreateMembership(ctx, &domain.Membership{ID: uuid.New(), UserID: user, CircleID: circle.ID, IsActive: true})
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyMember)

	// Only active memberships are unique per user and circle.
	require.NoError(t, s.InTx(ctx, func(tx carpool.Tx) error {
		if err := tx.DeactivateMembership(ctx, first.ID); err != nil {
			return err
		}
		return tx.CreateMembership(ctx, &domain.Membership{ID: uuid.New(), UserID: user, CircleID: circle.ID, IsActive: true})
	}))

	inv := &domain.Invitation{ID: uuid.New(), Code: "ABCDEFGH23", CircleID: circle.ID, IssuedBy: first.ID}
	require.NoError(t, s.InTx(ctx, func(tx carpool.Tx) error {
		if err := tx.CreateInvitation(ctx, inv); err != nil {
			return err
		}
		// A collision does not poison the rest of the transaction.
		dup := &domain.Invitation{ID: uuid.New(), Code: inv.Code, CircleID: circle.ID, IssuedBy: first.ID}
		if err := tx.CreateInvitation(ctx, dup); !errors.Is(err, domain.ErrDuplicateInvitationCode) {
			return err
		}
		return tx.CreateInvitation(ctx, &domain.Invitation{ID: uuid.New(), Code: "ZZZZZZZZ22", CircleID: circle.ID, IssuedBy: first.ID})
	}))

	err = s.InTx(ctx, func(tx carpool.Tx) error {
		if err := tx.MarkInvitationUsed(ctx, inv.ID, user, now); err != nil {
			return err
		}
		return tx.MarkInvitationUsed(ctx, inv.ID, uuid.New(), now)
	})
	assert.ErrorIs(t, err, domain.ErrInvitationUsed)
}

func TestStore_RideSeatsAndRatings(t *testing.T) {
	s := New()
	ctx := context.Background()
	circle := seedCircle(t, s, "rides")
	now := time.Now()
	ride := &domain.Ride{
		ID: uuid.New(), CircleID: circle.ID, OfferedBy: uuid.New(),
		DepartureDate: now.Add(time.Hour), ArrivalDate: now.Add(2 * time.Hour),
		AvailableSeats: 1, IsActive: true,
	}
	passenger := uuid.New()

	require.NoError(t, s.InTx(ctx, func(tx carpool.Tx) error {
		if err := tx.CreateRide(ctx, ride); err != nil {
			return err
		}
		if err := tx.AddPassenger(ctx, ride.ID, passenger); err != nil {
			return err
		}
		return tx.TakeSeat(ctx, ride.ID)
	}))

	err := s.InTx(ctx, func(tx carpool.Tx) error { return tx.AddPassenger(ctx, ride.ID, passenger) })
	assert.ErrorIs(t, err, domain.ErrAlreadyPassenger)

	err = s.InTx(ctx, func(tx carpool.Tx) error { return tx.TakeSeat(ctx, ride.ID) })
	assert.ErrorIs(t, err, domain.ErrNoSeatsAvailable)

	rating := &domain.Rating{ID: uuid.New(), CircleID: circle.ID, RideID: ride.ID, RatingUserID: passenger, RatedUserID: ride.OfferedBy, Value: 3}
	require.NoError(t, s.InTx(ctx, func(tx carpool.Tx) error { return tx.CreateRating(ctx, rating) }))

	err = s.InTx(ctx, func(tx carpool.Tx) error {
		dup := *rating
		dup.ID = uuid.New()
		return tx.CreateRating(ctx, &dup)
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateRating)

	require.NoError(t, s.InTx(ctx, func(tx carpool.Tx) error {
		avg, n, err := tx.AverageUserRating(ctx, ride.OfferedBy)
		require.NoError(t, err)
		assert.Equal(t, 3.0, avg)
		assert.Equal(t, 1, n)

		avg, n, err = tx.AverageUserRating(ctx, uuid.New())
		require.NoError(t, err)
		assert.Zero(t, avg)
		assert.Zero(t, n)
		return nil
	}))
}

func TestStore_ReturnedRidesAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	circle := seedCircle(t, s, "copies")
	ride := &domain.Ride{ID: uuid.New(), CircleID: circle.ID, AvailableSeats: 2, IsActive: true}
	require.NoError(t, s.InTx(ctx, func(tx carpool.Tx) error { return tx.CreateRide(ctx, ride) }))

	require.NoError(t, s.InTx(ctx, func(tx carpool.Tx) error {
		got, err := tx.GetRide(ctx, ride.ID)
		if err != nil {
			return err
		}
		got.Passengers = append(got.Passengers, uuid.New())
		got.AvailableSeats = 0
		return nil
	}))

	require.NoError(t, s.InTx(ctx, func(tx carpool.Tx) error {
		got, err := tx.GetRide(ctx, ride.ID)
		require.NoError(t, err)
		assert.Empty(t, got.Passengers)
		assert.Equal(t, 2, got.AvailableSeats)
		return nil
	}))
}
