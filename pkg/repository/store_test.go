package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/circle-rides/pkg/carpool"
	"github.com/tendant/circle-rides/pkg/domain"
)

func TestConfig_DSN(t *testing.T) {
	cfg := Config{Host: "db", Port: 5433, User: "rides", Password: "pw", DBName: "circles", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=rides password=pw dbname=circles sslmode=disable", cfg.DSN())
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pq.Error{Code: "23505", Constraint: "circles_slug_key"})

	assert.True(t, isUniqueViolation(err, ""))
	assert.True(t, isUniqueViolation(err, "circles_slug_key"))
	assert.False(t, isUniqueViolation(err, "ratings_ride_user_key"))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}, ""))
	assert.False(t, isUniqueViolation(sql.ErrNoRows, ""))
}

// testDB connects to the database named by CIRCLE_RIDES_TEST_DSN and applies
// the schema. Tests using it are skipped when the variable is unset.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("CIRCLE_RIDES_TEST_DSN")
	if dsn == "" {
		t.Skip("Skipping repository test - CIRCLE_RIDES_TEST_DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, EnsureSchema(ctx, db))
	require.NoError(t, ValidateSchema(ctx, db))
	return db
}

func seedCircle(t *testing.T, ctx context.Context, tx carpool.Tx) (*domain.Circle, *domain.Membership) {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	circle := &domain.Circle{
		ID:        uuid.New(),
		Slug:      "repo-" + uuid.NewString()[:8],
		Name:      "Repo Test",
		IsPublic:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, tx.CreateCircle(ctx, circle))

	owner := &domain.Membership{
		ID:                   uuid.New(),
		UserID:               uuid.New(),
		CircleID:             circle.ID,
		IsAdmin:              true,
		IsActive:             true,
		RemainingInvitations: domain.OwnerInvitationQuota,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	require.NoError(t, tx.CreateMembership(ctx, owner))
	return circle, owner
}

func TestStore_CircleAndMembership(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	store := NewStore(db)

	err := store.InTx(ctx, func(tx carpool.Tx) error {
		circle, owner := seedCircle(t, ctx, tx)

		dup := *circle
		dup.ID = uuid.New()
		assert.ErrorIs(t, tx.CreateCircle(ctx, &dup), domain.ErrSlugTaken)

		second := *owner
		second.ID = uuid.New()
		assert.ErrorIs(t, tx.CreateMembership(ctx, &second), domain.ErrAlreadyMember)

		n, err := tx.CountActiveMembers(ctx, circle.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		require.NoError(t, tx.RecordInvitationUse(ctx, owner.ID))
		got, err := tx.LockMembership(ctx, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.UsedInvitations)
		assert.Equal(t, domain.OwnerInvitationQuota-1, got.RemainingInvitations)

		require.NoError(t, tx.DeactivateMembership(ctx, owner.ID))
		_, err = tx.GetActiveMembership(ctx, circle.ID, owner.UserID)
		assert.ErrorIs(t, err, domain.ErrMembershipNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestStore_InvitationCollisionKeepsTransaction(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	store := NewStore(db)

	err := store.InTx(ctx, func(tx carpool.Tx) error {
		circle, owner := seedCircle(t, ctx, tx)
		inv := &domain.Invitation{ID: uuid.New(), Code: "ABCDEFGH23", CircleID: circle.ID, IssuedBy: owner.ID, CreatedAt: time.Now()}
		require.NoError(t, tx.CreateInvitation(ctx, inv))

		clash := *inv
		clash.ID = uuid.New()
		assert.ErrorIs(t, tx.CreateInvitation(ctx, &clash), domain.ErrDuplicateInvitationCode)

		// The transaction is still usable after the collision.
		locked, err := tx.LockInvitation(ctx, circle.ID, inv.Code)
		require.NoError(t, err)
		assert.False(t, locked.Used)

		user := uuid.New()
		require.NoError(t, tx.MarkInvitationUsed(ctx, inv.ID, user, time.Now()))
		assert.ErrorIs(t, tx.MarkInvitationUsed(ctx, inv.ID, user, time.Now()), domain.ErrInvitationUsed)

		_, err = tx.LockInvitation(ctx, circle.ID, "NOPE234567")
		assert.ErrorIs(t, err, domain.ErrInvalidCode)
		return nil
	})
	require.NoError(t, err)
}

func TestStore_RidesAndRatings(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	store := NewStore(db)

	err := store.InTx(ctx, func(tx carpool.Tx) error {
		circle, owner := seedCircle(t, ctx, tx)
		now := time.Now().UTC()
		ride := &domain.Ride{
			ID:                uuid.New(),
			CircleID:          circle.ID,
			OfferedBy:         owner.UserID,
			DepartureLocation: "Depot",
			ArrivalLocation:   "Harbor",
			DepartureDate:     now.Add(time.Hour),
			ArrivalDate:       now.Add(2 * time.Hour),
			AvailableSeats:    1,
			IsActive:          true,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		require.NoError(t, tx.CreateRide(ctx, ride))

		passenger := uuid.New()
		require.NoError(t, tx.AddPassenger(ctx, ride.ID, passenger))
		assert.ErrorIs(t, tx.AddPassenger(ctx, ride.ID, passenger), domain.ErrAlreadyPassenger)
		require.NoError(t, tx.TakeSeat(ctx, ride.ID))
		assert.ErrorIs(t, tx.TakeSeat(ctx, ride.ID), domain.ErrNoSeatsAvailable)

		locked, err := tx.LockRide(ctx, ride.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, locked.AvailableSeats)
		assert.Equal(t, []uuid.UUID{passenger}, locked.Passengers)

		rating := &domain.Rating{
			ID: uuid.New(), CircleID: circle.ID, RideID: ride.ID,
			RatingUserID: passenger, RatedUserID: owner.UserID, Value: 4, CreatedAt: now,
		}
		require.NoError(t, tx.CreateRating(ctx, rating))
		dup := *rating
		dup.ID = uuid.New()
		assert.ErrorIs(t, tx.CreateRating(ctx, &dup), domain.ErrDuplicateRating)

		avg, n, err := tx.AverageRideRating(ctx, ride.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.InDelta(t, 4.0, avg, 1e-9)

		p, err := tx.LockProfile(ctx, owner.UserID)
		require.NoError(t, err)
		assert.InDelta(t, domain.DefaultReputation, p.Reputation, 1e-9)

		n2, err := tx.DeactivateRides(ctx, []uuid.UUID{ride.ID})
		require.NoError(t, err)
		assert.Equal(t, 1, n2)
		return nil
	})
	require.NoError(t, err)
}

func TestStore_ListAvailableRides(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	store := NewStore(db)

	err := store.InTx(ctx, func(tx carpool.Tx) error {
		circle, owner := seedCircle(t, ctx, tx)
		now := time.Now().UTC().Truncate(time.Microsecond)
		offer := func(from, to string, depart time.Duration, seats int) *domain.Ride {
			ride := &domain.Ride{
				ID:                uuid.New(),
				CircleID:          circle.ID,
				OfferedBy:         owner.UserID,
				DepartureLocation: from,
				ArrivalLocation:   to,
				DepartureDate:     now.Add(depart),
				ArrivalDate:       now.Add(depart + time.Hour),
				AvailableSeats:    seats,
				IsActive:          true,
				CreatedAt:         now,
				UpdatedAt:         now,
			}
			require.NoError(t, tx.CreateRide(ctx, ride))
			return ride
		}
		edge := offer("Depot", "Airport", time.Hour, 1)
		later := offer("Airport", "Depot", 2*time.Hour, 3)
		literal := offer("Gate 10%_off", "Mall", 3*time.Hour, 2)

		// A ride departing exactly at the cutoff is still listed.
		rides, err := tx.ListAvailableRides(ctx, circle.ID, domain.RideFilter{DepartsAfter: edge.DepartureDate})
		require.NoError(t, err)
		require.Len(t, rides, 3)
		assert.Equal(t, edge.ID, rides[0].ID)

		rides, err = tx.ListAvailableRides(ctx, circle.ID, domain.RideFilter{
			DepartsAfter: now, Search: "airPORT", Order: domain.OrderSeatsDesc,
		})
		require.NoError(t, err)
		require.Len(t, rides, 2)
		assert.Equal(t, later.ID, rides[0].ID)
		assert.Equal(t, edge.ID, rides[1].ID)

		rides, err = tx.ListAvailableRides(ctx, circle.ID, domain.RideFilter{DepartsAfter: now, Search: "%_"})
		require.NoError(t, err)
		require.Len(t, rides, 1)
		assert.Equal(t, literal.ID, rides[0].ID)
		return nil
	})
	require.NoError(t, err)
}
