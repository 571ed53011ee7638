package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/tendant/circle-rides/pkg/domain"
)

// ProfilesRepository handles per-user ride counters and reputation.
type ProfilesRepository struct {
	q Querier
}

// NewProfilesRepository creates a new profiles repository.
func NewProfilesRepository(q Querier) *ProfilesRepository {
	return &ProfilesRepository{q: q}
}

func scanProfile(row rowScanner) (*domain.Profile, error) {
	var p domain.Profile
	err := row.Scan(&p.UserID, &p.RidesOffered, &p.RidesTaken, &p.Reputation, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetProfile retrieves a user's profile.
func (r *ProfilesRepository) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	query := `
		SELECT user_id, rides_offered, rides_taken, reputation, updated_at
		FROM profiles
		WHERE user_id = $1
	`
	return scanProfile(r.q.QueryRowContext(ctx, query, userID))
}

// LockProfile creates the profile when missing and holds its row lock.
func (r *ProfilesRepository) LockProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	insert := `
		INSERT INTO profiles (user_id, reputation)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.q.ExecContext(ctx, insert, userID, domain.DefaultReputation); err != nil {
		return nil, err
	}

	query := `
		SELECT user_id, rides_offered, rides_taken, reputation, updated_at
		FROM profiles
		WHERE user_id = $1
		FOR UPDATE
	`
	return scanProfile(r.q.QueryRowContext(ctx, query, userID))
}

// AddProfileRideStats adds to a profile's ride counters, creating it if missing.
func (r *ProfilesRepository) AddProfileRideStats(ctx context.Context, userID uuid.UUID, offered, taken int) error {
	query := `
		INSERT INTO profiles (user_id, rides_offered, rides_taken, reputation)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET rides_offered = profiles.rides_offered + EXCLUDED.rides_offered,
			rides_taken = profiles.rides_taken + EXCLUDED.rides_taken,
			updated_at = NOW()
	`
	_, err := r.q.ExecContext(ctx, query, userID, offered, taken, domain.DefaultReputation)
	return err
}

// SetReputation stores a user's reputation.
func (r *ProfilesRepository) SetReputation(ctx context.Context, userID uuid.UUID, reputation float64) error {
	query := `UPDATE profiles SET reputation = $1, updated_at = NOW() WHERE user_id = $2`
	result, err := r.q.ExecContext(ctx, query, reputation, userID)
	if err != nil {
		return err
	}
	return rowsAffected(result, domain.ErrProfileNotFound)
}
