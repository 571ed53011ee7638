package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/tendant/circle-rides/pkg/domain"
)

// RatingsRepository handles rating persistence and aggregation.
type RatingsRepository struct {
	q Querier
}

// NewRatingsRepository creates a new ratings repository.
func NewRatingsRepository(q Querier) *RatingsRepository {
	return &RatingsRepository{q: q}
}

// CreateRating inserts a rating. A second rating of the same ride by the same
// user is rejected with domain.ErrDuplicateRating.
func (r *RatingsRepository) CreateRating(ctx context.Context, rating *domain.Rating) error {
	query := `
		INSERT INTO ratings (id, circle_id, ride_id, rating_user_id, rated_user_id, rating, comments, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (ride_id, rating_user_id) DO NOTHING
	`
	result, err := r.q.ExecContext(ctx, query,
		rating.ID,
		rating.CircleID,
		rating.RideID,
		rating.RatingUserID,
		rating.RatedUserID,
		rating.Value,
		rating.Comments,
		rating.CreatedAt,
	)
	if err != nil {
		return err
	}
	return rowsAffected(result, domain.ErrDuplicateRating)
}

// HasRated reports whether userID already rated the ride.
func (r *RatingsRepository) HasRated(ctx context.Context, rideID, userID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM ratings WHERE ride_id = $1 AND rating_user_id = $2)`

	var exists bool
	if err := r.q.QueryRowContext(ctx, query, rideID, userID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// ListRideRatings returns the ratings of a ride, oldest first.
func (r *RatingsRepository) ListRideRatings(ctx context.Context, rideID uuid.UUID) ([]*domain.Rating, error) {
	query := `
		SELECT id, circle_id, ride_id, rating_user_id, rated_user_id, rating, comments, created_at
		FROM ratings
		WHERE ride_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.q.QueryContext(ctx, query, rideID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ratings []*domain.Rating
	for rows.Next() {
		var rating domain.Rating
		err := rows.Scan(
			&rating.ID,
			&rating.CircleID,
			&rating.RideID,
			&rating.RatingUserID,
			&rating.RatedUserID,
			&rating.Value,
			&rating.Comments,
			&rating.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		ratings = append(ratings, &rating)
	}
	return ratings, rows.Err()
}

// AverageRideRating returns the mean rating of a ride and the rating count.
func (r *RatingsRepository) AverageRideRating(ctx context.Context, rideID uuid.UUID) (float64, int, error) {
	query := `SELECT COALESCE(AVG(rating::float8), 0), COUNT(*) FROM ratings WHERE ride_id = $1`
	return r.average(ctx, query, rideID)
}

// AverageUserRating returns the mean of every rating userID received.
func (r *RatingsRepository) AverageUserRating(ctx context.Context, userID uuid.UUID) (float64, int, error) {
	query := `SELECT COALESCE(AVG(rating::float8), 0), COUNT(*) FROM ratings WHERE rated_user_id = $1`
	return r.average(ctx, query, userID)
}

func (r *RatingsRepository) average(ctx context.Context, query string, id uuid.UUID) (float64, int, error) {
	var avg float64
	var n int
	if err := r.q.QueryRowContext(ctx, query, id).Scan(&avg, &n); err != nil {
		return 0, 0, err
	}
	return avg, n, nil
}
