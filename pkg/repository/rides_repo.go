package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/tendant/circle-rides/pkg/domain"
)

// RidesRepository handles ride and passenger persistence.
type RidesRepository struct {
	q Querier
}

// NewRidesRepository creates a new rides repository.
func NewRidesRepository(q Querier) *RidesRepository {
	return &RidesRepository{q: q}
}

const rideColumns = `id, circle_id, offered_by, departure_location, arrival_location,
	departure_date, arrival_date, available_seats, comments, rating, is_active, created_at, updated_at,
	ARRAY(SELECT p.user_id::text FROM ride_passengers p WHERE p.ride_id = rides.id ORDER BY p.created_at, p.user_id)`

func scanRide(row rowScanner) (*domain.Ride, error) {
	var r domain.Ride
	var rating sql.NullFloat64
	var passengers pq.StringArray
	err := row.Scan(
		&r.ID,
		&r.CircleID,
		&r.OfferedBy,
		&r.DepartureLocation,
		&r.ArrivalLocation,
		&r.DepartureDate,
		&r.ArrivalDate,
		&r.AvailableSeats,
		&r.Comments,
		&rating,
		&r.IsActive,
		&r.CreatedAt,
		&r.UpdatedAt,
		&passengers,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRideNotFound
		}
		return nil, err
	}
	if rating.Valid {
		r.Rating = &rating.Float64
	}
	for _, p := range passengers {
		id, err := uuid.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("invalid passenger id %q: %w", p, err)
		}
		r.Passengers = append(r.Passengers, id)
	}
	return &r, nil
}

func scanRides(rows *sql.Rows) ([]*domain.Ride, error) {
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, r)
	}
	return rides, rows.Err()
}

// CreateRide inserts a new ride. Passengers are not written.
func (r *RidesRepository) CreateRide(ctx context.Context, ride *domain.Ride) error {
	query := `
		INSERT INTO rides (id, circle_id, offered_by, departure_location, arrival_location,
			departure_date, arrival_date, available_seats, comments, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.q.ExecContext(ctx, query,
		ride.ID,
		ride.CircleID,
		ride.OfferedBy,
		ride.DepartureLocation,
		ride.ArrivalLocation,
		ride.DepartureDate,
		ride.ArrivalDate,
		ride.AvailableSeats,
		ride.Comments,
		ride.IsActive,
		ride.CreatedAt,
		ride.UpdatedAt,
	)
	return err
}

// GetRide retrieves a ride with its passengers.
func (r *RidesRepository) GetRide(ctx context.Context, id uuid.UUID) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`
	return scanRide(r.q.QueryRowContext(ctx, query, id))
}

// LockRide retrieves a ride and holds its row lock.
func (r *RidesRepository) LockRide(ctx context.Context, id uuid.UUID) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1 FOR UPDATE OF rides`
	return scanRide(r.q.QueryRowContext(ctx, query, id))
}

// UpdateRide saves the editable fields of a ride.
func (r *RidesRepository) UpdateRide(ctx context.Context, ride *domain.Ride) error {
	query := `
		UPDATE rides
		SET departure_location = $1, arrival_location = $2, departure_date = $3,
			arrival_date = $4, comments = $5, updated_at = $6
		WHERE id = $7
	`
	result, err := r.q.ExecContext(ctx, query,
		ride.DepartureLocation,
		ride.ArrivalLocation,
		ride.DepartureDate,
		ride.ArrivalDate,
		ride.Comments,
		ride.UpdatedAt,
		ride.ID,
	)
	if err != nil {
		return err
	}
	return rowsAffected(result, domain.ErrRideNotFound)
}

// AddPassenger records userID as a passenger of the ride.
func (r *RidesRepository) AddPassenger(ctx context.Context, rideID, userID uuid.UUID) error {
	query := `
		INSERT INTO ride_passengers (ride_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (ride_id, user_id) DO NOTHING
	`
	result, err := r.q.ExecContext(ctx, query, rideID, userID)
	if err != nil {
		return err
	}
	return rowsAffected(result, domain.ErrAlreadyPassenger)
}

// TakeSeat decrements the ride's available seats, refusing to go below zero.
func (r *RidesRepository) TakeSeat(ctx context.Context, rideID uuid.UUID) error {
	query := `
		UPDATE rides
		SET available_seats = available_seats - 1, updated_at = NOW()
		WHERE id = $1 AND available_seats > 0
	`
	result, err := r.q.ExecContext(ctx, query, rideID)
	if err != nil {
		return err
	}
	return rowsAffected(result, domain.ErrNoSeatsAvailable)
}

// SetRideRating stores the ride's average rating.
func (r *RidesRepository) SetRideRating(ctx context.Context, rideID uuid.UUID, rating float64) error {
	query := `UPDATE rides SET rating = $1 WHERE id = $2`
	result, err := r.q.ExecContext(ctx, query, rating, rideID)
	if err != nil {
		return err
	}
	return rowsAffected(result, domain.ErrRideNotFound)
}

// EndRide marks the ride inactive.
func (r *RidesRepository) EndRide(ctx context.Context, rideID uuid.UUID) error {
	query := `UPDATE rides SET is_active = FALSE, updated_at = NOW() WHERE id = $1`
	result, err := r.q.ExecContext(ctx, query, rideID)
	if err != nil {
		return err
	}
	return rowsAffected(result, domain.ErrRideNotFound)
}

var rideOrderClauses = map[domain.RideOrder]string{
	domain.OrderDepartureAsc:  "departure_date ASC",
	domain.OrderDepartureDesc: "departure_date DESC",
	domain.OrderArrivalAsc:    "arrival_date ASC, departure_date ASC",
	domain.OrderArrivalDesc:   "arrival_date DESC, departure_date ASC",
	domain.OrderSeatsAsc:      "available_seats ASC, departure_date ASC",
	domain.OrderSeatsDesc:     "available_seats DESC, departure_date ASC",
}

// likeEscaper escapes LIKE wildcards so search text matches literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ListAvailableRides returns active rides of a circle with free seats that
// depart at or after filter.DepartsAfter, in filter.Order.
func (r *RidesRepository) ListAvailableRides(ctx context.Context, circleID uuid.UUID, filter domain.RideFilter) ([]*domain.Ride, error) {
	order, ok := rideOrderClauses[filter.Order]
	if !ok {
		order = rideOrderClauses[domain.OrderDepartureAsc]
	}

	query := `SELECT ` + rideColumns + `
		FROM rides
		WHERE circle_id = $1 AND is_active AND available_seats > 0 AND departure_date >= $2`
	args := []any{circleID, filter.DepartsAfter}
	if filter.Search != "" {
		query += ` AND (departure_location ILIKE $3 ESCAPE '\' OR arrival_location ILIKE $3 ESCAPE '\')`
		args = append(args, "%"+likeEscaper.Replace(filter.Search)+"%")
	}
	query += ` ORDER BY ` + order + `, id ASC`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanRides(rows)
}

// ListRidesEndingBetween returns active rides arriving within [start, end].
func (r *RidesRepository) ListRidesEndingBetween(ctx context.Context, start, end time.Time) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + `
		FROM rides
		WHERE is_active AND arrival_date >= $1 AND arrival_date <= $2
		ORDER BY arrival_date ASC
	`
	rows, err := r.q.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, err
	}
	return scanRides(rows)
}

// DeactivateRides marks the given rides inactive and returns how many changed.
func (r *RidesRepository) DeactivateRides(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}

	query := `
		UPDATE rides
		SET is_active = FALSE, updated_at = NOW()
		WHERE is_active AND id = ANY($1::uuid[])
	`
	result, err := r.q.ExecContext(ctx, query, pq.Array(strs))
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
