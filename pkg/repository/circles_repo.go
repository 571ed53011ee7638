package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/tendant/circle-rides/pkg/domain"
)

// CirclesRepository handles circle data persistence.
type CirclesRepository struct {
	q Querier
}

// NewCirclesRepository creates a new circles repository.
func NewCirclesRepository(q Querier) *CirclesRepository {
	return &CirclesRepository{q: q}
}

const circleColumns = `id, slug, name, about, is_public, is_limited, members_limit, verified,
	rides_offered, rides_taken, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCircle(row rowScanner) (*domain.Circle, error) {
	var c domain.Circle
	err := row.Scan(
		&c.ID,
		&c.Slug,
		&c.Name,
		&c.About,
		&c.IsPublic,
		&c.IsLimited,
		&c.MembersLimit,
		&c.Verified,
		&c.RidesOffered,
		&c.RidesTaken,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCircleNotFound
		}
		return nil, err
	}
	return &c, nil
}

// CreateCircle inserts a new circle.
func (r *CirclesRepository) CreateCircle(ctx context.Context, c *domain.Circle) error {
	query := `
		INSERT INTO circles (id, slug, name, about, is_public, is_limited, members_limit, verified,
			rides_offered, rides_taken, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (slug) DO NOTHING
	`
	result, err := r.q.ExecContext(ctx, query,
		c.ID,
		c.Slug,
		c.Name,
		c.About,
		c.IsPublic,
		c.IsLimited,
		c.MembersLimit,
		c.Verified,
		c.RidesOffered,
		c.RidesTaken,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return rowsAffected(result, domain.ErrSlugTaken)
}

// GetCircle retrieves a circle by ID.
func (r *CirclesRepository) GetCircle(ctx context.Context, id uuid.UUID) (*domain.Circle, error) {
	query := `SELECT ` + circleColumns + ` FROM circles WHERE id = $1`
	return scanCircle(r.q.QueryRowContext(ctx, query, id))
}

// GetCircleBySlug retrieves a circle by slug.
func (r *CirclesRepository) GetCircleBySlug(ctx context.Context, slug string) (*domain.Circle, error) {
	query := `SELECT ` + circleColumns + ` FROM circles WHERE slug = $1`
	return scanCircle(r.q.QueryRowContext(ctx, query, slug))
}

// LockCircle retrieves a circle and holds its row lock until the transaction ends.
func (r *CirclesRepository) LockCircle(ctx context.Context, id uuid.UUID) (*domain.Circle, error) {
	query := `SELECT ` + circleColumns + ` FROM circles WHERE id = $1 FOR UPDATE`
	return scanCircle(r.q.QueryRowContext(ctx, query, id))
}

// ListPublicCircles returns all public circles, oldest first.
func (r *CirclesRepository) ListPublicCircles(ctx context.Context) ([]*domain.Circle, error) {
	query := `SELECT ` + circleColumns + ` FROM circles WHERE is_public ORDER BY created_at ASC`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var circles []*domain.Circle
	for rows.Next() {
		c, err := scanCircle(rows)
		if err != nil {
			return nil, err
		}
		circles = append(circles, c)
	}
	return circles, rows.Err()
}

// UpdateCircle saves the editable fields of a circle. Ride counters are
// left untouched.
func (r *CirclesRepository) UpdateCircle(ctx context.Context, c *domain.Circle) error {
	query := `
		UPDATE circles
		SET name = $1, about = $2, is_public = $3, is_limited = $4, members_limit = $5,
			verified = $6, updated_at = $7
		WHERE id = $8
	`
	result, err := r.q.ExecContext(ctx, query,
		c.Name,
		c.About,
		c.IsPublic,
		c.IsLimited,
		c.MembersLimit,
		c.Verified,
		c.UpdatedAt,
		c.ID,
	)
	if err != nil {
		return err
	}
	return rowsAffected(result, domain.ErrCircleNotFound)
}

// AddCircleRideStats adds to the circle's ride counters.
func (r *CirclesRepository) AddCircleRideStats(ctx context.Context, id uuid.UUID, offered, taken int) error {
	query := `
		UPDATE circles
		SET rides_offered = rides_offered + $1, rides_taken = rides_taken + $2
		WHERE id = $3
	`
	result, err := r.q.ExecContext(ctx, query, offered, taken, id)
	if err != nil {
		return err
	}
	return rowsAffected(result, domain.ErrCircleNotFound)
}
