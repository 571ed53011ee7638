package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/tendant/circle-rides/pkg/domain"
)

// MembershipsRepository handles membership data persistence.
type MembershipsRepository struct {
	q Querier
}

// NewMembershipsRepository creates a new memberships repository.
func NewMembershipsRepository(q Querier) *MembershipsRepository {
	return &MembershipsRepository{q: q}
}

const membershipColumns = `id, user_id, circle_id, invited_by, is_admin, is_active,
	used_invitations, remaining_invitations, rides_offered, rides_taken, created_at, updated_at`

func scanMembership(row rowScanner) (*domain.Membership, error) {
	var m domain.Membership
	var invitedBy uuid.NullUUID
	err := row.Scan(
		&m.ID,
		&m.UserID,
		&m.CircleID,
		&invitedBy,
		&m.IsAdmin,
		&m.IsActive,
		&m.UsedInvitations,
		&m.RemainingInvitations,
		&m.RidesOffered,
		&m.RidesTaken,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMembershipNotFound
		}
		return nil, err
	}
	if invitedBy.Valid {
		m.InvitedBy = &invitedBy.UUID
	}
	return &m, nil
}

func scanMemberships(rows *sql.Rows) ([]*domain.Membership, error) {
	defer rows.Close()

	var memberships []*domain.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

// CreateMembership inserts a new membership. A second active membership for
// the same user and circle is rejected with domain.ErrAlreadyMember.
func (r *MembershipsRepository) CreateMembership(ctx context.Context, m *domain.Membership) error {
	query := `
		INSERT INTO memberships (id, user_id, circle_id, invited_by, is_admin, is_active,
			used_invitations, remaining_invitations, rides_offered, rides_taken, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (user_id, circle_id) WHERE is_active DO NOTHING
	`
	var invitedBy uuid.NullUUID
	if m.InvitedBy != nil {
		invitedBy = uuid.NullUUID{UUID: *m.InvitedBy, Valid: true}
	}
	result, err := r.q.ExecContext(ctx, query,
		m.ID,
		m.UserID,
		m.CircleID,
		invitedBy,
		m.IsAdmin,
		m.IsActive,
		m.UsedInvitations,
		m.RemainingInvitations,
		m.RidesOffered,
		m.RidesTaken,
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return rowsAffected(result, domain.ErrAlreadyMember)
}

// GetMembership retrieves a membership by ID, active or not.
func (r *MembershipsRepository) GetMembership(ctx context.Context, id uuid.UUID) (*domain.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships WHERE id = $1`
	return scanMembership(r.q.QueryRowContext(ctx, query, id))
}

// GetActiveMembership retrieves the user's active membership in a circle.
func (r *MembershipsRepository) GetActiveMembership(ctx context.Context, circleID, userID uuid.UUID) (*domain.Membership, error) {
	query := `SELECT ` + membershipColumns + `
		FROM memberships
		WHERE circle_id = $1 AND user_id = $2 AND is_active
	`
	return scanMembership(r.q.QueryRowContext(ctx, query, circleID, userID))
}

// LockMembership retrieves a membership and holds its row lock.
func (r *MembershipsRepository) LockMembership(ctx context.Context, id uuid.UUID) (*domain.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships WHERE id = $1 FOR UPDATE`
	return scanMembership(r.q.QueryRowContext(ctx, query, id))
}

// CountActiveMembers returns the number of active memberships in a circle.
func (r *MembershipsRepository) CountActiveMembers(ctx context.Context, circleID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM memberships WHERE circle_id = $1 AND is_active`

	var n int
	if err := r.q.QueryRowContext(ctx, query, circleID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// ListActiveMembers returns the active members of a circle, oldest first.
func (r *MembershipsRepository) ListActiveMembers(ctx context.Context, circleID uuid.UUID) ([]*domain.Membership, error) {
	query := `SELECT ` + membershipColumns + `
		FROM memberships
		WHERE circle_id = $1 AND is_active
		ORDER BY created_at ASC
	`
	rows, err := r.q.QueryContext(ctx, query, circleID)
	if err != nil {
		return nil, err
	}
	return scanMemberships(rows)
}

// ListInvitedMembers returns memberships created from invitations issued by inviterUserID.
func (r *MembershipsRepository) ListInvitedMembers(ctx context.Context, circleID, inviterUserID uuid.UUID) ([]*domain.Membership, error) {
	query := `SELECT ` + membershipColumns + `
		FROM memberships
		WHERE circle_id = $1 AND invited_by = $2
		ORDER BY created_at ASC
	`
	rows, err := r.q.QueryContext(ctx, query, circleID, inviterUserID)
	if err != nil {
		return nil, err
	}
	return scanMemberships(rows)
}

// RecordInvitationUse counts one redeemed invitation against the membership.
func (r *MembershipsRepository) RecordInvitationUse(ctx context.Context, membershipID uuid.UUID) error {
	query := `
		UPDATE memberships
		SET used_invitations = used_invitations + 1,
			remaining_invitations = GREATEST(remaining_invitations - 1, 0),
			updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.q.ExecContext(ctx, query, membershipID)
	if err != nil {
		return err
	}
	return rowsAffected(result, domain.ErrMembershipNotFound)
}

// AddMembershipRideStats adds to the membership's ride counters.
func (r *MembershipsRepository) AddMembershipRideStats(ctx context.Context, id uuid.UUID, offered, taken int) error {
	query := `
		UPDATE memberships
		SET rides_offered = rides_offered + $1, rides_taken = rides_taken + $2
		WHERE id = $3
	`
	result, err := r.q.ExecContext(ctx, query, offered, taken, id)
	if err != nil {
		return err
	}
	return rowsAffected(result, domain.ErrMembershipNotFound)
}

// DeactivateMembership marks an active membership inactive.
func (r *MembershipsRepository) DeactivateMembership(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE memberships
		SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND is_active
	`
	result, err := r.q.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return rowsAffected(result, domain.ErrMembershipNotFound)
}
