package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/circle-rides/pkg/domain"
)

// InvitationsRepository handles invitation data persistence.
type InvitationsRepository struct {
	q Querier
}

// NewInvitationsRepository creates a new invitations repository.
func NewInvitationsRepository(q Querier) *InvitationsRepository {
	return &InvitationsRepository{q: q}
}

const invitationColumns = `id, code, circle_id, issued_by, used_by, used, used_at, created_at`

func scanInvitation(row rowScanner) (*domain.Invitation, error) {
	var inv domain.Invitation
	var usedBy uuid.NullUUID
	var usedAt sql.NullTime
	err := row.Scan(
		&inv.ID,
		&inv.Code,
		&inv.CircleID,
		&inv.IssuedBy,
		&usedBy,
		&inv.Used,
		&usedAt,
		&inv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInvalidCode
		}
		return nil, err
	}
	if usedBy.Valid {
		inv.UsedBy = &usedBy.UUID
	}
	if usedAt.Valid {
		inv.UsedAt = &usedAt.Time
	}
	return &inv, nil
}

// CreateInvitation inserts a new unused invitation. A code collision inside
// the circle inserts nothing, so the surrounding transaction stays usable.
func (r *InvitationsRepository) CreateInvitation(ctx context.Context, inv *domain.Invitation) error {
	query := `
		INSERT INTO invitations (id, code, circle_id, issued_by, used, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)
		ON CONFLICT (circle_id, code) DO NOTHING
	`
	result, err := r.q.ExecContext(ctx, query,
		inv.ID,
		inv.Code,
		inv.CircleID,
		inv.IssuedBy,
		inv.CreatedAt,
	)
	if err != nil {
		return err
	}
	return rowsAffected(result, domain.ErrDuplicateInvitationCode)
}

// LockInvitation retrieves an invitation by circle and code and holds its row lock.
func (r *InvitationsRepository) LockInvitation(ctx context.Context, circleID uuid.UUID, code string) (*domain.Invitation, error) {
	query := `SELECT ` + invitationColumns + `
		FROM invitations
		WHERE circle_id = $1 AND code = $2
		FOR UPDATE
	`
	return scanInvitation(r.q.QueryRowContext(ctx, query, circleID, code))
}

// ListUnusedInvitations returns the issuer's unused invitations, oldest first.
func (r *InvitationsRepository) ListUnusedInvitations(ctx context.Context, circleID, issuerMembershipID uuid.UUID) ([]*domain.Invitation, error) {
	query := `SELECT ` + invitationColumns + `
		FROM invitations
		WHERE circle_id = $1 AND issued_by = $2 AND NOT used
		ORDER BY created_at ASC
	`
	rows, err := r.q.QueryContext(ctx, query, circleID, issuerMembershipID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invitations []*domain.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		invitations = append(invitations, inv)
	}
	return invitations, rows.Err()
}

// MarkInvitationUsed flips an unused invitation to used.
func (r *InvitationsRepository) MarkInvitationUsed(ctx context.Context, id, usedBy uuid.UUID, at time.Time) error {
	query := `
		UPDATE invitations
		SET used = TRUE, used_by = $1, used_at = $2
		WHERE id = $3 AND NOT used
	`
	result, err := r.q.ExecContext(ctx, query, usedBy, at, id)
	if err != nil {
		return err
	}
	return rowsAffected(result, domain.ErrInvitationUsed)
}
