package domain

import (
	"time"

	"github.com/google/uuid"
)

// Invitation is a single-use code permitting one redemption into a circle.
type Invitation struct {
	ID        uuid.UUID
	Code      string
	CircleID  uuid.UUID
	IssuedBy  uuid.UUID // membership id
	UsedBy    *uuid.UUID
	Used      bool
	UsedAt    *time.Time
	CreatedAt time.Time
}

// MarkUsed records the redemption. It returns ErrInvitationUsed if the
// invitation was already redeemed.
func (i *Invitation) MarkUsed(userID uuid.UUID, at time.Time) error {
	if i.Used {
		return ErrInvitationUsed
	}
	i.Used = true
	i.UsedBy = &userID
	i.UsedAt = &at
	return nil
}

// InvitationBreakdown lists a member's redeemed and outstanding invitations.
type InvitationBreakdown struct {
	Used   []*Membership
	Unused []string
}
