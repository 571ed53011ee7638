package domain

import (
	"time"

	"github.com/google/uuid"
)

// OwnerInvitationQuota is the number of invitations a circle creator starts with.
const OwnerInvitationQuota = 10

// Membership represents a user's standing within one circle.
type Membership struct {
	ID                   uuid.UUID
	UserID               uuid.UUID
	CircleID             uuid.UUID
	InvitedBy            *uuid.UUID // user id of the issuer of the redeemed invitation
	IsAdmin              bool
	IsActive             bool
	UsedInvitations      int
	RemainingInvitations int
	RidesOffered         int
	RidesTaken           int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// CanManage returns true if the membership may act on target within the same circle.
func (m *Membership) CanManage(target *Membership) bool {
	if m == nil || target == nil || !m.IsActive || m.CircleID != target.CircleID {
		return false
	}
	return m.IsAdmin || m.UserID == target.UserID
}
