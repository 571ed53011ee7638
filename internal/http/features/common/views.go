package common

import (
	"time"

	"github.com/tendant/circle-rides/pkg/domain"
)

// CircleResponse is the JSON view of a circle.
type CircleResponse struct {
	ID           string    `json:"id"`
	Slug         string    `json:"slug"`
	Name         string    `json:"name"`
	About        string    `json:"about"`
	IsPublic     bool      `json:"is_public"`
	IsLimited    bool      `json:"is_limited"`
	MembersLimit int       `json:"members_limit"`
	Verified     bool      `json:"verified"`
	RidesOffered int       `json:"rides_offered"`
	RidesTaken   int       `json:"rides_taken"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewCircleResponse converts a circle.
func NewCircleResponse(c *domain.Circle) CircleResponse {
	return CircleResponse{
		ID:           c.ID.String(),
		Slug:         c.Slug,
		Name:         c.Name,
		About:        c.About,
		IsPublic:     c.IsPublic,
		IsLimited:    c.IsLimited,
		MembersLimit: c.MembersLimit,
		Verified:     c.Verified,
		RidesOffered: c.RidesOffered,
		RidesTaken:   c.RidesTaken,
		CreatedAt:    c.CreatedAt,
	}
}

// MembershipResponse is the JSON view of a membership.
type MembershipResponse struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"user_id"`
	CircleID             string    `json:"circle_id"`
	InvitedBy            *string   `json:"invited_by,omitempty"`
	IsAdmin              bool      `json:"is_admin"`
	IsActive             bool      `json:"is_active"`
	UsedInvitations      int       `json:"used_invitations"`
	RemainingInvitations int       `json:"remaining_invitations"`
	RidesOffered         int       `json:"rides_offered"`
	RidesTaken           int       `json:"rides_taken"`
	CreatedAt            time.Time `json:"created_at"`
}

// NewMembershipResponse converts a membership.
func NewMembershipResponse(m *domain.Membership) MembershipResponse {
	resp := MembershipResponse{
		ID:                   m.ID.String(),
		UserID:               m.UserID.String(),
		CircleID:             m.CircleID.String(),
		IsAdmin:              m.IsAdmin,
		IsActive:             m.IsActive,
		UsedInvitations:      m.UsedInvitations,
		RemainingInvitations: m.RemainingInvitations,
		RidesOffered:         m.RidesOffered,
		RidesTaken:           m.RidesTaken,
		CreatedAt:            m.CreatedAt,
	}
	if m.InvitedBy != nil {
		s := m.InvitedBy.String()
		resp.InvitedBy = &s
	}
	return resp
}

// NewMembershipResponses converts a list of memberships.
func NewMembershipResponses(ms []*domain.Membership) []MembershipResponse {
	out := make([]MembershipResponse, 0, len(ms))
	for _, m := range ms {
		out = append(out, NewMembershipResponse(m))
	}
	return out
}
