package carpool

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/circle-rides/pkg/domain"
)

// CircleSpec holds the fields a user supplies when creating a circle.
type CircleSpec struct {
	Slug         string
	Name         string
	About        string
	IsPublic     bool
	IsLimited    bool
	MembersLimit int
}

func (s CircleSpec) validate() error {
	if err := domain.ValidateSlug(s.Slug); err != nil {
		return err
	}
	if err := domain.ValidateCircleName(s.Name); err != nil {
		return err
	}
	return domain.ValidateMembersLimit(s.IsLimited, s.MembersLimit)
}

// MembershipService manages circle memberships and members' invitations.
type MembershipService struct {
	config Config
	store  Store
}

// NewMembershipService creates a new membership service.
func NewMembershipService(config Config, store Store) *MembershipService {
	return &MembershipService{
		config: config.withDefaults(),
		store:  store,
	}
}

// CreateCircleWithOwner creates a circle and makes ownerUserID its admin.
func (s *MembershipService) CreateCircleWithOwner(ctx context.Context, spec CircleSpec, ownerUserID uuid.UUID) (*domain.Circle, *domain.Membership, error) {
	spec.Slug = strings.ToLower(strings.TrimSpace(spec.Slug))
	spec.Name = domain.CleanLine(spec.Name)
	spec.About = domain.CleanText(spec.About)
	if err := spec.validate(); err != nil {
		return nil, nil, err
	}

	now := s.config.Now()
	circle := &domain.Circle{
		ID:           uuid.New(),
		Slug:         spec.Slug,
		Name:         spec.Name,
		About:        spec.About,
		IsPublic:     spec.IsPublic,
		IsLimited:    spec.IsLimited,
		MembersLimit: spec.MembersLimit,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	owner := &domain.Membership{
		ID:                   uuid.New(),
		UserID:               ownerUserID,
		CircleID:             circle.ID,
		IsAdmin:              true,
		IsActive:             true,
		RemainingInvitations: domain.OwnerInvitationQuota,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	err := s.store.InTx(ctx, func(tx Tx) error {
		if err := tx.CreateCircle(ctx, circle); err != nil {
			return err
		}
		if err := tx.CreateMembership(ctx, owner); err != nil {
			return fmt.Errorf("failed to create owner membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.config.Logger.Info("circle created", "circle_id", circle.ID, "slug", circle.Slug, "owner_id", ownerUserID)
	return circle, owner, nil
}

// ListInvitations returns the members memberUserID brought in and their
// unused codes, topping the unused codes up to RemainingInvitations.
func (s *MembershipService) ListInvitations(ctx context.Context, memberUserID, circleID uuid.UUID) (*domain.InvitationBreakdown, error) {
	var out *domain.InvitationBreakdown
	err := s.store.InTx(ctx, func(tx Tx) error {
		// Circle before membership, as in Redeem.
		if _, err := tx.LockCircle(ctx, circleID); err != nil {
			return err
		}
		m, err := activeMembership(ctx, tx, circleID, memberUserID)
		if err != nil {
			return err
		}
		// Concurrent top-ups for the same member serialize on this lock.
		m, err = tx.LockMembership(ctx, m.ID)
		if err != nil {
			return err
		}

		used, err := tx.ListInvitedMembers(ctx, circleID, memberUserID)
		if err != nil {
			return fmt.Errorf("failed to list invited members: %w", err)
		}
		unused, err := tx.ListUnusedInvitations(ctx, circleID, m.ID)
		if err != nil {
			return fmt.Errorf("failed to list unused invitations: %w", err)
		}

		codes := make([]string, 0, len(unused))
		for _, inv := range unused {
			codes = append(codes, inv.Code)
		}
		for len(codes) < m.RemainingInvitations {
			inv, err := issueInvitation(ctx, tx, s.config, circleID, m.ID)
			if err != nil {
				return err
			}
			codes = append(codes, inv.Code)
		}

		out = &domain.InvitationBreakdown{Used: used, Unused: codes}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Deactivate marks a membership inactive. Its history is kept.
func (s *MembershipService) Deactivate(ctx context.Context, membershipID uuid.UUID) error {
	return s.store.InTx(ctx, func(tx Tx) error {
		m, err := tx.LockMembership(ctx, membershipID)
		if err != nil {
			return err
		}
		if !m.IsActive {
			return domain.ErrMembershipNotFound
		}
		return tx.DeactivateMembership(ctx, m.ID)
	})
}

// RemoveMember deactivates targetUserID's membership. Admins may remove
// anyone; members may only remove themselves.
func (s *MembershipService) RemoveMember(ctx context.Context, actorUserID, circleID, targetUserID uuid.UUID) error {
	err := s.store.InTx(ctx, func(tx Tx) error {
		actor, err := activeMembership(ctx, tx, circleID, actorUserID)
		if err != nil {
			return err
		}
		target, err := tx.GetActiveMembership(ctx, circleID, targetUserID)
		if err != nil {
			return err
		}
		if !actor.CanManage(target) {
			return domain.ErrNotAdmin
		}
		return tx.DeactivateMembership(ctx, target.ID)
	})
	if err != nil {
		return err
	}

	s.config.Logger.Info("member removed", "circle_id", circleID, "user_id", targetUserID, "by", actorUserID)
	return nil
}

// ListMembers returns the active members of a circle. The actor must be an
// active member.
func (s *MembershipService) ListMembers(ctx context.Context, actorUserID, circleID uuid.UUID) ([]*domain.Membership, error) {
	var members []*domain.Membership
	err := s.store.InTx(ctx, func(tx Tx) error {
		if _, err := tx.GetCircle(ctx, circleID); err != nil {
			return err
		}
		if _, err := activeMembership(ctx, tx, circleID, actorUserID); err != nil {
			return err
		}
		var err error
		members, err = tx.ListActiveMembers(ctx, circleID)
		return err
	})
	return members, err
}

// GetMember returns userID's active membership in circleID.
func (s *MembershipService) GetMember(ctx context.Context, actorUserID, circleID, userID uuid.UUID) (*domain.Membership, error) {
	var m *domain.Membership
	err := s.store.InTx(ctx, func(tx Tx) error {
		if _, err := activeMembership(ctx, tx, circleID, actorUserID); err != nil {
			return err
		}
		var err error
		m, err = tx.GetActiveMembership(ctx, circleID, userID)
		return err
	})
	return m, err
}
