package carpool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/circle-rides/pkg/domain"
)

// InvitationService issues and redeems circle invitation codes.
type InvitationService struct {
	config Config
	store  Store
}

// NewInvitationService creates a new invitation service.
func NewInvitationService(config Config, store Store) *InvitationService {
	return &InvitationService{
		config: config.withDefaults(),
		store:  store,
	}
}

// Issue creates a new invitation code in circleID on behalf of issuerUserID.
// Admins may issue beyond their quota; other members may hold at most
// RemainingInvitations unused codes.
//
// The circle row is locked before the issuer's membership, the same order
// Redeem uses.
func (s *InvitationService) Issue(ctx context.Context, circleID, issuerUserID uuid.UUID) (*domain.Invitation, error) {
	var inv *domain.Invitation
	err := s.store.InTx(ctx, func(tx Tx) error {
		if _, err := tx.LockCircle(ctx, circleID); err != nil {
			return err
		}
		issuer, err := activeMembership(ctx, tx, circleID, issuerUserID)
		if err != nil {
			return err
		}

		if !issuer.IsAdmin {
			issuer, err = tx.LockMembership(ctx, issuer.ID)
			if err != nil {
				return err
			}
			unused, err := tx.ListUnusedInvitations(ctx, circleID, issuer.ID)
			if err != nil {
				return fmt.Errorf("failed to list unused invitations: %w", err)
			}
			if len(unused) >= issuer.RemainingInvitations {
				return domain.ErrQuotaExhausted
			}
		}

		inv, err = issueInvitation(ctx, tx, s.config, circleID, issuer.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// redemption carries what the checks matched into the commit step.
type redemption struct {
	invitation *domain.Invitation
	circle     *domain.Circle
	issuer     *domain.Membership
	userID     uuid.UUID
	at         time.Time
}

// Redeem admits userID into circleID using an invitation code. The
// invitation, the new membership and the issuer's counters change together
// or not at all.
func (s *InvitationService) Redeem(ctx context.Context, code string, circleID, userID uuid.UUID) (*domain.Membership, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, domain.ErrInvalidCode
	}

	var member *domain.Membership
	err := s.store.InTx(ctx, func(tx Tx) error {
		r, err := s.prepareRedemption(ctx, tx, code, circleID, userID)
		if err != nil {
			return err
		}
		member, err = s.commitRedemption(ctx, tx, r)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.config.Logger.Info("invitation redeemed",
		"circle_id", circleID,
		"user_id", userID,
		"membership_id", member.ID,
	)
	return member, nil
}

func (s *InvitationService) prepareRedemption(ctx context.Context, tx Tx, code string, circleID, userID uuid.UUID) (*redemption, error) {
	inv, err := tx.LockInvitation(ctx, circleID, code)
	if err != nil {
		return nil, err
	}
	if inv.Used {
		return nil, domain.ErrInvitationUsed
	}

	circle, err := tx.LockCircle(ctx, circleID)
	if err != nil {
		return nil, err
	}

	_, err = tx.GetActiveMembership(ctx, circleID, userID)
	switch {
	case err == nil:
		return nil, domain.ErrAlreadyMember
	case !errors.Is(err, domain.ErrMembershipNotFound):
		return nil, fmt.Errorf("failed to look up membership: %w", err)
	}

	if circle.IsLimited {
		count, err := tx.CountActiveMembers(ctx, circleID)
		if err != nil {
			return nil, fmt.Errorf("failed to count members: %w", err)
		}
		if !circle.HasRoomFor(count) {
			return nil, domain.ErrCircleFull
		}
	}

	issuer, err := tx.GetMembership(ctx, inv.IssuedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to load issuer membership: %w", err)
	}

	return &redemption{
		invitation: inv,
		circle:     circle,
		issuer:     issuer,
		userID:     userID,
		at:         s.config.Now(),
	}, nil
}

func (s *InvitationService) commitRedemption(ctx context.Context, tx Tx, r *redemption) (*domain.Membership, error) {
	inviter := r.issuer.UserID
	member := &domain.Membership{
		ID:                   uuid.New(),
		UserID:               r.userID,
		CircleID:             r.circle.ID,
		InvitedBy:            &inviter,
		IsActive:             true,
		RemainingInvitations: s.config.MemberInvitationQuota,
		CreatedAt:            r.at,
		UpdatedAt:            r.at,
	}
	if err := tx.CreateMembership(ctx, member); err != nil {
		return nil, err
	}
	if err := tx.MarkInvitationUsed(ctx, r.invitation.ID, r.userID, r.at); err != nil {
		return nil, err
	}
	if err := tx.RecordInvitationUse(ctx, r.issuer.ID); err != nil {
		return nil, fmt.Errorf("failed to update issuer: %w", err)
	}
	return member, nil
}

// issueInvitation inserts a fresh code, regenerating on collisions up to
// MaxCodeAttempts times.
func issueInvitation(ctx context.Context, tx Tx, cfg Config, circleID, issuerMembershipID uuid.UUID) (*domain.Invitation, error) {
	for attempt := 1; attempt <= cfg.MaxCodeAttempts; attempt++ {
		code, err := cfg.GenerateCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate invitation code: %w", err)
		}

		inv := &domain.Invitation{
			ID:        uuid.New(),
			Code:      code,
			CircleID:  circleID,
			IssuedBy:  issuerMembershipID,
			CreatedAt: cfg.Now(),
		}
		err = tx.CreateInvitation(ctx, inv)
		if err == nil {
			return inv, nil
		}
		if !errors.Is(err, domain.ErrDuplicateInvitationCode) {
			return nil, fmt.Errorf("failed to create invitation: %w", err)
		}
		cfg.Logger.Debug("invitation code collision", "circle_id", circleID, "attempt", attempt)
	}

	cfg.Logger.Error("invitation code generation exhausted",
		"circle_id", circleID,
		"issuer_membership_id", issuerMembershipID,
		"attempts", cfg.MaxCodeAttempts,
	)
	return nil, domain.ErrCodeGenerationExhausted
}

// activeMembership maps a missing membership to domain.ErrNotActiveMember.
func activeMembership(ctx context.Context, tx Tx, circleID, userID uuid.UUID) (*domain.Membership, error) {
	m, err := tx.GetActiveMembership(ctx, circleID, userID)
	if errors.Is(err, domain.ErrMembershipNotFound) {
		return nil, domain.ErrNotActiveMember
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up membership: %w", err)
	}
	return m, nil
}
