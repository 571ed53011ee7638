package carpool

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/circle-rides/pkg/domain"
)

// CircleService owns circle-level settings and lookups.
type CircleService struct {
	config Config
	store  Store
}

// NewCircleService creates a new circle service.
func NewCircleService(config Config, store Store) *CircleService {
	return &CircleService{
		config: config.withDefaults(),
		store:  store,
	}
}

// Get returns a circle by id.
func (s *CircleService) Get(ctx context.Context, id uuid.UUID) (*domain.Circle, error) {
	var c *domain.Circle
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		c, err = tx.GetCircle(ctx, id)
		return err
	})
	return c, err
}

// GetBySlug returns a circle by slug.
func (s *CircleService) GetBySlug(ctx context.Context, slug string) (*domain.Circle, error) {
	var c *domain.Circle
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		c, err = tx.GetCircleBySlug(ctx, strings.ToLower(slug))
		return err
	})
	return c, err
}

// ListPublic returns all public circles.
func (s *CircleService) ListPublic(ctx context.Context) ([]*domain.Circle, error) {
	var circles []*domain.Circle
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		circles, err = tx.ListPublicCircles(ctx)
		return err
	})
	return circles, err
}

// ReviseCircleLimit changes whether a circle is limited and its members
// limit. Only admins may do this, and the new limit cannot be lower than the
// current active member count.
func (s *CircleService) ReviseCircleLimit(ctx context.Context, actorUserID, circleID uuid.UUID, isLimited bool, membersLimit int) (*domain.Circle, error) {
	if err := domain.ValidateMembersLimit(isLimited, membersLimit); err != nil {
		return nil, err
	}

	var circle *domain.Circle
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		circle, err = tx.LockCircle(ctx, circleID)
		if err != nil {
			return err
		}
		if err := requireAdmin(ctx, tx, circleID, actorUserID); err != nil {
			return err
		}

		if isLimited {
			count, err := tx.CountActiveMembers(ctx, circleID)
			if err != nil {
				return fmt.Errorf("failed to count members: %w", err)
			}
			if count > membersLimit {
				return domain.ErrLimitBelowMembers
			}
		}

		circle.IsLimited = isLimited
		circle.MembersLimit = membersLimit
		circle.UpdatedAt = s.config.Now()
		return tx.UpdateCircle(ctx, circle)
	})
	if err != nil {
		return nil, err
	}
	return circle, nil
}

// ReviseCircleDetails updates a circle's name and description. Admin only.
func (s *CircleService) ReviseCircleDetails(ctx context.Context, actorUserID, circleID uuid.UUID, name, about string) (*domain.Circle, error) {
	name = domain.CleanLine(name)
	about = domain.CleanText(about)
	if err := domain.ValidateCircleName(name); err != nil {
		return nil, err
	}

	var circle *domain.Circle
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		circle, err = tx.LockCircle(ctx, circleID)
		if err != nil {
			return err
		}
		if err := requireAdmin(ctx, tx, circleID, actorUserID); err != nil {
			return err
		}
		circle.Name = name
		circle.About = about
		circle.UpdatedAt = s.config.Now()
		return tx.UpdateCircle(ctx, circle)
	})
	if err != nil {
		return nil, err
	}
	return circle, nil
}

// SetVerified flags a circle as verified or not. It is an operator action
// with no membership check.
func (s *CircleService) SetVerified(ctx context.Context, circleID uuid.UUID, verified bool) (*domain.Circle, error) {
	var circle *domain.Circle
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		circle, err = tx.LockCircle(ctx, circleID)
		if err != nil {
			return err
		}
		circle.Verified = verified
		circle.UpdatedAt = s.config.Now()
		return tx.UpdateCircle(ctx, circle)
	})
	if err != nil {
		return nil, err
	}

	s.config.Logger.Info("circle verification changed", "circle_id", circleID, "verified", verified)
	return circle, nil
}

func requireAdmin(ctx context.Context, tx Tx, circleID, userID uuid.UUID) error {
	m, err := activeMembership(ctx, tx, circleID, userID)
	if err != nil {
		return err
	}
	if !m.IsAdmin {
		return domain.ErrNotAdmin
	}
	return nil
}
