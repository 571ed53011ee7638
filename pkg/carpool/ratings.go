package carpool

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tendant/circle-rides/pkg/domain"
)

// RatingService records ride ratings and keeps ride and user averages current.
type RatingService struct {
	config Config
	store  Store
}

// NewRatingService creates a new rating service.
func NewRatingService(config Config, store Store) *RatingService {
	return &RatingService{
		config: config.withDefaults(),
		store:  store,
	}
}

// Rate stores raterUserID's rating of rideID and recomputes the ride's
// average and the offerer's reputation. The ride row is locked before any
// existing rating is read, so concurrent ratings never lose an update.
func (s *RatingService) Rate(ctx context.Context, rideID, raterUserID uuid.UUID, value int, comments string) (*domain.Rating, error) {
	comments = domain.CleanText(comments)
	if err := domain.ValidateRating(value, comments); err != nil {
		return nil, err
	}

	var rating *domain.Rating
	err := s.store.InTx(ctx, func(tx Tx) error {
		ride, err := tx.LockRide(ctx, rideID)
		if err != nil {
			return err
		}
		if !ride.HasPassenger(raterUserID) {
			return domain.ErrNotPassenger
		}
		rated, err := tx.HasRated(ctx, ride.ID, raterUserID)
		if err != nil {
			return fmt.Errorf("failed to check existing rating: %w", err)
		}
		if rated {
			return domain.ErrDuplicateRating
		}

		rating = &domain.Rating{
			ID:           uuid.New(),
			CircleID:     ride.CircleID,
			RideID:       ride.ID,
			RatingUserID: raterUserID,
			RatedUserID:  ride.OfferedBy,
			Value:        value,
			Comments:     comments,
			CreatedAt:    s.config.Now(),
		}
		if err := tx.CreateRating(ctx, rating); err != nil {
			return err
		}

		rideAvg, _, err := tx.AverageRideRating(ctx, ride.ID)
		if err != nil {
			return fmt.Errorf("failed to average ride ratings: %w", err)
		}
		if err := tx.SetRideRating(ctx, ride.ID, rideAvg); err != nil {
			return fmt.Errorf("failed to update ride rating: %w", err)
		}

		if _, err := tx.LockProfile(ctx, ride.OfferedBy); err != nil {
			return fmt.Errorf("failed to lock profile: %w", err)
		}
		userAvg, _, err := tx.AverageUserRating(ctx, ride.OfferedBy)
		if err != nil {
			return fmt.Errorf("failed to average user ratings: %w", err)
		}
		if err := tx.SetReputation(ctx, ride.OfferedBy, userAvg); err != nil {
			return fmt.Errorf("failed to update reputation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rating, nil
}

// RideRatings returns all ratings of a ride to an active member of its circle.
func (s *RatingService) RideRatings(ctx context.Context, actorUserID, rideID uuid.UUID) ([]*domain.Rating, error) {
	var ratings []*domain.Rating
	err := s.store.InTx(ctx, func(tx Tx) error {
		ride, err := tx.GetRide(ctx, rideID)
		if err != nil {
			return err
		}
		if _, err := activeMembership(ctx, tx, ride.CircleID, actorUserID); err != nil {
			return err
		}
		ratings, err = tx.ListRideRatings(ctx, rideID)
		return err
	})
	return ratings, err
}

// Profile returns a user's ride counters and reputation. Users without any
// activity get the default profile.
func (s *RatingService) Profile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	var p *domain.Profile
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		p, err = tx.GetProfile(ctx, userID)
		return err
	})
	if errors.Is(err, domain.ErrProfileNotFound) {
		return domain.NewProfile(userID, s.config.Now()), nil
	}
	return p, err
}
