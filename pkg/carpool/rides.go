package carpool

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/circle-rides/pkg/domain"
)

// RideSpec holds the fields of a ride offer.
type RideSpec struct {
	DepartureLocation string
	ArrivalLocation   string
	DepartureDate     time.Time
	ArrivalDate       time.Time
	AvailableSeats    int
	Comments          string
}

func (s RideSpec) validate(now time.Time) error {
	if err := domain.ValidateSeats(s.AvailableSeats); err != nil {
		return err
	}
	if err := domain.ValidateLocation(s.DepartureLocation); err != nil {
		return err
	}
	if err := domain.ValidateLocation(s.ArrivalLocation); err != nil {
		return err
	}
	return domain.ValidateWindow(s.DepartureDate, s.ArrivalDate, now)
}

// RidePatch lists the ride fields an owner may change before departure.
// Nil fields are left unchanged.
type RidePatch struct {
	DepartureLocation *string
	ArrivalLocation   *string
	DepartureDate     *time.Time
	ArrivalDate       *time.Time
	Comments          *string
}

// RideService manages ride offers, seat booking and the ride lifecycle.
type RideService struct {
	config Config
	store  Store
}

// NewRideService creates a new ride service.
func NewRideService(config Config, store Store) *RideService {
	return &RideService{
		config: config.withDefaults(),
		store:  store,
	}
}

// Create offers a new ride in circleID. The circle, membership and profile
// ridesOffered counters move in the same transaction.
func (s *RideService) Create(ctx context.Context, circleID, offererUserID uuid.UUID, spec RideSpec) (*domain.Ride, error) {
	spec.DepartureLocation = domain.CleanLine(spec.DepartureLocation)
	spec.ArrivalLocation = domain.CleanLine(spec.ArrivalLocation)
	spec.Comments = domain.CleanText(spec.Comments)
	now := s.config.Now()
	if err := spec.validate(now); err != nil {
		return nil, err
	}

	ride := &domain.Ride{
		ID:                uuid.New(),
		CircleID:          circleID,
		OfferedBy:         offererUserID,
		DepartureLocation: spec.DepartureLocation,
		ArrivalLocation:   spec.ArrivalLocation,
		DepartureDate:     spec.DepartureDate,
		ArrivalDate:       spec.ArrivalDate,
		AvailableSeats:    spec.AvailableSeats,
		Comments:          spec.Comments,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err := s.store.InTx(ctx, func(tx Tx) error {
		if _, err := tx.GetCircle(ctx, circleID); err != nil {
			return err
		}
		m, err := activeMembership(ctx, tx, circleID, offererUserID)
		if err != nil {
			return err
		}
		if err := tx.CreateRide(ctx, ride); err != nil {
			return fmt.Errorf("failed to create ride: %w", err)
		}
		if err := tx.AddCircleRideStats(ctx, circleID, 1, 0); err != nil {
			return fmt.Errorf("failed to update circle stats: %w", err)
		}
		if err := tx.AddMembershipRideStats(ctx, m.ID, 1, 0); err != nil {
			return fmt.Errorf("failed to update membership stats: %w", err)
		}
		if err := tx.AddProfileRideStats(ctx, offererUserID, 1, 0); err != nil {
			return fmt.Errorf("failed to update profile stats: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.config.Logger.Info("ride offered", "ride_id", ride.ID, "circle_id", circleID, "offered_by", offererUserID)
	return ride, nil
}

// Join books one seat on rideID for passengerUserID. The ride row stays
// locked from the eligibility checks through the seat decrement, so
// concurrent joins for the last seat resolve to exactly one success.
func (s *RideService) Join(ctx context.Context, rideID, passengerUserID uuid.UUID) (*domain.Ride, error) {
	var ride *domain.Ride
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		ride, err = tx.LockRide(ctx, rideID)
		if err != nil {
			return err
		}
		m, err := activeMembership(ctx, tx, ride.CircleID, passengerUserID)
		if err != nil {
			return err
		}
		if err := ride.CheckJoin(passengerUserID, s.config.Now()); err != nil {
			return err
		}

		if err := tx.AddPassenger(ctx, ride.ID, passengerUserID); err != nil {
			return err
		}
		if err := tx.TakeSeat(ctx, ride.ID); err != nil {
			return err
		}
		if err := tx.AddCircleRideStats(ctx, ride.CircleID, 0, 1); err != nil {
			return fmt.Errorf("failed to update circle stats: %w", err)
		}
		if err := tx.AddMembershipRideStats(ctx, m.ID, 0, 1); err != nil {
			return fmt.Errorf("failed to update membership stats: %w", err)
		}
		if err := tx.AddProfileRideStats(ctx, passengerUserID, 0, 1); err != nil {
			return fmt.Errorf("failed to update profile stats: %w", err)
		}

		ride.Passengers = append(ride.Passengers, passengerUserID)
		ride.AvailableSeats--
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ride, nil
}

// End marks a ride finished. Only the offerer may end it, and only once
// observedTime is past departure.
func (s *RideService) End(ctx context.Context, rideID, endingUserID uuid.UUID, observedTime time.Time) (*domain.Ride, error) {
	var ride *domain.Ride
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		ride, err = tx.LockRide(ctx, rideID)
		if err != nil {
			return err
		}
		if ride.OfferedBy != endingUserID {
			return domain.ErrNotOwner
		}
		if !observedTime.After(ride.DepartureDate) {
			return domain.ErrNotStarted
		}
		if !ride.IsActive {
			return domain.ErrRideEnded
		}
		if err := tx.EndRide(ctx, ride.ID); err != nil {
			return err
		}
		ride.IsActive = false
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ride, nil
}

// Update edits a ride that has not departed yet.
func (s *RideService) Update(ctx context.Context, rideID, editorUserID uuid.UUID, patch RidePatch) (*domain.Ride, error) {
	var ride *domain.Ride
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		ride, err = tx.LockRide(ctx, rideID)
		if err != nil {
			return err
		}
		if ride.OfferedBy != editorUserID {
			return domain.ErrNotOwner
		}
		now := s.config.Now()
		if !ride.IsActive || !now.Before(ride.DepartureDate) {
			return domain.ErrRideLocked
		}

		if patch.DepartureLocation != nil {
			loc := domain.CleanLine(*patch.DepartureLocation)
			if err := domain.ValidateLocation(loc); err != nil {
				return err
			}
			ride.DepartureLocation = loc
		}
		if patch.ArrivalLocation != nil {
			loc := domain.CleanLine(*patch.ArrivalLocation)
			if err := domain.ValidateLocation(loc); err != nil {
				return err
			}
			ride.ArrivalLocation = loc
		}
		if patch.DepartureDate != nil || patch.ArrivalDate != nil {
			if patch.DepartureDate != nil {
				ride.DepartureDate = *patch.DepartureDate
			}
			if patch.ArrivalDate != nil {
				ride.ArrivalDate = *patch.ArrivalDate
			}
			if err := domain.ValidateWindow(ride.DepartureDate, ride.ArrivalDate, now); err != nil {
				return err
			}
		}
		if patch.Comments != nil {
			ride.Comments = domain.CleanText(*patch.Comments)
		}

		ride.UpdatedAt = now
		return tx.UpdateRide(ctx, ride)
	})
	if err != nil {
		return nil, err
	}
	return ride, nil
}

// Get returns a ride with its passengers. The actor must be an active
// member of the ride's circle.
func (s *RideService) Get(ctx context.Context, actorUserID, rideID uuid.UUID) (*domain.Ride, error) {
	var ride *domain.Ride
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		ride, err = tx.GetRide(ctx, rideID)
		if err != nil {
			return err
		}
		_, err = activeMembership(ctx, tx, ride.CircleID, actorUserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ride, nil
}

// RideQuery narrows ListAvailable. The zero value lists every available ride,
// soonest departure first.
type RideQuery struct {
	// Search matches departure or arrival location, ignoring case.
	Search string
	// Ordering is one of the domain.Order* keys.
	Ordering string
}

func (q RideQuery) filter(departsAfter time.Time) (domain.RideFilter, error) {
	order, err := domain.ParseRideOrder(q.Ordering)
	if err != nil {
		return domain.RideFilter{}, err
	}
	search := domain.CleanLine(q.Search)
	if err := domain.ValidateSearch(search); err != nil {
		return domain.RideFilter{}, err
	}
	return domain.RideFilter{DepartsAfter: departsAfter, Search: search, Order: order}, nil
}

// ListAvailable returns the circle's active rides that still have seats and
// depart at least MinDepartureLead from now, narrowed by q.
func (s *RideService) ListAvailable(ctx context.Context, actorUserID, circleID uuid.UUID, q RideQuery) ([]*domain.Ride, error) {
	filter, err := q.filter(s.config.Now().Add(domain.MinDepartureLead))
	if err != nil {
		return nil, err
	}

	var rides []*domain.Ride
	err = s.store.InTx(ctx, func(tx Tx) error {
		if _, err := tx.GetCircle(ctx, circleID); err != nil {
			return err
		}
		if _, err := activeMembership(ctx, tx, circleID, actorUserID); err != nil {
			return err
		}
		var err error
		rides, err = tx.ListAvailableRides(ctx, circleID, filter)
		return err
	})
	return rides, err
}

// RidesEndingBetween returns active rides whose arrival falls in [start, end].
func (s *RideService) RidesEndingBetween(ctx context.Context, start, end time.Time) ([]*domain.Ride, error) {
	if end.Before(start) {
		return nil, domain.ErrInvalidTimeRange
	}
	var rides []*domain.Ride
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		rides, err = tx.ListRidesEndingBetween(ctx, start, end)
		return err
	})
	return rides, err
}

// DeactivateRides marks the given rides inactive and returns how many changed.
func (s *RideService) DeactivateRides(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var n int
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		n, err = tx.DeactivateRides(ctx, ids)
		return err
	})
	return n, err
}
