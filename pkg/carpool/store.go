package carpool

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/circle-rides/pkg/domain"
)

// Store runs fn inside a single atomic unit. Either every write made through
// tx commits or none does; a cancelled ctx aborts the unit.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of row operations available inside a transaction. Lock*
// methods take an exclusive row lock held until the transaction ends.
type Tx interface {
	CircleStore
	MembershipStore
	InvitationStore
	RideStore
	RatingStore
	ProfileStore
}

type CircleStore interface {
	// CreateCircle returns domain.ErrSlugTaken if the slug is in use.
	CreateCircle(ctx context.Context, c *domain.Circle) error
	GetCircle(ctx context.Context, id uuid.UUID) (*domain.Circle, error)
	GetCircleBySlug(ctx context.Context, slug string) (*domain.Circle, error)
	LockCircle(ctx context.Context, id uuid.UUID) (*domain.Circle, error)
	ListPublicCircles(ctx context.Context) ([]*domain.Circle, error)
	UpdateCircle(ctx context.Context, c *domain.Circle) error
	AddCircleRideStats(ctx context.Context, id uuid.UUID, offered, taken int) error
}

type MembershipStore interface {
	// CreateMembership returns domain.ErrAlreadyMember if the user already
	// holds an active membership in the circle.
	CreateMembership(ctx context.Context, m *domain.Membership) error
	GetMembership(ctx context.Context, id uuid.UUID) (*domain.Membership, error)
	GetActiveMembership(ctx context.Context, circleID, userID uuid.UUID) (*domain.Membership, error)
	LockMembership(ctx context.Context, id uuid.UUID) (*domain.Membership, error)
	CountActiveMembers(ctx context.Context, circleID uuid.UUID) (int, error)
	ListActiveMembers(ctx context.Context, circleID uuid.UUID) ([]*domain.Membership, error)
	ListInvitedMembers(ctx context.Context, circleID, inviterUserID uuid.UUID) ([]*domain.Membership, error)
	// RecordInvitationUse bumps used_invitations and spends one remaining
	// invitation, never going below zero.
	RecordInvitationUse(ctx context.Context, membershipID uuid.UUID) error
	AddMembershipRideStats(ctx context.Context, id uuid.UUID, offered, taken int) error
	DeactivateMembership(ctx context.Context, id uuid.UUID) error
}

type InvitationStore interface {
	// CreateInvitation returns domain.ErrDuplicateInvitationCode on a code
	// collision without aborting the transaction.
	CreateInvitation(ctx context.Context, inv *domain.Invitation) error
	// LockInvitation returns domain.ErrInvalidCode if no invitation with the
	// code exists in the circle.
	LockInvitation(ctx context.Context, circleID uuid.UUID, code string) (*domain.Invitation, error)
	ListUnusedInvitations(ctx context.Context, circleID, issuerMembershipID uuid.UUID) ([]*domain.Invitation, error)
	// MarkInvitationUsed returns domain.ErrInvitationUsed if already used.
	MarkInvitationUsed(ctx context.Context, id, usedBy uuid.UUID, at time.Time) error
}

type RideStore interface {
	CreateRide(ctx context.Context, r *domain.Ride) error
	GetRide(ctx context.Context, id uuid.UUID) (*domain.Ride, error)
	LockRide(ctx context.Context, id uuid.UUID) (*domain.Ride, error)
	UpdateRide(ctx context.Context, r *domain.Ride) error
	// AddPassenger returns domain.ErrAlreadyPassenger on a duplicate.
	AddPassenger(ctx context.Context, rideID, userID uuid.UUID) error
	// TakeSeat decrements available seats by one, returning
	// domain.ErrNoSeatsAvailable when none are left.
	TakeSeat(ctx context.Context, rideID uuid.UUID) error
	SetRideRating(ctx context.Context, rideID uuid.UUID, rating float64) error
	EndRide(ctx context.Context, rideID uuid.UUID) error
	// ListAvailableRides returns active rides with free seats departing at or
	// after filter.DepartsAfter, sorted by filter.Order.
	ListAvailableRides(ctx context.Context, circleID uuid.UUID, filter domain.RideFilter) ([]*domain.Ride, error)
	ListRidesEndingBetween(ctx context.Context, start, end time.Time) ([]*domain.Ride, error)
	DeactivateRides(ctx context.Context, ids []uuid.UUID) (int, error)
}

type RatingStore interface {
	// CreateRating returns domain.ErrDuplicateRating if the user already rated the ride.
	CreateRating(ctx context.Context, r *domain.Rating) error
	HasRated(ctx context.Context, rideID, userID uuid.UUID) (bool, error)
	ListRideRatings(ctx context.Context, rideID uuid.UUID) ([]*domain.Rating, error)
	// AverageRideRating returns the mean rating of a ride and how many ratings it has.
	AverageRideRating(ctx context.Context, rideID uuid.UUID) (float64, int, error)
	// AverageUserRating returns the mean of all ratings a user received.
	AverageUserRating(ctx context.Context, userID uuid.UUID) (float64, int, error)
}

type ProfileStore interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)
	// LockProfile creates the profile if missing and locks it.
	LockProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)
	AddProfileRideStats(ctx context.Context, userID uuid.UUID, offered, taken int) error
	SetReputation(ctx context.Context, userID uuid.UUID, reputation float64) error
}
