package domain

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MinRating = 1
	MaxRating = 5

	MaxCommentsLength = 1000

	// DefaultReputation is a profile's reputation before any rating.
	DefaultReputation = 5.0
)

// Rating is a passenger's score for a ride, attributed to the ride's offerer.
type Rating struct {
	ID           uuid.UUID
	CircleID     uuid.UUID
	RideID       uuid.UUID
	RatingUserID uuid.UUID
	RatedUserID  uuid.UUID
	Value        int
	Comments     string
	CreatedAt    time.Time
}

// ValidateRating checks a rating value and its comments.
func ValidateRating(value int, comments string) error {
	if value < MinRating || value > MaxRating {
		return ErrInvalidRating
	}
	if utf8.RuneCountInString(comments) > MaxCommentsLength {
		return ErrCommentsTooLong
	}
	return nil
}

// Profile holds a user's cross-circle ride counters and reputation.
type Profile struct {
	UserID       uuid.UUID
	RidesOffered int
	RidesTaken   int
	Reputation   float64
	UpdatedAt    time.Time
}

// NewProfile returns the zero-activity profile for userID.
func NewProfile(userID uuid.UUID, now time.Time) *Profile {
	return &Profile{
		UserID:     userID,
		Reputation: DefaultReputation,
		UpdatedAt:  now,
	}
}
