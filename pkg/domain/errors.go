package domain

import "errors"

// Kind classifies a domain error for callers that need to decide how to
// surface it (HTTP status, retry, log level).
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindAuthorization
	KindExhausted
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindAuthorization:
		return "authorization"
	case KindExhausted:
		return "exhausted"
	default:
		return "internal"
	}
}

// Error is a domain error carrying its Kind.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// KindOf returns the Kind of err, or KindInternal for errors that did not
// originate in the domain.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// Validation errors
var (
	ErrInvalidName         = newError(KindValidation, "circle name must be between 1 and 140 characters")
	ErrInvalidSlug         = newError(KindValidation, "slug must be 1-40 lowercase letters, digits or hyphens")
	ErrInvalidMembersLimit = newError(KindValidation, "a limited circle needs a members limit between 10 and 3200, an unlimited one none")
	ErrInvalidSeats        = newError(KindValidation, "available seats must be between 1 and 15")
	ErrInvalidWindow       = newError(KindValidation, "departure must be at least 10 minutes ahead and before arrival")
	ErrInvalidRating       = newError(KindValidation, "rating must be between 1 and 5")
	ErrCommentsTooLong     = newError(KindValidation, "comments must be at most 1000 characters")
	ErrInvalidTimeRange    = newError(KindValidation, "range end must not be before range start")
	ErrInvalidLocation     = newError(KindValidation, "locations must be between 1 and 255 characters")
	ErrInvalidOrdering     = newError(KindValidation, "ordering must be one of departure_date, arrival_date or available_seats, optionally prefixed with -")
)

// Conflict errors
var (
	ErrSlugTaken         = newError(KindConflict, "slug already in use")
	ErrCircleFull        = newError(KindConflict, "circle has reached its members limit")
	ErrLimitBelowMembers = newError(KindConflict, "members limit is below the current member count")
	ErrAlreadyMember     = newError(KindConflict, "user is already a member of this circle")
	ErrInvitationUsed    = newError(KindConflict, "invitation code already used")
	ErrQuotaExhausted    = newError(KindConflict, "no invitations remaining")
	ErrNoSeatsAvailable  = newError(KindConflict, "ride is already full")
	ErrAlreadyPassenger  = newError(KindConflict, "passenger is already in this ride")
	ErrSelfJoin          = newError(KindConflict, "ride owners cannot join their own ride")
	ErrRideClosed        = newError(KindConflict, "ride can no longer be joined")
	ErrRideLocked        = newError(KindConflict, "ongoing rides cannot be modified")
	ErrNotStarted        = newError(KindConflict, "ride has not started yet")
	ErrRideEnded         = newError(KindConflict, "ride already ended")
	ErrDuplicateRating   = newError(KindConflict, "rating already issued")

	// ErrDuplicateInvitationCode signals a code collision inside a circle.
	// The ledger retries on it; it only escapes as ErrCodeGenerationExhausted.
	ErrDuplicateInvitationCode = newError(KindConflict, "invitation code already exists in circle")
)

// Not found errors
var (
	ErrCircleNotFound     = newError(KindNotFound, "circle not found")
	ErrMembershipNotFound = newError(KindNotFound, "membership not found")
	ErrInvalidCode        = newError(KindNotFound, "invalid invitation code")
	ErrRideNotFound       = newError(KindNotFound, "ride not found")
	ErrProfileNotFound    = newError(KindNotFound, "profile not found")
)

// Authorization errors
var (
	ErrNotActiveMember = newError(KindAuthorization, "user is not an active member of the circle")
	ErrNotAdmin        = newError(KindAuthorization, "circle admin permission required")
	ErrNotOwner        = newError(KindAuthorization, "only the ride owner can do this")
	ErrNotPassenger    = newError(KindAuthorization, "current user isn't a passenger")
	ErrInvalidToken    = newError(KindAuthorization, "invalid token")
)

// ErrCodeGenerationExhausted is returned when no free invitation code was
// found within the attempt cap. Callers may retry.
var ErrCodeGenerationExhausted = newError(KindExhausted, "could not generate a unique invitation code")
