package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MinSeats = 1
	MaxSeats = 15

	// MinDepartureLead is how far ahead of now a ride must depart.
	MinDepartureLead = 10 * time.Minute

	maxLocationLen = 255
)

// RideState is derived from a ride's seats, dates and active flag.
type RideState string

const (
	RideStateOpen     RideState = "open"
	RideStateFull     RideState = "full"
	RideStateDeparted RideState = "departed"
	RideStateEnded    RideState = "ended"
)

// Ride is an offered trip scoped to one circle.
type Ride struct {
	ID                uuid.UUID
	CircleID          uuid.UUID
	OfferedBy         uuid.UUID
	DepartureLocation string
	ArrivalLocation   string
	DepartureDate     time.Time
	ArrivalDate       time.Time
	AvailableSeats    int
	Comments          string
	Passengers        []uuid.UUID
	Rating            *float64
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// StateAt returns the lifecycle state of the ride at now.
func (r *Ride) StateAt(now time.Time) RideState {
	switch {
	case !r.IsActive || !now.Before(r.ArrivalDate):
		return RideStateEnded
	case !now.Before(r.DepartureDate):
		return RideStateDeparted
	case r.AvailableSeats <= 0:
		return RideStateFull
	default:
		return RideStateOpen
	}
}

// HasPassenger reports whether userID already joined the ride.
func (r *Ride) HasPassenger(userID uuid.UUID) bool {
	for _, p := range r.Passengers {
		if p == userID {
			return true
		}
	}
	return false
}

// CheckJoin validates that userID may take a seat at now. Membership is
// checked by the caller.
func (r *Ride) CheckJoin(userID uuid.UUID, now time.Time) error {
	if r.OfferedBy == userID {
		return ErrSelfJoin
	}
	if r.HasPassenger(userID) {
		return ErrAlreadyPassenger
	}
	switch r.StateAt(now) {
	case RideStateDeparted, RideStateEnded:
		return ErrRideClosed
	case RideStateFull:
		return ErrNoSeatsAvailable
	}
	return nil
}

// ValidateSeats checks an offered seat count.
func ValidateSeats(seats int) error {
	if seats < MinSeats || seats > MaxSeats {
		return ErrInvalidSeats
	}
	return nil
}

// ValidateWindow checks departure and arrival against now.
func ValidateWindow(departure, arrival, now time.Time) error {
	if departure.Before(now.Add(MinDepartureLead)) {
		return ErrInvalidWindow
	}
	if !arrival.After(departure) {
		return ErrInvalidWindow
	}
	return nil
}

// ValidateLocation checks a departure or arrival location.
func ValidateLocation(loc string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(loc))
	if n == 0 || n > maxLocationLen {
		return ErrInvalidLocation
	}
	return nil
}

// ValidateSearch checks location search text. Empty text is allowed.
func ValidateSearch(text string) error {
	if utf8.RuneCountInString(text) > maxLocationLen {
		return ErrInvalidLocation
	}
	return nil
}

// RideOrder is a sort key for ride listings. A leading "-" sorts descending.
type RideOrder string

const (
	OrderDepartureAsc  RideOrder = "departure_date"
	OrderDepartureDesc RideOrder = "-departure_date"
	OrderArrivalAsc    RideOrder = "arrival_date"
	OrderArrivalDesc   RideOrder = "-arrival_date"
	OrderSeatsAsc      RideOrder = "available_seats"
	OrderSeatsDesc     RideOrder = "-available_seats"
)

// ParseRideOrder accepts one of the Order* keys. An empty string means
// soonest departure first.
func ParseRideOrder(s string) (RideOrder, error) {
	switch o := RideOrder(strings.TrimSpace(s)); o {
	case "":
		return OrderDepartureAsc, nil
	case OrderDepartureAsc, OrderDepartureDesc, OrderArrivalAsc, OrderArrivalDesc, OrderSeatsAsc, OrderSeatsDesc:
		return o, nil
	default:
		return "", ErrInvalidOrdering
	}
}

// Less reports whether a sorts before b. Ties fall back to departure and
// then ID so listings are stable.
func (o RideOrder) Less(a, b *Ride) bool {
	desc := strings.HasPrefix(string(o), "-")
	var cmp int
	switch strings.TrimPrefix(string(o), "-") {
	case string(OrderArrivalAsc):
		cmp = a.ArrivalDate.Compare(b.ArrivalDate)
	case string(OrderSeatsAsc):
		cmp = a.AvailableSeats - b.AvailableSeats
	default:
		cmp = a.DepartureDate.Compare(b.DepartureDate)
	}
	if desc {
		cmp = -cmp
	}
	if cmp == 0 {
		cmp = a.DepartureDate.Compare(b.DepartureDate)
	}
	if cmp == 0 {
		return a.ID.String() < b.ID.String()
	}
	return cmp < 0
}

// RideFilter narrows a listing of available rides.
type RideFilter struct {
	DepartsAfter time.Time
	// Search matches either location, ignoring case. Empty matches all.
	Search string
	Order  RideOrder
}

// Matches reports whether either location of r contains f.Search.
func (f RideFilter) Matches(r *Ride) bool {
	if f.Search == "" {
		return true
	}
	needle := strings.ToLower(f.Search)
	return strings.Contains(strings.ToLower(r.DepartureLocation), needle) ||
		strings.Contains(strings.ToLower(r.ArrivalLocation), needle)
}
