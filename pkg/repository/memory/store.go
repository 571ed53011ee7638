// Package memory provides an in-process carpool.Store. Transactions are
// serialized behind a mutex and work on a copy of the state that replaces
// the committed state only when the transaction function succeeds.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/circle-rides/pkg/carpool"
	"github.com/tendant/circle-rides/pkg/domain"
)

type state struct {
	circles     map[uuid.UUID]domain.Circle
	memberships map[uuid.UUID]domain.Membership
	invitations map[uuid.UUID]domain.Invitation
	rides       map[uuid.UUID]domain.Ride
	ratings     map[uuid.UUID]domain.Rating
	profiles    map[uuid.UUID]domain.Profile
}

func newState() *state {
	return &state{
		circles:     make(map[uuid.UUID]domain.Circle),
		memberships: make(map[uuid.UUID]domain.Membership),
		invitations: make(map[uuid.UUID]domain.Invitation),
		rides:       make(map[uuid.UUID]domain.Ride),
		ratings:     make(map[uuid.UUID]domain.Rating),
		profiles:    make(map[uuid.UUID]domain.Profile),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.circles {
		c.circles[k] = v
	}
	for k, v := range s.memberships {
		c.memberships[k] = v
	}
	for k, v := range s.invitations {
		c.invitations[k] = v
	}
	for k, v := range s.rides {
		c.rides[k] = copyRide(v)
	}
	for k, v := range s.ratings {
		c.ratings[k] = v
	}
	for k, v := range s.profiles {
		c.profiles[k] = v
	}
	return c
}

func copyRide(r domain.Ride) domain.Ride {
	r.Passengers = append([]uuid.UUID(nil), r.Passengers...)
	return r
}

// Store is an in-memory carpool.Store.
type Store struct {
	mu sync.Mutex
	st *state
}

// New creates an empty store.
func New() *Store {
	return &Store{st: newState()}
}

// InTx runs fn against a private copy of the state and commits it if fn
// returns nil and ctx is still live.
func (s *Store) InTx(ctx context.Context, fn func(tx carpool.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{st: s.st.clone()}
	if err := fn(t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = t.st
	return nil
}

type tx struct {
	st *state
}

var _ carpool.Tx = (*tx)(nil)

// Circles

func (t *tx) CreateCircle(_ context.Context, c *domain.Circle) error {
	for _, existing := range t.st.circles {
		if existing.Slug == c.Slug {
			return domain.ErrSlugTaken
		}
	}
	t.st.circles[c.ID] = *c
	return nil
}

func (t *tx) GetCircle(_ context.Context, id uuid.UUID) (*domain.Circle, error) {
	c, ok := t.st.circles[id]
	if !ok {
		return nil, domain.ErrCircleNotFound
	}
	return &c, nil
}

func (t *tx) GetCircleBySlug(_ context.Context, slug string) (*domain.Circle, error) {
	for _, c := range t.st.circles {
		if c.Slug == slug {
			return &c, nil
		}
	}
	return nil, domain.ErrCircleNotFound
}

func (t *tx) LockCircle(ctx context.Context, id uuid.UUID) (*domain.Circle, error) {
	return t.GetCircle(ctx, id)
}

func (t *tx) ListPublicCircles(_ context.Context) ([]*domain.Circle, error) {
	var out []*domain.Circle
	for _, c := range t.st.circles {
		if c.IsPublic {
			c := c
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (t *tx) UpdateCircle(_ context.Context, c *domain.Circle) error {
	stored, ok := t.st.circles[c.ID]
	if !ok {
		return domain.ErrCircleNotFound
	}
	stored.Name = c.Name
	stored.About = c.About
	stored.IsLimited = c.IsLimited
	stored.MembersLimit = c.MembersLimit
	stored.Verified = c.Verified
	stored.UpdatedAt = c.UpdatedAt
	t.st.circles[c.ID] = stored
	return nil
}

func (t *tx) AddCircleRideStats(_ context.Context, id uuid.UUID, offered, taken int) error {
	c, ok := t.st.circles[id]
	if !ok {
		return domain.ErrCircleNotFound
	}
	c.RidesOffered += offered
	c.RidesTaken += taken
	t.st.circles[id] = c
	return nil
}

// Memberships

func (t *tx) CreateMembership(_ context.Context, m *domain.Membership) error {
	if m.IsActive {
		for _, existing := range t.st.memberships {
			if existing.IsActive && existing.CircleID == m.CircleID && existing.UserID == m.UserID {
				return domain.ErrAlreadyMember
			}
		}
	}
	t.st.memberships[m.ID] = *m
	return nil
}

func (t *tx) GetMembership(_ context.Context, id uuid.UUID) (*domain.Membership, error) {
	m, ok := t.st.memberships[id]
	if !ok {
		return nil, domain.ErrMembershipNotFound
	}
	return &m, nil
}

func (t *tx) GetActiveMembership(_ context.Context, circleID, userID uuid.UUID) (*domain.Membership, error) {
	for _, m := range t.st.memberships {
		if m.IsActive && m.CircleID == circleID && m.UserID == userID {
			return &m, nil
		}
	}
	return nil, domain.ErrMembershipNotFound
}

func (t *tx) LockMembership(ctx context.Context, id uuid.UUID) (*domain.Membership, error) {
	return t.GetMembership(ctx, id)
}

func (t *tx) CountActiveMembers(_ context.Context, circleID uuid.UUID) (int, error) {
	n := 0
	for _, m := range t.st.memberships {
		if m.IsActive && m.CircleID == circleID {
			n++
		}
	}
	return n, nil
}

func (t *tx) ListActiveMembers(_ context.Context, circleID uuid.UUID) ([]*domain.Membership, error) {
	return t.filterMemberships(func(m domain.Membership) bool {
		return m.IsActive && m.CircleID == circleID
	}), nil
}

func (t *tx) ListInvitedMembers(_ context.Context, circleID, inviterUserID uuid.UUID) ([]*domain.Membership, error) {
	return t.filterMemberships(func(m domain.Membership) bool {
		return m.IsActive && m.CircleID == circleID && m.InvitedBy != nil && *m.InvitedBy == inviterUserID
	}), nil
}

func (t *tx) filterMemberships(keep func(domain.Membership) bool) []*domain.Membership {
	var out []*domain.Membership
	for _, m := range t.st.memberships {
		if keep(m) {
			m := m
			out = append(out, &m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (t *tx) RecordInvitationUse(_ context.Context, membershipID uuid.UUID) error {
	m, ok := t.st.memberships[membershipID]
	if !ok {
		return domain.ErrMembershipNotFound
	}
	m.UsedInvitations++
	if m.RemainingInvitations > 0 {
		m.RemainingInvitations--
	}
	t.st.memberships[membershipID] = m
	return nil
}

func (t *tx) AddMembershipRideStats(_ context.Context, id uuid.UUID, offered, taken int) error {
	m, ok := t.st.memberships[id]
	if !ok {
		return domain.ErrMembershipNotFound
	}
	m.RidesOffered += offered
	m.RidesTaken += taken
	t.st.memberships[id] = m
	return nil
}

func (t *tx) DeactivateMembership(_ context.Context, id uuid.UUID) error {
	m, ok := t.st.memberships[id]
	if !ok || !m.IsActive {
		return domain.ErrMembershipNotFound
	}
	m.IsActive = false
	t.st.memberships[id] = m
	return nil
}

// Invitations

func (t *tx) CreateInvitation(_ context.Context, inv *domain.Invitation) error {
	for _, existing := range t.st.invitations {
		if existing.CircleID == inv.CircleID && existing.Code == inv.Code {
			return domain.ErrDuplicateInvitationCode
		}
	}
	t.st.invitations[inv.ID] = *inv
	return nil
}

func (t *tx) LockInvitation(_ context.Context, circleID uuid.UUID, code string) (*domain.Invitation, error) {
	for _, inv := range t.st.invitations {
		if inv.CircleID == circleID && inv.Code == code {
			return &inv, nil
		}
	}
	return nil, domain.ErrInvalidCode
}

func (t *tx) ListUnusedInvitations(_ context.Context, circleID, issuerMembershipID uuid.UUID) ([]*domain.Invitation, error) {
	var out []*domain.Invitation
	for _, inv := range t.st.invitations {
		if !inv.Used && inv.CircleID == circleID && inv.IssuedBy == issuerMembershipID {
			inv := inv
			out = append(out, &inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (t *tx) MarkInvitationUsed(_ context.Context, id, usedBy uuid.UUID, at time.Time) error {
	inv, ok := t.st.invitations[id]
	if !ok {
		return domain.ErrInvalidCode
	}
	if err := inv.MarkUsed(usedBy, at); err != nil {
		return err
	}
	t.st.invitations[id] = inv
	return nil
}

// Rides

func (t *tx) CreateRide(_ context.Context, r *domain.Ride) error {
	t.st.rides[r.ID] = copyRide(*r)
	return nil
}

func (t *tx) GetRide(_ context.Context, id uuid.UUID) (*domain.Ride, error) {
	r, ok := t.st.rides[id]
	if !ok {
		return nil, domain.ErrRideNotFound
	}
	r = copyRide(r)
	return &r, nil
}

func (t *tx) LockRide(ctx context.Context, id uuid.UUID) (*domain.Ride, error) {
	return t.GetRide(ctx, id)
}

func (t *tx) UpdateRide(_ context.Context, r *domain.Ride) error {
	stored, ok := t.st.rides[r.ID]
	if !ok {
		return domain.ErrRideNotFound
	}
	stored.DepartureLocation = r.DepartureLocation
	stored.ArrivalLocation = r.ArrivalLocation
	stored.DepartureDate = r.DepartureDate
	stored.ArrivalDate = r.ArrivalDate
	stored.Comments = r.Comments
	stored.UpdatedAt = r.UpdatedAt
	t.st.rides[r.ID] = stored
	return nil
}

func (t *tx) AddPassenger(_ context.Context, rideID, userID uuid.UUID) error {
	r, ok := t.st.rides[rideID]
	if !ok {
		return domain.ErrRideNotFound
	}
	if r.HasPassenger(userID) {
		return domain.ErrAlreadyPassenger
	}
	r.Passengers = append(r.Passengers, userID)
	t.st.rides[rideID] = r
	return nil
}

func (t *tx) TakeSeat(_ context.Context, rideID uuid.UUID) error {
	r, ok := t.st.rides[rideID]
	if !ok {
		return domain.ErrRideNotFound
	}
	if r.AvailableSeats <= 0 {
		return domain.ErrNoSeatsAvailable
	}
	r.AvailableSeats--
	t.st.rides[rideID] = r
	return nil
}

func (t *tx) SetRideRating(_ context.Context, rideID uuid.UUID, rating float64) error {
	r, ok := t.st.rides[rideID]
	if !ok {
		return domain.ErrRideNotFound
	}
	r.Rating = &rating
	t.st.rides[rideID] = r
	return nil
}

func (t *tx) EndRide(_ context.Context, rideID uuid.UUID) error {
	r, ok := t.st.rides[rideID]
	if !ok {
		return domain.ErrRideNotFound
	}
	r.IsActive = false
	t.st.rides[rideID] = r
	return nil
}

func (t *tx) ListAvailableRides(_ context.Context, circleID uuid.UUID, filter domain.RideFilter) ([]*domain.Ride, error) {
	out := t.filterRides(func(r domain.Ride) bool {
		return r.IsActive && r.CircleID == circleID && r.AvailableSeats >= 1 &&
			!r.DepartureDate.Before(filter.DepartsAfter) && filter.Matches(&r)
	})
	sort.Slice(out, func(i, j int) bool { return filter.Order.Less(out[i], out[j]) })
	return out, nil
}

func (t *tx) ListRidesEndingBetween(_ context.Context, start, end time.Time) ([]*domain.Ride, error) {
	out := t.filterRides(func(r domain.Ride) bool {
		return r.IsActive && !r.ArrivalDate.Before(start) && !r.ArrivalDate.After(end)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ArrivalDate.Before(out[j].ArrivalDate) })
	return out, nil
}

func (t *tx) filterRides(keep func(domain.Ride) bool) []*domain.Ride {
	var out []*domain.Ride
	for _, r := range t.st.rides {
		if keep(r) {
			r := copyRide(r)
			out = append(out, &r)
		}
	}
	return out
}

func (t *tx) DeactivateRides(_ context.Context, ids []uuid.UUID) (int, error) {
	n := 0
	for _, id := range ids {
		r, ok := t.st.rides[id]
		if !ok || !r.IsActive {
			continue
		}
		r.IsActive = false
		t.st.rides[id] = r
		n++
	}
	return n, nil
}

// Ratings

func (t *tx) CreateRating(_ context.Context, r *domain.Rating) error {
	for _, existing := range t.st.ratings {
		if existing.RideID == r.RideID && existing.RatingUserID == r.RatingUserID {
			return domain.ErrDuplicateRating
		}
	}
	t.st.ratings[r.ID] = *r
	return nil
}

func (t *tx) HasRated(_ context.Context, rideID, userID uuid.UUID) (bool, error) {
	for _, r := range t.st.ratings {
		if r.RideID == rideID && r.RatingUserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) ListRideRatings(_ context.Context, rideID uuid.UUID) ([]*domain.Rating, error) {
	var out []*domain.Rating
	for _, r := range t.st.ratings {
		if r.RideID == rideID {
			r := r
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (t *tx) AverageRideRating(_ context.Context, rideID uuid.UUID) (float64, int, error) {
	return t.average(func(r domain.Rating) bool { return r.RideID == rideID })
}

func (t *tx) AverageUserRating(_ context.Context, userID uuid.UUID) (float64, int, error) {
	return t.average(func(r domain.Rating) bool { return r.RatedUserID == userID })
}

func (t *tx) average(keep func(domain.Rating) bool) (float64, int, error) {
	sum, n := 0, 0
	for _, r := range t.st.ratings {
		if keep(r) {
			sum += r.Value
			n++
		}
	}
	if n == 0 {
		return 0, 0, nil
	}
	return float64(sum) / float64(n), n, nil
}

// Profiles

func (t *tx) GetProfile(_ context.Context, userID uuid.UUID) (*domain.Profile, error) {
	p, ok := t.st.profiles[userID]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return &p, nil
}

func (t *tx) LockProfile(_ context.Context, userID uuid.UUID) (*domain.Profile, error) {
	p := t.profile(userID)
	return &p, nil
}

func (t *tx) AddProfileRideStats(_ context.Context, userID uuid.UUID, offered, taken int) error {
	p := t.profile(userID)
	p.RidesOffered += offered
	p.RidesTaken += taken
	p.UpdatedAt = time.Now()
	t.st.profiles[userID] = p
	return nil
}

func (t *tx) SetReputation(_ context.Context, userID uuid.UUID, reputation float64) error {
	p := t.profile(userID)
	p.Reputation = reputation
	p.UpdatedAt = time.Now()
	t.st.profiles[userID] = p
	return nil
}

// profile returns the stored profile, creating it when missing.
func (t *tx) profile(userID uuid.UUID) domain.Profile {
	p, ok := t.st.profiles[userID]
	if !ok {
		p = *domain.NewProfile(userID, time.Now())
		t.st.profiles[userID] = p
	}
	return p
}
