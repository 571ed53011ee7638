package rides

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/tendant/circle-rides/internal/http/features/common"
	"github.com/tendant/circle-rides/internal/httputil"
	"github.com/tendant/circle-rides/pkg/carpool"
	"github.com/tendant/circle-rides/pkg/domain"
)

// Handler handles ride and rating endpoints.
type Handler struct {
	logger  *slog.Logger
	rides   *carpool.RideService
	ratings *carpool.RatingService
	now     func() time.Time
}

// NewHandler creates a new rides handler.
func NewHandler(logger *slog.Logger, rides *carpool.RideService, ratings *carpool.RatingService, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{
		logger:  logger,
		rides:   rides,
		ratings: ratings,
		now:     now,
	}
}

// CreateRequest represents a ride offer.
type CreateRequest struct {
	DepartureLocation string    `json:"departure_location"`
	ArrivalLocation   string    `json:"arrival_location"`
	DepartureDate     time.Time `json:"departure_date"`
	ArrivalDate       time.Time `json:"arrival_date"`
	AvailableSeats    int       `json:"available_seats"`
	Comments          string    `json:"comments"`
}

// UpdateRequest represents a partial ride edit.
type UpdateRequest struct {
	DepartureLocation *string    `json:"departure_location,omitempty"`
	ArrivalLocation   *string    `json:"arrival_location,omitempty"`
	DepartureDate     *time.Time `json:"departure_date,omitempty"`
	ArrivalDate       *time.Time `json:"arrival_date,omitempty"`
	Comments          *string    `json:"comments,omitempty"`
}

// RateRequest represents a passenger's rating.
type RateRequest struct {
	Rating   int    `json:"rating"`
	Comments string `json:"comments"`
}

// RideResponse is the JSON view of a ride.
type RideResponse struct {
	ID                string    `json:"id"`
	CircleID          string    `json:"circle_id"`
	OfferedBy         string    `json:"offered_by"`
	DepartureLocation string    `json:"departure_location"`
	ArrivalLocation   string    `json:"arrival_location"`
	DepartureDate     time.Time `json:"departure_date"`
	ArrivalDate       time.Time `json:"arrival_date"`
	AvailableSeats    int       `json:"available_seats"`
	Comments          string    `json:"comments"`
	Passengers        []string  `json:"passengers"`
	Rating            *float64  `json:"rating,omitempty"`
	State             string    `json:"state"`
}

// RatingResponse is the JSON view of a rating.
type RatingResponse struct {
	ID           string    `json:"id"`
	RideID       string    `json:"ride_id"`
	RatingUserID string    `json:"rating_user_id"`
	RatedUserID  string    `json:"rated_user_id"`
	Rating       int       `json:"rating"`
	Comments     string    `json:"comments"`
	CreatedAt    time.Time `json:"created_at"`
}

func (h *Handler) rideResponse(ride *domain.Ride) RideResponse {
	passengers := make([]string, 0, len(ride.Passengers))
	for _, p := range ride.Passengers {
		passengers = append(passengers, p.String())
	}
	return RideResponse{
		ID:                ride.ID.String(),
		CircleID:          ride.CircleID.String(),
		OfferedBy:         ride.OfferedBy.String(),
		DepartureLocation: ride.DepartureLocation,
		ArrivalLocation:   ride.ArrivalLocation,
		DepartureDate:     ride.DepartureDate,
		ArrivalDate:       ride.ArrivalDate,
		AvailableSeats:    ride.AvailableSeats,
		Comments:          ride.Comments,
		Passengers:        passengers,
		Rating:            ride.Rating,
		State:             string(ride.StateAt(h.now())),
	}
}

func ratingResponse(r *domain.Rating) RatingResponse {
	return RatingResponse{
		ID:           r.ID.String(),
		RideID:       r.RideID.String(),
		RatingUserID: r.RatingUserID.String(),
		RatedUserID:  r.RatedUserID.String(),
		Rating:       r.Value,
		Comments:     r.Comments,
		CreatedAt:    r.CreatedAt,
	}
}

// List returns rides in the circle that can still be joined, optionally
// filtered by location text (q) and sorted by ordering.
// GET /v1/circles/{circleID}/rides?q=airport&ordering=-available_seats
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.CurrentUser(w, r)
	if !ok {
		return
	}
	circleID, ok := common.UUIDParam(w, r, "circleID")
	if !ok {
		return
	}

	query := r.URL.Query()
	rides, err := h.rides.ListAvailable(r.Context(), userID, circleID, carpool.RideQuery{
		Search:   query.Get("q"),
		Ordering: query.Get("ordering"),
	})
	if err != nil {
		httputil.DomainError(w, h.logger, err)
		return
	}

	out := make([]RideResponse, 0, len(rides))
	for _, ride := range rides {
		out = append(out, h.rideResponse(ride))
	}
	httputil.JSON(w, http.StatusOK, out)
}

// Create offers a new ride in the circle.
// POST /v1/circles/{circleID}/rides
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.CurrentUser(w, r)
	if !ok {
		return
	}
	circleID, ok := common.UUIDParam(w, r, "circleID")
	if !ok {
		return
	}

	var req CreateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err)
		return
	}

	ride, err := h.rides.Create(r.Context(), circleID, userID, carpool.RideSpec{
		DepartureLocation: req.DepartureLocation,
		ArrivalLocation:   req.ArrivalLocation,
		DepartureDate:     req.DepartureDate,
		ArrivalDate:       req.ArrivalDate,
		AvailableSeats:    req.AvailableSeats,
		Comments:          req.Comments,
	})
	if err != nil {
		httputil.DomainError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusCreated, h.rideResponse(ride))
}

// Get returns a ride.
// GET /v1/rides/{rideID}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.CurrentUser(w, r)
	if !ok {
		return
	}
	rideID, ok := common.UUIDParam(w, r, "rideID")
	if !ok {
		return
	}

	ride, err := h.rides.Get(r.Context(), userID, rideID)
	if err != nil {
		httputil.DomainError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, h.rideResponse(ride))
}

// Update edits a ride before it departs.
// PATCH /v1/rides/{rideID}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.CurrentUser(w, r)
	if !ok {
		return
	}
	rideID, ok := common.UUIDParam(w, r, "rideID")
	if !ok {
		return
	}

	var req UpdateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err)
		return
	}

	ride, err := h.rides.Update(r.Context(), rideID, userID, carpool.RidePatch{
		DepartureLocation: req.DepartureLocation,
		ArrivalLocation:   req.ArrivalLocation,
		DepartureDate:     req.DepartureDate,
		ArrivalDate:       req.ArrivalDate,
		Comments:          req.Comments,
	})
	if err != nil {
		httputil.DomainError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, h.rideResponse(ride))
}

// Join books a seat for the caller.
// POST /v1/rides/{rideID}/join
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.CurrentUser(w, r)
	if !ok {
		return
	}
	rideID, ok := common.UUIDParam(w, r, "rideID")
	if !ok {
		return
	}

	ride, err := h.rides.Join(r.Context(), rideID, userID)
	if err != nil {
		httputil.DomainError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, h.rideResponse(ride))
}

// End marks a departed ride as finished.
// POST /v1/rides/{rideID}/end
func (h *Handler) End(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.CurrentUser(w, r)
	if !ok {
		return
	}
	rideID, ok := common.UUIDParam(w, r, "rideID")
	if !ok {
		return
	}

	ride, err := h.rides.End(r.Context(), rideID, userID, h.now())
	if err != nil {
		httputil.DomainError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, h.rideResponse(ride))
}

// Rate records the caller's rating of a ride.
// POST /v1/rides/{rideID}/ratings
func (h *Handler) Rate(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.CurrentUser(w, r)
	if !ok {
		return
	}
	rideID, ok := common.UUIDParam(w, r, "rideID")
	if !ok {
		return
	}

	var req RateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err)
		return
	}

	rating, err := h.ratings.Rate(r.Context(), rideID, userID, req.Rating, req.Comments)
	if err != nil {
		httputil.DomainError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusCreated, ratingResponse(rating))
}

// Ratings lists the ratings of a ride.
// GET /v1/rides/{rideID}/ratings
func (h *Handler) Ratings(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.CurrentUser(w, r)
	if !ok {
		return
	}
	rideID, ok := common.UUIDParam(w, r, "rideID")
	if !ok {
		return
	}

	ratings, err := h.ratings.RideRatings(r.Context(), userID, rideID)
	if err != nil {
		httputil.DomainError(w, h.logger, err)
		return
	}

	out := make([]RatingResponse, 0, len(ratings))
	for _, rating := range ratings {
		out = append(out, ratingResponse(rating))
	}
	httputil.JSON(w, http.StatusOK, out)
}
