package profiles

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/circle-rides/internal/http/features/common"
	"github.com/tendant/circle-rides/internal/httputil"
	"github.com/tendant/circle-rides/pkg/carpool"
)

// Handler handles user profile endpoints.
type Handler struct {
	logger  *slog.Logger
	ratings *carpool.RatingService
}

// NewHandler creates a new profiles handler.
func NewHandler(logger *slog.Logger, ratings *carpool.RatingService) *Handler {
	return &Handler{logger: logger, ratings: ratings}
}

// ProfileResponse represents a user's ride history and reputation.
type ProfileResponse struct {
	UserID       string    `json:"user_id"`
	RidesOffered int       `json:"rides_offered"`
	RidesTaken   int       `json:"rides_taken"`
	Reputation   float64   `json:"reputation"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// GetMine returns the caller's profile.
// GET /v1/me/profile
func (h *Handler) GetMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.CurrentUser(w, r)
	if !ok {
		return
	}
	h.write(w, r, userID)
}

// Get returns a user's profile.
// GET /v1/users/{userID}/profile
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UUIDParam(w, r, "userID")
	if !ok {
		return
	}
	h.write(w, r, userID)
}

func (h *Handler) write(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	p, err := h.ratings.Profile(r.Context(), userID)
	if err != nil {
		httputil.DomainError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, ProfileResponse{
		UserID:       p.UserID.String(),
		RidesOffered: p.RidesOffered,
		RidesTaken:   p.RidesTaken,
		Reputation:   p.Reputation,
		UpdatedAt:    p.UpdatedAt,
	})
}
