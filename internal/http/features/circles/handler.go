package circles

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/circle-rides/internal/http/features/common"
	"github.com/tendant/circle-rides/internal/httputil"
	"github.com/tendant/circle-rides/pkg/carpool"
)

// Handler handles circle endpoints.
type Handler struct {
	logger      *slog.Logger
	circles     *carpool.CircleService
	memberships *carpool.MembershipService
}

// NewHandler creates a new circles handler.
func NewHandler(logger *slog.Logger, circles *carpool.CircleService, memberships *carpool.MembershipService) *Handler {
	return &Handler{
		logger:      logger,
		circles:     circles,
		memberships: memberships,
	}
}

// CreateRequest represents a circle creation request.
type CreateRequest struct {
	Slug         string `json:"slug"`
	Name         string `json:"name"`
	About        string `json:"about"`
	IsPublic     *bool  `json:"is_public,omitempty"`
	IsLimited    bool   `json:"is_limited"`
	MembersLimit int    `json:"members_limit"`
}

// CreateResponse carries the new circle and the creator's membership.
type CreateResponse struct {
	Circle     common.CircleResponse     `json:"circle"`
	Membership common.MembershipResponse `json:"membership"`
}

// LimitRequest represents a capacity change.
type LimitRequest struct {
	IsLimited    bool `json:"is_limited"`
	MembersLimit int  `json:"members_limit"`
}

// DetailsRequest represents a name/about change.
type DetailsRequest struct {
	Name  string `json:"name"`
	About string `json:"about"`
}

// Create creates a circle owned by the caller.
// POST /v1/circles
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.CurrentUser(w, r)
	if !ok {
		return
	}

	var req CreateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err)
		return
	}

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	circle, membership, err := h.memberships.CreateCircleWithOwner(r.Context(), carpool.CircleSpec{
		Slug:         req.Slug,
		Name:         req.Name,
		About:        req.About,
		IsPublic:     isPublic,
		IsLimited:    req.IsLimited,
		MembersLimit: req.MembersLimit,
	}, userID)
	if err != nil {
		httputil.DomainError(w, h.logger, err)
		return
	}

	h.logger.Info("circle created", "circle_id", circle.ID, "slug", circle.Slug, "owner_id", userID)
	httputil.JSON(w, http.StatusCreated, CreateResponse{
		Circle:     common.NewCircleResponse(circle),
		Membership: common.NewMembershipResponse(membership),
	})
}

// List returns all public circles.
// GET /v1/circles
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	circles, err := h.circles.ListPublic(r.Context())
	if err != nil {
		httputil.DomainError(w, h.logger, err)
		return
	}

	out := make([]common.CircleResponse, 0, len(circles))
	for _, c := range circles {
		out = append(out, common.NewCircleResponse(c))
	}
	httputil.JSON(w, http.StatusOK, out)
}

// Get returns a circle by id.
// GET /v1/circles/{circleID}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	circleID, ok := common.UUIDParam(w, r, "circleID")
	if !ok {
		return
	}

	circle, err := h.circles.Get(r.Context(), circleID)
	if err != nil {
		httputil.DomainError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, common.NewCircleResponse(circle))
}

// GetBySlug returns a circle by slug.
// GET /v1/circles/by-slug/{slug}
func (h *Handler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	circle, err := h.circles.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		httputil.DomainError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, common.NewCircleResponse(circle))
}

// ReviseLimit changes a circle's member capacity.
// PUT /v1/circles/{circleID}/limit
func (h *Handler) ReviseLimit(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.CurrentUser(w, r)
	if !ok {
		return
	}
	circleID, ok := common.UUIDParam(w, r, "circleID")
	if !ok {
		return
	}

	var req LimitRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err)
		return
	}

	circle, err := h.circles.ReviseCircleLimit(r.Context(), userID, circleID, req.IsLimited, req.MembersLimit)
	if err != nil {
		httputil.DomainError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, common.NewCircleResponse(circle))
}

// ReviseDetails changes a circle's name and description.
// PATCH /v1/circles/{circleID}
func (h *Handler) ReviseDetails(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.CurrentUser(w, r)
	if !ok {
		return
	}
	circleID, ok := common.UUIDParam(w, r, "circleID")
	if !ok {
		return
	}

	var req DetailsRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err)
		return
	}

	circle, err := h.circles.ReviseCircleDetails(r.Context(), userID, circleID, req.Name, req.About)
	if err != nil {
		httputil.DomainError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, common.NewCircleResponse(circle))
}
