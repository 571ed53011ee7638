package members

import (
	"log/slog"
	"net/http"

	"github.com/tendant/circle-rides/internal/http/features/common"
	"github.com/tendant/circle-rides/internal/httputil"
	"github.com/tendant/circle-rides/pkg/carpool"
)

// Handler handles membership and invitation endpoints.
type Handler struct {
	logger      *slog.Logger
	invitations *carpool.InvitationService
	memberships *carpool.MembershipService
}

// NewHandler creates a new members handler.
func NewHandler(logger *slog.Logger, invitations *carpool.InvitationService, memberships *carpool.MembershipService) *Handler {
	return &Handler{
		logger:      logger,
		invitations: invitations,
		memberships: memberships,
	}
}

// JoinRequest represents an invitation redemption.
type JoinRequest struct {
	Code string `json:"code"`
}

// InvitationResponse is a freshly issued invitation.
type InvitationResponse struct {
	Code     string `json:"code"`
	CircleID string `json:"circle_id"`
}

// InvitationsResponse lists who joined through the caller and the codes still open.
type InvitationsResponse struct {
	Used   []common.MembershipResponse `json:"used"`
	Unused []string                    `json:"unused"`
}

// Join redeems an invitation code for the caller.
// POST /v1/circles/{circleID}/members
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.CurrentUser(w, r)
	if !ok {
		return
	}
	circleID, ok := common.UUIDParam(w, r, "circleID")
	if !ok {
		return
	}

	var req JoinRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err)
		return
	}
	if req.Code == "" {
		httputil.Error(w, http.StatusBadRequest, "code is required")
		return
	}

	membership, err := h.invitations.Redeem(r.Context(), req.Code, circleID, userID)
	if err != nil {
		httputil.DomainError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusCreated, common.NewMembershipResponse(membership))
}

// List returns the circle's active members.
// GET /v1/circles/{circleID}/members
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.CurrentUser(w, r)
	if !ok {
		return
	}
	circleID, ok := common.UUIDParam(w, r, "circleID")
	if !ok {
		return
	}

	members, err := h.memberships.ListMembers(r.Context(), userID, circleID)
	if err != nil {
		httputil.DomainError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, common.NewMembershipResponses(members))
}

// Get returns one active member of the circle.
// GET /v1/circles/{circleID}/members/{userID}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actorID, ok := common.CurrentUser(w, r)
	if !ok {
		return
	}
	circleID, ok := common.UUIDParam(w, r, "circleID")
	if !ok {
		return
	}
	userID, ok := common.UUIDParam(w, r, "userID")
	if !ok {
		return
	}

	member, err := h.memberships.GetMember(r.Context(), actorID, circleID, userID)
	if err != nil {
		httputil.DomainError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, common.NewMembershipResponse(member))
}

// Remove deactivates a member. Admins may remove anyone; members may leave.
// DELETE /v1/circles/{circleID}/members/{userID}
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	actorID, ok := common.CurrentUser(w, r)
	if !ok {
		return
	}
	circleID, ok := common.UUIDParam(w, r, "circleID")
	if !ok {
		return
	}
	userID, ok := common.UUIDParam(w, r, "userID")
	if !ok {
		return
	}

	if err := h.memberships.RemoveMember(r.Context(), actorID, circleID, userID); err != nil {
		httputil.DomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Issue creates a new invitation code for the caller.
// POST /v1/circles/{circleID}/invitations
func (h *Handler) Issue(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.CurrentUser(w, r)
	if !ok {
		return
	}
	circleID, ok := common.UUIDParam(w, r, "circleID")
	if !ok {
		return
	}

	inv, err := h.invitations.Issue(r.Context(), circleID, userID)
	if err != nil {
		httputil.DomainError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusCreated, InvitationResponse{Code: inv.Code, CircleID: inv.CircleID.String()})
}

// Invitations returns the caller's invitation breakdown, topping up codes
// to the caller's remaining quota.
// GET /v1/circles/{circleID}/invitations
func (h *Handler) Invitations(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.CurrentUser(w, r)
	if !ok {
		return
	}
	circleID, ok := common.UUIDParam(w, r, "circleID")
	if !ok {
		return
	}

	breakdown, err := h.memberships.ListInvitations(r.Context(), userID, circleID)
	if err != nil {
		httputil.DomainError(w, h.logger, err)
		return
	}

	unused := breakdown.Unused
	if unused == nil {
		unused = []string{}
	}
	httputil.JSON(w, http.StatusOK, InvitationsResponse{
		Used:   common.NewMembershipResponses(breakdown.Used),
		Unused: unused,
	})
}
