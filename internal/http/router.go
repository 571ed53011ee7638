package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/tendant/circle-rides/internal/config"
	"github.com/tendant/circle-rides/internal/http/features/circles"
	"github.com/tendant/circle-rides/internal/http/features/members"
	"github.com/tendant/circle-rides/internal/http/features/profiles"
	"github.com/tendant/circle-rides/internal/http/features/rides"
	"github.com/tendant/circle-rides/internal/http/middleware"
	"github.com/tendant/circle-rides/internal/httputil"
	"github.com/tendant/circle-rides/pkg/carpool"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger            *slog.Logger
	TokenVerifier     middleware.TokenVerifier
	CircleService     *carpool.CircleService
	MembershipService *carpool.MembershipService
	InvitationService *carpool.InvitationService
	RideService       *carpool.RideService
	RatingService     *carpool.RatingService
	RateLimitConfig   config.RateLimitConfig
	SecurityHeaders   config.SecurityHeadersConfig
	MaxBodyBytes      int64
	Now               func() time.Time
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.MaxBodyBytes))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	limiters := middleware.CreateRateLimiters(cfg.RateLimitConfig, cfg.Logger)

	circlesHandler := circles.NewHandler(cfg.Logger, cfg.CircleService, cfg.MembershipService)
	membersHandler := members.NewHandler(cfg.Logger, cfg.InvitationService, cfg.MembershipService)
	ridesHandler := rides.NewHandler(cfg.Logger, cfg.RideService, cfg.RatingService, cfg.Now)
	profilesHandler := profiles.NewHandler(cfg.Logger, cfg.RatingService)

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.TokenVerifier))

		// Reads
		r.Group(func(r chi.Router) {
			r.Use(limiters.Read)
			r.Get("/circles", circlesHandler.List)
			r.Get("/circles/by-slug/{slug}", circlesHandler.GetBySlug)
			r.Get("/circles/{circleID}", circlesHandler.Get)
			r.Get("/circles/{circleID}/members", membersHandler.List)
			r.Get("/circles/{circleID}/members/{userID}", membersHandler.Get)
			r.Get("/circles/{circleID}/invitations", membersHandler.Invitations)
			r.Get("/circles/{circleID}/rides", ridesHandler.List)
			r.Get("/rides/{rideID}", ridesHandler.Get)
			r.Get("/rides/{rideID}/ratings", ridesHandler.Ratings)
			r.Get("/me/profile", profilesHandler.GetMine)
			r.Get("/users/{userID}/profile", profilesHandler.Get)
		})

		// Writes
		r.Group(func(r chi.Router) {
			r.Use(limiters.Write)
			r.Post("/circles", circlesHandler.Create)
			r.Patch("/circles/{circleID}", circlesHandler.ReviseDetails)
			r.Put("/circles/{circleID}/limit", circlesHandler.ReviseLimit)
			r.Post("/circles/{circleID}/members", membersHandler.Join)
			r.Delete("/circles/{circleID}/members/{userID}", membersHandler.Remove)
			r.Post("/circles/{circleID}/invitations", membersHandler.Issue)
			r.Post("/circles/{circleID}/rides", ridesHandler.Create)
			r.Patch("/rides/{rideID}", ridesHandler.Update)
			r.Post("/rides/{rideID}/join", ridesHandler.Join)
			r.Post("/rides/{rideID}/end", ridesHandler.End)
			r.Post("/rides/{rideID}/ratings", ridesHandler.Rate)
		})
	})

	return r
}
