// Package circlerides provides the carpool-circle engine as an embeddable
// HTTP service: invitation-gated circles, ride booking and ratings.
//
// Setup:
//
//  1. Apply pkg/repository/schema.sql (or call repository.EnsureSchema)
//  2. Create a Service and mount its router
//
// Basic usage:
//
//	db, _ := sql.Open("postgres", "postgres://localhost/rides?sslmode=disable")
//
//	svc, err := circlerides.New(circlerides.Config{
//	    DB:        db,
//	    JWTSecret: "secret-shared-with-your-identity-provider",
//	})
//	if err != nil {
//	    log.Fatal(err) // Will fail if the schema is missing
//	}
//
//	r := chi.NewRouter()
//	r.Mount("/", svc.Router())
//	http.ListenAndServe(":8080", r)
//
// For tests and local development pass Store: memory.New() instead of DB.
package circlerides

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/circle-rides/internal/auth"
	"github.com/tendant/circle-rides/internal/config"
	httpserver "github.com/tendant/circle-rides/internal/http"
	"github.com/tendant/circle-rides/internal/http/middleware"
	"github.com/tendant/circle-rides/internal/httputil"
	"github.com/tendant/circle-rides/pkg/carpool"
	"github.com/tendant/circle-rides/pkg/repository"
)

// RateLimitConfig holds per-IP rate limits for read and write routes.
type RateLimitConfig = config.RateLimitConfig

// SecurityHeadersConfig holds response security header values.
type SecurityHeadersConfig = config.SecurityHeadersConfig

// Config holds the configuration for the service.
type Config struct {
	// DB is a Postgres connection. Either DB or Store is required.
	DB *sql.DB

	// Store overrides DB with another carpool.Store implementation.
	Store carpool.Store

	// JWTSecret verifies HS256 access tokens from the identity provider (required).
	JWTSecret string

	// JWTIssuer, when set, must match the token's iss claim.
	JWTIssuer string

	// MemberInvitationQuota is how many invitations a newly admitted member may issue (default: 0).
	MemberInvitationQuota int

	// RateLimit configures per-IP limits. Disabled when zero.
	RateLimit RateLimitConfig

	// SecurityHeaders configures response headers. Disabled when zero.
	SecurityHeaders SecurityHeadersConfig

	// MaxBodyBytes caps request bodies (default: 1 MiB).
	MaxBodyBytes int64

	// Logger is the structured logger (default: slog.Default()).
	Logger *slog.Logger

	// Now returns the current time (default: time.Now).
	Now func() time.Time
}

// Service is the assembled carpool engine.
type Service struct {
	config      Config
	verifier    *auth.TokenVerifier
	circles     *carpool.CircleService
	memberships *carpool.MembershipService
	invitations *carpool.InvitationService
	rides       *carpool.RideService
	ratings     *carpool.RatingService
}

// New creates a new Service with the given configuration.
// Returns an error if required database tables don't exist.
func New(cfg Config) (*Service, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	store := cfg.Store
	if store == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := repository.ValidateSchema(ctx, cfg.DB); err != nil {
			return nil, err
		}
		store = repository.NewStore(cfg.DB)
	}

	verifier, err := auth.NewTokenVerifier([]byte(cfg.JWTSecret), cfg.JWTIssuer)
	if err != nil {
		return nil, err
	}

	coreCfg := carpool.Config{
		Logger:                cfg.Logger,
		Now:                   cfg.Now,
		MemberInvitationQuota: cfg.MemberInvitationQuota,
	}

	return &Service{
		config:      cfg,
		verifier:    verifier,
		circles:     carpool.NewCircleService(coreCfg, store),
		memberships: carpool.NewMembershipService(coreCfg, store),
		invitations: carpool.NewInvitationService(coreCfg, store),
		rides:       carpool.NewRideService(coreCfg, store),
		ratings:     carpool.NewRatingService(coreCfg, store),
	}, nil
}

func validateConfig(cfg *Config) error {
	if cfg.DB == nil && cfg.Store == nil {
		return errors.New("circlerides: DB or Store is required")
	}
	if cfg.JWTSecret == "" {
		return errors.New("circlerides: JWTSecret is required")
	}
	if cfg.MemberInvitationQuota < 0 {
		return errors.New("circlerides: MemberInvitationQuota must not be negative")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
}

// Router returns an http.Handler with every route registered:
//
//	GET    /health
//	GET    /v1/circles                               - List public circles
//	POST   /v1/circles                               - Create a circle owned by the caller
//	GET    /v1/circles/by-slug/{slug}                - Get circle by slug
//	GET    /v1/circles/{circleID}                    - Get circle
//	PATCH  /v1/circles/{circleID}                    - Revise name/about (admin)
//	PUT    /v1/circles/{circleID}/limit              - Revise member limit (admin)
//	GET    /v1/circles/{circleID}/members            - List active members
//	POST   /v1/circles/{circleID}/members            - Redeem an invitation code
//	GET    /v1/circles/{circleID}/members/{userID}   - Get member
//	DELETE /v1/circles/{circleID}/members/{userID}   - Remove member (admin or self)
//	GET    /v1/circles/{circleID}/invitations        - Caller's used/unused invitations
//	POST   /v1/circles/{circleID}/invitations        - Issue an invitation
//	GET    /v1/circles/{circleID}/rides              - Joinable rides
//	POST   /v1/circles/{circleID}/rides              - Offer a ride
//	GET    /v1/rides/{rideID}                        - Get ride
//	PATCH  /v1/rides/{rideID}                        - Edit ride before departure (owner)
//	POST   /v1/rides/{rideID}/join                   - Book a seat
//	POST   /v1/rides/{rideID}/end                    - End a departed ride (owner)
//	GET    /v1/rides/{rideID}/ratings                - List ride ratings
//	POST   /v1/rides/{rideID}/ratings                - Rate a ride (passenger)
//	GET    /v1/me/profile                            - Caller's profile
//	GET    /v1/users/{userID}/profile                - User profile
func (s *Service) Router() http.Handler {
	return httpserver.NewRouter(httpserver.RouterConfig{
		Logger:            s.config.Logger,
		TokenVerifier:     s.verifier,
		CircleService:     s.circles,
		MembershipService: s.memberships,
		InvitationService: s.invitations,
		RideService:       s.rides,
		RatingService:     s.ratings,
		RateLimitConfig:   s.config.RateLimit,
		SecurityHeaders:   s.config.SecurityHeaders,
		MaxBodyBytes:      s.config.MaxBodyBytes,
		Now:               s.config.Now,
	})
}

// Circles returns the circle directory for operator actions such as SetVerified.
func (s *Service) Circles() *carpool.CircleService {
	return s.circles
}

// Memberships returns the membership registry.
func (s *Service) Memberships() *carpool.MembershipService {
	return s.memberships
}

// Invitations returns the invitation ledger.
func (s *Service) Invitations() *carpool.InvitationService {
	return s.invitations
}

// Rides returns the ride board.
func (s *Service) Rides() *carpool.RideService {
	return s.rides
}

// Ratings returns the rating aggregator.
func (s *Service) Ratings() *carpool.RatingService {
	return s.ratings
}

// AuthMiddleware returns middleware that validates access tokens.
// Use this to protect your own routes:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(svc.AuthMiddleware())
//	    r.Get("/protected", handler)
//	})
func (s *Service) AuthMiddleware() func(http.Handler) http.Handler {
	return middleware.Auth(s.verifier)
}

// GetUserIDFromContext extracts the user ID from a context.
// Use after AuthMiddleware.
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	return middleware.GetUserID(ctx)
}

// HealthHandler returns a simple health check handler.
func (s *Service) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
