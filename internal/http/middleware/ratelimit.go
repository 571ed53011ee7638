package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/tendant/circle-rides/internal/config"
	"github.com/tendant/circle-rides/internal/httputil"
)

// RateLimitConfig holds rate limiting configuration for a specific endpoint type.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Logger   *slog.Logger
}

// RateLimit creates an IP-based rate limiter middleware with logging.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.Requests,
		cfg.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Logger != nil {
				cfg.Logger.Warn("rate limit exceeded",
					"ip", r.RemoteAddr,
					"path", r.URL.Path,
					"method", r.Method,
				)
			}
			httputil.Error(w, http.StatusTooManyRequests, "rate limit exceeded. please try again later")
		}),
	)
}

// NoRateLimit returns a no-op middleware when rate limiting is disabled.
func NoRateLimit() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return next
	}
}

// RateLimiters groups the limiters applied to read and write routes.
type RateLimiters struct {
	Read  func(http.Handler) http.Handler
	Write func(http.Handler) http.Handler
}

// CreateRateLimiters creates rate limiting middleware functions based on configuration.
func CreateRateLimiters(cfg config.RateLimitConfig, logger *slog.Logger) RateLimiters {
	if !cfg.Enabled {
		return RateLimiters{Read: NoRateLimit(), Write: NoRateLimit()}
	}

	window := time.Duration(cfg.WindowMinutes) * time.Minute
	return RateLimiters{
		Read: RateLimit(RateLimitConfig{
			Requests: cfg.ReadRequestsPerMinute,
			Window:   window,
			Logger:   logger,
		}),
		Write: RateLimit(RateLimitConfig{
			Requests: cfg.WriteRequestsPerMinute,
			Window:   window,
			Logger:   logger,
		}),
	}
}
