package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr      string        `env:"SERVER_ADDR" envDefault:"0.0.0.0"`
	ServerPort      int           `env:"SERVER_PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// Storage
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	AutoMigrate   bool   `env:"AUTO_MIGRATE" envDefault:"false"`

	// Database (matches podman setup: make postgres-start)
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     int    `env:"DB_PORT" envDefault:"25432"`
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName     string `env:"DB_NAME" envDefault:"circle_rides"`
	DBSSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`

	// JWT access tokens are issued by the identity provider.
	JWTSecret string `env:"JWT_SECRET"`
	JWTIssuer string `env:"JWT_ISSUER"`

	// Circles
	MemberInvitationQuota int `env:"MEMBER_INVITATION_QUOTA" envDefault:"0"`

	// HTTP
	MaxBodyBytes    int64 `env:"MAX_BODY_BYTES" envDefault:"1048576"`
	RateLimit       RateLimitConfig
	SecurityHeaders SecurityHeadersConfig

	// Housekeeping
	HousekeepingEnabled  bool          `env:"HOUSEKEEPING_ENABLED" envDefault:"true"`
	HousekeepingSchedule string        `env:"HOUSEKEEPING_SCHEDULE" envDefault:"@hourly"`
	HousekeepingLookback time.Duration `env:"HOUSEKEEPING_LOOKBACK" envDefault:"2h"`
}

// RateLimitConfig holds per-IP rate limits for the API.
type RateLimitConfig struct {
	Enabled               bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	ReadRequestsPerMinute int  `env:"RATE_LIMIT_READ_PER_MINUTE" envDefault:"300"`
	// Writes cover invitation redemption and ride joins, the contended paths.
	WriteRequestsPerMinute int `env:"RATE_LIMIT_WRITE_PER_MINUTE" envDefault:"60"`
	WindowMinutes          int `env:"RATE_LIMIT_WINDOW_MINUTES" envDefault:"1"`
}

// SecurityHeadersConfig holds response security header values.
type SecurityHeadersConfig struct {
	Enabled            bool   `env:"SECURITY_HEADERS_ENABLED" envDefault:"true"`
	HSTSMaxAge         int    `env:"SECURITY_HSTS_MAX_AGE" envDefault:"31536000"`
	FrameOptions       string `env:"SECURITY_FRAME_OPTIONS" envDefault:"DENY"`
	ContentTypeOptions string `env:"SECURITY_CONTENT_TYPE_OPTIONS" envDefault:"nosniff"`
	ReferrerPolicy     string `env:"SECURITY_REFERRER_POLICY" envDefault:"no-referrer"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required and mutually dependent fields.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.StorageDriver {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StoragePostgres, StorageMemory, c.StorageDriver)
	}
	if c.MemberInvitationQuota < 0 {
		return errors.New("MEMBER_INVITATION_QUOTA must not be negative")
	}
	if c.RateLimit.Enabled && (c.RateLimit.ReadRequestsPerMinute <= 0 || c.RateLimit.WriteRequestsPerMinute <= 0 || c.RateLimit.WindowMinutes <= 0) {
		return errors.New("rate limits must be positive when RATE_LIMIT_ENABLED is set")
	}
	if c.HousekeepingEnabled && c.HousekeepingLookback <= 0 {
		return errors.New("HOUSEKEEPING_LOOKBACK must be positive")
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.ServerAddr, c.ServerPort)
}
