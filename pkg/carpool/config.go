package carpool

import (
	"log/slog"
	"time"
)

const (
	DefaultCodeLength      = 10
	DefaultMaxCodeAttempts = 8
)

// Config holds settings shared by the carpool services.
type Config struct {
	Logger *slog.Logger

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// MemberInvitationQuota is the remaining_invitations a redeemed member starts with.
	MemberInvitationQuota int

	// GenerateCode produces a candidate invitation code. Defaults to GenerateCode.
	GenerateCode func() (string, error)

	// MaxCodeAttempts caps regeneration on code collisions.
	MaxCodeAttempts int
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.GenerateCode == nil {
		c.GenerateCode = GenerateCode
	}
	if c.MaxCodeAttempts <= 0 {
		c.MaxCodeAttempts = DefaultMaxCodeAttempts
	}
	if c.MemberInvitationQuota < 0 {
		c.MemberInvitationQuota = 0
	}
	return c
}
