package config

import (
	"os"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	vars := []string{
		"SERVER_ADDR", "SERVER_PORT", "STORAGE_DRIVER", "DB_HOST", "DB_PORT", "DB_USER",
		"DB_PASSWORD", "DB_NAME", "DB_SSLMODE", "JWT_ISSUER", "MEMBER_INVITATION_QUOTA",
		"HOUSEKEEPING_ENABLED", "HOUSEKEEPING_SCHEDULE", "HOUSEKEEPING_LOOKBACK",
	}
	for _, v := range vars {
		if old, ok := os.LookupEnv(v); ok {
			os.Unsetenv(v)
			t.Cleanup(func() { os.Setenv(v, old) })
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "test-secret-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ServerAddr != "0.0.0.0" {
		t.Errorf("ServerAddr = %q, want %q", cfg.ServerAddr, "0.0.0.0")
	}
	if cfg.ServerPort != 8080 {
		t.Errorf("ServerPort = %d, want %d", cfg.ServerPort, 8080)
	}
	if cfg.StorageDriver != StoragePostgres {
		t.Errorf("StorageDriver = %q, want %q", cfg.StorageDriver, StoragePostgres)
	}
	if cfg.DBPort != 25432 {
		t.Errorf("DBPort = %d, want %d", cfg.DBPort, 25432)
	}
	if cfg.DBName != "circle_rides" {
		t.Errorf("DBName = %q, want %q", cfg.DBName, "circle_rides")
	}
	if cfg.MemberInvitationQuota != 0 {
		t.Errorf("MemberInvitationQuota = %d, want 0", cfg.MemberInvitationQuota)
	}
	if cfg.HousekeepingSchedule != "@hourly" {
		t.Errorf("HousekeepingSchedule = %q, want %q", cfg.HousekeepingSchedule, "@hourly")
	}
	if cfg.HousekeepingLookback != 2*time.Hour {
		t.Errorf("HousekeepingLookback = %v, want %v", cfg.HousekeepingLookback, 2*time.Hour)
	}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Errorf("Addr() = %q, want %q", cfg.Addr(), "0.0.0.0:8080")
	}
}

func TestLoad_RequiredJWTSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	if err == nil {
		t.Error("Load should fail when JWT_SECRET is not set")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "custom-secret")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("MEMBER_INVITATION_QUOTA", "3")
	t.Setenv("HOUSEKEEPING_LOOKBACK", "30m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ServerPort != 9090 {
		t.Errorf("ServerPort = %d, want %d", cfg.ServerPort, 9090)
	}
	if cfg.StorageDriver != StorageMemory {
		t.Errorf("StorageDriver = %q, want %q", cfg.StorageDriver, StorageMemory)
	}
	if cfg.MemberInvitationQuota != 3 {
		t.Errorf("MemberInvitationQuota = %d, want 3", cfg.MemberInvitationQuota)
	}
	if cfg.HousekeepingLookback != 30*time.Minute {
		t.Errorf("HousekeepingLookback = %v, want %v", cfg.HousekeepingLookback, 30*time.Minute)
	}
}

func TestLoad_InvalidValue(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("SERVER_PORT", "not-a-number")

	if _, err := Load(); err == nil {
		t.Error("Load should fail for a non-numeric SERVER_PORT")
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		JWTSecret:            "secret",
		StorageDriver:        StorageMemory,
		HousekeepingEnabled:  true,
		HousekeepingLookback: time.Hour,
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "unknown driver", mutate: func(c *Config) { c.StorageDriver = "sqlite" }, wantErr: true},
		{name: "negative quota", mutate: func(c *Config) { c.MemberInvitationQuota = -1 }, wantErr: true},
		{name: "zero lookback", mutate: func(c *Config) { c.HousekeepingLookback = 0 }, wantErr: true},
		{name: "zero lookback when disabled", mutate: func(c *Config) {
			c.HousekeepingEnabled = false
			c.HousekeepingLookback = 0
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
