package config

import (
	"os"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!!")
	os.Setenv("DB_PASSWORD", "test")
	t.Cleanup(os.Clearenv)
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	tests := []struct {
		name     string
		actual   time.Duration
		expected time.Duration
	}{
		{"ChallengeExpiry", cfg.Auth.ChallengeExpiry, 5 * time.Minute},
		{"EmergencyCodeExpiry", cfg.Auth.EmergencyCodeExpiry, 15 * time.Minute},
		{"PortalTokenExpiry", cfg.Portal.TokenExpiry, 24 * time.Hour},
		{"AccessTokenExpiry", cfg.Auth.AccessTokenExpiry, 15 * time.Minute},
	}
	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}

	if cfg.Auth.MaxCodeAttempts != 5 {
		t.Errorf("MaxCodeAttempts: got %d, want 5", cfg.Auth.MaxCodeAttempts)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("PORTAL_TOKEN_EXPIRY", "48h")
	os.Setenv("MAX_CODE_ATTEMPTS", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Portal.TokenExpiry != 48*time.Hour {
		t.Errorf("PortalTokenExpiry: got %v, want 48h", cfg.Portal.TokenExpiry)
	}
	if cfg.Auth.MaxCodeAttempts != 3 {
		t.Errorf("MaxCodeAttempts: got %d, want 3", cfg.Auth.MaxCodeAttempts)
	}
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	os.Clearenv()
	os.Setenv("DB_PASSWORD", "test")
	t.Cleanup(os.Clearenv)

	if _, err := Load(); err == nil {
		t.Fatal("Load() succeeded without JWT_SECRET")
	}
}

func TestLoad_WeakJWTSecretRejected(t *testing.T) {
	os.Clearenv()
	os.Setenv("JWT_SECRET", "short")
	os.Setenv("DB_PASSWORD", "test")
	t.Cleanup(os.Clearenv)

	if _, err := Load(); err == nil {
		t.Fatal("Load() accepted a short JWT secret")
	}
}

func TestLoad_TOTPKeyLengthEnforced(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("TOTP_ENCRYPTION_KEY", "too-short")

	if _, err := Load(); err == nil {
		t.Fatal("Load() accepted a TOTP encryption key that is not 32 bytes")
	}
}
