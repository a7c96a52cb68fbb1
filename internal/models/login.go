package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type TokenClaims struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	AppID  string `json:"app_id,omitempty"` // satellite app, portal tokens only
	jwt.RegisteredClaims
}

// LoginChallenge is the short-lived credential bridging step-one (password)
// and step-two (second factor) of a login. It is consumed exactly once: by a
// successful code verification, by the disable-2FA escape hatch, or by
// cancellation. A wrong code increments Attempts but leaves it open until
// MaxAttempts is reached.
type LoginChallenge struct {
	ID         string
	UserID     string
	EmailHint  string // masked email shown on the code screen
	Remember   bool
	Attempts   int
	ConsumedAt *time.Time
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

func (c *LoginChallenge) Consumed() bool {
	return c.ConsumedAt != nil
}

func (c *LoginChallenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Usable reports whether the challenge can still accept a step-two attempt.
func (c *LoginChallenge) Usable(now time.Time, maxAttempts int) bool {
	return !c.Consumed() && !c.Expired(now) && c.Attempts < maxAttempts
}

// EmergencyCode is a fallback second factor delivered by email when the
// primary authenticator is unavailable. Single use, short TTL.
type EmergencyCode struct {
	ID          string
	ChallengeID string
	UserID      string
	CodeHash    string // bcrypt
	UsedAt      *time.Time
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// TwoFactorEnrollment holds an encrypted TOTP secret for a user.
type TwoFactorEnrollment struct {
	ID              string
	UserID          string
	SecretEncrypted []byte
	SecretNonce     []byte
	ActivatedAt     *time.Time
	LastUsedAt      *time.Time
	CreatedAt       time.Time
}

func (e *TwoFactorEnrollment) Active() bool {
	return e.ActivatedAt != nil
}
