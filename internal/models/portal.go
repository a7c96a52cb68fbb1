package models

import "time"

// PortalAccount records the last reconciliation between a satellite
// application's local account data and the identity service. One row per
// (user, app); the sync call is best effort and the row may lag.
type PortalAccount struct {
	UserID       string
	AppID        string // "wash", "delivery", "retail", "admin", "portal"
	LastSyncedAt time.Time
	CreatedAt    time.Time
}

// LoginAttempt records a login attempt for rate limiting and lockout.
type LoginAttempt struct {
	ID            string
	Email         string
	IPAddress     string
	Success       bool
	FailureReason *string
	AttemptedAt   time.Time
}
