package models

import "time"

// Invitation statuses.
const (
	InvitationPending   = "pending"
	InvitationAccepted  = "accepted"
	InvitationCancelled = "cancelled"
	InvitationExpired   = "expired"
)

// Invitation is a server-issued, single-use offer letting a new user create
// an account under a predetermined email, role, and user type.
type Invitation struct {
	ID             string
	TokenHash      string // SHA-256 of the plain token; plain value sent by email only
	Email          string
	Role           string
	UserType       string
	AdminMessage   string
	Status         string
	InviterID      string
	AcceptedUserID *string
	AcceptedAt     *time.Time
	ExpiresAt      time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (i *Invitation) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// Acceptable reports whether the invitation can still be accepted.
func (i *Invitation) Acceptable(now time.Time) bool {
	return i.Status == InvitationPending && !i.Expired(now)
}
