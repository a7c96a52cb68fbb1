package models

import "time"

// Phone identity verification request lifecycle.
const (
	VerificationCreated    = "created"
	VerificationDispatched = "dispatched"
	VerificationConfirmed  = "confirmed"
	VerificationCancelled  = "cancelled"
	VerificationVerified   = "verified"
	VerificationFailed     = "failed"
)

// VerificationRequest tracks one two-phase identity verification against the
// external phone-identity provider. Each request id is single use.
type VerificationRequest struct {
	ID           string
	UserID       string
	StoreKey     string // provider store configuration key
	ChannelKey   string // provider channel configuration key
	CustomerName string
	Phone        string
	Status       string
	VerifiedAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (v *VerificationRequest) Terminal() bool {
	switch v.Status {
	case VerificationVerified, VerificationCancelled, VerificationFailed:
		return true
	}
	return false
}

// ProviderResult is the provider callback payload after the confirmation
// phase, already reduced to the fields the core interprets. The provider's
// raw cancellation discriminator is mapped to Cancelled at the gateway
// boundary.
type ProviderResult struct {
	RequestID   string
	Confirmed   bool
	Cancelled   bool
	PhoneNumber string
}
