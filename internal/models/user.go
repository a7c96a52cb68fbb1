package models

import (
	"time"
)

// User roles and types shared by every application in the constellation.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	UserTypeCustomer = "customer"
	UserTypeBusiness = "business"
)

type User struct {
	ID                  string
	Email               string
	PasswordHash        string // empty for social-only accounts
	Name                string
	Phone               string
	PhoneVerified       bool
	MarketingConsent    bool
	TwoFactorEnabled    bool
	TwoFactorEnrolledAt *time.Time
	TokenKey            string // Per-user secret for composite token signing
	Role                string // "user", "admin"
	UserType            string // "customer", "business"
	Status              string // "active", "suspended", "disabled"
	LockedUntil         *time.Time
	PasswordChangedAt   *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// HasPassword reports whether the account can authenticate with a password.
// Social-only accounts have no hash; unlinking their last provider would
// lock them out entirely.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}
