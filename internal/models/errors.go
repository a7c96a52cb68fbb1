package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Account state errors
	ErrAccountDisabled  = errors.New("account is disabled")
	ErrAccountSuspended = errors.New("account is suspended")
	ErrAccountLocked    = errors.New("account is temporarily locked")

	// Login and second-factor errors
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrChallengeInvalid      = errors.New("login challenge is expired, consumed, or unknown")
	ErrInvalidCode           = errors.New("invalid second-factor code")
	ErrCodeAttemptsExhausted = errors.New("too many second-factor attempts")

	// Social link errors
	ErrAlreadyLinked  = errors.New("provider identity is linked to another account")
	ErrSoleAuthMethod = errors.New("cannot unlink the only authentication method")
	ErrProviderDenied = errors.New("provider denied the authorization request")

	// Provider cancellation is a user decision, not a failure. Callers
	// handle it locally and never surface it as an error notification.
	ErrProviderCancelled = errors.New("provider flow cancelled by user")

	// Invitation errors
	ErrTokenInvalid  = errors.New("invitation token is invalid or expired")
	ErrTokenConsumed = errors.New("invitation token has already been accepted")

	// Returned when an identical request is already in flight. Clients
	// swallow this; it means a stale duplicate raced a completed call.
	ErrDuplicateRequest = errors.New("duplicate request in flight")

	// Verification errors
	ErrVerificationConfigMissing = errors.New("verification provider configuration missing")
	ErrVerificationMismatch      = errors.New("verification request does not match provider state")
)
