package portal

import (
	"errors"
	"fmt"
)

// Sentinel errors for the federation client. Server responses and provider
// callback payloads are translated into these at the client boundary so
// callers never branch on HTTP status codes or provider-specific strings.
var (
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrAccountLocked         = errors.New("account temporarily locked")
	ErrChallengeInvalid      = errors.New("login challenge expired or already used")
	ErrInvalidCode           = errors.New("invalid verification code")
	ErrCodeAttemptsExhausted = errors.New("too many incorrect codes")
	ErrProviderCancelled     = errors.New("cancelled at provider")
	ErrProviderDenied        = errors.New("denied by provider")
	ErrAlreadyLinked         = errors.New("provider identity already linked to another account")
	ErrSoleAuthMethod        = errors.New("cannot unlink the only authentication method")
	ErrTokenConsumed         = errors.New("invitation token already accepted")
	ErrTokenInvalid          = errors.New("token expired or invalid")
	ErrDuplicateRequest      = errors.New("duplicate request in flight")
	ErrVerificationMismatch  = errors.New("verification outcome does not match request")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrNotFound              = errors.New("not found")
	ErrProviderUnavailable   = errors.New("verification provider unavailable")

	// Flow guards. These never come from the server; they mean the caller
	// invoked an operation the current flow state does not permit.
	ErrFlowState         = errors.New("operation not valid in current flow state")
	ErrOperationInFlight = errors.New("another request is already in flight")
)

// APIError is a server error the client could not map to a sentinel. It
// preserves the status and code for logging; callers generally treat it as
// a retriable transport failure.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("identity service error %d (%s): %s", e.Status, e.Code, e.Message)
}
