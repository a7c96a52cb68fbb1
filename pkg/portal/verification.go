package portal

import (
	"context"
	"errors"
	"sync"
)

// SessionRefresher rehydrates the local session after a server-side
// identity change, so components observe the new verified attributes.
type SessionRefresher func(ctx context.Context) error

// VerificationCoordinator runs the two-phase phone identity verification:
// request a verification, hand the user to the provider, then confirm the
// provider's outcome. Each request id is single-use.
type VerificationCoordinator struct {
	client  Client
	refresh SessionRefresher

	mu        sync.Mutex
	inFlight  bool
	requestID string
}

// NewVerificationCoordinator creates a coordinator. refresh may be nil when
// the caller has no session cache to rehydrate.
func NewVerificationCoordinator(client Client, refresh SessionRefresher) *VerificationCoordinator {
	return &VerificationCoordinator{client: client, refresh: refresh}
}

// Request starts a verification and returns the provider hand-off. A second
// request while one is pending is rejected.
func (c *VerificationCoordinator) Request(ctx context.Context, accessToken, name, phone string) (*VerificationStart, error) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return nil, ErrOperationInFlight
	}
	c.inFlight = true
	c.mu.Unlock()

	start, err := c.client.StartVerification(ctx, accessToken, name, phone)
	if err != nil {
		c.reset()
		return nil, err
	}

	c.mu.Lock()
	c.requestID = start.RequestID
	c.mu.Unlock()
	return start, nil
}

// Confirm reconciles the provider outcome for the pending request. A
// provider-side cancellation is a user decision: the pending request is
// dropped and a cancelled status is reported without error, never retried.
// On verified success the session is rehydrated before returning.
func (c *VerificationCoordinator) Confirm(ctx context.Context, accessToken string) (*VerificationStatus, error) {
	c.mu.Lock()
	requestID := c.requestID
	c.mu.Unlock()

	if requestID == "" {
		return nil, ErrFlowState
	}

	status, err := c.client.ConfirmVerification(ctx, accessToken, requestID)
	if err != nil {
		if errors.Is(err, ErrProviderCancelled) {
			c.reset()
			return &VerificationStatus{RequestID: requestID, Status: "cancelled"}, nil
		}
		// The request id is single-use; a mismatch or expiry kills it
		if errors.Is(err, ErrVerificationMismatch) || errors.Is(err, ErrNotFound) {
			c.reset()
		}
		return nil, err
	}

	c.reset()

	if c.refresh != nil {
		if err := c.refresh(ctx); err != nil {
			return status, err
		}
	}
	return status, nil
}

// Cancel abandons the pending request locally and server-side.
func (c *VerificationCoordinator) Cancel(ctx context.Context, accessToken string) error {
	c.mu.Lock()
	requestID := c.requestID
	c.mu.Unlock()

	if requestID == "" {
		return nil
	}
	c.reset()

	// Best effort; an already-dead request is the state we wanted
	if err := c.client.CancelVerification(ctx, accessToken, requestID); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

func (c *VerificationCoordinator) reset() {
	c.mu.Lock()
	c.inFlight = false
	c.requestID = ""
	c.mu.Unlock()
}
