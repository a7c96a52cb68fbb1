package portal

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"
)

// InvitationProvisioner verifies and redeems a single-use invitation token.
// Verification is latched per token: however many times the hosting UI
// re-runs its initialization, the identity service sees at most one verify
// call per token, and every caller shares that result. A different token
// invalidates the latch instead of reusing the stale outcome.
type InvitationProvisioner struct {
	client Client
	group  singleflight.Group

	mu           sync.Mutex
	latchedToken string
	invitation   *Invitation
	verifyErr    error
	attempted    bool
}

// NewInvitationProvisioner creates a provisioner with an empty latch.
func NewInvitationProvisioner(client Client) *InvitationProvisioner {
	return &InvitationProvisioner{client: client}
}

// Verify resolves the invitation behind token. Concurrent and repeated
// calls for the same token collapse to one network call; the latched result
// is returned thereafter. A duplicate-request rejection from the service
// means a twin call won the race, so it is swallowed and the latched result
// stands.
func (p *InvitationProvisioner) Verify(ctx context.Context, token string) (*Invitation, error) {
	p.mu.Lock()
	if token != p.latchedToken {
		// New token: forget any in-flight call for the old one
		if p.latchedToken != "" {
			p.group.Forget(p.latchedToken)
		}
		p.latchedToken = token
		p.invitation = nil
		p.verifyErr = nil
		p.attempted = false
	}
	if p.attempted {
		inv, err := p.invitation, p.verifyErr
		p.mu.Unlock()
		return inv, err
	}
	p.mu.Unlock()

	v, err, _ := p.group.Do(token, func() (interface{}, error) {
		return p.client.VerifyInvitation(ctx, token)
	})

	if err != nil && errors.Is(err, ErrDuplicateRequest) {
		p.mu.Lock()
		inv := p.invitation
		p.mu.Unlock()
		return inv, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if token != p.latchedToken {
		// Latch moved to a different token while we were in flight;
		// this result is stale
		return nil, ErrTokenInvalid
	}
	p.attempted = true
	p.verifyErr = err
	if err != nil {
		return nil, err
	}
	p.invitation = v.(*Invitation)
	return p.invitation, nil
}

// Accept redeems the invitation and creates the account. It requires a
// successful Verify of the same token first; a consumed or expired token is
// terminal and clears the latch so the user can start over with a fresh
// invitation.
func (p *InvitationProvisioner) Accept(ctx context.Context, token string, params AcceptParams) (*User, error) {
	p.mu.Lock()
	verified := p.attempted && p.verifyErr == nil && p.latchedToken == token
	p.mu.Unlock()

	if !verified {
		return nil, ErrFlowState
	}

	user, err := p.client.AcceptInvitation(ctx, token, params)
	if err != nil {
		if errors.Is(err, ErrTokenConsumed) || errors.Is(err, ErrTokenInvalid) {
			p.mu.Lock()
			p.latchedToken = ""
			p.invitation = nil
			p.verifyErr = nil
			p.attempted = false
			p.mu.Unlock()
		}
		return nil, err
	}
	return user, nil
}
