package portal

import (
	"context"
	"errors"
	"sync"
)

// FlowState is the single tagged state of a login attempt. The challenge
// token lives inside the flow and is only populated in the code-entry
// states, so a code screen without a challenge cannot be represented.
type FlowState int

const (
	StateAwaitingPassword FlowState = iota
	StateAwaitingCode
	StateAwaitingEmergencyCode
	StateDone
	StateDoneTwoFactorRemoved
)

func (s FlowState) String() string {
	switch s {
	case StateAwaitingPassword:
		return "awaiting_password"
	case StateAwaitingCode:
		return "awaiting_code"
	case StateAwaitingEmergencyCode:
		return "awaiting_emergency_code"
	case StateDone:
		return "done"
	case StateDoneTwoFactorRemoved:
		return "done_two_factor_removed"
	}
	return "unknown"
}

// LoginFlow drives the multi-step login protocol for one attempt. All
// transitions go through the identity service; the flow only tracks which
// step comes next and holds the short-lived challenge token between steps.
//
// One operation may be in flight at a time. A second submission while a
// call is pending gets ErrOperationInFlight instead of being queued, so
// double-submits from the UI cannot consume the challenge twice.
type LoginFlow struct {
	client Client

	mu             sync.Mutex
	inFlight       bool
	state          FlowState
	challengeToken string
	emailHint      string
	session        *Session
}

// NewLoginFlow creates a flow at the password step.
func NewLoginFlow(client Client) *LoginFlow {
	return &LoginFlow{client: client, state: StateAwaitingPassword}
}

// State returns the current step.
func (f *LoginFlow) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// EmailHint returns the masked email shown on the code screen.
func (f *LoginFlow) EmailHint() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.emailHint
}

// Session returns the established session once the flow is done.
func (f *LoginFlow) Session() *Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session
}

// begin acquires the in-flight slot if the flow is in one of the wanted
// states. The lock is released during the network call; end releases the
// slot.
func (f *LoginFlow) begin(want ...FlowState) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.inFlight {
		return "", ErrOperationInFlight
	}
	for _, s := range want {
		if f.state == s {
			f.inFlight = true
			return f.challengeToken, nil
		}
	}
	return "", ErrFlowState
}

func (f *LoginFlow) end() {
	f.mu.Lock()
	f.inFlight = false
	f.mu.Unlock()
}

// SubmitPassword runs the password step. It finishes the flow outright for
// accounts without a second factor, or parks it at the code step.
func (f *LoginFlow) SubmitPassword(ctx context.Context, email, password string, remember bool) (FlowState, error) {
	if _, err := f.begin(StateAwaitingPassword); err != nil {
		return f.State(), err
	}
	defer f.end()

	outcome, err := f.client.Login(ctx, email, password, remember)
	if err != nil {
		return f.State(), err
	}

	if outcome.Challenge != nil {
		f.mu.Lock()
		f.state = StateAwaitingCode
		f.challengeToken = outcome.Challenge.ChallengeToken
		f.emailHint = outcome.Challenge.EmailHint
		f.mu.Unlock()
		return StateAwaitingCode, nil
	}

	return f.finish(ctx, outcome.Session, StateDone)
}

// SubmitCode runs the second-factor step. A wrong code leaves the flow at
// the code step; a dead or exhausted challenge sends it back to the
// password step with the challenge discarded.
func (f *LoginFlow) SubmitCode(ctx context.Context, code string) (FlowState, error) {
	token, err := f.begin(StateAwaitingCode)
	if err != nil {
		return f.State(), err
	}
	defer f.end()

	session, err := f.client.VerifyCode(ctx, token, code)
	if err != nil {
		return f.challengeFailure(err)
	}
	return f.finish(ctx, session, StateDone)
}

// RequestEmergencyCode asks for the email fallback code and moves the flow
// to the emergency code step.
func (f *LoginFlow) RequestEmergencyCode(ctx context.Context) (FlowState, error) {
	token, err := f.begin(StateAwaitingCode, StateAwaitingEmergencyCode)
	if err != nil {
		return f.State(), err
	}
	defer f.end()

	if err := f.client.RequestEmergencyCode(ctx, token); err != nil {
		return f.challengeFailure(err)
	}

	f.mu.Lock()
	f.state = StateAwaitingEmergencyCode
	f.mu.Unlock()
	return StateAwaitingEmergencyCode, nil
}

// SubmitEmergencyCode runs the fallback second-factor step.
func (f *LoginFlow) SubmitEmergencyCode(ctx context.Context, code string) (FlowState, error) {
	token, err := f.begin(StateAwaitingEmergencyCode)
	if err != nil {
		return f.State(), err
	}
	defer f.end()

	session, err := f.client.VerifyEmergencyCode(ctx, token, code)
	if err != nil {
		return f.challengeFailure(err)
	}
	return f.finish(ctx, session, StateDone)
}

// DisableTwoFactor removes the second factor mid-login. The password must
// be re-entered as explicit confirmation; success consumes the challenge
// and finishes the flow in the two-factor-removed terminal state.
func (f *LoginFlow) DisableTwoFactor(ctx context.Context, password string) (FlowState, error) {
	token, err := f.begin(StateAwaitingCode, StateAwaitingEmergencyCode)
	if err != nil {
		return f.State(), err
	}
	defer f.end()

	session, err := f.client.DisableTwoFactorDuringLogin(ctx, token, password)
	if err != nil {
		return f.challengeFailure(err)
	}
	return f.finish(ctx, session, StateDoneTwoFactorRemoved)
}

// Cancel abandons the code step and returns to the password step. The
// challenge is invalidated server-side so the stale token cannot be resumed.
func (f *LoginFlow) Cancel(ctx context.Context) (FlowState, error) {
	token, err := f.begin(StateAwaitingCode, StateAwaitingEmergencyCode)
	if err != nil {
		return f.State(), err
	}
	defer f.end()

	if err := f.client.CancelLogin(ctx, token); err != nil && !errors.Is(err, ErrChallengeInvalid) {
		return f.State(), err
	}

	f.reset()
	return StateAwaitingPassword, nil
}

// challengeFailure decides whether a step error keeps the flow in place or
// sends it back to the password step. Wrong codes are retriable against the
// same challenge; anything that killed the challenge is not.
func (f *LoginFlow) challengeFailure(err error) (FlowState, error) {
	if errors.Is(err, ErrInvalidCode) || errors.Is(err, ErrInvalidCredentials) {
		return f.State(), err
	}
	if errors.Is(err, ErrChallengeInvalid) || errors.Is(err, ErrCodeAttemptsExhausted) {
		f.reset()
		return StateAwaitingPassword, err
	}
	return f.State(), err
}

// finish rehydrates the session from the server before reporting a terminal
// state, so the flow's view of the account reflects server truth rather
// than whatever the step response happened to carry.
func (f *LoginFlow) finish(ctx context.Context, session *Session, terminal FlowState) (FlowState, error) {
	if refreshed, err := f.client.RefreshSession(ctx, session.RefreshToken); err == nil {
		refreshed.PortalToken = session.PortalToken
		refreshed.PortalTokenExpiresAt = session.PortalTokenExpiresAt
		session = refreshed
	}

	f.mu.Lock()
	f.state = terminal
	f.session = session
	f.challengeToken = ""
	f.mu.Unlock()
	return terminal, nil
}

func (f *LoginFlow) reset() {
	f.mu.Lock()
	f.state = StateAwaitingPassword
	f.challengeToken = ""
	f.emailHint = ""
	f.mu.Unlock()
}
