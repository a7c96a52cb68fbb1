package portal_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stationhub/identity/pkg/portal"
)

func TestLoginFlow_NoSecondFactorFinishesImmediately(t *testing.T) {
	var refreshes int32
	client := &fakeClient{
		RefreshSessionFunc: func(ctx context.Context, refreshToken string) (*portal.Session, error) {
			atomic.AddInt32(&refreshes, 1)
			return testSession(), nil
		},
	}
	flow := portal.NewLoginFlow(client)

	state, err := flow.SubmitPassword(context.Background(), "user@example.com", "password123", false)

	require.NoError(t, err)
	assert.Equal(t, portal.StateDone, state)
	assert.NotNil(t, flow.Session())
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshes), "session must be rehydrated before Done")
}

func TestLoginFlow_ChallengePausesAtCodeStep(t *testing.T) {
	client := &fakeClient{
		LoginFunc: func(ctx context.Context, email, password string, remember bool) (*portal.LoginOutcome, error) {
			return &portal.LoginOutcome{Challenge: testChallenge("X1")}, nil
		},
	}
	flow := portal.NewLoginFlow(client)

	state, err := flow.SubmitPassword(context.Background(), "user@example.com", "password123", false)

	require.NoError(t, err)
	assert.Equal(t, portal.StateAwaitingCode, state)
	assert.Equal(t, "us***@example.com", flow.EmailHint())
	assert.Nil(t, flow.Session())
}

func TestLoginFlow_WrongCodeThenRightCode(t *testing.T) {
	var usedTokens []string
	client := &fakeClient{
		LoginFunc: func(ctx context.Context, email, password string, remember bool) (*portal.LoginOutcome, error) {
			return &portal.LoginOutcome{Challenge: testChallenge("X1")}, nil
		},
		VerifyCodeFunc: func(ctx context.Context, challengeToken, code string) (*portal.Session, error) {
			usedTokens = append(usedTokens, challengeToken)
			if code != "123456" {
				return nil, portal.ErrInvalidCode
			}
			return testSession(), nil
		},
	}
	flow := portal.NewLoginFlow(client)
	_, err := flow.SubmitPassword(context.Background(), "user@example.com", "password123", false)
	require.NoError(t, err)

	state, err := flow.SubmitCode(context.Background(), "000000")
	assert.ErrorIs(t, err, portal.ErrInvalidCode)
	assert.Equal(t, portal.StateAwaitingCode, state, "wrong code keeps the same challenge")

	state, err = flow.SubmitCode(context.Background(), "123456")
	require.NoError(t, err)
	assert.Equal(t, portal.StateDone, state)
	assert.Equal(t, []string{"X1", "X1"}, usedTokens)

	// The challenge is consumed; the flow refuses further submissions
	_, err = flow.SubmitCode(context.Background(), "123456")
	assert.ErrorIs(t, err, portal.ErrFlowState)
}

func TestLoginFlow_DeadChallengeReturnsToPasswordStep(t *testing.T) {
	client := &fakeClient{
		LoginFunc: func(ctx context.Context, email, password string, remember bool) (*portal.LoginOutcome, error) {
			return &portal.LoginOutcome{Challenge: testChallenge("X1")}, nil
		},
		VerifyCodeFunc: func(ctx context.Context, challengeToken, code string) (*portal.Session, error) {
			return nil, portal.ErrChallengeInvalid
		},
	}
	flow := portal.NewLoginFlow(client)
	_, err := flow.SubmitPassword(context.Background(), "user@example.com", "password123", false)
	require.NoError(t, err)

	state, err := flow.SubmitCode(context.Background(), "123456")

	assert.ErrorIs(t, err, portal.ErrChallengeInvalid)
	assert.Equal(t, portal.StateAwaitingPassword, state)
}

func TestLoginFlow_ExhaustedAttemptsReturnToPasswordStep(t *testing.T) {
	client := &fakeClient{
		LoginFunc: func(ctx context.Context, email, password string, remember bool) (*portal.LoginOutcome, error) {
			return &portal.LoginOutcome{Challenge: testChallenge("X1")}, nil
		},
		VerifyCodeFunc: func(ctx context.Context, challengeToken, code string) (*portal.Session, error) {
			return nil, portal.ErrCodeAttemptsExhausted
		},
	}
	flow := portal.NewLoginFlow(client)
	_, err := flow.SubmitPassword(context.Background(), "user@example.com", "password123", false)
	require.NoError(t, err)

	state, err := flow.SubmitCode(context.Background(), "123456")

	assert.ErrorIs(t, err, portal.ErrCodeAttemptsExhausted)
	assert.Equal(t, portal.StateAwaitingPassword, state)
}

func TestLoginFlow_CancelDiscardsChallenge(t *testing.T) {
	var cancelled []string
	client := &fakeClient{
		LoginFunc: func(ctx context.Context, email, password string, remember bool) (*portal.LoginOutcome, error) {
			return &portal.LoginOutcome{Challenge: testChallenge("X1")}, nil
		},
		CancelLoginFunc: func(ctx context.Context, challengeToken string) error {
			cancelled = append(cancelled, challengeToken)
			return nil
		},
	}
	flow := portal.NewLoginFlow(client)
	_, err := flow.SubmitPassword(context.Background(), "user@example.com", "password123", false)
	require.NoError(t, err)

	state, err := flow.Cancel(context.Background())

	require.NoError(t, err)
	assert.Equal(t, portal.StateAwaitingPassword, state)
	assert.Equal(t, []string{"X1"}, cancelled)

	// Cancelled flow cannot be resumed
	_, err = flow.SubmitCode(context.Background(), "123456")
	assert.ErrorIs(t, err, portal.ErrFlowState)
}

func TestLoginFlow_EmergencyCodePath(t *testing.T) {
	client := &fakeClient{
		LoginFunc: func(ctx context.Context, email, password string, remember bool) (*portal.LoginOutcome, error) {
			return &portal.LoginOutcome{Challenge: testChallenge("X1")}, nil
		},
	}
	flow := portal.NewLoginFlow(client)
	_, err := flow.SubmitPassword(context.Background(), "user@example.com", "password123", false)
	require.NoError(t, err)

	state, err := flow.RequestEmergencyCode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, portal.StateAwaitingEmergencyCode, state)

	// TOTP submission is no longer valid in the emergency branch
	_, err = flow.SubmitCode(context.Background(), "123456")
	assert.ErrorIs(t, err, portal.ErrFlowState)

	state, err = flow.SubmitEmergencyCode(context.Background(), "A2B3C4D5")
	require.NoError(t, err)
	assert.Equal(t, portal.StateDone, state)
	assert.NotNil(t, flow.Session())
}

func TestLoginFlow_DisableTwoFactorDuringLogin(t *testing.T) {
	client := &fakeClient{
		LoginFunc: func(ctx context.Context, email, password string, remember bool) (*portal.LoginOutcome, error) {
			return &portal.LoginOutcome{Challenge: testChallenge("X1")}, nil
		},
	}
	flow := portal.NewLoginFlow(client)
	_, err := flow.SubmitPassword(context.Background(), "user@example.com", "password123", false)
	require.NoError(t, err)

	state, err := flow.DisableTwoFactor(context.Background(), "password123")

	require.NoError(t, err)
	assert.Equal(t, portal.StateDoneTwoFactorRemoved, state)
	assert.NotNil(t, flow.Session())
}

func TestLoginFlow_DisableTwoFactorWrongPasswordKeepsChallenge(t *testing.T) {
	client := &fakeClient{
		LoginFunc: func(ctx context.Context, email, password string, remember bool) (*portal.LoginOutcome, error) {
			return &portal.LoginOutcome{Challenge: testChallenge("X1")}, nil
		},
		DisableTwoFactorDuringLoginFunc: func(ctx context.Context, challengeToken, password string) (*portal.Session, error) {
			return nil, portal.ErrInvalidCredentials
		},
	}
	flow := portal.NewLoginFlow(client)
	_, err := flow.SubmitPassword(context.Background(), "user@example.com", "password123", false)
	require.NoError(t, err)

	state, err := flow.DisableTwoFactor(context.Background(), "wrong")

	assert.ErrorIs(t, err, portal.ErrInvalidCredentials)
	assert.Equal(t, portal.StateAwaitingCode, state)
}

func TestLoginFlow_RejectsReentrantSubmission(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	client := &fakeClient{
		LoginFunc: func(ctx context.Context, email, password string, remember bool) (*portal.LoginOutcome, error) {
			close(started)
			<-release
			return &portal.LoginOutcome{Session: testSession()}, nil
		},
	}
	flow := portal.NewLoginFlow(client)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = flow.SubmitPassword(context.Background(), "user@example.com", "password123", false)
	}()

	<-started
	_, err := flow.SubmitPassword(context.Background(), "user@example.com", "password123", false)
	assert.ErrorIs(t, err, portal.ErrOperationInFlight)

	close(release)
	<-done
	assert.Equal(t, portal.StateDone, flow.State())
}

func TestLoginFlow_CodeStepRequiresChallenge(t *testing.T) {
	flow := portal.NewLoginFlow(&fakeClient{})

	_, err := flow.SubmitCode(context.Background(), "123456")
	assert.ErrorIs(t, err, portal.ErrFlowState)

	_, err = flow.RequestEmergencyCode(context.Background())
	assert.ErrorIs(t, err, portal.ErrFlowState)
}
