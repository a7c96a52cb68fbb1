package portal_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stationhub/identity/pkg/portal"
)

func TestVerificationCoordinator_RequestThenConfirm(t *testing.T) {
	var refreshes int32
	refresh := func(ctx context.Context) error {
		atomic.AddInt32(&refreshes, 1)
		return nil
	}
	c := portal.NewVerificationCoordinator(&fakeClient{}, refresh)

	start, err := c.Request(context.Background(), "access-token", "Test User", "+15551234567")
	require.NoError(t, err)
	assert.Equal(t, "ver-1", start.RequestID)
	assert.NotEmpty(t, start.RedirectURL)

	status, err := c.Confirm(context.Background(), "access-token")
	require.NoError(t, err)
	assert.Equal(t, "verified", status.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshes), "session rehydrated after verification")
}

func TestVerificationCoordinator_SecondRequestRejectedWhilePending(t *testing.T) {
	c := portal.NewVerificationCoordinator(&fakeClient{}, nil)

	_, err := c.Request(context.Background(), "access-token", "Test User", "+15551234567")
	require.NoError(t, err)

	_, err = c.Request(context.Background(), "access-token", "Test User", "+15551234567")
	assert.ErrorIs(t, err, portal.ErrOperationInFlight)
}

func TestVerificationCoordinator_ConfirmWithoutRequest(t *testing.T) {
	c := portal.NewVerificationCoordinator(&fakeClient{}, nil)

	_, err := c.Confirm(context.Background(), "access-token")
	assert.ErrorIs(t, err, portal.ErrFlowState)
}

func TestVerificationCoordinator_CancelledOutcomeNotRetried(t *testing.T) {
	var confirms int32
	var refreshes int32
	client := &fakeClient{
		ConfirmVerificationFunc: func(ctx context.Context, accessToken, requestID string) (*portal.VerificationStatus, error) {
			atomic.AddInt32(&confirms, 1)
			return nil, portal.ErrProviderCancelled
		},
	}
	refresh := func(ctx context.Context) error {
		atomic.AddInt32(&refreshes, 1)
		return nil
	}
	c := portal.NewVerificationCoordinator(client, refresh)

	_, err := c.Request(context.Background(), "access-token", "Test User", "+15551234567")
	require.NoError(t, err)

	status, err := c.Confirm(context.Background(), "access-token")

	assert.NoError(t, err, "provider cancellation is a user decision, not a failure")
	assert.Equal(t, "cancelled", status.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&confirms))
	assert.Equal(t, int32(0), atomic.LoadInt32(&refreshes), "no rehydration for a cancelled outcome")

	// The request id is spent; confirming again needs a new request
	_, err = c.Confirm(context.Background(), "access-token")
	assert.ErrorIs(t, err, portal.ErrFlowState)
}

func TestVerificationCoordinator_ProviderUnavailable(t *testing.T) {
	client := &fakeClient{
		StartVerificationFunc: func(ctx context.Context, accessToken, name, phone string) (*portal.VerificationStart, error) {
			return nil, portal.ErrProviderUnavailable
		},
	}
	c := portal.NewVerificationCoordinator(client, nil)

	_, err := c.Request(context.Background(), "access-token", "Test User", "+15551234567")
	assert.ErrorIs(t, err, portal.ErrProviderUnavailable)

	// The slot is released on failure
	_, err = c.Request(context.Background(), "access-token", "Test User", "+15551234567")
	assert.NoError(t, err)
}

func TestVerificationCoordinator_CancelAbandonsPendingRequest(t *testing.T) {
	var cancelled []string
	client := &fakeClient{
		CancelVerificationFunc: func(ctx context.Context, accessToken, requestID string) error {
			cancelled = append(cancelled, requestID)
			return nil
		},
	}
	c := portal.NewVerificationCoordinator(client, nil)

	_, err := c.Request(context.Background(), "access-token", "Test User", "+15551234567")
	require.NoError(t, err)

	require.NoError(t, c.Cancel(context.Background(), "access-token"))
	assert.Equal(t, []string{"ver-1"}, cancelled)

	_, err = c.Confirm(context.Background(), "access-token")
	assert.ErrorIs(t, err, portal.ErrFlowState)
}
