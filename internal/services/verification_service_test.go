package services

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stationhub/identity/internal/models"
	pkglogger "github.com/stationhub/identity/pkg/logger"
)

func newTestVerificationService(users *MockUserRepository, requests *MockVerificationRepository, gateway *MockVerificationGateway) *VerificationService {
	logger := slog.Default()
	return NewVerificationService(
		users,
		requests,
		gateway,
		"store-key", "channel-key",
		logger,
		pkglogger.NewAuditLogger(logger),
	)
}

func TestVerificationService_Start_Success(t *testing.T) {
	var dispatchedStatus string
	requests := &MockVerificationRepository{
		UpdateStatusFunc: func(ctx context.Context, id, status string) error {
			dispatchedStatus = status
			return nil
		},
	}

	svc := newTestVerificationService(&MockUserRepository{}, requests, &MockVerificationGateway{})

	resp, err := svc.Start(context.Background(), "user123", "Jane Doe", "+82-10-1234-5678")

	require.NoError(t, err)
	assert.NotEmpty(t, resp.RequestID)
	assert.NotEmpty(t, resp.RedirectURL)
	assert.Equal(t, models.VerificationDispatched, dispatchedStatus)
}

func TestVerificationService_Start_MissingProviderConfig(t *testing.T) {
	logger := slog.Default()
	svc := NewVerificationService(
		&MockUserRepository{},
		&MockVerificationRepository{},
		&MockVerificationGateway{},
		"", "",
		logger,
		pkglogger.NewAuditLogger(logger),
	)

	resp, err := svc.Start(context.Background(), "user123", "Jane Doe", "+82-10-1234-5678")

	assert.ErrorIs(t, err, models.ErrVerificationConfigMissing)
	assert.Nil(t, resp)
}

func TestVerificationService_Complete_Success(t *testing.T) {
	req := &models.VerificationRequest{
		ID:     "verification_1",
		UserID: "user123",
		Phone:  "+82-10-1234-5678",
		Status: models.VerificationDispatched,
	}
	verified := false
	requests := &MockVerificationRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.VerificationRequest, error) {
			return req, nil
		},
		MarkVerifiedFunc: func(ctx context.Context, id string) error {
			verified = true
			req.Status = models.VerificationVerified
			return nil
		},
	}
	var verifiedPhone string
	users := &MockUserRepository{
		SetPhoneVerifiedFunc: func(ctx context.Context, id, phone string) error {
			verifiedPhone = phone
			return nil
		},
	}
	gateway := &MockVerificationGateway{
		FetchResultFunc: func(ctx context.Context, requestID string) (*models.ProviderResult, error) {
			return &models.ProviderResult{RequestID: requestID, Confirmed: true, PhoneNumber: "+821012345678"}, nil
		},
	}

	svc := newTestVerificationService(users, requests, gateway)

	resp, err := svc.Complete(context.Background(), "user123", "verification_1")

	require.NoError(t, err)
	assert.True(t, verified)
	assert.Equal(t, models.VerificationVerified, resp.Status)
	// The provider's canonical number wins over the user-entered one
	assert.Equal(t, "+821012345678", verifiedPhone)
}

func TestVerificationService_Complete_Cancelled(t *testing.T) {
	req := &models.VerificationRequest{ID: "verification_1", UserID: "user123", Status: models.VerificationDispatched}
	var finalStatus string
	requests := &MockVerificationRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.VerificationRequest, error) {
			return req, nil
		},
		UpdateStatusFunc: func(ctx context.Context, id, status string) error {
			finalStatus = status
			return nil
		},
	}
	gateway := &MockVerificationGateway{
		FetchResultFunc: func(ctx context.Context, requestID string) (*models.ProviderResult, error) {
			return &models.ProviderResult{RequestID: requestID, Cancelled: true}, nil
		},
	}

	svc := newTestVerificationService(&MockUserRepository{}, requests, gateway)

	resp, err := svc.Complete(context.Background(), "user123", "verification_1")

	assert.ErrorIs(t, err, models.ErrProviderCancelled)
	assert.Nil(t, resp)
	assert.Equal(t, models.VerificationCancelled, finalStatus)
}

func TestVerificationService_Complete_ReplayedRequestID(t *testing.T) {
	req := &models.VerificationRequest{ID: "verification_1", UserID: "user123", Status: models.VerificationVerified}
	requests := &MockVerificationRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.VerificationRequest, error) {
			return req, nil
		},
	}

	svc := newTestVerificationService(&MockUserRepository{}, requests, &MockVerificationGateway{})

	resp, err := svc.Complete(context.Background(), "user123", "verification_1")

	assert.ErrorIs(t, err, models.ErrVerificationMismatch)
	assert.Nil(t, resp)
}

func TestVerificationService_Complete_WrongOwner(t *testing.T) {
	req := &models.VerificationRequest{ID: "verification_1", UserID: "someone_else", Status: models.VerificationDispatched}
	requests := &MockVerificationRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.VerificationRequest, error) {
			return req, nil
		},
	}

	svc := newTestVerificationService(&MockUserRepository{}, requests, &MockVerificationGateway{})

	resp, err := svc.Complete(context.Background(), "user123", "verification_1")

	assert.ErrorIs(t, err, models.ErrForbidden)
	assert.Nil(t, resp)
}

func TestVerificationService_Cancel_TerminalIsNoOp(t *testing.T) {
	req := &models.VerificationRequest{ID: "verification_1", UserID: "user123", Status: models.VerificationFailed}
	requests := &MockVerificationRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.VerificationRequest, error) {
			return req, nil
		},
		UpdateStatusFunc: func(ctx context.Context, id, status string) error {
			t.Fatal("a terminal request must not transition")
			return nil
		},
	}

	svc := newTestVerificationService(&MockUserRepository{}, requests, &MockVerificationGateway{})

	err := svc.Cancel(context.Background(), "user123", "verification_1")

	assert.NoError(t, err)
}
