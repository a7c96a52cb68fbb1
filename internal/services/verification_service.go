package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/stationhub/identity/internal/models"
	pkglogger "github.com/stationhub/identity/pkg/logger"
)

// VerificationRepository defines the interface for verification request persistence
type VerificationRepository interface {
	Create(ctx context.Context, req *models.VerificationRequest) (*models.VerificationRequest, error)
	GetByID(ctx context.Context, id string) (*models.VerificationRequest, error)
	UpdateStatus(ctx context.Context, id, status string) error
	MarkVerified(ctx context.Context, id string) error
}

// VerificationGateway talks to the external phone-identity provider. The
// provider's raw cancellation discriminator is mapped to
// ProviderResult.Cancelled at this boundary.
type VerificationGateway interface {
	Dispatch(ctx context.Context, req *models.VerificationRequest) (redirectURL string, err error)
	FetchResult(ctx context.Context, requestID string) (*models.ProviderResult, error)
}

// VerificationService runs the two-phase phone identity verification: a
// request is dispatched to the provider, the user completes it out of band,
// and the confirmation phase reconciles the provider's result.
type VerificationService struct {
	users       UserRepository
	requests    VerificationRepository
	gateway     VerificationGateway
	storeKey    string
	channelKey  string
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewVerificationService creates a new VerificationService
func NewVerificationService(
	users UserRepository,
	requests VerificationRepository,
	gateway VerificationGateway,
	storeKey, channelKey string,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *VerificationService {
	return &VerificationService{
		users:       users,
		requests:    requests,
		gateway:     gateway,
		storeKey:    storeKey,
		channelKey:  channelKey,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// VerificationStartResponse carries the provider hand-off for the client
type VerificationStartResponse struct {
	RequestID   string `json:"request_id"`
	RedirectURL string `json:"redirect_url"`
}

// VerificationStatusResponse reports where a request stands
type VerificationStatusResponse struct {
	RequestID  string `json:"request_id"`
	Status     string `json:"status"`
	VerifiedAt string `json:"verified_at,omitempty"`
}

// Start creates a verification request and dispatches it to the provider.
// Fails fast when the provider keys are not configured rather than sending
// the user into a broken flow.
func (s *VerificationService) Start(ctx context.Context, userID, customerName, phone string) (*VerificationStartResponse, error) {
	if s.storeKey == "" || s.channelKey == "" {
		s.logger.Error("verification provider keys not configured")
		return nil, models.ErrVerificationConfigMissing
	}

	customerName = strings.TrimSpace(customerName)
	phone = strings.TrimSpace(phone)
	if customerName == "" || phone == "" {
		return nil, models.ErrBadRequest
	}

	req, err := s.requests.Create(ctx, &models.VerificationRequest{
		UserID:       userID,
		StoreKey:     s.storeKey,
		ChannelKey:   s.channelKey,
		CustomerName: customerName,
		Phone:        phone,
	})
	if err != nil {
		s.logger.Error("failed to create verification request", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	redirectURL, err := s.gateway.Dispatch(ctx, req)
	if err != nil {
		s.logger.Error("provider dispatch failed", slog.String("request_id", req.ID), slog.Any("error", err))
		if updErr := s.requests.UpdateStatus(ctx, req.ID, models.VerificationFailed); updErr != nil {
			s.logger.Error("failed to mark request failed", slog.Any("error", updErr))
		}
		return nil, models.ErrInternalServer
	}

	if err := s.requests.UpdateStatus(ctx, req.ID, models.VerificationDispatched); err != nil {
		s.logger.Error("failed to mark request dispatched", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("verification dispatched",
		slog.String("user_id", userID), slog.String("request_id", req.ID))

	return &VerificationStartResponse{
		RequestID:   req.ID,
		RedirectURL: redirectURL,
	}, nil
}

// Complete reconciles the provider result for a request. Each request id can
// succeed exactly once; a replayed confirmation gets ErrVerificationMismatch.
func (s *VerificationService) Complete(ctx context.Context, userID, requestID string) (*VerificationStatusResponse, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to load verification request", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if req.UserID != userID {
		return nil, models.ErrForbidden
	}
	if req.Terminal() {
		return nil, models.ErrVerificationMismatch
	}

	result, err := s.gateway.FetchResult(ctx, requestID)
	if err != nil {
		s.logger.Error("failed to fetch provider result", slog.String("request_id", requestID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if result.Cancelled {
		if err := s.requests.UpdateStatus(ctx, requestID, models.VerificationCancelled); err != nil {
			s.logger.Error("failed to mark request cancelled", slog.Any("error", err))
		}
		return nil, models.ErrProviderCancelled
	}

	if !result.Confirmed {
		if err := s.requests.UpdateStatus(ctx, requestID, models.VerificationFailed); err != nil {
			s.logger.Error("failed to mark request failed", slog.Any("error", err))
		}
		return nil, models.ErrVerificationMismatch
	}

	if err := s.requests.MarkVerified(ctx, requestID); err != nil {
		if errors.Is(err, models.ErrVerificationMismatch) {
			return nil, models.ErrVerificationMismatch
		}
		s.logger.Error("failed to mark request verified", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	phone := result.PhoneNumber
	if phone == "" {
		phone = req.Phone
	}
	if err := s.users.SetPhoneVerified(ctx, userID, phone); err != nil {
		s.logger.Error("failed to set phone verified", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("phone verified", slog.String("user_id", userID), slog.String("request_id", requestID))
	s.auditLogger.LogAccountAction("phone_verified", userID, "", nil)

	return s.Status(ctx, userID, requestID)
}

// Cancel marks a non-terminal request cancelled.
func (s *VerificationService) Cancel(ctx context.Context, userID, requestID string) error {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to load verification request", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if req.UserID != userID {
		return models.ErrForbidden
	}
	if req.Terminal() {
		return nil
	}

	if err := s.requests.UpdateStatus(ctx, requestID, models.VerificationCancelled); err != nil {
		s.logger.Error("failed to cancel verification request", slog.Any("error", err))
		return models.ErrInternalServer
	}
	return nil
}

// Status returns the current state of one request.
func (s *VerificationService) Status(ctx context.Context, userID, requestID string) (*VerificationStatusResponse, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to load verification request", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if req.UserID != userID {
		return nil, models.ErrForbidden
	}

	resp := &VerificationStatusResponse{
		RequestID: req.ID,
		Status:    req.Status,
	}
	if req.VerifiedAt != nil {
		resp.VerifiedAt = req.VerifiedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return resp, nil
}
