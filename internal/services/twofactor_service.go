package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/stationhub/identity/internal/auth"
	"github.com/stationhub/identity/internal/models"
	pkglogger "github.com/stationhub/identity/pkg/logger"
)

// TwoFactorService manages authenticator enrollment for signed-in users.
// Enrollment is two phase: a secret is generated and shown as a QR code,
// then activated by proving one valid code from the authenticator.
type TwoFactorService struct {
	users       UserRepository
	enrollments TwoFactorRepository
	emergency   EmergencyCodeRepository
	totp        *auth.TOTPManager
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewTwoFactorService creates a new TwoFactorService
func NewTwoFactorService(
	users UserRepository,
	enrollments TwoFactorRepository,
	emergency EmergencyCodeRepository,
	totp *auth.TOTPManager,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *TwoFactorService {
	return &TwoFactorService{
		users:       users,
		enrollments: enrollments,
		emergency:   emergency,
		totp:        totp,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// EnrollmentResponse carries the provisioning material for the authenticator app
type EnrollmentResponse struct {
	EnrollmentID string `json:"enrollment_id"`
	QRCode       string `json:"qr_code"` // data URL, PNG
}

// TwoFactorStatus summarizes a user's second-factor state
type TwoFactorStatus struct {
	Enabled    bool   `json:"enabled"`
	EnrolledAt string `json:"enrolled_at,omitempty"`
}

// BeginEnrollment generates a fresh encrypted secret and the QR code to scan.
// The enrollment stays inert until Activate proves the authenticator works.
func (s *TwoFactorService) BeginEnrollment(ctx context.Context, userID string) (*EnrollmentResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user for enrollment", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if user.TwoFactorEnabled {
		return nil, models.ErrConflict
	}

	encrypted, nonce, qrDataURL, err := s.totp.GenerateSecretWithQR(user.Email)
	if err != nil {
		s.logger.Error("failed to generate TOTP secret", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	enrollment := &models.TwoFactorEnrollment{
		UserID:          userID,
		SecretEncrypted: encrypted,
		SecretNonce:     nonce,
	}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		s.logger.Error("failed to store enrollment", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("two-factor enrollment started", slog.String("user_id", userID))

	return &EnrollmentResponse{
		EnrollmentID: enrollment.ID,
		QRCode:       qrDataURL,
	}, nil
}

// ActivateEnrollment flips 2FA on after the user proves one valid code.
func (s *TwoFactorService) ActivateEnrollment(ctx context.Context, userID, enrollmentID, code string) error {
	enrollment, err := s.enrollments.GetByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to load enrollment", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if enrollment.UserID != userID {
		return models.ErrForbidden
	}
	if enrollment.Active() {
		return models.ErrConflict
	}

	secret, err := s.totp.DecryptSecret(enrollment.SecretEncrypted, enrollment.SecretNonce)
	if err != nil {
		s.logger.Error("failed to decrypt TOTP secret", slog.Any("error", err))
		return models.ErrInternalServer
	}

	valid, err := s.totp.ValidateTOTP(secret, code, nil)
	if err != nil {
		s.logger.Error("TOTP validation error", slog.Any("error", err))
		return models.ErrInternalServer
	}
	if !valid {
		return models.ErrInvalidCode
	}

	if err := s.enrollments.Activate(ctx, enrollment.ID); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return models.ErrConflict
		}
		s.logger.Error("failed to activate enrollment", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.users.SetTwoFactor(ctx, userID, true); err != nil {
		s.logger.Error("failed to enable two-factor flag", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("two-factor enabled", slog.String("user_id", userID))
	s.auditLogger.LogAccountAction("two_factor_enabled", userID, "", nil)
	return nil
}

// Disable turns 2FA off for an authenticated session. The login-screen
// escape hatch lives in AuthService; this is the settings-page path.
func (s *TwoFactorService) Disable(ctx context.Context, userID, ipAddress string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if !user.TwoFactorEnabled {
		return models.ErrBadRequest
	}

	if err := s.users.SetTwoFactor(ctx, userID, false); err != nil {
		s.logger.Error("failed to disable two-factor flag", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	if err := s.enrollments.DeleteByUserID(ctx, userID); err != nil {
		s.logger.Warn("failed to delete enrollments", slog.String("user_id", userID), slog.Any("error", err))
	}
	if err := s.emergency.DeleteByUserID(ctx, userID); err != nil {
		s.logger.Warn("failed to delete emergency codes", slog.String("user_id", userID), slog.Any("error", err))
	}

	s.auditLogger.LogSecurityDowngrade("two_factor_disabled", userID, ipAddress, nil)
	return nil
}

// Status reports whether the user has a second factor enabled.
func (s *TwoFactorService) Status(ctx context.Context, userID string) (*TwoFactorStatus, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	status := &TwoFactorStatus{Enabled: user.TwoFactorEnabled}
	if user.TwoFactorEnrolledAt != nil {
		status.EnrolledAt = user.TwoFactorEnrolledAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return status, nil
}
