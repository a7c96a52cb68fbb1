package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/stationhub/identity/internal/models"
)

// LoginAttemptRepository defines the interface for login attempt records
type LoginAttemptRepository interface {
	Record(ctx context.Context, attempt *models.LoginAttempt) error
	CountRecentFailures(ctx context.Context, email string, window time.Duration) (int, error)
}

// RateLimitConfig holds configuration for lockout behavior
type RateLimitConfig struct {
	MaxFailedAttempts int
	LockoutDuration   time.Duration
	LookbackWindow    time.Duration
}

// RateLimitService locks out the password step after repeated failures.
// A successful login resets the failure count.
type RateLimitService struct {
	attempts LoginAttemptRepository
	config   RateLimitConfig
	logger   *slog.Logger
}

// NewRateLimitService creates a new RateLimitService
func NewRateLimitService(attempts LoginAttemptRepository, config RateLimitConfig, logger *slog.Logger) *RateLimitService {
	return &RateLimitService{
		attempts: attempts,
		config:   config,
		logger:   logger,
	}
}

// CheckRateLimit reports whether a login attempt for this email should
// proceed. DB errors fail open so an outage cannot lock everyone out.
func (s *RateLimitService) CheckRateLimit(ctx context.Context, email, ipAddress string) (bool, *time.Duration, error) {
	failures, err := s.attempts.CountRecentFailures(ctx, email, s.config.LookbackWindow)
	if err != nil {
		s.logger.Error("failed to count login failures", slog.Any("error", err))
		return true, nil, nil
	}

	if failures >= s.config.MaxFailedAttempts {
		lockout := s.config.LockoutDuration
		s.logger.Warn("login rate limited",
			slog.Int("failed_attempts", failures),
			slog.Duration("lockout_duration", lockout))
		return false, &lockout, nil
	}

	return true, nil, nil
}

// RecordLoginAttempt stores the outcome of a password exchange.
func (s *RateLimitService) RecordLoginAttempt(ctx context.Context, email, ipAddress string, success bool, failureReason *string) error {
	return s.attempts.Record(ctx, &models.LoginAttempt{
		Email:         email,
		IPAddress:     ipAddress,
		Success:       success,
		FailureReason: failureReason,
	})
}
