package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/stationhub/identity/internal/repositories"
)

// CleanupManager periodically sweeps expired short-lived records: login
// challenges, emergency codes, invitations, revoked tokens, and stale login
// attempt history.
type CleanupManager struct {
	challenges     *repositories.LoginChallengeRepository
	emergencyCodes *repositories.EmergencyCodeRepository
	invitations    *repositories.InvitationRepository
	revokedTokens  *repositories.TokenRevocationRepository
	loginAttempts  *repositories.LoginAttemptRepository
	logger         *slog.Logger
	interval       time.Duration
	attemptMaxAge  time.Duration
	stopCh         chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	challenges *repositories.LoginChallengeRepository,
	emergencyCodes *repositories.EmergencyCodeRepository,
	invitations *repositories.InvitationRepository,
	revokedTokens *repositories.TokenRevocationRepository,
	loginAttempts *repositories.LoginAttemptRepository,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		challenges:     challenges,
		emergencyCodes: emergencyCodes,
		invitations:    invitations,
		revokedTokens:  revokedTokens,
		loginAttempts:  loginAttempts,
		logger:         logger,
		interval:       interval,
		attemptMaxAge:  30 * 24 * time.Hour,
		stopCh:         make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// runCleanup sweeps each store in turn. A failure in one sweep does not
// block the others.
func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cm.sweep(cleanupCtx, "login_challenges", cm.challenges.CleanupExpired)
	cm.sweep(cleanupCtx, "emergency_codes", cm.emergencyCodes.CleanupExpired)
	cm.sweep(cleanupCtx, "invitations", cm.invitations.MarkExpired)
	cm.sweep(cleanupCtx, "revoked_tokens", cm.revokedTokens.CleanupExpiredTokens)
	cm.sweep(cleanupCtx, "login_attempts", func(ctx context.Context) (int64, error) {
		return cm.loginAttempts.CleanupOlderThan(ctx, time.Now().Add(-cm.attemptMaxAge))
	})
}

func (cm *CleanupManager) sweep(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	rows, err := fn(ctx)
	if err != nil {
		cm.logger.Error("cleanup sweep failed", slog.String("store", name), slog.Any("error", err))
		return
	}
	if rows > 0 {
		cm.logger.Info("cleanup sweep completed", slog.String("store", name), slog.Int64("rows", rows))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
