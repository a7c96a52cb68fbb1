package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/stationhub/identity/internal/auth"
	"github.com/stationhub/identity/internal/models"
	pkgauth "github.com/stationhub/identity/pkg/auth"
	pkglogger "github.com/stationhub/identity/pkg/logger"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Update(ctx context.Context, id string, user *models.User) (*models.User, error)
	SetTwoFactor(ctx context.Context, id string, enabled bool) error
	SetPhoneVerified(ctx context.Context, id, phone string) error
}

// ChallengeRepository defines the interface for login challenge persistence
type ChallengeRepository interface {
	Create(ctx context.Context, tokenHash, userID, emailHint string, remember bool, expiresAt time.Time) (*models.LoginChallenge, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.LoginChallenge, error)
	IncrementAttempts(ctx context.Context, id string) (int, error)
	Consume(ctx context.Context, id string) error
}

// EmergencyCodeRepository defines the interface for emergency code persistence
type EmergencyCodeRepository interface {
	Create(ctx context.Context, challengeID, userID, codeHash string, expiresAt time.Time) (*models.EmergencyCode, error)
	GetActiveByChallengeID(ctx context.Context, challengeID string) (*models.EmergencyCode, error)
	MarkUsed(ctx context.Context, id string) error
	DeleteByUserID(ctx context.Context, userID string) error
}

// TwoFactorRepository defines the interface for TOTP enrollment persistence
type TwoFactorRepository interface {
	Create(ctx context.Context, enrollment *models.TwoFactorEnrollment) error
	GetByID(ctx context.Context, id string) (*models.TwoFactorEnrollment, error)
	GetActiveByUserID(ctx context.Context, userID string) (*models.TwoFactorEnrollment, error)
	Activate(ctx context.Context, id string) error
	UpdateLastUsedAt(ctx context.Context, id string) error
	DeleteByUserID(ctx context.Context, userID string) error
}

// TokenRevocationRepository defines the interface for token revocation operations
type TokenRevocationRepository interface {
	RevokeToken(ctx context.Context, jti, userID, tokenType string, expiresAt time.Time, reason string) error
	RevokeAllUserTokens(ctx context.Context, userID, reason string) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// TokenManager abstracts JWT issuance and validation
type TokenManager interface {
	GenerateAccessToken(userID, email string) (string, error)
	GenerateRefreshToken(userID, email string) (string, error)
	GeneratePortalToken(userID, email string) (string, time.Time, error)
	ValidateToken(tokenString string) (*models.TokenClaims, error)
}

// Delayer normalizes response timing on credential checks
type Delayer interface {
	WaitFrom(startTime time.Time, success bool)
}

// EmergencyMailer sends the fallback second-factor code
type EmergencyMailer interface {
	SendEmergencyCode(ctx context.Context, email, code string, expiresAt time.Time) error
}

// RateLimiter guards the password step against brute force
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, email, ipAddress string) (bool, *time.Duration, error)
	RecordLoginAttempt(ctx context.Context, email, ipAddress string, success bool, failureReason *string) error
}

// AuthService handles the multi-step login flow: password exchange, the
// second-factor challenge, the emergency fallback, and session issuance.
type AuthService struct {
	users       UserRepository
	challenges  ChallengeRepository
	emergency   EmergencyCodeRepository
	twoFactor   TwoFactorRepository
	socialLinks SocialLinkRepository
	revokeRepo  TokenRevocationRepository
	tm          TokenManager
	totp        *auth.TOTPManager
	delay       Delayer
	mailer      EmergencyMailer
	limiter     RateLimiter
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger

	challengeExpiry     time.Duration
	maxCodeAttempts     int
	emergencyCodeExpiry time.Duration
}

// AuthServiceConfig carries the step-two tunables
type AuthServiceConfig struct {
	ChallengeExpiry     time.Duration
	MaxCodeAttempts     int
	EmergencyCodeExpiry time.Duration
}

// NewAuthService creates a new AuthService
func NewAuthService(
	users UserRepository,
	challenges ChallengeRepository,
	emergency EmergencyCodeRepository,
	twoFactor TwoFactorRepository,
	revokeRepo TokenRevocationRepository,
	tm TokenManager,
	totp *auth.TOTPManager,
	delay Delayer,
	mailer EmergencyMailer,
	limiter RateLimiter,
	cfg AuthServiceConfig,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	return &AuthService{
		users:               users,
		challenges:          challenges,
		emergency:           emergency,
		twoFactor:           twoFactor,
		revokeRepo:          revokeRepo,
		tm:                  tm,
		totp:                totp,
		delay:               delay,
		mailer:              mailer,
		limiter:             limiter,
		logger:              logger,
		auditLogger:         auditLogger,
		challengeExpiry:     cfg.ChallengeExpiry,
		maxCodeAttempts:     cfg.MaxCodeAttempts,
		emergencyCodeExpiry: cfg.EmergencyCodeExpiry,
	}
}

// SetSocialLinkRepo enables the social-link set in session user snapshots.
// Without it snapshots carry an empty set.
func (s *AuthService) SetSocialLinkRepo(links SocialLinkRepository) {
	s.socialLinks = links
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID               string   `json:"id"`
	Email            string   `json:"email"`
	Name             string   `json:"name"`
	Phone            string   `json:"phone,omitempty"`
	PhoneVerified    bool     `json:"phone_verified"`
	TwoFactorEnabled bool     `json:"two_factor_enabled"`
	SocialLinks      []string `json:"social_links"`
	Role             string   `json:"role"`
	UserType         string   `json:"user_type"`
	CreatedAt        string   `json:"created_at"`
	UpdatedAt        string   `json:"updated_at"`
}

// SessionResponse represents a completed login
type SessionResponse struct {
	AccessToken          string        `json:"access_token"`
	RefreshToken         string        `json:"refresh_token"`
	PortalToken          string        `json:"portal_token,omitempty"`
	PortalTokenExpiresAt *time.Time    `json:"portal_token_expires_at,omitempty"`
	User                 *UserResponse `json:"user"`
}

// ChallengeResponse represents a login paused at the second-factor step
type ChallengeResponse struct {
	ChallengeToken string    `json:"challenge_token"`
	EmailHint      string    `json:"email_hint"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// LoginResult is either a finished session or a pending challenge,
// never both.
type LoginResult struct {
	Session   *SessionResponse   `json:"session,omitempty"`
	Challenge *ChallengeResponse `json:"challenge,omitempty"`
}

// Login exchanges email and password for either a full session or, when the
// account has a second factor enrolled, a short-lived login challenge.
func (s *AuthService) Login(ctx context.Context, email, password, ipAddress string, remember bool) (*LoginResult, error) {
	start := time.Now()

	if email = strings.ToLower(strings.TrimSpace(email)); email == "" {
		s.logger.Warn("login attempt with empty email")
		return nil, models.ErrInvalidCredentials
	}

	if s.limiter != nil {
		allowed, lockout, err := s.limiter.CheckRateLimit(ctx, email, ipAddress)
		if err != nil {
			s.logger.Error("rate limit check failed", slog.Any("error", err))
		} else if !allowed {
			s.logger.Warn("login blocked by rate limit", slog.String("email", pkglogger.SanitizedEmail(email)))
			if lockout != nil {
				return nil, fmt.Errorf("%w: retry after %s", models.ErrAccountLocked, lockout.Round(time.Second))
			}
			return nil, models.ErrAccountLocked
		}
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.recordAttempt(ctx, email, ipAddress, false, "invalid_credentials")
			s.delay.WaitFrom(start, false)
			return nil, models.ErrInvalidCredentials
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := validateAccountState(user); err != nil {
		s.logger.Info("login blocked due to account state",
			slog.String("user_id", user.ID),
			slog.String("status", user.Status))
		s.recordAttempt(ctx, email, ipAddress, false, "account_blocked")
		return nil, err
	}

	if !user.HasPassword() {
		// Social-only account. The password form cannot sign it in.
		s.recordAttempt(ctx, email, ipAddress, false, "no_password")
		s.delay.WaitFrom(start, false)
		return nil, models.ErrInvalidCredentials
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		s.recordAttempt(ctx, email, ipAddress, false, "invalid_credentials")
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			FailureReason: "invalid_credentials",
			Success:       false,
		})
		s.delay.WaitFrom(start, false)
		return nil, models.ErrInvalidCredentials
	}

	s.recordAttempt(ctx, email, ipAddress, true, "")

	if !user.TwoFactorEnabled {
		session, err := s.IssueSession(ctx, user, true)
		if err != nil {
			return nil, err
		}
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType: "login_success",
			UserID:    user.ID,
			Success:   true,
		})
		s.delay.WaitFrom(start, true)
		return &LoginResult{Session: session}, nil
	}

	// Second factor enrolled: hand back a challenge instead of a session.
	challenge, token, err := s.createChallenge(ctx, user, remember)
	if err != nil {
		return nil, err
	}

	s.logger.Info("login challenge issued", slog.String("user_id", user.ID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_second_factor_pending",
		UserID:    user.ID,
		Success:   true,
	})
	s.delay.WaitFrom(start, true)

	return &LoginResult{Challenge: &ChallengeResponse{
		ChallengeToken: token,
		EmailHint:      challenge.EmailHint,
		ExpiresAt:      challenge.ExpiresAt,
	}}, nil
}

// VerifyTwoFactor completes a challenged login with an authenticator code.
// A wrong code leaves the challenge open until the attempt budget runs out;
// a correct one consumes it exactly once.
func (s *AuthService) VerifyTwoFactor(ctx context.Context, challengeToken, code string) (*SessionResponse, error) {
	challenge, user, err := s.resolveChallenge(ctx, challengeToken)
	if err != nil {
		return nil, err
	}

	enrollment, err := s.twoFactor.GetActiveByUserID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Enrollment vanished mid-login (e.g. disabled from another
			// session). The challenge is no longer satisfiable.
			s.consumeQuietly(ctx, challenge.ID)
			return nil, models.ErrChallengeInvalid
		}
		s.logger.Error("failed to load enrollment", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	secret, err := s.totp.DecryptSecret(enrollment.SecretEncrypted, enrollment.SecretNonce)
	if err != nil {
		s.logger.Error("failed to decrypt TOTP secret", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	valid, err := s.totp.ValidateTOTP(secret, code, enrollment.LastUsedAt)
	if err != nil {
		s.logger.Error("TOTP validation error", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if !valid {
		return nil, s.failAttempt(ctx, challenge, user, "invalid_totp")
	}

	if err := s.challenges.Consume(ctx, challenge.ID); err != nil {
		if errors.Is(err, models.ErrChallengeInvalid) {
			return nil, models.ErrChallengeInvalid
		}
		s.logger.Error("failed to consume challenge", slog.String("challenge_id", challenge.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.twoFactor.UpdateLastUsedAt(ctx, enrollment.ID); err != nil {
		s.logger.Warn("failed to update enrollment last_used_at", slog.Any("error", err))
	}

	session, err := s.IssueSession(ctx, user, true)
	if err != nil {
		return nil, err
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID,
		Success:   true,
	})
	return session, nil
}

// RequestEmergencyCode emails a single-use fallback code for an open
// challenge. The authenticator code stays valid alongside it.
func (s *AuthService) RequestEmergencyCode(ctx context.Context, challengeToken string) error {
	challenge, user, err := s.resolveChallenge(ctx, challengeToken)
	if err != nil {
		return err
	}

	code, err := auth.GenerateEmergencyCode()
	if err != nil {
		s.logger.Error("failed to generate emergency code", slog.Any("error", err))
		return models.ErrInternalServer
	}

	codeHash, err := pkgauth.HashPassword(code)
	if err != nil {
		s.logger.Error("failed to hash emergency code", slog.Any("error", err))
		return models.ErrInternalServer
	}

	expiresAt := time.Now().Add(s.emergencyCodeExpiry)
	if _, err := s.emergency.Create(ctx, challenge.ID, user.ID, codeHash, expiresAt); err != nil {
		s.logger.Error("failed to store emergency code", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.mailer.SendEmergencyCode(ctx, user.Email, code, expiresAt); err != nil {
		s.logger.Error("failed to send emergency code email",
			slog.String("user_id", user.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("emergency code sent", slog.String("user_id", user.ID))
	s.auditLogger.LogAccountAction("emergency_code_requested", user.ID, "", nil)
	return nil
}

// VerifyEmergencyCode completes a challenged login with an emailed code.
func (s *AuthService) VerifyEmergencyCode(ctx context.Context, challengeToken, code string) (*SessionResponse, error) {
	challenge, user, err := s.resolveChallenge(ctx, challengeToken)
	if err != nil {
		return nil, err
	}

	entry, err := s.emergency.GetActiveByChallengeID(ctx, challenge.ID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, s.failAttempt(ctx, challenge, user, "no_emergency_code")
		}
		s.logger.Error("failed to load emergency code", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	normalized := strings.ToUpper(strings.TrimSpace(code))
	if err := pkgauth.ComparePassword(entry.CodeHash, normalized); err != nil {
		return nil, s.failAttempt(ctx, challenge, user, "invalid_emergency_code")
	}

	if err := s.emergency.MarkUsed(ctx, entry.ID); err != nil {
		if errors.Is(err, models.ErrInvalidCode) {
			return nil, s.failAttempt(ctx, challenge, user, "emergency_code_reused")
		}
		s.logger.Error("failed to mark emergency code used", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.challenges.Consume(ctx, challenge.ID); err != nil {
		if errors.Is(err, models.ErrChallengeInvalid) {
			return nil, models.ErrChallengeInvalid
		}
		s.logger.Error("failed to consume challenge", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	session, err := s.IssueSession(ctx, user, true)
	if err != nil {
		return nil, err
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success_emergency",
		UserID:    user.ID,
		Success:   true,
	})
	return session, nil
}

// DisableTwoFactorDuringLogin is the escape hatch on the code screen: the
// user re-proves the password, 2FA is switched off, and a session is issued
// in one step. The downgrade is always audit logged.
func (s *AuthService) DisableTwoFactorDuringLogin(ctx context.Context, challengeToken, password, ipAddress string) (*SessionResponse, error) {
	challenge, user, err := s.resolveChallenge(ctx, challengeToken)
	if err != nil {
		return nil, err
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, s.failAttempt(ctx, challenge, user, "invalid_password_on_disable")
	}

	if err := s.challenges.Consume(ctx, challenge.ID); err != nil {
		if errors.Is(err, models.ErrChallengeInvalid) {
			return nil, models.ErrChallengeInvalid
		}
		s.logger.Error("failed to consume challenge", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.users.SetTwoFactor(ctx, user.ID, false); err != nil {
		s.logger.Error("failed to disable two-factor", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if err := s.twoFactor.DeleteByUserID(ctx, user.ID); err != nil {
		s.logger.Warn("failed to delete enrollments", slog.String("user_id", user.ID), slog.Any("error", err))
	}
	if err := s.emergency.DeleteByUserID(ctx, user.ID); err != nil {
		s.logger.Warn("failed to delete emergency codes", slog.String("user_id", user.ID), slog.Any("error", err))
	}

	user.TwoFactorEnabled = false
	s.auditLogger.LogSecurityDowngrade("two_factor_disabled_during_login", user.ID, ipAddress, nil)

	session, err := s.IssueSession(ctx, user, true)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// CancelChallenge abandons a pending login. The challenge is consumed so the
// token cannot be replayed from browser history.
func (s *AuthService) CancelChallenge(ctx context.Context, challengeToken string) error {
	challenge, _, err := s.resolveChallenge(ctx, challengeToken)
	if err != nil {
		if errors.Is(err, models.ErrChallengeInvalid) {
			// Cancelling an already-dead challenge is a no-op.
			return nil
		}
		return err
	}

	if err := s.challenges.Consume(ctx, challenge.ID); err != nil && !errors.Is(err, models.ErrChallengeInvalid) {
		s.logger.Error("failed to cancel challenge", slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("login challenge cancelled", slog.String("user_id", challenge.UserID))
	return nil
}

// RefreshToken rotates the access and refresh pair. Portal tokens are never
// refreshed; their expiry is fixed at login.
func (s *AuthService) RefreshToken(ctx context.Context, refreshTokenString string) (*SessionResponse, error) {
	if refreshTokenString = strings.TrimSpace(refreshTokenString); refreshTokenString == "" {
		return nil, models.ErrUnauthorized
	}

	claims, err := s.tm.ValidateToken(refreshTokenString)
	if err != nil {
		s.logger.Info("refresh token validation failed", slog.Any("error", err))
		return nil, models.ErrUnauthorized
	}

	if claims.Type != auth.TokenTypeRefresh {
		s.logger.Warn("refresh attempt with non-refresh token", slog.String("user_id", claims.UserID))
		return nil, models.ErrUnauthorized
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user for token refresh", slog.String("user_id", claims.UserID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := validateAccountState(user); err != nil {
		return nil, models.ErrUnauthorized
	}

	// Invalidate tokens issued before the last password change
	if user.PasswordChangedAt != nil && claims.IssuedAt != nil {
		if claims.IssuedAt.Time.Before(*user.PasswordChangedAt) {
			s.logger.Info("token refresh blocked: issued before password change",
				slog.String("user_id", user.ID))
			return nil, models.ErrUnauthorized
		}
	}

	accessToken, err := s.tm.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	newRefreshToken, err := s.tm.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		s.logger.Error("failed to generate refresh token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("token refreshed", slog.String("user_id", user.ID))

	return &SessionResponse{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		User:         s.userSnapshot(ctx, user),
	}, nil
}

// Logout revokes the current access token
func (s *AuthService) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.tm.ValidateToken(accessToken)
	if err != nil {
		return models.ErrUnauthorized
	}

	expiresAt := claims.ExpiresAt.Time
	err = s.revokeRepo.RevokeToken(ctx, claims.ID, claims.UserID, claims.Type, expiresAt, "logout")
	if err != nil {
		s.logger.Error("failed to revoke token", slog.String("jti", claims.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("user logged out", slog.String("user_id", claims.UserID))
	return nil
}

// LogoutAll revokes all tokens for the current user
func (s *AuthService) LogoutAll(ctx context.Context, userID string) error {
	err := s.revokeRepo.RevokeAllUserTokens(ctx, userID, "logout_all")
	if err != nil {
		s.logger.Error("failed to revoke all user tokens", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	// Rotate the TokenKey so outstanding tokens stop validating even before
	// the revocation list is consulted
	newTokenKey, err := pkgauth.GenerateTokenKey()
	if err != nil {
		s.logger.Error("failed to generate new token key", slog.Any("error", err))
		return models.ErrInternalServer
	}

	user := &models.User{ID: userID, TokenKey: newTokenKey}
	if _, err = s.users.Update(ctx, userID, user); err != nil {
		s.logger.Error("failed to update token key", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("user logged out from all devices", slog.String("user_id", userID))
	return nil
}

// createChallenge mints the opaque step-two token. Only its SHA-256 hash is
// stored; the plain value travels to the client once.
func (s *AuthService) createChallenge(ctx context.Context, user *models.User, remember bool) (*models.LoginChallenge, string, error) {
	token, err := pkgauth.GenerateOpaqueToken()
	if err != nil {
		s.logger.Error("failed to generate challenge token", slog.Any("error", err))
		return nil, "", models.ErrInternalServer
	}

	challenge, err := s.challenges.Create(ctx,
		hashToken(token), user.ID, pkglogger.EmailHint(user.Email), remember,
		time.Now().Add(s.challengeExpiry))
	if err != nil {
		s.logger.Error("failed to create login challenge", slog.Any("error", err))
		return nil, "", models.ErrInternalServer
	}

	return challenge, token, nil
}

// resolveChallenge maps a plain challenge token back to an open challenge
// and its user. Everything unusable collapses into ErrChallengeInvalid so
// callers leak nothing about which check failed.
func (s *AuthService) resolveChallenge(ctx context.Context, challengeToken string) (*models.LoginChallenge, *models.User, error) {
	if challengeToken = strings.TrimSpace(challengeToken); challengeToken == "" {
		return nil, nil, models.ErrChallengeInvalid
	}

	challenge, err := s.challenges.GetByTokenHash(ctx, hashToken(challengeToken))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil, models.ErrChallengeInvalid
		}
		s.logger.Error("failed to load challenge", slog.Any("error", err))
		return nil, nil, models.ErrInternalServer
	}

	if !challenge.Usable(time.Now(), s.maxCodeAttempts) {
		return nil, nil, models.ErrChallengeInvalid
	}

	user, err := s.users.GetByID(ctx, challenge.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil, models.ErrChallengeInvalid
		}
		s.logger.Error("failed to load challenge user", slog.Any("error", err))
		return nil, nil, models.ErrInternalServer
	}

	if err := validateAccountState(user); err != nil {
		return nil, nil, err
	}

	return challenge, user, nil
}

// failAttempt charges one step-two attempt against the challenge. Exhausting
// the budget consumes it; before that the caller may retry.
func (s *AuthService) failAttempt(ctx context.Context, challenge *models.LoginChallenge, user *models.User, reason string) error {
	attempts, err := s.challenges.IncrementAttempts(ctx, challenge.ID)
	if err != nil {
		s.logger.Error("failed to increment challenge attempts", slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "second_factor_failed",
		UserID:        user.ID,
		FailureReason: reason,
		Success:       false,
	})

	if attempts >= s.maxCodeAttempts {
		s.consumeQuietly(ctx, challenge.ID)
		s.logger.Warn("challenge attempt budget exhausted", slog.String("user_id", user.ID))
		return models.ErrCodeAttemptsExhausted
	}

	return models.ErrInvalidCode
}

func (s *AuthService) consumeQuietly(ctx context.Context, challengeID string) {
	if err := s.challenges.Consume(ctx, challengeID); err != nil && !errors.Is(err, models.ErrChallengeInvalid) {
		s.logger.Error("failed to consume challenge", slog.String("challenge_id", challengeID), slog.Any("error", err))
	}
}

// IssueSession builds the token set for a completed login. The portal token
// rides along so the client can federate into satellite applications.
func (s *AuthService) IssueSession(ctx context.Context, user *models.User, withPortal bool) (*SessionResponse, error) {
	accessToken, err := s.tm.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	refreshToken, err := s.tm.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		s.logger.Error("failed to generate refresh token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	session := &SessionResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         s.userSnapshot(ctx, user),
	}

	if withPortal {
		portalToken, portalExpiry, err := s.tm.GeneratePortalToken(user.ID, user.Email)
		if err != nil {
			s.logger.Error("failed to generate portal token", slog.String("user_id", user.ID), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		session.PortalToken = portalToken
		session.PortalTokenExpiresAt = &portalExpiry
	}

	return session, nil
}

func (s *AuthService) recordAttempt(ctx context.Context, email, ipAddress string, success bool, reason string) {
	if s.limiter == nil {
		return
	}
	var failureReason *string
	if reason != "" {
		failureReason = &reason
	}
	if err := s.limiter.RecordLoginAttempt(ctx, email, ipAddress, success, failureReason); err != nil {
		s.logger.Error("failed to record login attempt", slog.Any("error", err))
	}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// validateAccountState checks if user account is in valid state for authentication
func validateAccountState(user *models.User) error {
	switch user.Status {
	case "disabled":
		return models.ErrAccountDisabled
	case "suspended":
		return models.ErrAccountSuspended
	case "active":
	default:
		return fmt.Errorf("unknown account status: %s", user.Status)
	}

	if user.LockedUntil != nil && time.Now().Before(*user.LockedUntil) {
		return models.ErrAccountLocked
	}

	return nil
}

// userModelToResponse converts a user model to response DTO
func userModelToResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:               user.ID,
		Email:            user.Email,
		Name:             user.Name,
		Phone:            user.Phone,
		PhoneVerified:    user.PhoneVerified,
		TwoFactorEnabled: user.TwoFactorEnabled,
		SocialLinks:      []string{},
		Role:             user.Role,
		UserType:         user.UserType,
		CreatedAt:        user.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        user.UpdatedAt.Format(time.RFC3339),
	}
}

// userSnapshot builds the server-truth user view embedded in sessions,
// including the linked provider set. A link lookup failure degrades to an
// empty set rather than failing the login.
func (s *AuthService) userSnapshot(ctx context.Context, user *models.User) *UserResponse {
	resp := userModelToResponse(user)
	if s.socialLinks == nil {
		return resp
	}

	links, err := s.socialLinks.GetByUserID(ctx, user.ID)
	if err != nil {
		s.logger.Error("failed to load social links for snapshot",
			slog.String("user_id", user.ID), slog.Any("error", err))
		return resp
	}
	for _, link := range links {
		resp.SocialLinks = append(resp.SocialLinks, link.Provider)
	}
	return resp
}
