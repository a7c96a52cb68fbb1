package services

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/stationhub/identity/internal/models"
	pkglogger "github.com/stationhub/identity/pkg/logger"
)

// PortalAccountRepository defines the interface for satellite account records
type PortalAccountRepository interface {
	Upsert(ctx context.Context, userID, appID string) error
	ListByUserID(ctx context.Context, userID string) ([]*models.PortalAccount, error)
	Get(ctx context.Context, userID, appID string) (*models.PortalAccount, error)
}

// PortalTokenValidator checks a portal token specifically
type PortalTokenValidator interface {
	ValidatePortalToken(tokenString string) (*models.TokenClaims, error)
}

// PortalService is the server side of cross-application federation: a
// satellite presents the portal token it received through the redirect
// parameter and gets back a local session plus an account sync record.
type PortalService struct {
	users       UserRepository
	accounts    PortalAccountRepository
	validator   PortalTokenValidator
	sessions    SessionIssuer
	loginURL    string
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewPortalService creates a new PortalService
func NewPortalService(
	users UserRepository,
	accounts PortalAccountRepository,
	validator PortalTokenValidator,
	sessions SessionIssuer,
	loginURL string,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *PortalService {
	return &PortalService{
		users:       users,
		accounts:    accounts,
		validator:   validator,
		sessions:    sessions,
		loginURL:    loginURL,
		logger:      logger,
		auditLogger: auditLogger,
		inFlight:    make(map[string]struct{}),
	}
}

// PortalAccountResponse represents one satellite account in the HTTP response
type PortalAccountResponse struct {
	AppID        string `json:"app_id"`
	LastSyncedAt string `json:"last_synced_at"`
}

// Exchange trades a valid portal token for a session scoped to the calling
// satellite. An expired or malformed token is simply unauthorized; the
// client falls back to the login redirect.
func (s *PortalService) Exchange(ctx context.Context, portalToken, appID string) (*SessionResponse, error) {
	if appID == "" {
		return nil, models.ErrBadRequest
	}

	claims, err := s.validator.ValidatePortalToken(portalToken)
	if err != nil {
		s.logger.Info("portal token rejected", slog.String("app_id", appID))
		return nil, models.ErrUnauthorized
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user for portal exchange", slog.String("user_id", claims.UserID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := validateAccountState(user); err != nil {
		return nil, models.ErrUnauthorized
	}

	// Portal tokens keep their original expiry; the satellite session gets
	// its own access/refresh pair but no new portal token.
	session, err := s.sessions.IssueSession(ctx, user, false)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.Upsert(ctx, user.ID, appID); err != nil {
		// Sync is best effort. The login itself succeeded.
		s.logger.Warn("portal account sync failed",
			slog.String("user_id", user.ID), slog.String("app_id", appID), slog.Any("error", err))
	}

	s.logger.Info("portal token exchanged",
		slog.String("user_id", user.ID), slog.String("app_id", appID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "portal_exchange",
		UserID:    user.ID,
		Success:   true,
		Metadata:  map[string]string{"app_id": appID},
	})

	return session, nil
}

// Sync reconciles a satellite's account record for a signed-in user. Only
// one sync per user and app may be in flight; a concurrent duplicate gets
// ErrDuplicateRequest and the caller is expected to drop it.
func (s *PortalService) Sync(ctx context.Context, userID, appID string) error {
	if appID == "" {
		return models.ErrBadRequest
	}

	key := userID + "/" + appID
	s.mu.Lock()
	if _, busy := s.inFlight[key]; busy {
		s.mu.Unlock()
		return models.ErrDuplicateRequest
	}
	s.inFlight[key] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.inFlight, key)
		s.mu.Unlock()
	}()

	if err := s.accounts.Upsert(ctx, userID, appID); err != nil {
		s.logger.Error("portal account sync failed",
			slog.String("user_id", userID), slog.String("app_id", appID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	return nil
}

// ListAccounts returns the satellites this user has federated into.
func (s *PortalService) ListAccounts(ctx context.Context, userID string) ([]*PortalAccountResponse, error) {
	accounts, err := s.accounts.ListByUserID(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list portal accounts", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	out := make([]*PortalAccountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, &PortalAccountResponse{
			AppID:        a.AppID,
			LastSyncedAt: a.LastSyncedAt.Format(time.RFC3339),
		})
	}
	return out, nil
}

// LoginRedirectURL builds the portal login URL a satellite bounces to when
// no portal token is present, carrying the return address.
func (s *PortalService) LoginRedirectURL(returnTo string) string {
	u, err := url.Parse(s.loginURL)
	if err != nil {
		return s.loginURL
	}
	q := u.Query()
	if returnTo != "" {
		q.Set("redirect", returnTo)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
