package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stationhub/identity/internal/models"
	pkglogger "github.com/stationhub/identity/pkg/logger"
)

// SocialLinkRepository defines the interface for provider link persistence
type SocialLinkRepository interface {
	Create(ctx context.Context, link *models.SocialLink) (*models.SocialLink, error)
	GetByUserID(ctx context.Context, userID string) ([]*models.SocialLink, error)
	GetByProviderIdentity(ctx context.Context, provider, providerUserID string) (*models.SocialLink, error)
	CountByUserID(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, userID, provider string) error
}

// ProviderIdentity is what a provider hands back after a successful
// authorization exchange.
type ProviderIdentity struct {
	ProviderUserID string
	Email          string
}

// SocialProviderGateway exchanges an authorization code with the external
// provider. Implementations map the provider's cancellation and denial
// discriminators to ErrProviderCancelled and ErrProviderDenied before
// returning.
type SocialProviderGateway interface {
	Exchange(ctx context.Context, provider, code string) (*ProviderIdentity, error)
}

// SessionIssuer mints a full token set for a user who has already proven
// their identity. Implemented by AuthService.
type SessionIssuer interface {
	IssueSession(ctx context.Context, user *models.User, withPortal bool) (*SessionResponse, error)
}

// SocialService manages external provider links: linking from the settings
// page, unlinking with the sole-method guard, and login by provider.
type SocialService struct {
	users            UserRepository
	links            SocialLinkRepository
	gateway          SocialProviderGateway
	sessions         SessionIssuer
	authorizeURLBase string
	logger           *slog.Logger
	auditLogger      *pkglogger.AuditLogger
}

// NewSocialService creates a new SocialService
func NewSocialService(
	users UserRepository,
	links SocialLinkRepository,
	gateway SocialProviderGateway,
	sessions SessionIssuer,
	authorizeURLBase string,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *SocialService {
	return &SocialService{
		users:            users,
		links:            links,
		gateway:          gateway,
		sessions:         sessions,
		authorizeURLBase: authorizeURLBase,
		logger:           logger,
		auditLogger:      auditLogger,
	}
}

// SocialLinkResponse represents one linked provider in the HTTP response
type SocialLinkResponse struct {
	Provider      string `json:"provider"`
	ProviderEmail string `json:"provider_email,omitempty"`
	LinkedAt      string `json:"linked_at"`
}

// AuthorizeURL builds the consent URL the client opens for a provider.
func (s *SocialService) AuthorizeURL(provider, state string) (string, error) {
	if !models.KnownProvider(provider) {
		return "", models.ErrBadRequest
	}
	return fmt.Sprintf("%s/%s/authorize?state=%s", s.authorizeURLBase, provider, state), nil
}

// MapCallbackError converts the error parameter of a provider redirect into
// the corresponding sentinel. Cancellation is a user decision; callers treat
// it as a quiet return to the previous screen.
func MapCallbackError(errParam string) error {
	switch strings.ToLower(strings.TrimSpace(errParam)) {
	case "":
		return nil
	case "access_denied", "consent_denied":
		return models.ErrProviderDenied
	case "cancelled", "canceled", "user_cancelled":
		return models.ErrProviderCancelled
	}
	return models.ErrProviderDenied
}

// CompleteLink finishes a link flow for a signed-in user. Linking the same
// identity twice is idempotent; an identity owned by another account is
// rejected.
func (s *SocialService) CompleteLink(ctx context.Context, userID, provider, code, errParam string) (*SocialLinkResponse, error) {
	if !models.KnownProvider(provider) {
		return nil, models.ErrBadRequest
	}
	if err := MapCallbackError(errParam); err != nil {
		if errors.Is(err, models.ErrProviderCancelled) {
			s.logger.Info("provider link cancelled", slog.String("user_id", userID), slog.String("provider", provider))
		}
		return nil, err
	}

	identity, err := s.gateway.Exchange(ctx, provider, code)
	if err != nil {
		if errors.Is(err, models.ErrProviderCancelled) || errors.Is(err, models.ErrProviderDenied) {
			return nil, err
		}
		s.logger.Error("provider exchange failed", slog.String("provider", provider), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	existing, err := s.links.GetByProviderIdentity(ctx, provider, identity.ProviderUserID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to look up provider identity", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if existing != nil {
		if existing.UserID == userID {
			return linkModelToResponse(existing), nil
		}
		s.logger.Info("provider identity already linked elsewhere",
			slog.String("provider", provider), slog.String("user_id", userID))
		return nil, models.ErrAlreadyLinked
	}

	link, err := s.links.Create(ctx, &models.SocialLink{
		UserID:         userID,
		Provider:       provider,
		ProviderUserID: identity.ProviderUserID,
		ProviderEmail:  identity.Email,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrAlreadyLinked
		}
		s.logger.Error("failed to create social link", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("provider linked", slog.String("user_id", userID), slog.String("provider", provider))
	s.auditLogger.LogAccountAction("social_linked", userID, "", map[string]string{"provider": provider})

	return linkModelToResponse(link), nil
}

// Unlink removes a provider link. An account whose only way in is that
// provider keeps it; unlinking would lock the user out.
func (s *SocialService) Unlink(ctx context.Context, userID, provider, ipAddress string) error {
	if !models.KnownProvider(provider) {
		return models.ErrBadRequest
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if !user.HasPassword() {
		count, err := s.links.CountByUserID(ctx, userID)
		if err != nil {
			s.logger.Error("failed to count social links", slog.Any("error", err))
			return models.ErrInternalServer
		}
		if count <= 1 {
			return models.ErrSoleAuthMethod
		}
	}

	if err := s.links.Delete(ctx, userID, provider); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to delete social link", slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogSecurityDowngrade("social_unlinked", userID, ipAddress, map[string]string{"provider": provider})
	return nil
}

// ListLinks returns the user's linked providers.
func (s *SocialService) ListLinks(ctx context.Context, userID string) ([]*SocialLinkResponse, error) {
	links, err := s.links.GetByUserID(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list social links", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	out := make([]*SocialLinkResponse, 0, len(links))
	for _, link := range links {
		out = append(out, linkModelToResponse(link))
	}
	return out, nil
}

// LoginWithProvider signs in an existing user by provider identity. Unknown
// identities are rejected rather than auto-provisioned; account creation
// goes through invitations.
func (s *SocialService) LoginWithProvider(ctx context.Context, provider, code, errParam string) (*SessionResponse, error) {
	if !models.KnownProvider(provider) {
		return nil, models.ErrBadRequest
	}
	if err := MapCallbackError(errParam); err != nil {
		return nil, err
	}

	identity, err := s.gateway.Exchange(ctx, provider, code)
	if err != nil {
		if errors.Is(err, models.ErrProviderCancelled) || errors.Is(err, models.ErrProviderDenied) {
			return nil, err
		}
		s.logger.Error("provider exchange failed", slog.String("provider", provider), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	link, err := s.links.GetByProviderIdentity(ctx, provider, identity.ProviderUserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		s.logger.Error("failed to look up provider identity", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user, err := s.users.GetByID(ctx, link.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		s.logger.Error("failed to get linked user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := validateAccountState(user); err != nil {
		return nil, err
	}

	session, err := s.sessions.IssueSession(ctx, user, true)
	if err != nil {
		return nil, err
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success_social",
		UserID:    user.ID,
		Success:   true,
	})
	return session, nil
}

func linkModelToResponse(link *models.SocialLink) *SocialLinkResponse {
	return &SocialLinkResponse{
		Provider:      link.Provider,
		ProviderEmail: link.ProviderEmail,
		LinkedAt:      link.LinkedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
