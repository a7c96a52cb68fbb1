package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/singleflight"

	"github.com/stationhub/identity/internal/models"
	pkgauth "github.com/stationhub/identity/pkg/auth"
	pkglogger "github.com/stationhub/identity/pkg/logger"
)

// InvitationRepository defines the interface for invitation persistence
type InvitationRepository interface {
	Create(ctx context.Context, inv *models.Invitation) (*models.Invitation, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.Invitation, error)
	AcceptTx(ctx context.Context, tx pgx.Tx, id, acceptedUserID string) error
	Cancel(ctx context.Context, id string) error
}

// TxUserCreator creates a user inside an open transaction
type TxUserCreator interface {
	CreateTx(ctx context.Context, tx pgx.Tx, user *models.User) (*models.User, error)
}

// TxRunner runs a function inside a database transaction
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error
}

// InvitationMailer delivers the invitation link
type InvitationMailer interface {
	SendInvitation(ctx context.Context, email, token, adminMessage string, expiresAt time.Time) error
}

// InvitationService issues and redeems single-use account invitations. The
// token is opaque; only its hash is stored, and acceptance creates the user
// and consumes the invitation in one transaction.
type InvitationService struct {
	invitations InvitationRepository
	userCreator TxUserCreator
	users       UserRepository
	tx          TxRunner
	mailer      InvitationMailer
	expiry      time.Duration
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger

	// Collapses concurrent verifications of the same token. StrictMode
	// clients mount twice and fire the lookup twice; the second caller
	// shares the first result instead of racing it.
	verifyGroup singleflight.Group
}

// NewInvitationService creates a new InvitationService
func NewInvitationService(
	invitations InvitationRepository,
	userCreator TxUserCreator,
	users UserRepository,
	tx TxRunner,
	mailer InvitationMailer,
	expiry time.Duration,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *InvitationService {
	return &InvitationService{
		invitations: invitations,
		userCreator: userCreator,
		users:       users,
		tx:          tx,
		mailer:      mailer,
		expiry:      expiry,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// InvitationResponse represents an invitation in the HTTP response
type InvitationResponse struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	UserType     string `json:"user_type"`
	AdminMessage string `json:"admin_message,omitempty"`
	Status       string `json:"status"`
	ExpiresAt    string `json:"expires_at"`
}

// Create issues an invitation and emails the plain token to the invitee.
func (s *InvitationService) Create(ctx context.Context, inviterID, email, role, userType, adminMessage string) (*InvitationResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, models.ErrBadRequest
	}
	if role != models.RoleUser && role != models.RoleAdmin {
		return nil, models.ErrBadRequest
	}
	if userType != models.UserTypeCustomer && userType != models.UserTypeBusiness {
		return nil, models.ErrBadRequest
	}

	// An existing account under this email makes the invitation pointless
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, models.ErrConflict
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check existing user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	token, err := pkgauth.GenerateOpaqueToken()
	if err != nil {
		s.logger.Error("failed to generate invitation token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	inv, err := s.invitations.Create(ctx, &models.Invitation{
		TokenHash:    hashToken(token),
		Email:        email,
		Role:         role,
		UserType:     userType,
		AdminMessage: strings.TrimSpace(adminMessage),
		InviterID:    inviterID,
		ExpiresAt:    time.Now().Add(s.expiry),
	})
	if err != nil {
		s.logger.Error("failed to create invitation", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.mailer.SendInvitation(ctx, email, token, inv.AdminMessage, inv.ExpiresAt); err != nil {
		s.logger.Error("failed to send invitation email", slog.String("invitation_id", inv.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("invitation created",
		slog.String("invitation_id", inv.ID),
		slog.String("inviter_id", inviterID))
	s.auditLogger.LogAccountAction("invitation_created", "", inviterID,
		map[string]string{"invitation_id": inv.ID, "role": role})

	return invitationModelToResponse(inv), nil
}

// Verify resolves a plain token to its invitation details for the acceptance
// page. Concurrent calls for the same token share one lookup.
func (s *InvitationService) Verify(ctx context.Context, token string) (*InvitationResponse, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, models.ErrTokenInvalid
	}

	v, err, _ := s.verifyGroup.Do(hashToken(token), func() (interface{}, error) {
		return s.verify(ctx, token)
	})
	if err != nil {
		return nil, err
	}
	return v.(*InvitationResponse), nil
}

func (s *InvitationService) verify(ctx context.Context, token string) (*InvitationResponse, error) {
	inv, err := s.invitations.GetByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrTokenInvalid
		}
		s.logger.Error("failed to load invitation", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	switch {
	case inv.Status == models.InvitationAccepted:
		return nil, models.ErrTokenConsumed
	case !inv.Acceptable(time.Now()):
		return nil, models.ErrTokenInvalid
	}

	return invitationModelToResponse(inv), nil
}

// AcceptInvitationParams carries the new-account details supplied on the
// acceptance page.
type AcceptInvitationParams struct {
	Name             string
	Password         string
	Phone            string
	TermsAccepted    bool
	MarketingConsent bool
}

// Accept redeems the invitation: the user row and the accepted status commit
// together or not at all.
func (s *InvitationService) Accept(ctx context.Context, token string, params AcceptInvitationParams) (*UserResponse, error) {
	inv, err := s.invitations.GetByTokenHash(ctx, hashToken(strings.TrimSpace(token)))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrTokenInvalid
		}
		s.logger.Error("failed to load invitation", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if inv.Status == models.InvitationAccepted {
		return nil, models.ErrTokenConsumed
	}
	if !inv.Acceptable(time.Now()) {
		return nil, models.ErrTokenInvalid
	}

	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, models.ErrBadRequest
	}
	// Consent is a hard precondition, not a preference
	if !params.TermsAccepted {
		return nil, models.ErrBadRequest
	}
	if err := pkgauth.ValidatePassword(params.Password); err != nil {
		return nil, err
	}

	passwordHash, err := pkgauth.HashPassword(params.Password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := time.Now()
	var created *models.User
	err = s.tx.WithTransaction(ctx, func(tx pgx.Tx) error {
		user, err := s.userCreator.CreateTx(ctx, tx, &models.User{
			Email:             inv.Email,
			PasswordHash:      passwordHash,
			Name:              name,
			Phone:             strings.TrimSpace(params.Phone),
			MarketingConsent:  params.MarketingConsent,
			Role:              inv.Role,
			UserType:          inv.UserType,
			PasswordChangedAt: &now,
		})
		if err != nil {
			return err
		}
		if err := s.invitations.AcceptTx(ctx, tx, inv.ID, user.ID); err != nil {
			return err
		}
		created = user
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrTokenConsumed) {
			return nil, models.ErrTokenConsumed
		}
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to accept invitation", slog.String("invitation_id", inv.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("invitation accepted",
		slog.String("invitation_id", inv.ID),
		slog.String("user_id", created.ID))
	s.auditLogger.LogAccountAction("invitation_accepted", created.ID, inv.InviterID,
		map[string]string{"invitation_id": inv.ID})

	return userModelToResponse(created), nil
}

// Cancel withdraws a pending invitation.
func (s *InvitationService) Cancel(ctx context.Context, actorID, invitationID string) error {
	if err := s.invitations.Cancel(ctx, invitationID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to cancel invitation", slog.String("invitation_id", invitationID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogAccountAction("invitation_cancelled", "", actorID,
		map[string]string{"invitation_id": invitationID})
	return nil
}

func invitationModelToResponse(inv *models.Invitation) *InvitationResponse {
	return &InvitationResponse{
		ID:           inv.ID,
		Email:        inv.Email,
		Role:         inv.Role,
		UserType:     inv.UserType,
		AdminMessage: inv.AdminMessage,
		Status:       inv.Status,
		ExpiresAt:    inv.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
