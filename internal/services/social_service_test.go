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

func newTestSocialService(users *MockUserRepository, links *MockSocialLinkRepository, gateway *MockSocialProviderGateway) *SocialService {
	logger := slog.Default()
	return NewSocialService(
		users,
		links,
		gateway,
		&MockSessionIssuer{},
		"https://social.example.com",
		logger,
		pkglogger.NewAuditLogger(logger),
	)
}

func TestSocialService_CompleteLink_Success(t *testing.T) {
	links := &MockSocialLinkRepository{}
	gateway := &MockSocialProviderGateway{
		ExchangeFunc: func(ctx context.Context, provider, code string) (*ProviderIdentity, error) {
			return &ProviderIdentity{ProviderUserID: "g-123", Email: "user@gmail.com"}, nil
		},
	}

	svc := newTestSocialService(&MockUserRepository{}, links, gateway)

	resp, err := svc.CompleteLink(context.Background(), "user123", models.ProviderGoogle, "auth-code", "")

	require.NoError(t, err)
	assert.Equal(t, models.ProviderGoogle, resp.Provider)
	assert.Equal(t, "user@gmail.com", resp.ProviderEmail)
}

func TestSocialService_CompleteLink_Cancelled(t *testing.T) {
	svc := newTestSocialService(&MockUserRepository{}, &MockSocialLinkRepository{}, &MockSocialProviderGateway{})

	resp, err := svc.CompleteLink(context.Background(), "user123", models.ProviderKakao, "", "user_cancelled")

	assert.ErrorIs(t, err, models.ErrProviderCancelled)
	assert.Nil(t, resp)
}

func TestSocialService_CompleteLink_Denied(t *testing.T) {
	svc := newTestSocialService(&MockUserRepository{}, &MockSocialLinkRepository{}, &MockSocialProviderGateway{})

	resp, err := svc.CompleteLink(context.Background(), "user123", models.ProviderFacebook, "", "access_denied")

	assert.ErrorIs(t, err, models.ErrProviderDenied)
	assert.Nil(t, resp)
}

func TestSocialService_CompleteLink_IdentityOwnedElsewhere(t *testing.T) {
	links := &MockSocialLinkRepository{
		GetByProviderIdentityFunc: func(ctx context.Context, provider, providerUserID string) (*models.SocialLink, error) {
			return &models.SocialLink{ID: "link_9", UserID: "other_user", Provider: provider, ProviderUserID: providerUserID}, nil
		},
	}

	svc := newTestSocialService(&MockUserRepository{}, links, &MockSocialProviderGateway{})

	resp, err := svc.CompleteLink(context.Background(), "user123", models.ProviderGoogle, "auth-code", "")

	assert.ErrorIs(t, err, models.ErrAlreadyLinked)
	assert.Nil(t, resp)
}

func TestSocialService_CompleteLink_SameIdentityIsIdempotent(t *testing.T) {
	links := &MockSocialLinkRepository{
		GetByProviderIdentityFunc: func(ctx context.Context, provider, providerUserID string) (*models.SocialLink, error) {
			return &models.SocialLink{ID: "link_1", UserID: "user123", Provider: provider, ProviderUserID: providerUserID}, nil
		},
		CreateFunc: func(ctx context.Context, link *models.SocialLink) (*models.SocialLink, error) {
			t.Fatal("relinking an owned identity must not create a new row")
			return nil, nil
		},
	}

	svc := newTestSocialService(&MockUserRepository{}, links, &MockSocialProviderGateway{})

	resp, err := svc.CompleteLink(context.Background(), "user123", models.ProviderGoogle, "auth-code", "")

	require.NoError(t, err)
	assert.Equal(t, models.ProviderGoogle, resp.Provider)
}

func TestSocialService_Unlink_SoleMethodBlocked(t *testing.T) {
	// Social-only account with exactly one link
	user := NewTestUser("user123", "user@example.com", "Jane")
	users := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return user, nil
		},
	}
	links := &MockSocialLinkRepository{
		CountByUserIDFunc: func(ctx context.Context, userID string) (int, error) {
			return 1, nil
		},
	}

	svc := newTestSocialService(users, links, &MockSocialProviderGateway{})

	err := svc.Unlink(context.Background(), "user123", models.ProviderGoogle, "10.0.0.1")

	assert.ErrorIs(t, err, models.ErrSoleAuthMethod)
}

func TestSocialService_Unlink_AllowedWithPassword(t *testing.T) {
	user := NewTestUserWithPassword("user123", "user@example.com", "Jane", "some-hash")
	users := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return user, nil
		},
	}
	deleted := false
	links := &MockSocialLinkRepository{
		DeleteFunc: func(ctx context.Context, userID, provider string) error {
			deleted = true
			return nil
		},
	}

	svc := newTestSocialService(users, links, &MockSocialProviderGateway{})

	err := svc.Unlink(context.Background(), "user123", models.ProviderGoogle, "10.0.0.1")

	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestSocialService_Unlink_AllowedWithSecondLink(t *testing.T) {
	user := NewTestUser("user123", "user@example.com", "Jane")
	users := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return user, nil
		},
	}
	links := &MockSocialLinkRepository{
		CountByUserIDFunc: func(ctx context.Context, userID string) (int, error) {
			return 2, nil
		},
	}

	svc := newTestSocialService(users, links, &MockSocialProviderGateway{})

	err := svc.Unlink(context.Background(), "user123", models.ProviderGoogle, "10.0.0.1")

	assert.NoError(t, err)
}

func TestSocialService_LoginWithProvider_Success(t *testing.T) {
	user := NewTestUser("user123", "user@example.com", "Jane")
	users := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return user, nil
		},
	}
	links := &MockSocialLinkRepository{
		GetByProviderIdentityFunc: func(ctx context.Context, provider, providerUserID string) (*models.SocialLink, error) {
			return &models.SocialLink{ID: "link_1", UserID: "user123", Provider: provider}, nil
		},
	}

	svc := newTestSocialService(users, links, &MockSocialProviderGateway{})

	session, err := svc.LoginWithProvider(context.Background(), models.ProviderKakao, "auth-code", "")

	require.NoError(t, err)
	assert.NotEmpty(t, session.AccessToken)
	assert.NotEmpty(t, session.PortalToken)
}

func TestSocialService_LoginWithProvider_UnknownIdentity(t *testing.T) {
	svc := newTestSocialService(&MockUserRepository{}, &MockSocialLinkRepository{}, &MockSocialProviderGateway{})

	session, err := svc.LoginWithProvider(context.Background(), models.ProviderGoogle, "auth-code", "")

	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	assert.Nil(t, session)
}

func TestSocialService_LoginWithProvider_CancelledAtProvider(t *testing.T) {
	gateway := &MockSocialProviderGateway{
		ExchangeFunc: func(ctx context.Context, provider, code string) (*ProviderIdentity, error) {
			return nil, models.ErrProviderCancelled
		},
	}

	svc := newTestSocialService(&MockUserRepository{}, &MockSocialLinkRepository{}, gateway)

	session, err := svc.LoginWithProvider(context.Background(), models.ProviderGoogle, "auth-code", "")

	assert.ErrorIs(t, err, models.ErrProviderCancelled)
	assert.Nil(t, session)
}

func TestSocialService_AuthorizeURL_UnknownProvider(t *testing.T) {
	svc := newTestSocialService(&MockUserRepository{}, &MockSocialLinkRepository{}, &MockSocialProviderGateway{})

	_, err := svc.AuthorizeURL("myspace", "state123")

	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestMapCallbackError(t *testing.T) {
	assert.NoError(t, MapCallbackError(""))
	assert.ErrorIs(t, MapCallbackError("access_denied"), models.ErrProviderDenied)
	assert.ErrorIs(t, MapCallbackError("cancelled"), models.ErrProviderCancelled)
	assert.ErrorIs(t, MapCallbackError("canceled"), models.ErrProviderCancelled)
	assert.ErrorIs(t, MapCallbackError("something_else"), models.ErrProviderDenied)
}
