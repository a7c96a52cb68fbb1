package portal_test

import (
	"context"
	"time"

	"github.com/stationhub/identity/pkg/portal"
)

// fakeClient is a func-field test double for the identity service client.
// Unset fields fall back to a plain success.
type fakeClient struct {
	LoginFunc                       func(ctx context.Context, email, password string, remember bool) (*portal.LoginOutcome, error)
	VerifyCodeFunc                  func(ctx context.Context, challengeToken, code string) (*portal.Session, error)
	RequestEmergencyCodeFunc        func(ctx context.Context, challengeToken string) error
	VerifyEmergencyCodeFunc         func(ctx context.Context, challengeToken, code string) (*portal.Session, error)
	DisableTwoFactorDuringLoginFunc func(ctx context.Context, challengeToken, password string) (*portal.Session, error)
	CancelLoginFunc                 func(ctx context.Context, challengeToken string) error
	RefreshSessionFunc              func(ctx context.Context, refreshToken string) (*portal.Session, error)
	LogoutFunc                      func(ctx context.Context, accessToken string) error

	AuthorizeURLFunc       func(ctx context.Context, accessToken, provider, state string) (string, error)
	CompleteSocialLinkFunc func(ctx context.Context, accessToken, provider, code, errParam string) (*portal.SocialLink, error)
	UnlinkSocialFunc       func(ctx context.Context, accessToken, provider string) error
	ListSocialLinksFunc    func(ctx context.Context, accessToken string) ([]portal.SocialLink, error)

	StartVerificationFunc   func(ctx context.Context, accessToken, name, phone string) (*portal.VerificationStart, error)
	ConfirmVerificationFunc func(ctx context.Context, accessToken, requestID string) (*portal.VerificationStatus, error)
	CancelVerificationFunc  func(ctx context.Context, accessToken, requestID string) error

	VerifyInvitationFunc func(ctx context.Context, token string) (*portal.Invitation, error)
	AcceptInvitationFunc func(ctx context.Context, token string, params portal.AcceptParams) (*portal.User, error)

	ExchangePortalTokenFunc func(ctx context.Context, portalToken, appID string) (*portal.Session, error)
	SyncAccountFunc         func(ctx context.Context, accessToken, appID string) error
}

func testSession() *portal.Session {
	return &portal.Session{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		User: &portal.User{
			ID:    "user-1",
			Email: "user@example.com",
			Name:  "Test User",
			Role:  "user",
		},
	}
}

func testChallenge(token string) *portal.Challenge {
	return &portal.Challenge{
		ChallengeToken: token,
		EmailHint:      "us***@example.com",
		ExpiresAt:      time.Now().Add(5 * time.Minute),
	}
}

func (c *fakeClient) Login(ctx context.Context, email, password string, remember bool) (*portal.LoginOutcome, error) {
	if c.LoginFunc != nil {
		return c.LoginFunc(ctx, email, password, remember)
	}
	return &portal.LoginOutcome{Session: testSession()}, nil
}

func (c *fakeClient) VerifyCode(ctx context.Context, challengeToken, code string) (*portal.Session, error) {
	if c.VerifyCodeFunc != nil {
		return c.VerifyCodeFunc(ctx, challengeToken, code)
	}
	return testSession(), nil
}

func (c *fakeClient) RequestEmergencyCode(ctx context.Context, challengeToken string) error {
	if c.RequestEmergencyCodeFunc != nil {
		return c.RequestEmergencyCodeFunc(ctx, challengeToken)
	}
	return nil
}

func (c *fakeClient) VerifyEmergencyCode(ctx context.Context, challengeToken, code string) (*portal.Session, error) {
	if c.VerifyEmergencyCodeFunc != nil {
		return c.VerifyEmergencyCodeFunc(ctx, challengeToken, code)
	}
	return testSession(), nil
}

func (c *fakeClient) DisableTwoFactorDuringLogin(ctx context.Context, challengeToken, password string) (*portal.Session, error) {
	if c.DisableTwoFactorDuringLoginFunc != nil {
		return c.DisableTwoFactorDuringLoginFunc(ctx, challengeToken, password)
	}
	return testSession(), nil
}

func (c *fakeClient) CancelLogin(ctx context.Context, challengeToken string) error {
	if c.CancelLoginFunc != nil {
		return c.CancelLoginFunc(ctx, challengeToken)
	}
	return nil
}

func (c *fakeClient) RefreshSession(ctx context.Context, refreshToken string) (*portal.Session, error) {
	if c.RefreshSessionFunc != nil {
		return c.RefreshSessionFunc(ctx, refreshToken)
	}
	return testSession(), nil
}

func (c *fakeClient) Logout(ctx context.Context, accessToken string) error {
	if c.LogoutFunc != nil {
		return c.LogoutFunc(ctx, accessToken)
	}
	return nil
}

func (c *fakeClient) AuthorizeURL(ctx context.Context, accessToken, provider, state string) (string, error) {
	if c.AuthorizeURLFunc != nil {
		return c.AuthorizeURLFunc(ctx, accessToken, provider, state)
	}
	return "https://id.example.com/" + provider + "/authorize?redirect_uri=https%3A%2F%2Fportal.example.com%2Fcallback&state=" + state, nil
}

func (c *fakeClient) CompleteSocialLink(ctx context.Context, accessToken, provider, code, errParam string) (*portal.SocialLink, error) {
	if c.CompleteSocialLinkFunc != nil {
		return c.CompleteSocialLinkFunc(ctx, accessToken, provider, code, errParam)
	}
	return &portal.SocialLink{Provider: provider}, nil
}

func (c *fakeClient) UnlinkSocial(ctx context.Context, accessToken, provider string) error {
	if c.UnlinkSocialFunc != nil {
		return c.UnlinkSocialFunc(ctx, accessToken, provider)
	}
	return nil
}

func (c *fakeClient) ListSocialLinks(ctx context.Context, accessToken string) ([]portal.SocialLink, error) {
	if c.ListSocialLinksFunc != nil {
		return c.ListSocialLinksFunc(ctx, accessToken)
	}
	return nil, nil
}

func (c *fakeClient) StartVerification(ctx context.Context, accessToken, name, phone string) (*portal.VerificationStart, error) {
	if c.StartVerificationFunc != nil {
		return c.StartVerificationFunc(ctx, accessToken, name, phone)
	}
	return &portal.VerificationStart{RequestID: "ver-1", RedirectURL: "https://verify.example.com/ver-1"}, nil
}

func (c *fakeClient) ConfirmVerification(ctx context.Context, accessToken, requestID string) (*portal.VerificationStatus, error) {
	if c.ConfirmVerificationFunc != nil {
		return c.ConfirmVerificationFunc(ctx, accessToken, requestID)
	}
	return &portal.VerificationStatus{RequestID: requestID, Status: "verified"}, nil
}

func (c *fakeClient) CancelVerification(ctx context.Context, accessToken, requestID string) error {
	if c.CancelVerificationFunc != nil {
		return c.CancelVerificationFunc(ctx, accessToken, requestID)
	}
	return nil
}

func (c *fakeClient) VerifyInvitation(ctx context.Context, token string) (*portal.Invitation, error) {
	if c.VerifyInvitationFunc != nil {
		return c.VerifyInvitationFunc(ctx, token)
	}
	return &portal.Invitation{Email: "invitee@example.com", Role: "user", UserType: "customer", Status: "pending"}, nil
}

func (c *fakeClient) AcceptInvitation(ctx context.Context, token string, params portal.AcceptParams) (*portal.User, error) {
	if c.AcceptInvitationFunc != nil {
		return c.AcceptInvitationFunc(ctx, token, params)
	}
	return &portal.User{ID: "user-2", Email: "invitee@example.com", Name: params.Name}, nil
}

func (c *fakeClient) ExchangePortalToken(ctx context.Context, portalToken, appID string) (*portal.Session, error) {
	if c.ExchangePortalTokenFunc != nil {
		return c.ExchangePortalTokenFunc(ctx, portalToken, appID)
	}
	return testSession(), nil
}

func (c *fakeClient) SyncAccount(ctx context.Context, accessToken, appID string) error {
	if c.SyncAccountFunc != nil {
		return c.SyncAccountFunc(ctx, accessToken, appID)
	}
	return nil
}
