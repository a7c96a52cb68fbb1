package portal_test

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stationhub/identity/pkg/portal"
)

func TestSocialLinkManager_RewritesRedirectURIToOwnOrigin(t *testing.T) {
	m := portal.NewSocialLinkManager(&fakeClient{}, "https://wash.example.com")

	authorizeURL, err := m.BeginAuthorization(context.Background(), "access-token", "google", "state-1")

	require.NoError(t, err)
	u, err := url.Parse(authorizeURL)
	require.NoError(t, err)
	assert.Equal(t, "https://wash.example.com/auth/callback/google", u.Query().Get("redirect_uri"))
	assert.Equal(t, "state-1", u.Query().Get("state"))
}

func TestSocialLinkManager_SecondFlowRejectedWhileInFlight(t *testing.T) {
	m := portal.NewSocialLinkManager(&fakeClient{}, "https://wash.example.com")

	_, err := m.BeginAuthorization(context.Background(), "access-token", "google", "s1")
	require.NoError(t, err)

	_, err = m.BeginAuthorization(context.Background(), "access-token", "facebook", "s2")
	assert.ErrorIs(t, err, portal.ErrOperationInFlight)

	// Completing the first flow frees the slot
	_, err = m.CompleteLink(context.Background(), "access-token", "google", "auth-code", "")
	require.NoError(t, err)

	_, err = m.BeginAuthorization(context.Background(), "access-token", "facebook", "s2")
	assert.NoError(t, err)
}

func TestSocialLinkManager_AbandonFreesSlot(t *testing.T) {
	m := portal.NewSocialLinkManager(&fakeClient{}, "https://wash.example.com")

	_, err := m.BeginAuthorization(context.Background(), "access-token", "google", "s1")
	require.NoError(t, err)

	m.Abandon()

	_, err = m.BeginAuthorization(context.Background(), "access-token", "facebook", "s2")
	assert.NoError(t, err)
}

func TestSocialLinkManager_CompleteWrongProviderRejected(t *testing.T) {
	m := portal.NewSocialLinkManager(&fakeClient{}, "https://wash.example.com")

	_, err := m.BeginAuthorization(context.Background(), "access-token", "google", "s1")
	require.NoError(t, err)

	_, err = m.CompleteLink(context.Background(), "access-token", "facebook", "auth-code", "")
	assert.ErrorIs(t, err, portal.ErrFlowState)
}

func TestSocialLinkManager_CancelledCallbackIsQuiet(t *testing.T) {
	client := &fakeClient{
		CompleteSocialLinkFunc: func(ctx context.Context, accessToken, provider, code, errParam string) (*portal.SocialLink, error) {
			return nil, portal.ErrProviderCancelled
		},
	}
	m := portal.NewSocialLinkManager(client, "https://wash.example.com")

	_, err := m.BeginAuthorization(context.Background(), "access-token", "google", "s1")
	require.NoError(t, err)

	link, err := m.CompleteLink(context.Background(), "access-token", "google", "", "access_denied")

	assert.NoError(t, err, "user cancellation is not a failure")
	assert.Nil(t, link)
}

func TestSocialLinkManager_DeniedCallbackSurfaces(t *testing.T) {
	client := &fakeClient{
		CompleteSocialLinkFunc: func(ctx context.Context, accessToken, provider, code, errParam string) (*portal.SocialLink, error) {
			return nil, portal.ErrProviderDenied
		},
	}
	m := portal.NewSocialLinkManager(client, "https://wash.example.com")

	_, err := m.BeginAuthorization(context.Background(), "access-token", "google", "s1")
	require.NoError(t, err)

	_, err = m.CompleteLink(context.Background(), "access-token", "google", "auth-code", "")
	assert.ErrorIs(t, err, portal.ErrProviderDenied)
}

func TestSocialLinkManager_SoleAuthMethodUnlinkRejected(t *testing.T) {
	client := &fakeClient{
		UnlinkSocialFunc: func(ctx context.Context, accessToken, provider string) error {
			return portal.ErrSoleAuthMethod
		},
		ListSocialLinksFunc: func(ctx context.Context, accessToken string) ([]portal.SocialLink, error) {
			return []portal.SocialLink{{Provider: "google"}}, nil
		},
	}
	m := portal.NewSocialLinkManager(client, "https://wash.example.com")

	err := m.Unlink(context.Background(), "access-token", "google")
	assert.ErrorIs(t, err, portal.ErrSoleAuthMethod)

	// The link is still there
	links, err := m.Links(context.Background(), "access-token")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "google", links[0].Provider)
}
