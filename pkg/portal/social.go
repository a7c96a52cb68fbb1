package portal

import (
	"context"
	"errors"
	"net/url"
	"sync"
)

// SocialLinkManager runs provider link flows for one application instance.
// Only one provider authorization may be in flight at a time; a second
// button press while the first is pending is rejected, not queued.
type SocialLinkManager struct {
	client Client
	origin string

	mu       sync.Mutex
	inFlight string // provider with an open authorization flow
}

// NewSocialLinkManager creates a manager. origin is this satellite's own
// origin, substituted into provider redirect URIs so the callback returns
// here instead of the portal default.
func NewSocialLinkManager(client Client, origin string) *SocialLinkManager {
	return &SocialLinkManager{client: client, origin: origin}
}

// BeginAuthorization fetches the provider consent URL and claims the
// in-flight slot for this provider. The returned URL carries this
// application's origin as redirect_uri.
func (m *SocialLinkManager) BeginAuthorization(ctx context.Context, accessToken, provider, state string) (string, error) {
	m.mu.Lock()
	if m.inFlight != "" {
		m.mu.Unlock()
		return "", ErrOperationInFlight
	}
	m.inFlight = provider
	m.mu.Unlock()

	authorizeURL, err := m.client.AuthorizeURL(ctx, accessToken, provider, state)
	if err != nil {
		m.release()
		return "", err
	}

	rewritten, err := m.rewriteRedirectURI(authorizeURL, provider)
	if err != nil {
		m.release()
		return "", err
	}
	return rewritten, nil
}

// CompleteLink consumes the provider callback for the in-flight flow. A
// user cancellation at the provider releases the flow quietly with no link
// and no error.
func (m *SocialLinkManager) CompleteLink(ctx context.Context, accessToken, provider, code, errParam string) (*SocialLink, error) {
	m.mu.Lock()
	if m.inFlight != provider {
		m.mu.Unlock()
		return nil, ErrFlowState
	}
	m.mu.Unlock()
	defer m.release()

	link, err := m.client.CompleteSocialLink(ctx, accessToken, provider, code, errParam)
	if err != nil {
		if errors.Is(err, ErrProviderCancelled) {
			return nil, nil
		}
		return nil, err
	}
	return link, nil
}

// Abandon releases the in-flight slot without completing, for when the user
// navigates away from the provider flow.
func (m *SocialLinkManager) Abandon() {
	m.release()
}

// Unlink removes a provider link. The identity service rejects removing the
// only sign-in method; that rejection is surfaced, never bypassed.
func (m *SocialLinkManager) Unlink(ctx context.Context, accessToken, provider string) error {
	return m.client.UnlinkSocial(ctx, accessToken, provider)
}

// Links lists the current provider links.
func (m *SocialLinkManager) Links(ctx context.Context, accessToken string) ([]SocialLink, error) {
	return m.client.ListSocialLinks(ctx, accessToken)
}

func (m *SocialLinkManager) release() {
	m.mu.Lock()
	m.inFlight = ""
	m.mu.Unlock()
}

// rewriteRedirectURI replaces the redirect_uri query parameter with this
// application's own callback so the provider returns control to the
// satellite that started the flow.
func (m *SocialLinkManager) rewriteRedirectURI(authorizeURL, provider string) (string, error) {
	u, err := url.Parse(authorizeURL)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("redirect_uri", m.origin+"/auth/callback/"+provider)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
