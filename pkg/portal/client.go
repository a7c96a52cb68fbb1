// Package portal is the federation client embedded in satellite applications.
// It drives the multi-step login protocol, social provider linking, phone
// identity verification, invitation provisioning, and the portal token
// bootstrap against the identity service, translating wire-level responses
// into a small sentinel error taxonomy at this boundary.
package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// User is the identity as reported by the identity service. SocialLinks
// lists the linked provider names so satellites can render link state
// straight from the session snapshot.
type User struct {
	ID               string   `json:"id"`
	Email            string   `json:"email"`
	Name             string   `json:"name"`
	Phone            string   `json:"phone,omitempty"`
	PhoneVerified    bool     `json:"phone_verified"`
	TwoFactorEnabled bool     `json:"two_factor_enabled"`
	SocialLinks      []string `json:"social_links"`
	Role             string   `json:"role"`
	UserType         string   `json:"user_type"`
}

// Session is an established authentication result.
type Session struct {
	AccessToken          string     `json:"access_token"`
	RefreshToken         string     `json:"refresh_token"`
	PortalToken          string     `json:"portal_token,omitempty"`
	PortalTokenExpiresAt *time.Time `json:"portal_token_expires_at,omitempty"`
	User                 *User      `json:"user"`
}

// Challenge is a login paused at the second-factor step.
type Challenge struct {
	ChallengeToken string    `json:"challenge_token"`
	EmailHint      string    `json:"email_hint"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// LoginOutcome is either a finished session or a pending challenge.
type LoginOutcome struct {
	Session   *Session   `json:"session,omitempty"`
	Challenge *Challenge `json:"challenge,omitempty"`
}

// SocialLink is one linked external provider identity.
type SocialLink struct {
	Provider      string `json:"provider"`
	ProviderEmail string `json:"provider_email,omitempty"`
	LinkedAt      string `json:"linked_at"`
}

// Invitation is a verified invitation offer.
type Invitation struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	UserType     string `json:"user_type"`
	AdminMessage string `json:"admin_message,omitempty"`
	Status       string `json:"status"`
	ExpiresAt    string `json:"expires_at"`
}

// AcceptParams carries the new-account details for invitation acceptance.
// TermsAccepted must be true; the service refuses the account otherwise.
type AcceptParams struct {
	Name             string `json:"name"`
	Password         string `json:"password"`
	Phone            string `json:"phone,omitempty"`
	TermsAccepted    bool   `json:"terms_accepted"`
	MarketingConsent bool   `json:"marketing_consent"`
}

// VerificationStart is the provider hand-off for a new verification request.
type VerificationStart struct {
	RequestID   string `json:"request_id"`
	RedirectURL string `json:"redirect_url"`
}

// VerificationStatus reports where a verification request stands.
type VerificationStatus struct {
	RequestID  string `json:"request_id"`
	Status     string `json:"status"`
	VerifiedAt string `json:"verified_at,omitempty"`
}

// Client enumerates the identity service operations the federation
// components depend on. The HTTP implementation is the production client;
// tests substitute func-field fakes.
type Client interface {
	Login(ctx context.Context, email, password string, remember bool) (*LoginOutcome, error)
	VerifyCode(ctx context.Context, challengeToken, code string) (*Session, error)
	RequestEmergencyCode(ctx context.Context, challengeToken string) error
	VerifyEmergencyCode(ctx context.Context, challengeToken, code string) (*Session, error)
	DisableTwoFactorDuringLogin(ctx context.Context, challengeToken, password string) (*Session, error)
	CancelLogin(ctx context.Context, challengeToken string) error
	RefreshSession(ctx context.Context, refreshToken string) (*Session, error)
	Logout(ctx context.Context, accessToken string) error

	AuthorizeURL(ctx context.Context, accessToken, provider, state string) (string, error)
	CompleteSocialLink(ctx context.Context, accessToken, provider, code, errParam string) (*SocialLink, error)
	UnlinkSocial(ctx context.Context, accessToken, provider string) error
	ListSocialLinks(ctx context.Context, accessToken string) ([]SocialLink, error)

	StartVerification(ctx context.Context, accessToken, name, phone string) (*VerificationStart, error)
	ConfirmVerification(ctx context.Context, accessToken, requestID string) (*VerificationStatus, error)
	CancelVerification(ctx context.Context, accessToken, requestID string) error

	VerifyInvitation(ctx context.Context, token string) (*Invitation, error)
	AcceptInvitation(ctx context.Context, token string, params AcceptParams) (*User, error)

	ExchangePortalToken(ctx context.Context, portalToken, appID string) (*Session, error)
	SyncAccount(ctx context.Context, accessToken, appID string) error
}

// HTTPClient talks JSON over HTTP to the identity service.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient creates a client for the identity service at baseURL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// NewHTTPClientWith uses the provided http.Client, for callers that need
// custom transports or timeouts.
func NewHTTPClientWith(baseURL string, hc *http.Client) *HTTPClient {
	return &HTTPClient{baseURL: baseURL, http: hc}
}

type apiErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// do executes one JSON request. A nil apiErr with a nil error means the
// status was 2xx and out (if non-nil) has been decoded.
func (c *HTTPClient) do(ctx context.Context, method, path, accessToken string, in, out interface{}) (*APIError, error) {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil && resp.StatusCode != http.StatusNoContent {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return nil, fmt.Errorf("failed to decode response: %w", err)
			}
		}
		return nil, nil
	}

	var eb apiErrorBody
	_ = json.NewDecoder(resp.Body).Decode(&eb)
	return &APIError{Status: resp.StatusCode, Code: eb.Error, Message: eb.Message}, nil
}

// Login executes the password step. A 401 here means the credentials were
// rejected or the account is not in a loginable state; the service does not
// distinguish the two.
func (c *HTTPClient) Login(ctx context.Context, email, password string, remember bool) (*LoginOutcome, error) {
	var out LoginOutcome
	apiErr, err := c.do(ctx, http.MethodPost, "/auth/login", "", map[string]interface{}{
		"email": email, "password": password, "remember": remember,
	}, &out)
	if err != nil {
		return nil, err
	}
	if apiErr != nil {
		switch apiErr.Status {
		case http.StatusUnauthorized:
			return nil, ErrInvalidCredentials
		case http.StatusTooManyRequests:
			return nil, ErrAccountLocked
		}
		return nil, apiErr
	}
	return &out, nil
}

func (c *HTTPClient) VerifyCode(ctx context.Context, challengeToken, code string) (*Session, error) {
	return c.challengeExchange(ctx, "/auth/login/verify", map[string]string{
		"challenge_token": challengeToken, "code": code,
	})
}

func (c *HTTPClient) RequestEmergencyCode(ctx context.Context, challengeToken string) error {
	apiErr, err := c.do(ctx, http.MethodPost, "/auth/login/emergency", "", map[string]string{
		"challenge_token": challengeToken,
	}, nil)
	if err != nil {
		return err
	}
	if apiErr != nil {
		return mapChallengeError(apiErr)
	}
	return nil
}

func (c *HTTPClient) VerifyEmergencyCode(ctx context.Context, challengeToken, code string) (*Session, error) {
	return c.challengeExchange(ctx, "/auth/login/emergency/verify", map[string]string{
		"challenge_token": challengeToken, "code": code,
	})
}

func (c *HTTPClient) DisableTwoFactorDuringLogin(ctx context.Context, challengeToken, password string) (*Session, error) {
	return c.challengeExchange(ctx, "/auth/login/disable-2fa", map[string]string{
		"challenge_token": challengeToken, "password": password,
	})
}

// challengeExchange posts a challenge-consuming step and maps the shared
// challenge error vocabulary.
func (c *HTTPClient) challengeExchange(ctx context.Context, path string, body map[string]string) (*Session, error) {
	var out Session
	apiErr, err := c.do(ctx, http.MethodPost, path, "", body, &out)
	if err != nil {
		return nil, err
	}
	if apiErr != nil {
		return nil, mapChallengeError(apiErr)
	}
	return &out, nil
}

func mapChallengeError(apiErr *APIError) error {
	switch apiErr.Status {
	case http.StatusGone:
		return ErrChallengeInvalid
	case http.StatusTooManyRequests:
		return ErrCodeAttemptsExhausted
	case http.StatusUnauthorized:
		return ErrInvalidCode
	}
	return apiErr
}

func (c *HTTPClient) CancelLogin(ctx context.Context, challengeToken string) error {
	apiErr, err := c.do(ctx, http.MethodPost, "/auth/login/cancel", "", map[string]string{
		"challenge_token": challengeToken,
	}, nil)
	if err != nil {
		return err
	}
	if apiErr != nil {
		// A dead challenge is already the state cancel wants
		if apiErr.Status == http.StatusGone {
			return nil
		}
		return apiErr
	}
	return nil
}

func (c *HTTPClient) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	var out Session
	apiErr, err := c.do(ctx, http.MethodPost, "/auth/refresh", "", map[string]string{
		"refresh_token": refreshToken,
	}, &out)
	if err != nil {
		return nil, err
	}
	if apiErr != nil {
		if apiErr.Status == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
		return nil, apiErr
	}
	return &out, nil
}

func (c *HTTPClient) Logout(ctx context.Context, accessToken string) error {
	apiErr, err := c.do(ctx, http.MethodPost, "/auth/logout", accessToken, nil, nil)
	if err != nil {
		return err
	}
	if apiErr != nil && apiErr.Status != http.StatusUnauthorized {
		return apiErr
	}
	return nil
}

func (c *HTTPClient) AuthorizeURL(ctx context.Context, accessToken, provider, state string) (string, error) {
	var out struct {
		AuthorizeURL string `json:"authorize_url"`
	}
	path := fmt.Sprintf("/social/%s/authorize?state=%s", url.PathEscape(provider), url.QueryEscape(state))
	apiErr, err := c.do(ctx, http.MethodGet, path, accessToken, nil, &out)
	if err != nil {
		return "", err
	}
	if apiErr != nil {
		return "", mapSocialError(apiErr)
	}
	return out.AuthorizeURL, nil
}

func (c *HTTPClient) CompleteSocialLink(ctx context.Context, accessToken, provider, code, errParam string) (*SocialLink, error) {
	var out struct {
		SocialLink
		Status string `json:"status"`
	}
	path := fmt.Sprintf("/social/%s/link", url.PathEscape(provider))
	apiErr, err := c.do(ctx, http.MethodPost, path, accessToken, map[string]string{
		"code": code, "error": errParam,
	}, &out)
	if err != nil {
		return nil, err
	}
	if apiErr != nil {
		return nil, mapSocialError(apiErr)
	}
	if out.Status == "cancelled" {
		return nil, ErrProviderCancelled
	}
	return &out.SocialLink, nil
}

func (c *HTTPClient) UnlinkSocial(ctx context.Context, accessToken, provider string) error {
	path := fmt.Sprintf("/social/%s", url.PathEscape(provider))
	apiErr, err := c.do(ctx, http.MethodDelete, path, accessToken, nil, nil)
	if err != nil {
		return err
	}
	if apiErr != nil {
		return mapSocialError(apiErr)
	}
	return nil
}

func (c *HTTPClient) ListSocialLinks(ctx context.Context, accessToken string) ([]SocialLink, error) {
	var out []SocialLink
	apiErr, err := c.do(ctx, http.MethodGet, "/social", accessToken, nil, &out)
	if err != nil {
		return nil, err
	}
	if apiErr != nil {
		return nil, mapSocialError(apiErr)
	}
	return out, nil
}

func mapSocialError(apiErr *APIError) error {
	switch apiErr.Status {
	case http.StatusForbidden:
		return ErrProviderDenied
	case http.StatusConflict:
		// Conflict covers both already-linked and sole-auth-method; the
		// machine error code disambiguates
		if apiErr.Code == "sole_auth_method" {
			return ErrSoleAuthMethod
		}
		return ErrAlreadyLinked
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized:
		return ErrUnauthorized
	}
	return apiErr
}

func (c *HTTPClient) StartVerification(ctx context.Context, accessToken, name, phone string) (*VerificationStart, error) {
	var out VerificationStart
	apiErr, err := c.do(ctx, http.MethodPost, "/verification", accessToken, map[string]string{
		"name": name, "phone": phone,
	}, &out)
	if err != nil {
		return nil, err
	}
	if apiErr != nil {
		if apiErr.Status == http.StatusServiceUnavailable {
			return nil, ErrProviderUnavailable
		}
		return nil, mapVerificationError(apiErr)
	}
	return &out, nil
}

func (c *HTTPClient) ConfirmVerification(ctx context.Context, accessToken, requestID string) (*VerificationStatus, error) {
	var out struct {
		VerificationStatus
		Status string `json:"status"`
	}
	path := fmt.Sprintf("/verification/%s/complete", url.PathEscape(requestID))
	apiErr, err := c.do(ctx, http.MethodPost, path, accessToken, nil, &out)
	if err != nil {
		return nil, err
	}
	if apiErr != nil {
		return nil, mapVerificationError(apiErr)
	}
	if out.Status == "cancelled" {
		return nil, ErrProviderCancelled
	}
	out.VerificationStatus.Status = out.Status
	return &out.VerificationStatus, nil
}

func (c *HTTPClient) CancelVerification(ctx context.Context, accessToken, requestID string) error {
	path := fmt.Sprintf("/verification/%s", url.PathEscape(requestID))
	apiErr, err := c.do(ctx, http.MethodDelete, path, accessToken, nil, nil)
	if err != nil {
		return err
	}
	if apiErr != nil {
		return mapVerificationError(apiErr)
	}
	return nil
}

func mapVerificationError(apiErr *APIError) error {
	switch apiErr.Status {
	case http.StatusConflict:
		return ErrVerificationMismatch
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	}
	return apiErr
}

func (c *HTTPClient) VerifyInvitation(ctx context.Context, token string) (*Invitation, error) {
	var out Invitation
	apiErr, err := c.do(ctx, http.MethodPost, "/invitations/verify", "", map[string]string{
		"token": token,
	}, &out)
	if err != nil {
		return nil, err
	}
	if apiErr != nil {
		return nil, mapInvitationError(apiErr)
	}
	return &out, nil
}

func (c *HTTPClient) AcceptInvitation(ctx context.Context, token string, params AcceptParams) (*User, error) {
	var out User
	apiErr, err := c.do(ctx, http.MethodPost, "/invitations/accept", "", map[string]interface{}{
		"token":             token,
		"name":              params.Name,
		"password":          params.Password,
		"phone":             params.Phone,
		"terms_accepted":    params.TermsAccepted,
		"marketing_consent": params.MarketingConsent,
	}, &out)
	if err != nil {
		return nil, err
	}
	if apiErr != nil {
		return nil, mapInvitationError(apiErr)
	}
	return &out, nil
}

func mapInvitationError(apiErr *APIError) error {
	switch apiErr.Status {
	case http.StatusGone:
		return ErrTokenInvalid
	case http.StatusConflict:
		return ErrTokenConsumed
	case http.StatusTooManyRequests:
		return ErrDuplicateRequest
	}
	return apiErr
}

func (c *HTTPClient) ExchangePortalToken(ctx context.Context, portalToken, appID string) (*Session, error) {
	var out Session
	apiErr, err := c.do(ctx, http.MethodPost, "/portal/exchange", "", map[string]string{
		"portal_token": portalToken, "app_id": appID,
	}, &out)
	if err != nil {
		return nil, err
	}
	if apiErr != nil {
		if apiErr.Status == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
		return nil, apiErr
	}
	return &out, nil
}

func (c *HTTPClient) SyncAccount(ctx context.Context, accessToken, appID string) error {
	apiErr, err := c.do(ctx, http.MethodPost, "/portal/sync", accessToken, map[string]string{
		"app_id": appID,
	}, nil)
	if err != nil {
		return err
	}
	if apiErr != nil {
		if apiErr.Status == http.StatusTooManyRequests {
			return ErrDuplicateRequest
		}
		return apiErr
	}
	return nil
}
