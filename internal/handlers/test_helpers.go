package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stationhub/identity/internal/auth"
	"github.com/stationhub/identity/internal/models"
	"github.com/stationhub/identity/internal/services"
	pkghttp "github.com/stationhub/identity/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds user claims to request context for testing authenticated endpoints
func WithAuthContext(req *http.Request, userID, email string) *http.Request {
	claims := &models.TokenClaims{
		UserID: userID,
		Email:  email,
		Type:   "access",
	}
	ctx := context.WithValue(req.Context(), auth.UserContextKey, claims)
	ctx = context.WithValue(ctx, auth.RawTokenContextKey, "test_access_token")
	return req.WithContext(ctx)
}

// WithChiRouteContext adds chi URL parameters to request context for testing
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc                       func(ctx context.Context, email, password, ipAddress string, remember bool) (*services.LoginResult, error)
	VerifyTwoFactorFunc             func(ctx context.Context, challengeToken, code string) (*services.SessionResponse, error)
	RequestEmergencyCodeFunc        func(ctx context.Context, challengeToken string) error
	VerifyEmergencyCodeFunc         func(ctx context.Context, challengeToken, code string) (*services.SessionResponse, error)
	DisableTwoFactorDuringLoginFunc func(ctx context.Context, challengeToken, password, ipAddress string) (*services.SessionResponse, error)
	CancelChallengeFunc             func(ctx context.Context, challengeToken string) error
	RefreshTokenFunc                func(ctx context.Context, refreshToken string) (*services.SessionResponse, error)
	LogoutFunc                      func(ctx context.Context, accessToken string) error
	LogoutAllFunc                   func(ctx context.Context, userID string) error
}

func (m *MockAuthService) Login(ctx context.Context, email, password, ipAddress string, remember bool) (*services.LoginResult, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrInvalidCredentials
	}
	return m.LoginFunc(ctx, email, password, ipAddress, remember)
}

func (m *MockAuthService) VerifyTwoFactor(ctx context.Context, challengeToken, code string) (*services.SessionResponse, error) {
	if m.VerifyTwoFactorFunc == nil {
		return nil, models.ErrChallengeInvalid
	}
	return m.VerifyTwoFactorFunc(ctx, challengeToken, code)
}

func (m *MockAuthService) RequestEmergencyCode(ctx context.Context, challengeToken string) error {
	if m.RequestEmergencyCodeFunc == nil {
		return nil
	}
	return m.RequestEmergencyCodeFunc(ctx, challengeToken)
}

func (m *MockAuthService) VerifyEmergencyCode(ctx context.Context, challengeToken, code string) (*services.SessionResponse, error) {
	if m.VerifyEmergencyCodeFunc == nil {
		return nil, models.ErrChallengeInvalid
	}
	return m.VerifyEmergencyCodeFunc(ctx, challengeToken, code)
}

func (m *MockAuthService) DisableTwoFactorDuringLogin(ctx context.Context, challengeToken, password, ipAddress string) (*services.SessionResponse, error) {
	if m.DisableTwoFactorDuringLoginFunc == nil {
		return nil, models.ErrChallengeInvalid
	}
	return m.DisableTwoFactorDuringLoginFunc(ctx, challengeToken, password, ipAddress)
}

func (m *MockAuthService) CancelChallenge(ctx context.Context, challengeToken string) error {
	if m.CancelChallengeFunc == nil {
		return nil
	}
	return m.CancelChallengeFunc(ctx, challengeToken)
}

func (m *MockAuthService) RefreshToken(ctx context.Context, refreshToken string) (*services.SessionResponse, error) {
	if m.RefreshTokenFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.RefreshTokenFunc(ctx, refreshToken)
}

func (m *MockAuthService) Logout(ctx context.Context, accessToken string) error {
	if m.LogoutFunc == nil {
		return nil
	}
	return m.LogoutFunc(ctx, accessToken)
}

func (m *MockAuthService) LogoutAll(ctx context.Context, userID string) error {
	if m.LogoutAllFunc == nil {
		return nil
	}
	return m.LogoutAllFunc(ctx, userID)
}

// MockTwoFactorService implements TwoFactorServiceInterface for testing
type MockTwoFactorService struct {
	BeginEnrollmentFunc    func(ctx context.Context, userID string) (*services.EnrollmentResponse, error)
	ActivateEnrollmentFunc func(ctx context.Context, userID, enrollmentID, code string) error
	DisableFunc            func(ctx context.Context, userID, ipAddress string) error
	StatusFunc             func(ctx context.Context, userID string) (*services.TwoFactorStatus, error)
}

func (m *MockTwoFactorService) BeginEnrollment(ctx context.Context, userID string) (*services.EnrollmentResponse, error) {
	if m.BeginEnrollmentFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.BeginEnrollmentFunc(ctx, userID)
}

func (m *MockTwoFactorService) ActivateEnrollment(ctx context.Context, userID, enrollmentID, code string) error {
	if m.ActivateEnrollmentFunc == nil {
		return nil
	}
	return m.ActivateEnrollmentFunc(ctx, userID, enrollmentID, code)
}

func (m *MockTwoFactorService) Disable(ctx context.Context, userID, ipAddress string) error {
	if m.DisableFunc == nil {
		return nil
	}
	return m.DisableFunc(ctx, userID, ipAddress)
}

func (m *MockTwoFactorService) Status(ctx context.Context, userID string) (*services.TwoFactorStatus, error) {
	if m.StatusFunc == nil {
		return &services.TwoFactorStatus{}, nil
	}
	return m.StatusFunc(ctx, userID)
}

// MockSocialService implements SocialServiceInterface for testing
type MockSocialService struct {
	AuthorizeURLFunc      func(provider, state string) (string, error)
	CompleteLinkFunc      func(ctx context.Context, userID, provider, code, errParam string) (*services.SocialLinkResponse, error)
	UnlinkFunc            func(ctx context.Context, userID, provider, ipAddress string) error
	ListLinksFunc         func(ctx context.Context, userID string) ([]*services.SocialLinkResponse, error)
	LoginWithProviderFunc func(ctx context.Context, provider, code, errParam string) (*services.SessionResponse, error)
}

func (m *MockSocialService) AuthorizeURL(provider, state string) (string, error) {
	if m.AuthorizeURLFunc == nil {
		return "", models.ErrBadRequest
	}
	return m.AuthorizeURLFunc(provider, state)
}

func (m *MockSocialService) CompleteLink(ctx context.Context, userID, provider, code, errParam string) (*services.SocialLinkResponse, error) {
	if m.CompleteLinkFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.CompleteLinkFunc(ctx, userID, provider, code, errParam)
}

func (m *MockSocialService) Unlink(ctx context.Context, userID, provider, ipAddress string) error {
	if m.UnlinkFunc == nil {
		return nil
	}
	return m.UnlinkFunc(ctx, userID, provider, ipAddress)
}

func (m *MockSocialService) ListLinks(ctx context.Context, userID string) ([]*services.SocialLinkResponse, error) {
	if m.ListLinksFunc == nil {
		return []*services.SocialLinkResponse{}, nil
	}
	return m.ListLinksFunc(ctx, userID)
}

func (m *MockSocialService) LoginWithProvider(ctx context.Context, provider, code, errParam string) (*services.SessionResponse, error) {
	if m.LoginWithProviderFunc == nil {
		return nil, models.ErrInvalidCredentials
	}
	return m.LoginWithProviderFunc(ctx, provider, code, errParam)
}

// MockVerificationService implements VerificationServiceInterface for testing
type MockVerificationService struct {
	StartFunc    func(ctx context.Context, userID, customerName, phone string) (*services.VerificationStartResponse, error)
	CompleteFunc func(ctx context.Context, userID, requestID string) (*services.VerificationStatusResponse, error)
	CancelFunc   func(ctx context.Context, userID, requestID string) error
	StatusFunc   func(ctx context.Context, userID, requestID string) (*services.VerificationStatusResponse, error)
}

func (m *MockVerificationService) Start(ctx context.Context, userID, customerName, phone string) (*services.VerificationStartResponse, error) {
	if m.StartFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.StartFunc(ctx, userID, customerName, phone)
}

func (m *MockVerificationService) Complete(ctx context.Context, userID, requestID string) (*services.VerificationStatusResponse, error) {
	if m.CompleteFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.CompleteFunc(ctx, userID, requestID)
}

func (m *MockVerificationService) Cancel(ctx context.Context, userID, requestID string) error {
	if m.CancelFunc == nil {
		return nil
	}
	return m.CancelFunc(ctx, userID, requestID)
}

func (m *MockVerificationService) Status(ctx context.Context, userID, requestID string) (*services.VerificationStatusResponse, error) {
	if m.StatusFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.StatusFunc(ctx, userID, requestID)
}

// MockInvitationService implements InvitationServiceInterface for testing
type MockInvitationService struct {
	CreateFunc func(ctx context.Context, inviterID, email, role, userType, adminMessage string) (*services.InvitationResponse, error)
	VerifyFunc func(ctx context.Context, token string) (*services.InvitationResponse, error)
	AcceptFunc func(ctx context.Context, token string, params services.AcceptInvitationParams) (*services.UserResponse, error)
	CancelFunc func(ctx context.Context, actorID, invitationID string) error
}

func (m *MockInvitationService) Create(ctx context.Context, inviterID, email, role, userType, adminMessage string) (*services.InvitationResponse, error) {
	if m.CreateFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.CreateFunc(ctx, inviterID, email, role, userType, adminMessage)
}

func (m *MockInvitationService) Verify(ctx context.Context, token string) (*services.InvitationResponse, error) {
	if m.VerifyFunc == nil {
		return nil, models.ErrTokenInvalid
	}
	return m.VerifyFunc(ctx, token)
}

func (m *MockInvitationService) Accept(ctx context.Context, token string, params services.AcceptInvitationParams) (*services.UserResponse, error) {
	if m.AcceptFunc == nil {
		return nil, models.ErrTokenInvalid
	}
	return m.AcceptFunc(ctx, token, params)
}

func (m *MockInvitationService) Cancel(ctx context.Context, actorID, invitationID string) error {
	if m.CancelFunc == nil {
		return nil
	}
	return m.CancelFunc(ctx, actorID, invitationID)
}

// MockPortalService implements PortalServiceInterface for testing
type MockPortalService struct {
	ExchangeFunc         func(ctx context.Context, portalToken, appID string) (*services.SessionResponse, error)
	SyncFunc             func(ctx context.Context, userID, appID string) error
	ListAccountsFunc     func(ctx context.Context, userID string) ([]*services.PortalAccountResponse, error)
	LoginRedirectURLFunc func(returnTo string) string
}

func (m *MockPortalService) Exchange(ctx context.Context, portalToken, appID string) (*services.SessionResponse, error) {
	if m.ExchangeFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.ExchangeFunc(ctx, portalToken, appID)
}

func (m *MockPortalService) Sync(ctx context.Context, userID, appID string) error {
	if m.SyncFunc == nil {
		return nil
	}
	return m.SyncFunc(ctx, userID, appID)
}

func (m *MockPortalService) ListAccounts(ctx context.Context, userID string) ([]*services.PortalAccountResponse, error) {
	if m.ListAccountsFunc == nil {
		return []*services.PortalAccountResponse{}, nil
	}
	return m.ListAccountsFunc(ctx, userID)
}

func (m *MockPortalService) LoginRedirectURL(returnTo string) string {
	if m.LoginRedirectURLFunc == nil {
		return "https://portal.example.com/login"
	}
	return m.LoginRedirectURLFunc(returnTo)
}
