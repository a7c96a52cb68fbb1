package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/stationhub/identity/internal/auth"
	"github.com/stationhub/identity/internal/config"
	"github.com/stationhub/identity/internal/database"
	"github.com/stationhub/identity/internal/handlers"
	middlewareCustom "github.com/stationhub/identity/internal/middleware"
	"github.com/stationhub/identity/internal/models"
	"github.com/stationhub/identity/internal/routes"
	"github.com/stationhub/identity/internal/services"
	pkghttp "github.com/stationhub/identity/pkg/http"
	pkglogger "github.com/stationhub/identity/pkg/logger"
)

// SentEmail is one captured outbound message
type SentEmail struct {
	To    string
	Code  string // emergency code, when present
	Token string // invitation token, when present
}

// MockEmailService captures outbound mail for test assertions
type MockEmailService struct {
	mu    sync.Mutex
	Sent  []SentEmail
}

func (m *MockEmailService) SendEmergencyCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentEmail{To: email, Code: code})
	return nil
}

func (m *MockEmailService) SendInvitation(ctx context.Context, email, token, adminMessage string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentEmail{To: email, Token: token})
	return nil
}

// LastEmail returns the most recent captured message
func (m *MockEmailService) LastEmail() *SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return nil
	}
	return &m.Sent[len(m.Sent)-1]
}

// MockVerificationGateway stands in for the phone-identity provider
type MockVerificationGateway struct {
	DispatchFunc    func(ctx context.Context, req *models.VerificationRequest) (string, error)
	FetchResultFunc func(ctx context.Context, requestID string) (*models.ProviderResult, error)
}

func (g *MockVerificationGateway) Dispatch(ctx context.Context, req *models.VerificationRequest) (string, error) {
	if g.DispatchFunc != nil {
		return g.DispatchFunc(ctx, req)
	}
	return "https://verify.test/" + req.ID, nil
}

func (g *MockVerificationGateway) FetchResult(ctx context.Context, requestID string) (*models.ProviderResult, error) {
	if g.FetchResultFunc != nil {
		return g.FetchResultFunc(ctx, requestID)
	}
	return &models.ProviderResult{RequestID: requestID, Confirmed: true, PhoneNumber: "+15551234567"}, nil
}

// MockSocialGateway stands in for the social identity broker
type MockSocialGateway struct {
	ExchangeFunc func(ctx context.Context, provider, code string) (*services.ProviderIdentity, error)
}

func (g *MockSocialGateway) Exchange(ctx context.Context, provider, code string) (*services.ProviderIdentity, error) {
	if g.ExchangeFunc != nil {
		return g.ExchangeFunc(ctx, provider, code)
	}
	return &services.ProviderIdentity{ProviderUserID: "ext-" + code, Email: "social@example.com"}, nil
}

// TestServer wraps httptest.Server with the full service wiring on a real
// database and mocked external collaborators
type TestServer struct {
	Server       *httptest.Server
	DB           *database.DB
	Repos        *Repositories
	EmailService *MockEmailService
	VerifyGW     *MockVerificationGateway
	SocialGW     *MockSocialGateway
	TokenManager *auth.TokenManager
	Config       *config.Config
}

// NewTestServer initializes a complete HTTP server against db
func NewTestServer(db *database.DB) (*TestServer, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:           "test-secret-32-characters-long-for-testing",
			AccessTokenExpiry:   15 * time.Minute,
			RefreshTokenExpiry:  7 * 24 * time.Hour,
			ChallengeExpiry:     5 * time.Minute,
			MaxCodeAttempts:     5,
			EmergencyCodeExpiry: 10 * time.Minute,
			TOTPEncryptionKey:   "test-totp-encryption-key-32-byte",
			TOTPIssuer:          "StationHub Test",
			CleanupInterval:     time.Hour,
		},
		Portal: config.PortalConfig{
			TokenExpiry: 24 * time.Hour,
			LoginURL:    "https://portal.test/login",
		},
		Invitation: config.InvitationConfig{
			Expiry: 72 * time.Hour,
		},
		Verification: config.VerificationConfig{
			StoreKey:   "test-store-key",
			ChannelKey: "test-channel-key",
		},
		Social: config.SocialConfig{
			AuthorizeURLBase: "https://id.test/oauth",
		},
		Server: config.ServerConfig{
			Port: "0",
			Env:  "test",
		},
	}

	repos := InitializeRepositories(db)

	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
		cfg.Portal.TokenExpiry,
	)
	tokenManager.SetUserRepo(repos.Users)

	totpManager, err := auth.NewTOTPManager([]byte(cfg.Auth.TOTPEncryptionKey), cfg.Auth.TOTPIssuer)
	if err != nil {
		return nil, err
	}

	auditLogger := pkglogger.NewAuditLogger(logger)
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{BaseDelayMs: 0, RandomDelayMs: 0})
	rateLimitService := services.NewRateLimitService(repos.LoginAttempts, services.RateLimitConfig{
		MaxFailedAttempts: 5,
		LockoutDuration:   15 * time.Minute,
		LookbackWindow:    15 * time.Minute,
	}, logger)

	mockEmail := &MockEmailService{}
	verifyGW := &MockVerificationGateway{}
	socialGW := &MockSocialGateway{}

	authService := services.NewAuthService(
		repos.Users, repos.Challenges, repos.Emergency, repos.TwoFactor, repos.Revoked,
		tokenManager, totpManager, timingDelay, mockEmail, rateLimitService,
		services.AuthServiceConfig{
			ChallengeExpiry:     cfg.Auth.ChallengeExpiry,
			MaxCodeAttempts:     cfg.Auth.MaxCodeAttempts,
			EmergencyCodeExpiry: cfg.Auth.EmergencyCodeExpiry,
		},
		logger, auditLogger,
	)
	authService.SetSocialLinkRepo(repos.SocialLinks)
	twoFactorService := services.NewTwoFactorService(repos.Users, repos.TwoFactor, repos.Emergency, totpManager, logger, auditLogger)
	socialService := services.NewSocialService(repos.Users, repos.SocialLinks, socialGW, authService, cfg.Social.AuthorizeURLBase, logger, auditLogger)
	verificationService := services.NewVerificationService(repos.Users, repos.Verifications, verifyGW, cfg.Verification.StoreKey, cfg.Verification.ChannelKey, logger, auditLogger)
	invitationService := services.NewInvitationService(repos.Invitations, repos.Users, repos.Users, db, mockEmail, cfg.Invitation.Expiry, logger, auditLogger)
	portalService := services.NewPortalService(repos.Users, repos.Portal, tokenManager, authService, cfg.Portal.LoginURL, logger, auditLogger)

	ipConfig := &pkghttp.IPConfig{}
	h := routes.Handlers{
		Auth:         handlers.NewAuthHandler(authService, ipConfig),
		TwoFactor:    handlers.NewTwoFactorHandler(twoFactorService, ipConfig),
		Social:       handlers.NewSocialHandler(socialService, ipConfig),
		Verification: handlers.NewVerificationHandler(verificationService),
		Invitation:   handlers.NewInvitationHandler(invitationService),
		Portal:       handlers.NewPortalHandler(portalService),
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(r, h, tokenManager, repos.Users, repos.Revoked)

	return &TestServer{
		Server:       httptest.NewServer(r),
		DB:           db,
		Repos:        repos,
		EmailService: mockEmail,
		VerifyGW:     verifyGW,
		SocialGW:     socialGW,
		TokenManager: tokenManager,
		Config:       cfg,
	}, nil
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// Request makes an HTTP request to the test server
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return http.DefaultClient.Do(req)
}

// RequestWithAuth makes an authenticated HTTP request with an access token
func (ts *TestServer) RequestWithAuth(method, path, accessToken string, body interface{}) (*http.Response, error) {
	return ts.Request(method, path, body, map[string]string{
		"Authorization": "Bearer " + accessToken,
	})
}

// ParseJSONResponse parses the response body into target
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// LoginResult mirrors the login response shape for assertions
type LoginResult struct {
	Session *struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		PortalToken  string `json:"portal_token"`
	} `json:"session"`
	Challenge *struct {
		ChallengeToken string `json:"challenge_token"`
		EmailHint      string `json:"email_hint"`
	} `json:"challenge"`
}

// Login runs the password step and returns the decoded outcome
func (ts *TestServer) Login(email, password string) (*LoginResult, int, error) {
	resp, err := ts.Request(http.MethodPost, "/auth/login", map[string]interface{}{
		"email": email, "password": password,
	}, nil)
	if err != nil {
		return nil, 0, err
	}

	var result LoginResult
	if resp.StatusCode == http.StatusOK {
		if err := ParseJSONResponse(resp, &result); err != nil {
			return nil, resp.StatusCode, err
		}
	} else {
		resp.Body.Close()
	}
	return &result, resp.StatusCode, nil
}

// GetErrorMessage extracts the message field from an error response
func GetErrorMessage(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	var errResp map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return "", err
	}
	if msg, ok := errResp["message"].(string); ok {
		return msg, nil
	}
	return "", nil
}
