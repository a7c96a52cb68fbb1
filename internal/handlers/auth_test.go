package handlers_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stationhub/identity/internal/handlers"
	"github.com/stationhub/identity/internal/models"
	"github.com/stationhub/identity/internal/services"
	pkghttp "github.com/stationhub/identity/pkg/http"
	"github.com/stretchr/testify/assert"
)

func TestLogin_SuccessWithoutSecondFactor(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password, ipAddress string, remember bool) (*services.LoginResult, error) {
			return &services.LoginResult{
				Session: &services.SessionResponse{
					AccessToken:  "access_token_123",
					RefreshToken: "refresh_token_123",
					PortalToken:  "portal_token_123",
				},
			}, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "user@example.com",
		Password: "password123",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	var resp services.LoginResult
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Nil(t, resp.Challenge)
	assert.Equal(t, "access_token_123", resp.Session.AccessToken)
	assert.Equal(t, "portal_token_123", resp.Session.PortalToken)
}

func TestLogin_ReturnsChallengeWhenSecondFactorEnrolled(t *testing.T) {
	expires := time.Now().Add(5 * time.Minute)
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password, ipAddress string, remember bool) (*services.LoginResult, error) {
			return &services.LoginResult{
				Challenge: &services.ChallengeResponse{
					ChallengeToken: "challenge_abc",
					EmailHint:      "u***@example.com",
					ExpiresAt:      expires,
				},
			}, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "user@example.com",
		Password: "password123",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	var resp services.LoginResult
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Nil(t, resp.Session)
	assert.Equal(t, "challenge_abc", resp.Challenge.ChallengeToken)
	assert.Equal(t, "u***@example.com", resp.Challenge.EmailHint)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password, ipAddress string, remember bool) (*services.LoginResult, error) {
			return nil, models.ErrInvalidCredentials
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "user@example.com",
		Password: "wrongpassword",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestLogin_RateLimited(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password, ipAddress string, remember bool) (*services.LoginResult, error) {
			return nil, models.ErrAccountLocked
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "user@example.com",
		Password: "password123",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 429, "rate_limit_exceeded")
}

func TestLogin_AccountStatusErrors_AntiEnumeration(t *testing.T) {
	// All account status issues return the same generic message
	accountErrors := []error{
		models.ErrAccountDisabled,
		models.ErrAccountSuspended,
	}

	for _, accountErr := range accountErrors {
		t.Run("account error: "+accountErr.Error(), func(t *testing.T) {
			mockAuth := &handlers.MockAuthService{
				LoginFunc: func(ctx context.Context, email, password, ipAddress string, remember bool) (*services.LoginResult, error) {
					return nil, accountErr
				},
			}

			handler := handlers.NewAuthHandler(mockAuth, nil)
			req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
				Email:    "user@example.com",
				Password: "password123",
			})

			w := httptest.NewRecorder()
			handler.Login(w, req)

			handlers.AssertErrorResponse(t, w, 401, "unauthorized")

			var resp pkghttp.ErrorResponse
			json.Unmarshal(w.Body.Bytes(), &resp)
			assert.Equal(t, "Authentication failed", resp.Message)
		})
	}
}

func TestLogin_MissingEmail(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Password: "password123",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestVerifyTwoFactor_Success(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		VerifyTwoFactorFunc: func(ctx context.Context, challengeToken, code string) (*services.SessionResponse, error) {
			assert.Equal(t, "challenge_abc", challengeToken)
			assert.Equal(t, "123456", code)
			return &services.SessionResponse{AccessToken: "access_token_123"}, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login/verify", handlers.ChallengeCodeRequest{
		ChallengeToken: "challenge_abc",
		Code:           "123456",
	})

	w := httptest.NewRecorder()
	handler.VerifyTwoFactor(w, req)

	var resp services.SessionResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "access_token_123", resp.AccessToken)
}

func TestVerifyTwoFactor_WrongCodeLeavesChallengeOpen(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		VerifyTwoFactorFunc: func(ctx context.Context, challengeToken, code string) (*services.SessionResponse, error) {
			return nil, models.ErrInvalidCode
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login/verify", handlers.ChallengeCodeRequest{
		ChallengeToken: "challenge_abc",
		Code:           "000000",
	})

	w := httptest.NewRecorder()
	handler.VerifyTwoFactor(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestVerifyTwoFactor_ExpiredChallengeIsGone(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		VerifyTwoFactorFunc: func(ctx context.Context, challengeToken, code string) (*services.SessionResponse, error) {
			return nil, models.ErrChallengeInvalid
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login/verify", handlers.ChallengeCodeRequest{
		ChallengeToken: "challenge_expired",
		Code:           "123456",
	})

	w := httptest.NewRecorder()
	handler.VerifyTwoFactor(w, req)

	handlers.AssertErrorResponse(t, w, 410, "gone")
}

func TestVerifyTwoFactor_AttemptsExhausted(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		VerifyTwoFactorFunc: func(ctx context.Context, challengeToken, code string) (*services.SessionResponse, error) {
			return nil, models.ErrCodeAttemptsExhausted
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login/verify", handlers.ChallengeCodeRequest{
		ChallengeToken: "challenge_abc",
		Code:           "000000",
	})

	w := httptest.NewRecorder()
	handler.VerifyTwoFactor(w, req)

	handlers.AssertErrorResponse(t, w, 429, "rate_limit_exceeded")
}

func TestRequestEmergencyCode_Accepted(t *testing.T) {
	called := false
	mockAuth := &handlers.MockAuthService{
		RequestEmergencyCodeFunc: func(ctx context.Context, challengeToken string) error {
			called = true
			return nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login/emergency", handlers.ChallengeRequest{
		ChallengeToken: "challenge_abc",
	})

	w := httptest.NewRecorder()
	handler.RequestEmergencyCode(w, req)

	assert.Equal(t, 202, w.Code)
	assert.True(t, called)
}

func TestVerifyEmergencyCode_Success(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		VerifyEmergencyCodeFunc: func(ctx context.Context, challengeToken, code string) (*services.SessionResponse, error) {
			assert.Equal(t, "A2B3C4D5", code)
			return &services.SessionResponse{AccessToken: "access_token_123"}, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login/emergency/verify", handlers.ChallengeCodeRequest{
		ChallengeToken: "challenge_abc",
		Code:           "A2B3C4D5",
	})

	w := httptest.NewRecorder()
	handler.VerifyEmergencyCode(w, req)

	var resp services.SessionResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "access_token_123", resp.AccessToken)
}

func TestDisableTwoFactor_WrongPassword(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		DisableTwoFactorDuringLoginFunc: func(ctx context.Context, challengeToken, password, ipAddress string) (*services.SessionResponse, error) {
			return nil, models.ErrInvalidCredentials
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login/disable-2fa", handlers.DisableTwoFactorLoginRequest{
		ChallengeToken: "challenge_abc",
		Password:       "wrongpassword",
	})

	w := httptest.NewRecorder()
	handler.DisableTwoFactor(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestDisableTwoFactor_Success(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		DisableTwoFactorDuringLoginFunc: func(ctx context.Context, challengeToken, password, ipAddress string) (*services.SessionResponse, error) {
			return &services.SessionResponse{AccessToken: "access_token_123"}, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login/disable-2fa", handlers.DisableTwoFactorLoginRequest{
		ChallengeToken: "challenge_abc",
		Password:       "correctpassword",
	})

	w := httptest.NewRecorder()
	handler.DisableTwoFactor(w, req)

	var resp services.SessionResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "access_token_123", resp.AccessToken)
}

func TestCancelChallenge_NoContent(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		CancelChallengeFunc: func(ctx context.Context, challengeToken string) error {
			return nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login/cancel", handlers.ChallengeRequest{
		ChallengeToken: "challenge_abc",
	})

	w := httptest.NewRecorder()
	handler.CancelChallenge(w, req)

	assert.Equal(t, 204, w.Code)
}

func TestRefreshToken_Success(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		RefreshTokenFunc: func(ctx context.Context, refreshToken string) (*services.SessionResponse, error) {
			return &services.SessionResponse{
				AccessToken:  "new_access",
				RefreshToken: "new_refresh",
			}, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/refresh", handlers.RefreshTokenRequest{
		RefreshToken: "refresh_token_123",
	})

	w := httptest.NewRecorder()
	handler.RefreshToken(w, req)

	var resp services.SessionResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "new_access", resp.AccessToken)
}

func TestRefreshToken_Invalid(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		RefreshTokenFunc: func(ctx context.Context, refreshToken string) (*services.SessionResponse, error) {
			return nil, models.ErrUnauthorized
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/refresh", handlers.RefreshTokenRequest{
		RefreshToken: "stale_token",
	})

	w := httptest.NewRecorder()
	handler.RefreshToken(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestLogout_RequiresAuthContext(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/logout", nil)

	w := httptest.NewRecorder()
	handler.Logout(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestLogout_Success(t *testing.T) {
	var revoked string
	mockAuth := &handlers.MockAuthService{
		LogoutFunc: func(ctx context.Context, accessToken string) error {
			revoked = accessToken
			return nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/logout", nil)
	req = handlers.WithAuthContext(req, "user-1", "user@example.com")

	w := httptest.NewRecorder()
	handler.Logout(w, req)

	assert.Equal(t, 204, w.Code)
	assert.Equal(t, "test_access_token", revoked)
}

func TestLogoutAll_Success(t *testing.T) {
	var userID string
	mockAuth := &handlers.MockAuthService{
		LogoutAllFunc: func(ctx context.Context, id string) error {
			userID = id
			return nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/logout-all", nil)
	req = handlers.WithAuthContext(req, "user-1", "user@example.com")

	w := httptest.NewRecorder()
	handler.LogoutAll(w, req)

	assert.Equal(t, 204, w.Code)
	assert.Equal(t, "user-1", userID)
}
