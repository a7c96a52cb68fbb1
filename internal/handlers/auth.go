package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/stationhub/identity/internal/auth"
	"github.com/stationhub/identity/internal/models"
	"github.com/stationhub/identity/internal/services"
	pkghttp "github.com/stationhub/identity/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password, ipAddress string, remember bool) (*services.LoginResult, error)
	VerifyTwoFactor(ctx context.Context, challengeToken, code string) (*services.SessionResponse, error)
	RequestEmergencyCode(ctx context.Context, challengeToken string) error
	VerifyEmergencyCode(ctx context.Context, challengeToken, code string) (*services.SessionResponse, error)
	DisableTwoFactorDuringLogin(ctx context.Context, challengeToken, password, ipAddress string) (*services.SessionResponse, error)
	CancelChallenge(ctx context.Context, challengeToken string) error
	RefreshToken(ctx context.Context, refreshToken string) (*services.SessionResponse, error)
	Logout(ctx context.Context, accessToken string) error
	LogoutAll(ctx context.Context, userID string) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Remember bool   `json:"remember"`
}

// ChallengeCodeRequest carries a challenge token plus a second-factor code
type ChallengeCodeRequest struct {
	ChallengeToken string `json:"challenge_token" validate:"required"`
	Code           string `json:"code" validate:"required,min=6,max=8"`
}

// ChallengeRequest carries only the challenge token
type ChallengeRequest struct {
	ChallengeToken string `json:"challenge_token" validate:"required"`
}

// DisableTwoFactorLoginRequest re-proves the password before dropping the
// second factor mid-login
type DisableTwoFactorLoginRequest struct {
	ChallengeToken string `json:"challenge_token" validate:"required"`
	Password       string `json:"password" validate:"required"`
}

// RefreshTokenRequest represents the request body for token refresh
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Login handles the first step of authentication. Accounts without a second
// factor get a full session; accounts with one get a login challenge.
// @Summary User login
// @Accept json
// @Param request body LoginRequest true "Login request"
// @Produce json
// @Success 200 {object} services.LoginResult
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	result, err := h.service.Login(r.Context(), req.Email, req.Password, ipAddress, req.Remember)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrAccountLocked):
			pkghttp.WriteTooManyRequests(w, "Too many failed login attempts. Please try again later.")
		case errors.Is(err, models.ErrInvalidCredentials),
			errors.Is(err, models.ErrAccountDisabled),
			errors.Is(err, models.ErrAccountSuspended):
			// Generic message for all credential and account status issues
			// to prevent user enumeration
			pkghttp.WriteUnauthorized(w, "Authentication failed")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, result)
}

// VerifyTwoFactor completes a challenged login with an authenticator code
// @Summary Verify authenticator code
// @Accept json
// @Param request body ChallengeCodeRequest true "Verification request"
// @Produce json
// @Success 200 {object} services.SessionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /auth/login/verify [post]
func (h *AuthHandler) VerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req ChallengeCodeRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	session, err := h.service.VerifyTwoFactor(r.Context(), req.ChallengeToken, req.Code)
	if err != nil {
		writeChallengeError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, session)
}

// RequestEmergencyCode emails a one-time code for a pending login challenge
// @Summary Request an emergency login code by email
// @Accept json
// @Param request body ChallengeRequest true "Challenge token"
// @Produce json
// @Success 202
// @Failure 400 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /auth/login/emergency [post]
func (h *AuthHandler) RequestEmergencyCode(w http.ResponseWriter, r *http.Request) {
	var req ChallengeRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.RequestEmergencyCode(r.Context(), req.ChallengeToken); err != nil {
		writeChallengeError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusAccepted, map[string]string{
		"message": "An emergency code has been sent to your email address.",
	})
}

// VerifyEmergencyCode completes a challenged login with an emailed code
// @Summary Verify emergency login code
// @Accept json
// @Param request body ChallengeCodeRequest true "Verification request"
// @Produce json
// @Success 200 {object} services.SessionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /auth/login/emergency/verify [post]
func (h *AuthHandler) VerifyEmergencyCode(w http.ResponseWriter, r *http.Request) {
	var req ChallengeCodeRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	session, err := h.service.VerifyEmergencyCode(r.Context(), req.ChallengeToken, req.Code)
	if err != nil {
		writeChallengeError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, session)
}

// DisableTwoFactor drops the second factor mid-login after the password is
// proven again, then completes the login
// @Summary Disable two-factor during login
// @Accept json
// @Param request body DisableTwoFactorLoginRequest true "Disable request"
// @Produce json
// @Success 200 {object} services.SessionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /auth/login/disable-2fa [post]
func (h *AuthHandler) DisableTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req DisableTwoFactorLoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	session, err := h.service.DisableTwoFactorDuringLogin(r.Context(), req.ChallengeToken, req.Password, ipAddress)
	if err != nil {
		writeChallengeError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, session)
}

// CancelChallenge abandons a pending login challenge. Cancelling a challenge
// that already expired or was consumed is a no-op.
// @Summary Cancel a pending login challenge
// @Accept json
// @Param request body ChallengeRequest true "Challenge token"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Router /auth/login/cancel [post]
func (h *AuthHandler) CancelChallenge(w http.ResponseWriter, r *http.Request) {
	var req ChallengeRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.CancelChallenge(r.Context(), req.ChallengeToken); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RefreshToken handles token refresh
// @Summary Refresh access token
// @Accept json
// @Param request body RefreshTokenRequest true "Refresh token request"
// @Produce json
// @Success 200 {object} services.SessionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/refresh [post]
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	session, err := h.service.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUnauthorized),
			errors.Is(err, models.ErrAccountDisabled),
			errors.Is(err, models.ErrAccountSuspended),
			errors.Is(err, models.ErrAccountLocked):
			pkghttp.WriteUnauthorized(w, "Authentication failed")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, session)
}

// Logout handles user logout by revoking the access token
// @Summary User logout
// @Security BearerAuth
// @Success 204
// @Failure 401 {object} ErrorResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	accessToken := auth.GetTokenFromContext(r)
	if accessToken == "" {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	if err := h.service.Logout(r.Context(), accessToken); err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			pkghttp.WriteUnauthorized(w, "Invalid token")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll handles logout from all devices by rotating the token key
// @Summary Logout from all devices
// @Security BearerAuth
// @Success 204
// @Failure 401 {object} ErrorResponse
// @Router /auth/logout-all [post]
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	if err := h.service.LogoutAll(r.Context(), claims.UserID); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeChallengeError maps challenge-step failures onto HTTP status codes.
// A dead challenge is 410 so clients know to restart the login, while a
// wrong code is 401 and leaves the challenge open.
func writeChallengeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrChallengeInvalid):
		pkghttp.WriteGone(w, "Login challenge has expired or been used. Please sign in again.")
	case errors.Is(err, models.ErrCodeAttemptsExhausted):
		pkghttp.WriteTooManyRequests(w, "Too many incorrect codes. Please sign in again.")
	case errors.Is(err, models.ErrInvalidCode),
		errors.Is(err, models.ErrInvalidCredentials):
		pkghttp.WriteUnauthorized(w, "Verification failed")
	case errors.Is(err, models.ErrAccountDisabled),
		errors.Is(err, models.ErrAccountSuspended),
		errors.Is(err, models.ErrAccountLocked):
		pkghttp.WriteUnauthorized(w, "Authentication failed")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
