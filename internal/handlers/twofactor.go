package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/stationhub/identity/internal/auth"
	"github.com/stationhub/identity/internal/models"
	"github.com/stationhub/identity/internal/services"
	pkghttp "github.com/stationhub/identity/pkg/http"
)

// TwoFactorServiceInterface defines the interface for authenticator management
type TwoFactorServiceInterface interface {
	BeginEnrollment(ctx context.Context, userID string) (*services.EnrollmentResponse, error)
	ActivateEnrollment(ctx context.Context, userID, enrollmentID, code string) error
	Disable(ctx context.Context, userID, ipAddress string) error
	Status(ctx context.Context, userID string) (*services.TwoFactorStatus, error)
}

// TwoFactorHandler handles authenticator enrollment for signed-in users
type TwoFactorHandler struct {
	service  TwoFactorServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewTwoFactorHandler creates a new TwoFactorHandler
func NewTwoFactorHandler(service TwoFactorServiceInterface, ipConfig *pkghttp.IPConfig) *TwoFactorHandler {
	return &TwoFactorHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// ActivateEnrollmentRequest proves the authenticator was provisioned correctly
type ActivateEnrollmentRequest struct {
	EnrollmentID string `json:"enrollment_id" validate:"required"`
	Code         string `json:"code" validate:"required,len=6"`
}

// BeginEnrollment starts authenticator setup and returns the QR code
// @Summary Begin two-factor enrollment
// @Security BearerAuth
// @Produce json
// @Success 200 {object} services.EnrollmentResponse
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /2fa/enroll [post]
func (h *TwoFactorHandler) BeginEnrollment(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	enrollment, err := h.service.BeginEnrollment(r.Context(), claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "Two-factor authentication is already enabled")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteUnauthorized(w, "unauthorized")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, enrollment)
}

// ActivateEnrollment turns a pending enrollment on after a correct code
// @Summary Activate two-factor enrollment
// @Security BearerAuth
// @Accept json
// @Param request body ActivateEnrollmentRequest true "Activation request"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /2fa/activate [post]
func (h *TwoFactorHandler) ActivateEnrollment(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req ActivateEnrollmentRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	err := h.service.ActivateEnrollment(r.Context(), claims.UserID, req.EnrollmentID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidCode):
			pkghttp.WriteBadRequest(w, "Incorrect authenticator code")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Enrollment not found")
		case errors.Is(err, models.ErrForbidden):
			pkghttp.WriteForbidden(w, "Enrollment belongs to another account")
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "Two-factor authentication is already enabled")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Disable turns two-factor off from account settings
// @Summary Disable two-factor authentication
// @Security BearerAuth
// @Success 204
// @Failure 401 {object} ErrorResponse
// @Router /2fa [delete]
func (h *TwoFactorHandler) Disable(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	if err := h.service.Disable(r.Context(), claims.UserID, ipAddress); err != nil {
		switch {
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Two-factor authentication is not enabled")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteUnauthorized(w, "unauthorized")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Status reports whether the account has a second factor enrolled
// @Summary Get two-factor status
// @Security BearerAuth
// @Produce json
// @Success 200 {object} services.TwoFactorStatus
// @Failure 401 {object} ErrorResponse
// @Router /2fa [get]
func (h *TwoFactorHandler) Status(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	status, err := h.service.Status(r.Context(), claims.UserID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, status)
}
