package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/stationhub/identity/internal/auth"
	"github.com/stationhub/identity/internal/models"
	"github.com/stationhub/identity/internal/services"
	pkghttp "github.com/stationhub/identity/pkg/http"
)

// VerificationServiceInterface defines the interface for phone identity verification
type VerificationServiceInterface interface {
	Start(ctx context.Context, userID, customerName, phone string) (*services.VerificationStartResponse, error)
	Complete(ctx context.Context, userID, requestID string) (*services.VerificationStatusResponse, error)
	Cancel(ctx context.Context, userID, requestID string) error
	Status(ctx context.Context, userID, requestID string) (*services.VerificationStatusResponse, error)
}

// VerificationHandler handles phone identity verification requests
type VerificationHandler struct {
	service VerificationServiceInterface
}

// NewVerificationHandler creates a new VerificationHandler
func NewVerificationHandler(service VerificationServiceInterface) *VerificationHandler {
	return &VerificationHandler{service: service}
}

// StartVerificationRequest represents the request body for starting verification
type StartVerificationRequest struct {
	Name  string `json:"name" validate:"required,min=1,max=100"`
	Phone string `json:"phone" validate:"required,min=8,max=20"`
}

// Start creates a verification request and hands the user to the provider
// @Summary Start phone identity verification
// @Security BearerAuth
// @Accept json
// @Param request body StartVerificationRequest true "Verification request"
// @Produce json
// @Success 201 {object} services.VerificationStartResponse
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /verification [post]
func (h *VerificationHandler) Start(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req StartVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)

	resp, err := h.service.Start(r.Context(), claims.UserID, req.Name, req.Phone)
	if err != nil {
		if errors.Is(err, models.ErrVerificationConfigMissing) {
			pkghttp.WriteError(w, http.StatusServiceUnavailable, "provider_unavailable",
				"Identity verification is temporarily unavailable")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, resp)
}

// Complete confirms a verification request against the provider
// @Summary Complete phone identity verification
// @Security BearerAuth
// @Param id path string true "Verification request ID"
// @Produce json
// @Success 200 {object} services.VerificationStatusResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /verification/{id}/complete [post]
func (h *VerificationHandler) Complete(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	requestID := chi.URLParam(r, "id")

	resp, err := h.service.Complete(r.Context(), claims.UserID, requestID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrProviderCancelled):
			// User backed out at the provider. Quiet return, no error.
			pkghttp.WriteJSON(w, http.StatusOK, CancelledResponse{Status: "cancelled"})
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Verification request not found")
		case errors.Is(err, models.ErrForbidden):
			pkghttp.WriteForbidden(w, "Verification request belongs to another account")
		case errors.Is(err, models.ErrVerificationMismatch):
			pkghttp.WriteConflict(w, "The provider has not confirmed this verification")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Cancel abandons a pending verification request
// @Summary Cancel phone identity verification
// @Security BearerAuth
// @Param id path string true "Verification request ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /verification/{id} [delete]
func (h *VerificationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	requestID := chi.URLParam(r, "id")

	if err := h.service.Cancel(r.Context(), claims.UserID, requestID); err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Verification request not found")
		case errors.Is(err, models.ErrForbidden):
			pkghttp.WriteForbidden(w, "Verification request belongs to another account")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Status reports where a verification request stands
// @Summary Get verification request status
// @Security BearerAuth
// @Param id path string true "Verification request ID"
// @Produce json
// @Success 200 {object} services.VerificationStatusResponse
// @Failure 404 {object} ErrorResponse
// @Router /verification/{id} [get]
func (h *VerificationHandler) Status(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	requestID := chi.URLParam(r, "id")

	resp, err := h.service.Status(r.Context(), claims.UserID, requestID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Verification request not found")
		case errors.Is(err, models.ErrForbidden):
			pkghttp.WriteForbidden(w, "Verification request belongs to another account")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}
