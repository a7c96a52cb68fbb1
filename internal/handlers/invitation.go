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
	pkgauth "github.com/stationhub/identity/pkg/auth"
	pkghttp "github.com/stationhub/identity/pkg/http"
)

// InvitationServiceInterface defines the interface for invitation provisioning
type InvitationServiceInterface interface {
	Create(ctx context.Context, inviterID, email, role, userType, adminMessage string) (*services.InvitationResponse, error)
	Verify(ctx context.Context, token string) (*services.InvitationResponse, error)
	Accept(ctx context.Context, token string, params services.AcceptInvitationParams) (*services.UserResponse, error)
	Cancel(ctx context.Context, actorID, invitationID string) error
}

// InvitationHandler handles invitation-based account provisioning
type InvitationHandler struct {
	service InvitationServiceInterface
}

// NewInvitationHandler creates a new InvitationHandler
func NewInvitationHandler(service InvitationServiceInterface) *InvitationHandler {
	return &InvitationHandler{service: service}
}

// CreateInvitationRequest represents the request body for issuing an invitation
type CreateInvitationRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Role         string `json:"role" validate:"required,oneof=user admin"`
	UserType     string `json:"user_type" validate:"required,oneof=customer business"`
	AdminMessage string `json:"admin_message" validate:"max=500"`
}

// VerifyInvitationRequest carries the plain invitation token. The token rides
// in the body, not the URL, so it stays out of access logs.
type VerifyInvitationRequest struct {
	Token string `json:"token" validate:"required"`
}

// AcceptInvitationRequest represents the request body for redeeming an invitation
type AcceptInvitationRequest struct {
	Token            string `json:"token" validate:"required"`
	Name             string `json:"name" validate:"required,min=1,max=100"`
	Password         string `json:"password" validate:"required"`
	Phone            string `json:"phone" validate:"omitempty,max=20"`
	TermsAccepted    bool   `json:"terms_accepted" validate:"required"`
	MarketingConsent bool   `json:"marketing_consent"`
}

// Create issues an invitation and emails the token to the invitee
// @Summary Create an invitation
// @Security BearerAuth
// @Accept json
// @Param request body CreateInvitationRequest true "Invitation request"
// @Produce json
// @Success 201 {object} services.InvitationResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /invitations [post]
func (h *InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req CreateInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	inv, err := h.service.Create(r.Context(), claims.UserID, req.Email, req.Role, req.UserType, req.AdminMessage)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "An account already exists for this email")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Invalid invitation parameters")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, inv)
}

// Verify resolves a token to invitation details for the acceptance page
// @Summary Verify an invitation token
// @Accept json
// @Param request body VerifyInvitationRequest true "Token"
// @Produce json
// @Success 200 {object} services.InvitationResponse
// @Failure 409 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /invitations/verify [post]
func (h *InvitationHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	inv, err := h.service.Verify(r.Context(), req.Token)
	if err != nil {
		writeInvitationTokenError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, inv)
}

// Accept redeems an invitation and creates the account
// @Summary Accept an invitation
// @Accept json
// @Param request body AcceptInvitationRequest true "Acceptance request"
// @Produce json
// @Success 201 {object} services.UserResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /invitations/accept [post]
func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	var req AcceptInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, err := h.service.Accept(r.Context(), req.Token, services.AcceptInvitationParams{
		Name:             req.Name,
		Password:         req.Password,
		Phone:            req.Phone,
		TermsAccepted:    req.TermsAccepted,
		MarketingConsent: req.MarketingConsent,
	})
	if err != nil {
		var pve *pkgauth.PasswordValidationError
		switch {
		case errors.As(err, &pve):
			pkghttp.WriteBadRequest(w, pve.Error())
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Invalid acceptance parameters")
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "An account already exists for this email")
		default:
			writeInvitationTokenError(w, err)
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, user)
}

// Cancel withdraws a pending invitation
// @Summary Cancel an invitation
// @Security BearerAuth
// @Param id path string true "Invitation ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /invitations/{id} [delete]
func (h *InvitationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	invitationID := chi.URLParam(r, "id")

	if err := h.service.Cancel(r.Context(), claims.UserID, invitationID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Invitation not found or not pending")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeInvitationTokenError distinguishes a dead token (410, start over with
// a new invitation) from one that already produced an account (409).
func writeInvitationTokenError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrTokenConsumed):
		pkghttp.WriteConflict(w, "This invitation has already been accepted")
	case errors.Is(err, models.ErrTokenInvalid):
		pkghttp.WriteGone(w, "This invitation is invalid or has expired")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
