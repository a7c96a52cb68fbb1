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

// PortalServiceInterface defines the interface for cross-application federation
type PortalServiceInterface interface {
	Exchange(ctx context.Context, portalToken, appID string) (*services.SessionResponse, error)
	Sync(ctx context.Context, userID, appID string) error
	ListAccounts(ctx context.Context, userID string) ([]*services.PortalAccountResponse, error)
	LoginRedirectURL(returnTo string) string
}

// PortalHandler handles portal token exchange for satellite applications
type PortalHandler struct {
	service PortalServiceInterface
}

// NewPortalHandler creates a new PortalHandler
func NewPortalHandler(service PortalServiceInterface) *PortalHandler {
	return &PortalHandler{service: service}
}

// ExchangeRequest represents the request body for portal token exchange
type ExchangeRequest struct {
	PortalToken string `json:"portal_token" validate:"required"`
	AppID       string `json:"app_id" validate:"required,min=1,max=64"`
}

// SyncRequest represents the request body for account sync
type SyncRequest struct {
	AppID string `json:"app_id" validate:"required,min=1,max=64"`
}

// LoginRedirectResponse carries the portal login URL for unauthenticated clients
type LoginRedirectResponse struct {
	LoginURL string `json:"login_url"`
}

// Exchange trades a portal token for a session scoped to the calling satellite
// @Summary Exchange a portal token for a session
// @Accept json
// @Param request body ExchangeRequest true "Exchange request"
// @Produce json
// @Success 200 {object} services.SessionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /portal/exchange [post]
func (h *PortalHandler) Exchange(w http.ResponseWriter, r *http.Request) {
	var req ExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	session, err := h.service.Exchange(r.Context(), req.PortalToken, req.AppID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Portal token is invalid or expired")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Invalid exchange parameters")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, session)
}

// Sync reconciles the satellite account record for the current user
// @Summary Sync a satellite account
// @Security BearerAuth
// @Accept json
// @Param request body SyncRequest true "Sync request"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Router /portal/sync [post]
func (h *PortalHandler) Sync(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.Sync(r.Context(), claims.UserID, req.AppID); err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, "Invalid sync parameters")
			return
		}
		if errors.Is(err, models.ErrDuplicateRequest) {
			pkghttp.WriteTooManyRequests(w, "Sync already in progress")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListAccounts returns the satellites this user has federated into
// @Summary List federated satellite accounts
// @Security BearerAuth
// @Produce json
// @Success 200 {array} services.PortalAccountResponse
// @Router /portal/accounts [get]
func (h *PortalHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	accounts, err := h.service.ListAccounts(r.Context(), claims.UserID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, accounts)
}

// LoginRedirect returns the portal login URL carrying the return address
// @Summary Get the portal login redirect URL
// @Param return_to query string false "URL to return to after login"
// @Produce json
// @Success 200 {object} LoginRedirectResponse
// @Router /portal/login-url [get]
func (h *PortalHandler) LoginRedirect(w http.ResponseWriter, r *http.Request) {
	returnTo := r.URL.Query().Get("return_to")
	pkghttp.WriteJSON(w, http.StatusOK, LoginRedirectResponse{
		LoginURL: h.service.LoginRedirectURL(returnTo),
	})
}
