package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stationhub/identity/internal/auth"
	"github.com/stationhub/identity/internal/models"
	"github.com/stationhub/identity/internal/services"
	pkghttp "github.com/stationhub/identity/pkg/http"
)

// SocialServiceInterface defines the interface for social provider linking
type SocialServiceInterface interface {
	AuthorizeURL(provider, state string) (string, error)
	CompleteLink(ctx context.Context, userID, provider, code, errParam string) (*services.SocialLinkResponse, error)
	Unlink(ctx context.Context, userID, provider, ipAddress string) error
	ListLinks(ctx context.Context, userID string) ([]*services.SocialLinkResponse, error)
	LoginWithProvider(ctx context.Context, provider, code, errParam string) (*services.SessionResponse, error)
}

// SocialHandler handles social provider link and login flows
type SocialHandler struct {
	service  SocialServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewSocialHandler creates a new SocialHandler
func NewSocialHandler(service SocialServiceInterface, ipConfig *pkghttp.IPConfig) *SocialHandler {
	return &SocialHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// SocialCallbackRequest carries the provider redirect parameters. Exactly one
// of code and error is set by the provider.
type SocialCallbackRequest struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// AuthorizeURLResponse carries the consent URL the client should open
type AuthorizeURLResponse struct {
	AuthorizeURL string `json:"authorize_url"`
}

// CancelledResponse is returned when the user backed out at the provider.
// It is a 200; backing out is not a failure.
type CancelledResponse struct {
	Status string `json:"status"`
}

// Authorize returns the provider consent URL for a link flow
// @Summary Get provider authorization URL
// @Security BearerAuth
// @Param provider path string true "Provider name"
// @Param state query string true "Opaque client state"
// @Produce json
// @Success 200 {object} AuthorizeURLResponse
// @Failure 400 {object} ErrorResponse
// @Router /social/{provider}/authorize [get]
func (h *SocialHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	provider := chi.URLParam(r, "provider")
	state := r.URL.Query().Get("state")

	url, err := h.service.AuthorizeURL(provider, state)
	if err != nil {
		pkghttp.WriteBadRequest(w, "Unknown provider")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, AuthorizeURLResponse{AuthorizeURL: url})
}

// CompleteLink finishes a link flow with the provider redirect result
// @Summary Complete provider link
// @Security BearerAuth
// @Accept json
// @Param provider path string true "Provider name"
// @Param request body SocialCallbackRequest true "Provider redirect result"
// @Produce json
// @Success 200 {object} services.SocialLinkResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /social/{provider}/link [post]
func (h *SocialHandler) CompleteLink(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req SocialCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	provider := chi.URLParam(r, "provider")

	link, err := h.service.CompleteLink(r.Context(), claims.UserID, provider, req.Code, req.Error)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrProviderCancelled):
			// User backed out at the consent screen. Quiet return, no error.
			pkghttp.WriteJSON(w, http.StatusOK, CancelledResponse{Status: "cancelled"})
		case errors.Is(err, models.ErrProviderDenied):
			pkghttp.WriteForbidden(w, "The provider denied the authorization request")
		case errors.Is(err, models.ErrAlreadyLinked):
			pkghttp.WriteError(w, http.StatusConflict, "already_linked", "This provider identity is linked to another account")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Unknown provider")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, link)
}

// Unlink removes a provider link. Removing the last sign-in method of a
// passwordless account is refused.
// @Summary Unlink a social provider
// @Security BearerAuth
// @Param provider path string true "Provider name"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /social/{provider} [delete]
func (h *SocialHandler) Unlink(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	provider := chi.URLParam(r, "provider")
	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	if err := h.service.Unlink(r.Context(), claims.UserID, provider, ipAddress); err != nil {
		switch {
		case errors.Is(err, models.ErrSoleAuthMethod):
			pkghttp.WriteError(w, http.StatusConflict, "sole_auth_method", "Cannot unlink the only way to sign in. Set a password first.")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Provider is not linked")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Unknown provider")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListLinks returns the providers linked to the current account
// @Summary List linked social providers
// @Security BearerAuth
// @Produce json
// @Success 200 {array} services.SocialLinkResponse
// @Router /social [get]
func (h *SocialHandler) ListLinks(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	links, err := h.service.ListLinks(r.Context(), claims.UserID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, links)
}

// Login signs in with a provider identity that is already linked
// @Summary Login with a social provider
// @Accept json
// @Param provider path string true "Provider name"
// @Param request body SocialCallbackRequest true "Provider redirect result"
// @Produce json
// @Success 200 {object} services.SessionResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /auth/social/{provider} [post]
func (h *SocialHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req SocialCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	provider := chi.URLParam(r, "provider")

	session, err := h.service.LoginWithProvider(r.Context(), provider, req.Code, req.Error)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrProviderCancelled):
			pkghttp.WriteJSON(w, http.StatusOK, CancelledResponse{Status: "cancelled"})
		case errors.Is(err, models.ErrProviderDenied):
			pkghttp.WriteForbidden(w, "The provider denied the authorization request")
		case errors.Is(err, models.ErrInvalidCredentials),
			errors.Is(err, models.ErrAccountDisabled),
			errors.Is(err, models.ErrAccountSuspended):
			pkghttp.WriteUnauthorized(w, "No account is linked to this provider identity")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Unknown provider")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, session)
}
