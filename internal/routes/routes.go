package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/stationhub/identity/internal/auth"
	"github.com/stationhub/identity/internal/handlers"
	"github.com/stationhub/identity/internal/middleware"
	"github.com/stationhub/identity/internal/repositories"
)

// Handlers groups every HTTP handler the router mounts
type Handlers struct {
	Auth         *handlers.AuthHandler
	TwoFactor    *handlers.TwoFactorHandler
	Social       *handlers.SocialHandler
	Verification *handlers.VerificationHandler
	Invitation   *handlers.InvitationHandler
	Portal       *handlers.PortalHandler
}

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	h Handlers,
	tokenManager *auth.TokenManager,
	userRepo *repositories.UserRepository,
	revokeRepo *repositories.TokenRevocationRepository,
) {
	authLimit := middleware.DefaultAuthRateLimit()
	apiLimit := middleware.DefaultAPIRateLimit()

	// Public routes. Everything here either carries credentials or a
	// challenge/invitation/portal token, so the per-IP budget is tight.
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(authLimit))

		r.Post("/auth/login", h.Auth.Login)
		r.Post("/auth/login/verify", h.Auth.VerifyTwoFactor)
		r.Post("/auth/login/emergency", h.Auth.RequestEmergencyCode)
		r.Post("/auth/login/emergency/verify", h.Auth.VerifyEmergencyCode)
		r.Post("/auth/login/disable-2fa", h.Auth.DisableTwoFactor)
		r.Post("/auth/login/cancel", h.Auth.CancelChallenge)
		r.Post("/auth/refresh", h.Auth.RefreshToken)
		r.Post("/auth/social/{provider}", h.Social.Login)

		r.Post("/invitations/verify", h.Invitation.Verify)
		r.Post("/invitations/accept", h.Invitation.Accept)

		r.Post("/portal/exchange", h.Portal.Exchange)
		r.Get("/portal/login-url", h.Portal.LoginRedirect)
	})

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddlewareWithRevocation(tokenManager, revokeRepo))
		r.Use(middleware.RateLimitByUser(apiLimit))

		r.Post("/auth/logout", h.Auth.Logout)
		r.Post("/auth/logout-all", h.Auth.LogoutAll)

		r.Get("/2fa", h.TwoFactor.Status)
		r.Post("/2fa/enroll", h.TwoFactor.BeginEnrollment)
		r.Post("/2fa/activate", h.TwoFactor.ActivateEnrollment)
		r.Delete("/2fa", h.TwoFactor.Disable)

		r.Get("/social", h.Social.ListLinks)
		r.Get("/social/{provider}/authorize", h.Social.Authorize)
		r.Post("/social/{provider}/link", h.Social.CompleteLink)
		r.Delete("/social/{provider}", h.Social.Unlink)

		r.Post("/verification", h.Verification.Start)
		r.Get("/verification/{id}", h.Verification.Status)
		r.Post("/verification/{id}/complete", h.Verification.Complete)
		r.Delete("/verification/{id}", h.Verification.Cancel)

		r.Post("/portal/sync", h.Portal.Sync)
		r.Get("/portal/accounts", h.Portal.ListAccounts)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(userRepo, "admin"))
			r.Post("/invitations", h.Invitation.Create)
			r.Delete("/invitations/{id}", h.Invitation.Cancel)
		})
	})
}
