package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stationhub/identity/internal/auth"
	"github.com/stationhub/identity/internal/background"
	"github.com/stationhub/identity/internal/config"
	"github.com/stationhub/identity/internal/database"
	"github.com/stationhub/identity/internal/handlers"
	middlewareCustom "github.com/stationhub/identity/internal/middleware"
	"github.com/stationhub/identity/internal/models"
	"github.com/stationhub/identity/internal/repositories"
	"github.com/stationhub/identity/internal/routes"
	"github.com/stationhub/identity/internal/services"
	pkgauth "github.com/stationhub/identity/pkg/auth"
	pkghttp "github.com/stationhub/identity/pkg/http"
	pkglogger "github.com/stationhub/identity/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	challengeRepo := repositories.NewLoginChallengeRepository(db)
	emergencyCodeRepo := repositories.NewEmergencyCodeRepository(db)
	twoFactorRepo := repositories.NewTwoFactorRepository(db)
	socialLinkRepo := repositories.NewSocialLinkRepository(db)
	invitationRepo := repositories.NewInvitationRepository(db)
	verificationRepo := repositories.NewVerificationRepository(db)
	portalAccountRepo := repositories.NewPortalAccountRepository(db)
	revokeRepo := repositories.NewTokenRevocationRepository(db)
	loginAttemptRepo := repositories.NewLoginAttemptRepository(db)

	// Initialize cleanup manager
	cleanupManager := background.NewCleanupManager(
		challengeRepo,
		emergencyCodeRepo,
		invitationRepo,
		revokeRepo,
		loginAttemptRepo,
		logger,
		cfg.Auth.CleanupInterval,
	)

	// Initialize token manager with per-user composite signing
	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
		cfg.Portal.TokenExpiry,
	)
	tokenManager.SetUserRepo(userRepo)

	totpManager, err := auth.NewTOTPManager([]byte(cfg.Auth.TOTPEncryptionKey), cfg.Auth.TOTPIssuer)
	if err != nil {
		logger.Error("failed to initialize TOTP manager", slog.Any("error", err))
		os.Exit(1)
	}

	auditLogger := pkglogger.NewAuditLogger(logger)

	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:    200,
		RandomDelayMs:  100,
		DelayOnSuccess: true,
	})

	rateLimitService := services.NewRateLimitService(loginAttemptRepo, services.RateLimitConfig{
		MaxFailedAttempts: 5,
		LockoutDuration:   15 * time.Minute,
		LookbackWindow:    15 * time.Minute,
	}, logger)

	emailService, err := services.NewAWSSESEmailService(
		cfg.Email.AWSRegion,
		cfg.Email.FromAddress,
		cfg.Portal.LoginURL,
		logger,
	)
	if err != nil {
		logger.Error("failed to initialize email service", slog.Any("error", err))
		os.Exit(1)
	}

	verificationGateway := services.NewHTTPVerificationGateway(cfg.Verification.ProviderBaseURL)
	socialGateway := services.NewHTTPSocialGateway(cfg.Social.AuthorizeURLBase)

	// Initialize services
	authService := services.NewAuthService(
		userRepo,
		challengeRepo,
		emergencyCodeRepo,
		twoFactorRepo,
		revokeRepo,
		tokenManager,
		totpManager,
		timingDelay,
		emailService,
		rateLimitService,
		services.AuthServiceConfig{
			ChallengeExpiry:     cfg.Auth.ChallengeExpiry,
			MaxCodeAttempts:     cfg.Auth.MaxCodeAttempts,
			EmergencyCodeExpiry: cfg.Auth.EmergencyCodeExpiry,
		},
		logger,
		auditLogger,
	)
	authService.SetSocialLinkRepo(socialLinkRepo)
	twoFactorService := services.NewTwoFactorService(userRepo, twoFactorRepo, emergencyCodeRepo, totpManager, logger, auditLogger)
	socialService := services.NewSocialService(userRepo, socialLinkRepo, socialGateway, authService, cfg.Social.AuthorizeURLBase, logger, auditLogger)
	verificationService := services.NewVerificationService(userRepo, verificationRepo, verificationGateway, cfg.Verification.StoreKey, cfg.Verification.ChannelKey, logger, auditLogger)
	invitationService := services.NewInvitationService(invitationRepo, userRepo, userRepo, db, emailService, cfg.Invitation.Expiry, logger, auditLogger)
	portalService := services.NewPortalService(userRepo, portalAccountRepo, tokenManager, authService, cfg.Portal.LoginURL, logger, auditLogger)

	// Bootstrap the first admin account if configured
	ctx := context.Background()
	if err := ensureAdminUser(ctx, userRepo, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
		os.Exit(1)
	}

	ipConfig := &pkghttp.IPConfig{
		TrustedProxies: []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"},
	}

	// Initialize handlers
	h := routes.Handlers{
		Auth:         handlers.NewAuthHandler(authService, ipConfig),
		TwoFactor:    handlers.NewTwoFactorHandler(twoFactorService, ipConfig),
		Social:       handlers.NewSocialHandler(socialService, ipConfig),
		Verification: handlers.NewVerificationHandler(verificationService),
		Invitation:   handlers.NewInvitationHandler(invitationService),
		Portal:       handlers.NewPortalHandler(portalService),
	}

	// Build the router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.NewCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, h, tokenManager, userRepo, revokeRepo)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		healthCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := db.HealthCheck(healthCtx); err != nil {
			pkghttp.WriteError(w, http.StatusServiceUnavailable, "unhealthy", "Database unavailable")
			return
		}
		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go cleanupManager.Start(ctx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	cleanupManager.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// ensureAdminUser creates the first admin account when ADMIN_EMAIL and
// ADMIN_PASSWORD are set. Subsequent accounts arrive through invitations.
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	if _, err := userRepo.GetByEmail(ctx, adminEmail); err == nil {
		return nil
	} else if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to look up admin user: %w", err)
	}

	if err := pkgauth.ValidatePassword(adminPassword); err != nil {
		return fmt.Errorf("ADMIN_PASSWORD rejected: %w", err)
	}

	hash, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	if _, err := userRepo.Create(ctx, &models.User{
		Email:        adminEmail,
		PasswordHash: hash,
		Name:         "Administrator",
		Role:         models.RoleAdmin,
		UserType:     models.UserTypeBusiness,
		Status:       "active",
	}); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created", slog.String("email", pkglogger.SanitizedEmail(adminEmail)))
	return nil
}
