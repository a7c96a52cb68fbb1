// Command satellite is a minimal federated application demonstrating the
// pkg/portal client: it bootstraps from the portal_token redirect, reports
// its connection state, and clears the token on logout.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/stationhub/identity/pkg/portal"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	appID := getEnv("SATELLITE_APP_ID", "wash-app")
	identityURL := getEnv("IDENTITY_SERVICE_URL", "http://localhost:8080")
	loginURL := getEnv("PORTAL_LOGIN_URL", "https://portal.example.com/login")
	port := getEnv("SATELLITE_PORT", "8090")

	var store portal.TokenStore = portal.NewMemoryStore()
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		store = portal.NewRedisStore(rdb, appID)
		logger.Info("using redis token store", slog.String("addr", addr))
	}

	client := portal.NewHTTPClient(identityURL)
	bridge := portal.NewBridge(store, client, appID, loginURL, logger)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(30 * time.Second))

	// The boot entry point every portal redirect lands on
	router.Get("/bootstrap", func(w http.ResponseWriter, r *http.Request) {
		target := bridge.Bootstrap(r.Context(), r.URL.Query())
		http.Redirect(w, r, target, http.StatusFound)
	})

	router.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"app_id":    appID,
			"connected": bridge.Connected(r.Context()),
		})
	})

	router.Post("/logout", func(w http.ResponseWriter, r *http.Request) {
		if err := bridge.Logout(r.Context()); err != nil {
			logger.Error("logout failed", slog.Any("error", err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("satellite started", slog.String("app_id", appID), slog.String("port", port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down satellite")
	bridge.Flush()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", slog.Any("error", err))
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
