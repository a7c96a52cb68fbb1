package handlers_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stationhub/identity/internal/handlers"
	"github.com/stationhub/identity/internal/models"
	"github.com/stationhub/identity/internal/services"
	"github.com/stretchr/testify/assert"
)

func TestPortalExchange_Success(t *testing.T) {
	mockPortal := &handlers.MockPortalService{
		ExchangeFunc: func(ctx context.Context, portalToken, appID string) (*services.SessionResponse, error) {
			assert.Equal(t, "portal_token_123", portalToken)
			assert.Equal(t, "wash", appID)
			// Satellite sessions carry no new portal token
			return &services.SessionResponse{
				AccessToken:  "satellite_access",
				RefreshToken: "satellite_refresh",
			}, nil
		},
	}

	handler := handlers.NewPortalHandler(mockPortal)
	req := handlers.NewTestRequest(t, "POST", "/portal/exchange", handlers.ExchangeRequest{
		PortalToken: "portal_token_123",
		AppID:       "wash",
	})

	w := httptest.NewRecorder()
	handler.Exchange(w, req)

	var resp services.SessionResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "satellite_access", resp.AccessToken)
	assert.Empty(t, resp.PortalToken)
}

func TestPortalExchange_ExpiredToken(t *testing.T) {
	mockPortal := &handlers.MockPortalService{
		ExchangeFunc: func(ctx context.Context, portalToken, appID string) (*services.SessionResponse, error) {
			return nil, models.ErrUnauthorized
		},
	}

	handler := handlers.NewPortalHandler(mockPortal)
	req := handlers.NewTestRequest(t, "POST", "/portal/exchange", handlers.ExchangeRequest{
		PortalToken: "stale_token",
		AppID:       "wash",
	})

	w := httptest.NewRecorder()
	handler.Exchange(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestPortalExchange_MissingAppID(t *testing.T) {
	handler := handlers.NewPortalHandler(&handlers.MockPortalService{})
	req := handlers.NewTestRequest(t, "POST", "/portal/exchange", handlers.ExchangeRequest{
		PortalToken: "portal_token_123",
	})

	w := httptest.NewRecorder()
	handler.Exchange(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestPortalSync_Success(t *testing.T) {
	var syncedUser, syncedApp string
	mockPortal := &handlers.MockPortalService{
		SyncFunc: func(ctx context.Context, userID, appID string) error {
			syncedUser = userID
			syncedApp = appID
			return nil
		},
	}

	handler := handlers.NewPortalHandler(mockPortal)
	req := handlers.NewTestRequest(t, "POST", "/portal/sync", handlers.SyncRequest{AppID: "station"})
	req = handlers.WithAuthContext(req, "user-1", "user@example.com")

	w := httptest.NewRecorder()
	handler.Sync(w, req)

	assert.Equal(t, 204, w.Code)
	assert.Equal(t, "user-1", syncedUser)
	assert.Equal(t, "station", syncedApp)
}

func TestPortalListAccounts(t *testing.T) {
	mockPortal := &handlers.MockPortalService{
		ListAccountsFunc: func(ctx context.Context, userID string) ([]*services.PortalAccountResponse, error) {
			return []*services.PortalAccountResponse{
				{AppID: "wash"},
				{AppID: "station"},
			}, nil
		},
	}

	handler := handlers.NewPortalHandler(mockPortal)
	req := handlers.NewTestRequest(t, "GET", "/portal/accounts", nil)
	req = handlers.WithAuthContext(req, "user-1", "user@example.com")

	w := httptest.NewRecorder()
	handler.ListAccounts(w, req)

	var resp []services.PortalAccountResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Len(t, resp, 2)
}

func TestPortalLoginRedirect_CarriesReturnAddress(t *testing.T) {
	mockPortal := &handlers.MockPortalService{
		LoginRedirectURLFunc: func(returnTo string) string {
			assert.Equal(t, "https://wash.example.com/home", returnTo)
			return "https://portal.example.com/login?redirect=https%3A%2F%2Fwash.example.com%2Fhome"
		},
	}

	handler := handlers.NewPortalHandler(mockPortal)
	req := handlers.NewTestRequest(t, "GET", "/portal/login-url?return_to=https%3A%2F%2Fwash.example.com%2Fhome", nil)

	w := httptest.NewRecorder()
	handler.LoginRedirect(w, req)

	var resp handlers.LoginRedirectResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Contains(t, resp.LoginURL, "redirect=")
}
