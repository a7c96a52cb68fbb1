package portal_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stationhub/identity/pkg/portal"
)

func stubServer(t *testing.T, status int, body interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if body != nil {
			_ = json.NewEncoder(w).Encode(body)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func errorBody(code, message string) map[string]string {
	return map[string]string{"error": code, "message": message}
}

func TestHTTPClient_LoginMapsUnauthorized(t *testing.T) {
	srv := stubServer(t, http.StatusUnauthorized, errorBody("unauthorized", "Authentication failed"))
	client := portal.NewHTTPClient(srv.URL)

	_, err := client.Login(context.Background(), "user@example.com", "wrong", false)

	assert.ErrorIs(t, err, portal.ErrInvalidCredentials)
}

func TestHTTPClient_LoginMapsLockout(t *testing.T) {
	srv := stubServer(t, http.StatusTooManyRequests, errorBody("rate_limit_exceeded", "Too many failed attempts"))
	client := portal.NewHTTPClient(srv.URL)

	_, err := client.Login(context.Background(), "user@example.com", "password", false)

	assert.ErrorIs(t, err, portal.ErrAccountLocked)
}

func TestHTTPClient_LoginDecodesChallenge(t *testing.T) {
	srv := stubServer(t, http.StatusOK, map[string]interface{}{
		"challenge": map[string]interface{}{
			"challenge_token": "X1",
			"email_hint":      "us***@example.com",
		},
	})
	client := portal.NewHTTPClient(srv.URL)

	outcome, err := client.Login(context.Background(), "user@example.com", "password", false)

	require.NoError(t, err)
	require.NotNil(t, outcome.Challenge)
	assert.Equal(t, "X1", outcome.Challenge.ChallengeToken)
	assert.Nil(t, outcome.Session)
}

func TestHTTPClient_ChallengeErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   string
		want   error
	}{
		{"dead challenge is gone", http.StatusGone, "gone", portal.ErrChallengeInvalid},
		{"exhausted attempts", http.StatusTooManyRequests, "rate_limit_exceeded", portal.ErrCodeAttemptsExhausted},
		{"wrong code", http.StatusUnauthorized, "unauthorized", portal.ErrInvalidCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := stubServer(t, tt.status, errorBody(tt.code, ""))
			client := portal.NewHTTPClient(srv.URL)

			_, err := client.VerifyCode(context.Background(), "X1", "123456")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestHTTPClient_CancelToleratesDeadChallenge(t *testing.T) {
	srv := stubServer(t, http.StatusGone, errorBody("gone", "Login challenge has expired or been used."))
	client := portal.NewHTTPClient(srv.URL)

	err := client.CancelLogin(context.Background(), "X1")

	assert.NoError(t, err)
}

func TestHTTPClient_AcceptInvitationSendsFullPayload(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "user-1"})
	}))
	t.Cleanup(srv.Close)
	client := portal.NewHTTPClient(srv.URL)

	user, err := client.AcceptInvitation(context.Background(), "T", portal.AcceptParams{
		Name:             "New User",
		Password:         "Password123!",
		Phone:            "+15551234567",
		TermsAccepted:    true,
		MarketingConsent: true,
	})

	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, "+15551234567", got["phone"])
	assert.Equal(t, true, got["terms_accepted"])
	assert.Equal(t, true, got["marketing_consent"])
}

func TestHTTPClient_InvitationErrorMapping(t *testing.T) {
	t.Run("expired token", func(t *testing.T) {
		srv := stubServer(t, http.StatusGone, errorBody("gone", "Invitation has expired"))
		client := portal.NewHTTPClient(srv.URL)

		_, err := client.VerifyInvitation(context.Background(), "T")
		assert.ErrorIs(t, err, portal.ErrTokenInvalid)
	})

	t.Run("consumed token", func(t *testing.T) {
		srv := stubServer(t, http.StatusConflict, errorBody("conflict", "Invitation has already been accepted"))
		client := portal.NewHTTPClient(srv.URL)

		_, err := client.AcceptInvitation(context.Background(), "T", portal.AcceptParams{Name: "N", Password: "P"})
		assert.ErrorIs(t, err, portal.ErrTokenConsumed)
	})
}

func TestHTTPClient_SocialCancelledBody(t *testing.T) {
	srv := stubServer(t, http.StatusOK, map[string]string{"status": "cancelled"})
	client := portal.NewHTTPClient(srv.URL)

	_, err := client.CompleteSocialLink(context.Background(), "access-token", "google", "", "access_denied")

	assert.ErrorIs(t, err, portal.ErrProviderCancelled)
}

func TestHTTPClient_SocialConflictMapping(t *testing.T) {
	t.Run("already linked", func(t *testing.T) {
		srv := stubServer(t, http.StatusConflict, errorBody("already_linked", "This provider identity is linked to another account"))
		client := portal.NewHTTPClient(srv.URL)

		_, err := client.CompleteSocialLink(context.Background(), "access-token", "google", "code", "")
		assert.ErrorIs(t, err, portal.ErrAlreadyLinked)
	})

	t.Run("sole auth method", func(t *testing.T) {
		srv := stubServer(t, http.StatusConflict, errorBody("sole_auth_method", "Cannot unlink the only way to sign in. Set a password first."))
		client := portal.NewHTTPClient(srv.URL)

		err := client.UnlinkSocial(context.Background(), "access-token", "google")
		assert.ErrorIs(t, err, portal.ErrSoleAuthMethod)
	})

	t.Run("sole auth code wins over message", func(t *testing.T) {
		srv := stubServer(t, http.StatusConflict, errorBody("sole_auth_method", "Provider removal refused"))
		client := portal.NewHTTPClient(srv.URL)

		err := client.UnlinkSocial(context.Background(), "access-token", "google")
		assert.ErrorIs(t, err, portal.ErrSoleAuthMethod)
	})
}

func TestHTTPClient_PortalExchangeUnauthorized(t *testing.T) {
	srv := stubServer(t, http.StatusUnauthorized, errorBody("unauthorized", "Portal token is invalid or expired"))
	client := portal.NewHTTPClient(srv.URL)

	_, err := client.ExchangePortalToken(context.Background(), "stale", "wash-app")

	assert.ErrorIs(t, err, portal.ErrUnauthorized)
}

func TestHTTPClient_SyncDuplicateInFlight(t *testing.T) {
	srv := stubServer(t, http.StatusTooManyRequests, errorBody("rate_limit_exceeded", "Sync already in progress"))
	client := portal.NewHTTPClient(srv.URL)

	err := client.SyncAccount(context.Background(), "access-token", "wash-app")

	assert.ErrorIs(t, err, portal.ErrDuplicateRequest)
}

func TestHTTPClient_VerificationProviderUnavailable(t *testing.T) {
	srv := stubServer(t, http.StatusServiceUnavailable, errorBody("provider_unavailable", "Identity verification is not available right now"))
	client := portal.NewHTTPClient(srv.URL)

	_, err := client.StartVerification(context.Background(), "access-token", "Name", "+15551234567")

	assert.ErrorIs(t, err, portal.ErrProviderUnavailable)
}

func TestHTTPClient_UnmappedErrorKeepsDetails(t *testing.T) {
	srv := stubServer(t, http.StatusInternalServerError, errorBody("internal_error", "Internal server error"))
	client := portal.NewHTTPClient(srv.URL)

	_, err := client.Login(context.Background(), "user@example.com", "password", false)

	var apiErr *portal.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "internal_error", apiErr.Code)
}

func TestHTTPClient_SendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	client := portal.NewHTTPClient(srv.URL)

	err := client.SyncAccount(context.Background(), "access-token", "wash-app")

	require.NoError(t, err)
	assert.Equal(t, "Bearer access-token", gotAuth)
}
