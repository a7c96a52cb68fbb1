package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/stationhub/identity/internal/models"
)

// HTTPVerificationGateway calls the phone-identity provider's REST API.
type HTTPVerificationGateway struct {
	baseURL string
	client  *http.Client
}

func NewHTTPVerificationGateway(baseURL string) *HTTPVerificationGateway {
	return &HTTPVerificationGateway{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type dispatchRequest struct {
	RequestID    string `json:"request_id"`
	StoreKey     string `json:"store_key"`
	ChannelKey   string `json:"channel_key"`
	CustomerName string `json:"customer_name"`
	Phone        string `json:"phone"`
}

type dispatchResponse struct {
	RedirectURL string `json:"redirect_url"`
}

type resultResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"` // "confirmed" or "cancelled"
	Phone     string `json:"phone_number"`
}

// Dispatch registers the verification with the provider and returns the URL
// the user is sent to.
func (g *HTTPVerificationGateway) Dispatch(ctx context.Context, req *models.VerificationRequest) (string, error) {
	body, err := json.Marshal(dispatchRequest{
		RequestID:    req.ID,
		StoreKey:     req.StoreKey,
		ChannelKey:   req.ChannelKey,
		CustomerName: req.CustomerName,
		Phone:        req.Phone,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode dispatch request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/verifications", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("provider dispatch request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("provider dispatch returned status %d", resp.StatusCode)
	}

	var out dispatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode dispatch response: %w", err)
	}
	return out.RedirectURL, nil
}

// FetchResult reads the provider's outcome for a request. The provider's
// status string is reduced to the Confirmed/Cancelled pair here so nothing
// upstream has to know its vocabulary.
func (g *HTTPVerificationGateway) FetchResult(ctx context.Context, requestID string) (*models.ProviderResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/verifications/"+requestID, nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("provider result request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider result returned status %d", resp.StatusCode)
	}

	var out resultResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode provider result: %w", err)
	}

	return &models.ProviderResult{
		RequestID:   out.RequestID,
		Confirmed:   out.Status == "confirmed",
		Cancelled:   out.Status == "cancelled",
		PhoneNumber: out.Phone,
	}, nil
}

// HTTPSocialGateway exchanges authorization codes with the social identity
// broker fronting Google, Facebook, and Kakao.
type HTTPSocialGateway struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSocialGateway(baseURL string) *HTTPSocialGateway {
	return &HTTPSocialGateway{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type exchangeResponse struct {
	Status         string `json:"status"` // "ok", "cancelled", "denied"
	ProviderUserID string `json:"provider_user_id"`
	Email          string `json:"email"`
}

func (g *HTTPSocialGateway) Exchange(ctx context.Context, provider, code string) (*ProviderIdentity, error) {
	body, err := json.Marshal(map[string]string{"code": code})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s/exchange", g.baseURL, provider)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("provider exchange request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider exchange returned status %d", resp.StatusCode)
	}

	var out exchangeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode exchange response: %w", err)
	}

	switch out.Status {
	case "cancelled":
		return nil, models.ErrProviderCancelled
	case "denied":
		return nil, models.ErrProviderDenied
	}

	return &ProviderIdentity{
		ProviderUserID: out.ProviderUserID,
		Email:          out.Email,
	}, nil
}
