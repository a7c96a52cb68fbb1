package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stationhub/identity/internal/models"
)

// Token types carried in the "type" claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
	// TokenTypePortal is the cross-application federation token handed to
	// satellites through the portal_token redirect parameter. Fixed TTL,
	// never refreshed; an expired portal token is simply absent.
	TokenTypePortal = "portal"
)

// UserTokenKeyFetcher defines interface for retrieving user's TokenKey
type UserTokenKeyFetcher interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// TokenManager handles JWT token generation and validation
type TokenManager struct {
	secret             string
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	portalTokenExpiry  time.Duration
	userRepo           UserTokenKeyFetcher
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secret string, accessExpiry, refreshExpiry, portalExpiry time.Duration) *TokenManager {
	return &TokenManager{
		secret:             secret,
		accessTokenExpiry:  accessExpiry,
		refreshTokenExpiry: refreshExpiry,
		portalTokenExpiry:  portalExpiry,
	}
}

// SetUserRepo enables composite signing with per-user TokenKey
// Call after TokenManager is created to enable the feature
func (tm *TokenManager) SetUserRepo(repo UserTokenKeyFetcher) {
	tm.userRepo = repo
}

// getSigningKey returns composite key (global_secret + user.TokenKey) or global secret
func (tm *TokenManager) getSigningKey(userID string) ([]byte, error) {
	if tm.userRepo == nil {
		return []byte(tm.secret), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	user, err := tm.userRepo.GetByID(ctx, userID)
	if err != nil {
		// Graceful degradation: use global secret if user not found
		return []byte(tm.secret), nil
	}

	composite := tm.secret + user.TokenKey
	return []byte(composite), nil
}

func (tm *TokenManager) generate(tokenType, userID, email, appID string, expiry time.Duration) (string, error) {
	claims := &models.TokenClaims{
		Type:   tokenType,
		UserID: userID,
		Email:  email,
		AppID:  appID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signingKey, err := tm.getSigningKey(userID)
	if err != nil {
		return "", fmt.Errorf("failed to get signing key: %w", err)
	}

	tokenString, err := token.SignedString(signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}

	return tokenString, nil
}

// GenerateAccessToken creates a short-lived access token with JTI
func (tm *TokenManager) GenerateAccessToken(userID, email string) (string, error) {
	return tm.generate(TokenTypeAccess, userID, email, "", tm.accessTokenExpiry)
}

// GenerateRefreshToken creates a long-lived refresh token with JTI
func (tm *TokenManager) GenerateRefreshToken(userID, email string) (string, error) {
	return tm.generate(TokenTypeRefresh, userID, email, "", tm.refreshTokenExpiry)
}

// GeneratePortalToken creates the federation token carried across
// subdomains. Expiry is a fixed offset from issuance.
func (tm *TokenManager) GeneratePortalToken(userID, email string) (string, time.Time, error) {
	expiresAt := time.Now().Add(tm.portalTokenExpiry)
	token, err := tm.generate(TokenTypePortal, userID, email, "", tm.portalTokenExpiry)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// ValidateToken verifies a token and returns its claims
func (tm *TokenManager) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		// Extract userID from claims for composite key lookup
		if tmpClaims, ok := token.Claims.(*models.TokenClaims); ok && tmpClaims.UserID != "" {
			signingKey, err := tm.getSigningKey(tmpClaims.UserID)
			if err != nil {
				return []byte(tm.secret), nil
			}
			return signingKey, nil
		}

		return []byte(tm.secret), nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if claims.Type == "" {
		return nil, models.ErrUnauthorized
	}

	return claims, nil
}

// ValidatePortalToken verifies a portal token specifically. Any other token
// type presented as a portal credential is rejected.
func (tm *TokenManager) ValidatePortalToken(tokenString string) (*models.TokenClaims, error) {
	claims, err := tm.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != TokenTypePortal {
		return nil, models.ErrUnauthorized
	}
	return claims, nil
}
