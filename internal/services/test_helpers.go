package services

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"

	"github.com/stationhub/identity/internal/models"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc          func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc       func(ctx context.Context, email string) (*models.User, error)
	CreateFunc           func(ctx context.Context, user *models.User) (*models.User, error)
	UpdateFunc           func(ctx context.Context, id string, user *models.User) (*models.User, error)
	SetTwoFactorFunc     func(ctx context.Context, id string, enabled bool) error
	SetPhoneVerifiedFunc func(ctx context.Context, id, phone string) error
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) Update(ctx context.Context, id string, user *models.User) (*models.User, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, user)
	}
	return user, nil
}

func (m *MockUserRepository) SetTwoFactor(ctx context.Context, id string, enabled bool) error {
	if m.SetTwoFactorFunc != nil {
		return m.SetTwoFactorFunc(ctx, id, enabled)
	}
	return nil
}

func (m *MockUserRepository) SetPhoneVerified(ctx context.Context, id, phone string) error {
	if m.SetPhoneVerifiedFunc != nil {
		return m.SetPhoneVerifiedFunc(ctx, id, phone)
	}
	return nil
}

// MockChallengeRepository implements ChallengeRepository for testing
type MockChallengeRepository struct {
	CreateFunc            func(ctx context.Context, tokenHash, userID, emailHint string, remember bool, expiresAt time.Time) (*models.LoginChallenge, error)
	GetByTokenHashFunc    func(ctx context.Context, tokenHash string) (*models.LoginChallenge, error)
	IncrementAttemptsFunc func(ctx context.Context, id string) (int, error)
	ConsumeFunc           func(ctx context.Context, id string) error
}

func (m *MockChallengeRepository) Create(ctx context.Context, tokenHash, userID, emailHint string, remember bool, expiresAt time.Time) (*models.LoginChallenge, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tokenHash, userID, emailHint, remember, expiresAt)
	}
	return &models.LoginChallenge{
		ID:        "challenge_123",
		UserID:    userID,
		EmailHint: emailHint,
		Remember:  remember,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}, nil
}

func (m *MockChallengeRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.LoginChallenge, error) {
	if m.GetByTokenHashFunc != nil {
		return m.GetByTokenHashFunc(ctx, tokenHash)
	}
	return nil, models.ErrNotFound
}

func (m *MockChallengeRepository) IncrementAttempts(ctx context.Context, id string) (int, error) {
	if m.IncrementAttemptsFunc != nil {
		return m.IncrementAttemptsFunc(ctx, id)
	}
	return 1, nil
}

func (m *MockChallengeRepository) Consume(ctx context.Context, id string) error {
	if m.ConsumeFunc != nil {
		return m.ConsumeFunc(ctx, id)
	}
	return nil
}

// MockEmergencyCodeRepository implements EmergencyCodeRepository for testing
type MockEmergencyCodeRepository struct {
	CreateFunc                 func(ctx context.Context, challengeID, userID, codeHash string, expiresAt time.Time) (*models.EmergencyCode, error)
	GetActiveByChallengeIDFunc func(ctx context.Context, challengeID string) (*models.EmergencyCode, error)
	MarkUsedFunc               func(ctx context.Context, id string) error
	DeleteByUserIDFunc         func(ctx context.Context, userID string) error
}

func (m *MockEmergencyCodeRepository) Create(ctx context.Context, challengeID, userID, codeHash string, expiresAt time.Time) (*models.EmergencyCode, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, challengeID, userID, codeHash, expiresAt)
	}
	return &models.EmergencyCode{
		ID:          "code_123",
		ChallengeID: challengeID,
		UserID:      userID,
		CodeHash:    codeHash,
		ExpiresAt:   expiresAt,
		CreatedAt:   time.Now(),
	}, nil
}

func (m *MockEmergencyCodeRepository) GetActiveByChallengeID(ctx context.Context, challengeID string) (*models.EmergencyCode, error) {
	if m.GetActiveByChallengeIDFunc != nil {
		return m.GetActiveByChallengeIDFunc(ctx, challengeID)
	}
	return nil, models.ErrNotFound
}

func (m *MockEmergencyCodeRepository) MarkUsed(ctx context.Context, id string) error {
	if m.MarkUsedFunc != nil {
		return m.MarkUsedFunc(ctx, id)
	}
	return nil
}

func (m *MockEmergencyCodeRepository) DeleteByUserID(ctx context.Context, userID string) error {
	if m.DeleteByUserIDFunc != nil {
		return m.DeleteByUserIDFunc(ctx, userID)
	}
	return nil
}

// MockTwoFactorRepository implements TwoFactorRepository for testing
type MockTwoFactorRepository struct {
	CreateFunc            func(ctx context.Context, enrollment *models.TwoFactorEnrollment) error
	GetByIDFunc           func(ctx context.Context, id string) (*models.TwoFactorEnrollment, error)
	GetActiveByUserIDFunc func(ctx context.Context, userID string) (*models.TwoFactorEnrollment, error)
	ActivateFunc          func(ctx context.Context, id string) error
	UpdateLastUsedAtFunc  func(ctx context.Context, id string) error
	DeleteByUserIDFunc    func(ctx context.Context, userID string) error
}

func (m *MockTwoFactorRepository) Create(ctx context.Context, enrollment *models.TwoFactorEnrollment) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, enrollment)
	}
	enrollment.ID = "enrollment_" + enrollment.UserID
	return nil
}

func (m *MockTwoFactorRepository) GetByID(ctx context.Context, id string) (*models.TwoFactorEnrollment, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockTwoFactorRepository) GetActiveByUserID(ctx context.Context, userID string) (*models.TwoFactorEnrollment, error) {
	if m.GetActiveByUserIDFunc != nil {
		return m.GetActiveByUserIDFunc(ctx, userID)
	}
	return nil, models.ErrNotFound
}

func (m *MockTwoFactorRepository) Activate(ctx context.Context, id string) error {
	if m.ActivateFunc != nil {
		return m.ActivateFunc(ctx, id)
	}
	return nil
}

func (m *MockTwoFactorRepository) UpdateLastUsedAt(ctx context.Context, id string) error {
	if m.UpdateLastUsedAtFunc != nil {
		return m.UpdateLastUsedAtFunc(ctx, id)
	}
	return nil
}

func (m *MockTwoFactorRepository) DeleteByUserID(ctx context.Context, userID string) error {
	if m.DeleteByUserIDFunc != nil {
		return m.DeleteByUserIDFunc(ctx, userID)
	}
	return nil
}

// MockTokenRevocationRepository implements TokenRevocationRepository for testing
type MockTokenRevocationRepository struct {
	RevokeTokenFunc         func(ctx context.Context, jti, userID, tokenType string, expiresAt time.Time, reason string) error
	RevokeAllUserTokensFunc func(ctx context.Context, userID, reason string) error
	IsTokenRevokedFunc      func(ctx context.Context, jti string) (bool, error)
}

func (m *MockTokenRevocationRepository) RevokeToken(ctx context.Context, jti, userID, tokenType string, expiresAt time.Time, reason string) error {
	if m.RevokeTokenFunc != nil {
		return m.RevokeTokenFunc(ctx, jti, userID, tokenType, expiresAt, reason)
	}
	return nil
}

func (m *MockTokenRevocationRepository) RevokeAllUserTokens(ctx context.Context, userID, reason string) error {
	if m.RevokeAllUserTokensFunc != nil {
		return m.RevokeAllUserTokensFunc(ctx, userID, reason)
	}
	return nil
}

func (m *MockTokenRevocationRepository) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if m.IsTokenRevokedFunc != nil {
		return m.IsTokenRevokedFunc(ctx, jti)
	}
	return false, nil
}

// MockTokenManager implements TokenManager for testing
type MockTokenManager struct {
	GenerateAccessTokenFunc  func(userID, email string) (string, error)
	GenerateRefreshTokenFunc func(userID, email string) (string, error)
	GeneratePortalTokenFunc  func(userID, email string) (string, time.Time, error)
	ValidateTokenFunc        func(tokenString string) (*models.TokenClaims, error)
}

func (m *MockTokenManager) GenerateAccessToken(userID, email string) (string, error) {
	if m.GenerateAccessTokenFunc != nil {
		return m.GenerateAccessTokenFunc(userID, email)
	}
	return "access_token_" + userID, nil
}

func (m *MockTokenManager) GenerateRefreshToken(userID, email string) (string, error) {
	if m.GenerateRefreshTokenFunc != nil {
		return m.GenerateRefreshTokenFunc(userID, email)
	}
	return "refresh_token_" + userID, nil
}

func (m *MockTokenManager) GeneratePortalToken(userID, email string) (string, time.Time, error) {
	if m.GeneratePortalTokenFunc != nil {
		return m.GeneratePortalTokenFunc(userID, email)
	}
	return "portal_token_" + userID, time.Now().Add(24 * time.Hour), nil
}

func (m *MockTokenManager) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	if m.ValidateTokenFunc != nil {
		return m.ValidateTokenFunc(tokenString)
	}
	return NewTokenClaims("user123", "user@example.com", "access"), nil
}

// MockPortalTokenValidator implements PortalTokenValidator for testing
type MockPortalTokenValidator struct {
	ValidatePortalTokenFunc func(tokenString string) (*models.TokenClaims, error)
}

func (m *MockPortalTokenValidator) ValidatePortalToken(tokenString string) (*models.TokenClaims, error) {
	if m.ValidatePortalTokenFunc != nil {
		return m.ValidatePortalTokenFunc(tokenString)
	}
	return nil, models.ErrUnauthorized
}

// MockDelayer is a no-wait Delayer for testing
type MockDelayer struct {
	WaitFromFunc func(startTime time.Time, success bool)
}

func (m *MockDelayer) WaitFrom(startTime time.Time, success bool) {
	if m.WaitFromFunc != nil {
		m.WaitFromFunc(startTime, success)
	}
}

// MockEmergencyMailer implements EmergencyMailer for testing
type MockEmergencyMailer struct {
	SendEmergencyCodeFunc func(ctx context.Context, email, code string, expiresAt time.Time) error
	SentCodes             []string
}

func (m *MockEmergencyMailer) SendEmergencyCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	if m.SendEmergencyCodeFunc != nil {
		return m.SendEmergencyCodeFunc(ctx, email, code, expiresAt)
	}
	m.SentCodes = append(m.SentCodes, code)
	return nil
}

// MockInvitationMailer implements InvitationMailer for testing
type MockInvitationMailer struct {
	SendInvitationFunc func(ctx context.Context, email, token, adminMessage string, expiresAt time.Time) error
	SentTokens         []string
}

func (m *MockInvitationMailer) SendInvitation(ctx context.Context, email, token, adminMessage string, expiresAt time.Time) error {
	if m.SendInvitationFunc != nil {
		return m.SendInvitationFunc(ctx, email, token, adminMessage, expiresAt)
	}
	m.SentTokens = append(m.SentTokens, token)
	return nil
}

// MockRateLimiter implements RateLimiter for testing
type MockRateLimiter struct {
	CheckRateLimitFunc     func(ctx context.Context, email, ipAddress string) (bool, *time.Duration, error)
	RecordLoginAttemptFunc func(ctx context.Context, email, ipAddress string, success bool, failureReason *string) error
}

func (m *MockRateLimiter) CheckRateLimit(ctx context.Context, email, ipAddress string) (bool, *time.Duration, error) {
	if m.CheckRateLimitFunc != nil {
		return m.CheckRateLimitFunc(ctx, email, ipAddress)
	}
	return true, nil, nil
}

func (m *MockRateLimiter) RecordLoginAttempt(ctx context.Context, email, ipAddress string, success bool, failureReason *string) error {
	if m.RecordLoginAttemptFunc != nil {
		return m.RecordLoginAttemptFunc(ctx, email, ipAddress, success, failureReason)
	}
	return nil
}

// MockSocialLinkRepository implements SocialLinkRepository for testing
type MockSocialLinkRepository struct {
	CreateFunc                func(ctx context.Context, link *models.SocialLink) (*models.SocialLink, error)
	GetByUserIDFunc           func(ctx context.Context, userID string) ([]*models.SocialLink, error)
	GetByProviderIdentityFunc func(ctx context.Context, provider, providerUserID string) (*models.SocialLink, error)
	CountByUserIDFunc         func(ctx context.Context, userID string) (int, error)
	DeleteFunc                func(ctx context.Context, userID, provider string) error
}

func (m *MockSocialLinkRepository) Create(ctx context.Context, link *models.SocialLink) (*models.SocialLink, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, link)
	}
	link.ID = "link_123"
	link.LinkedAt = time.Now()
	return link, nil
}

func (m *MockSocialLinkRepository) GetByUserID(ctx context.Context, userID string) ([]*models.SocialLink, error) {
	if m.GetByUserIDFunc != nil {
		return m.GetByUserIDFunc(ctx, userID)
	}
	return []*models.SocialLink{}, nil
}

func (m *MockSocialLinkRepository) GetByProviderIdentity(ctx context.Context, provider, providerUserID string) (*models.SocialLink, error) {
	if m.GetByProviderIdentityFunc != nil {
		return m.GetByProviderIdentityFunc(ctx, provider, providerUserID)
	}
	return nil, models.ErrNotFound
}

func (m *MockSocialLinkRepository) CountByUserID(ctx context.Context, userID string) (int, error) {
	if m.CountByUserIDFunc != nil {
		return m.CountByUserIDFunc(ctx, userID)
	}
	return 0, nil
}

func (m *MockSocialLinkRepository) Delete(ctx context.Context, userID, provider string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID, provider)
	}
	return nil
}

// MockSocialProviderGateway implements SocialProviderGateway for testing
type MockSocialProviderGateway struct {
	ExchangeFunc func(ctx context.Context, provider, code string) (*ProviderIdentity, error)
}

func (m *MockSocialProviderGateway) Exchange(ctx context.Context, provider, code string) (*ProviderIdentity, error) {
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, provider, code)
	}
	return &ProviderIdentity{ProviderUserID: "provider_user_123", Email: "user@example.com"}, nil
}

// MockSessionIssuer implements SessionIssuer for testing
type MockSessionIssuer struct {
	IssueSessionFunc func(ctx context.Context, user *models.User, withPortal bool) (*SessionResponse, error)
}

func (m *MockSessionIssuer) IssueSession(ctx context.Context, user *models.User, withPortal bool) (*SessionResponse, error) {
	if m.IssueSessionFunc != nil {
		return m.IssueSessionFunc(ctx, user, withPortal)
	}
	session := &SessionResponse{
		AccessToken:  "access_token_" + user.ID,
		RefreshToken: "refresh_token_" + user.ID,
		User:         userModelToResponse(user),
	}
	if withPortal {
		expiry := time.Now().Add(24 * time.Hour)
		session.PortalToken = "portal_token_" + user.ID
		session.PortalTokenExpiresAt = &expiry
	}
	return session, nil
}

// MockVerificationRepository implements VerificationRepository for testing
type MockVerificationRepository struct {
	CreateFunc       func(ctx context.Context, req *models.VerificationRequest) (*models.VerificationRequest, error)
	GetByIDFunc      func(ctx context.Context, id string) (*models.VerificationRequest, error)
	UpdateStatusFunc func(ctx context.Context, id, status string) error
	MarkVerifiedFunc func(ctx context.Context, id string) error
}

func (m *MockVerificationRepository) Create(ctx context.Context, req *models.VerificationRequest) (*models.VerificationRequest, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, req)
	}
	req.ID = "verification_123"
	req.Status = models.VerificationCreated
	return req, nil
}

func (m *MockVerificationRepository) GetByID(ctx context.Context, id string) (*models.VerificationRequest, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockVerificationRepository) UpdateStatus(ctx context.Context, id, status string) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, status)
	}
	return nil
}

func (m *MockVerificationRepository) MarkVerified(ctx context.Context, id string) error {
	if m.MarkVerifiedFunc != nil {
		return m.MarkVerifiedFunc(ctx, id)
	}
	return nil
}

// MockVerificationGateway implements VerificationGateway for testing
type MockVerificationGateway struct {
	DispatchFunc    func(ctx context.Context, req *models.VerificationRequest) (string, error)
	FetchResultFunc func(ctx context.Context, requestID string) (*models.ProviderResult, error)
}

func (m *MockVerificationGateway) Dispatch(ctx context.Context, req *models.VerificationRequest) (string, error) {
	if m.DispatchFunc != nil {
		return m.DispatchFunc(ctx, req)
	}
	return "https://verify.example.com/" + req.ID, nil
}

func (m *MockVerificationGateway) FetchResult(ctx context.Context, requestID string) (*models.ProviderResult, error) {
	if m.FetchResultFunc != nil {
		return m.FetchResultFunc(ctx, requestID)
	}
	return &models.ProviderResult{RequestID: requestID, Confirmed: true}, nil
}

// MockInvitationRepository implements InvitationRepository for testing
type MockInvitationRepository struct {
	CreateFunc         func(ctx context.Context, inv *models.Invitation) (*models.Invitation, error)
	GetByTokenHashFunc func(ctx context.Context, tokenHash string) (*models.Invitation, error)
	AcceptTxFunc       func(ctx context.Context, tx pgx.Tx, id, acceptedUserID string) error
	CancelFunc         func(ctx context.Context, id string) error
}

func (m *MockInvitationRepository) Create(ctx context.Context, inv *models.Invitation) (*models.Invitation, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, inv)
	}
	inv.ID = "invitation_123"
	inv.Status = models.InvitationPending
	return inv, nil
}

func (m *MockInvitationRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.Invitation, error) {
	if m.GetByTokenHashFunc != nil {
		return m.GetByTokenHashFunc(ctx, tokenHash)
	}
	return nil, models.ErrNotFound
}

func (m *MockInvitationRepository) AcceptTx(ctx context.Context, tx pgx.Tx, id, acceptedUserID string) error {
	if m.AcceptTxFunc != nil {
		return m.AcceptTxFunc(ctx, tx, id, acceptedUserID)
	}
	return nil
}

func (m *MockInvitationRepository) Cancel(ctx context.Context, id string) error {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, id)
	}
	return nil
}

// MockTxUserCreator implements TxUserCreator for testing
type MockTxUserCreator struct {
	CreateTxFunc func(ctx context.Context, tx pgx.Tx, user *models.User) (*models.User, error)
}

func (m *MockTxUserCreator) CreateTx(ctx context.Context, tx pgx.Tx, user *models.User) (*models.User, error) {
	if m.CreateTxFunc != nil {
		return m.CreateTxFunc(ctx, tx, user)
	}
	user.ID = "user_new"
	user.Status = "active"
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	return user, nil
}

// MockTxRunner runs the transaction body with a nil Tx
type MockTxRunner struct {
	WithTransactionFunc func(ctx context.Context, fn func(pgx.Tx) error) error
}

func (m *MockTxRunner) WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	return fn(nil)
}

// MockPortalAccountRepository implements PortalAccountRepository for testing
type MockPortalAccountRepository struct {
	UpsertFunc       func(ctx context.Context, userID, appID string) error
	ListByUserIDFunc func(ctx context.Context, userID string) ([]*models.PortalAccount, error)
	GetFunc          func(ctx context.Context, userID, appID string) (*models.PortalAccount, error)
	Upserted         []string
}

func (m *MockPortalAccountRepository) Upsert(ctx context.Context, userID, appID string) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, userID, appID)
	}
	m.Upserted = append(m.Upserted, userID+":"+appID)
	return nil
}

func (m *MockPortalAccountRepository) ListByUserID(ctx context.Context, userID string) ([]*models.PortalAccount, error) {
	if m.ListByUserIDFunc != nil {
		return m.ListByUserIDFunc(ctx, userID)
	}
	return []*models.PortalAccount{}, nil
}

func (m *MockPortalAccountRepository) Get(ctx context.Context, userID, appID string) (*models.PortalAccount, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, userID, appID)
	}
	return nil, models.ErrNotFound
}

// NewTestUser creates an active user for tests
func NewTestUser(id, email, name string) *models.User {
	now := time.Now()
	return &models.User{
		ID:        id,
		Email:     email,
		Name:      name,
		Status:    "active",
		Role:      models.RoleUser,
		UserType:  models.UserTypeCustomer,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestUserWithPassword creates a user with a password hash
func NewTestUserWithPassword(id, email, name, passwordHash string) *models.User {
	user := NewTestUser(id, email, name)
	user.PasswordHash = passwordHash
	return user
}

// NewTestUserWithTwoFactor creates a user with a second factor enrolled
func NewTestUserWithTwoFactor(id, email, name, passwordHash string) *models.User {
	user := NewTestUserWithPassword(id, email, name, passwordHash)
	now := time.Now()
	user.TwoFactorEnabled = true
	user.TwoFactorEnrolledAt = &now
	return user
}

// NewTestUserWithStatus creates a user with the given account status
func NewTestUserWithStatus(id, email, name, status string) *models.User {
	user := NewTestUser(id, email, name)
	user.Status = status
	return user
}

// NewTestChallenge creates an open login challenge
func NewTestChallenge(id, userID string) *models.LoginChallenge {
	now := time.Now()
	return &models.LoginChallenge{
		ID:        id,
		UserID:    userID,
		EmailHint: "us***@example.com",
		ExpiresAt: now.Add(5 * time.Minute),
		CreatedAt: now,
	}
}

// NewTestChallengeExpired creates a challenge past its window
func NewTestChallengeExpired(id, userID string) *models.LoginChallenge {
	challenge := NewTestChallenge(id, userID)
	challenge.ExpiresAt = time.Now().Add(-1 * time.Minute)
	return challenge
}

// NewTestChallengeConsumed creates an already-used challenge
func NewTestChallengeConsumed(id, userID string) *models.LoginChallenge {
	challenge := NewTestChallenge(id, userID)
	now := time.Now()
	challenge.ConsumedAt = &now
	return challenge
}

// NewTestInvitation creates a pending invitation
func NewTestInvitation(id, tokenHash, email string) *models.Invitation {
	now := time.Now()
	return &models.Invitation{
		ID:        id,
		TokenHash: tokenHash,
		Email:     email,
		Role:      models.RoleUser,
		UserType:  models.UserTypeCustomer,
		Status:    models.InvitationPending,
		InviterID: "admin_1",
		ExpiresAt: now.Add(7 * 24 * time.Hour),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTokenClaims creates valid token claims for tests
func NewTokenClaims(userID, email, tokenType string) *models.TokenClaims {
	now := time.Now()
	return &models.TokenClaims{
		Type:   tokenType,
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        fmt.Sprintf("jti_%s_%d", userID, now.Unix()),
			ExpiresAt: jwt.NewNumericDate(now.Add(15 * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
}

// NewTokenClaimsExpired creates expired token claims for tests
func NewTokenClaimsExpired(userID, email, tokenType string) *models.TokenClaims {
	claims := NewTokenClaims(userID, email, tokenType)
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-1 * time.Minute))
	return claims
}
