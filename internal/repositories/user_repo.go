package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stationhub/identity/internal/database"
	"github.com/stationhub/identity/internal/models"
	"github.com/stationhub/identity/pkg/auth"
)

const userColumns = `id, email, password_hash, name, phone, phone_verified,
	marketing_consent, two_factor_enabled, two_factor_enrolled_at, token_key,
	role, user_type, status, locked_until, password_changed_at, created_at,
	updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

// rowScanner interface for scanning user rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUserRow handles nullable fields and populates a User model from a database row
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var passwordHash, phone *string
	var twoFactorEnrolledAt, lockedUntil, passwordChangedAt *time.Time

	err := scanner.Scan(
		&user.ID, &user.Email, &passwordHash, &user.Name,
		&phone, &user.PhoneVerified, &user.MarketingConsent,
		&user.TwoFactorEnabled, &twoFactorEnrolledAt,
		&user.TokenKey, &user.Role, &user.UserType, &user.Status,
		&lockedUntil, &passwordChangedAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if passwordHash != nil {
		user.PasswordHash = *passwordHash
	}
	if phone != nil {
		user.Phone = *phone
	}
	user.TwoFactorEnrolledAt = twoFactorEnrolledAt
	user.LockedUntil = lockedUntil
	user.PasswordChangedAt = passwordChangedAt

	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	return scanUserRow(r.pool.QueryRow(ctx, query, email))
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	return r.create(ctx, r.pool, user)
}

// CreateTx creates a user inside an existing transaction. Invitation
// acceptance uses this so the account and the invitation status change
// commit together.
func (r *UserRepository) CreateTx(ctx context.Context, tx pgx.Tx, user *models.User) (*models.User, error) {
	return r.create(ctx, tx, user)
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *UserRepository) create(ctx context.Context, q queryRower, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()

	tokenKey, err := auth.GenerateTokenKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token key: %w", err)
	}
	user.TokenKey = tokenKey

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if user.UserType == "" {
		user.UserType = models.UserTypeCustomer
	}
	if user.Status == "" {
		user.Status = "active"
	}

	query := `
		INSERT INTO users (id, email, password_hash, name, phone, phone_verified,
			marketing_consent, two_factor_enabled, token_key, role, user_type,
			status, password_changed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING ` + userColumns

	var passwordHash *string
	if user.PasswordHash != "" {
		passwordHash = &user.PasswordHash
	}
	var phone *string
	if user.Phone != "" {
		phone = &user.Phone
	}

	return scanUserRow(q.QueryRow(ctx, query,
		user.ID, user.Email, passwordHash, user.Name, phone, user.PhoneVerified,
		user.MarketingConsent, user.TwoFactorEnabled, user.TokenKey,
		user.Role, user.UserType, user.Status,
		user.PasswordChangedAt, user.CreatedAt, user.UpdatedAt,
	))
}

func (r *UserRepository) Update(ctx context.Context, id string, user *models.User) (*models.User, error) {
	user.UpdatedAt = time.Now()

	query := `
		UPDATE users SET name = $1, phone = $2, phone_verified = $3,
			marketing_consent = $4, two_factor_enabled = $5,
			two_factor_enrolled_at = $6, role = $7, user_type = $8,
			token_key = $9, status = $10, locked_until = $11, updated_at = $12
		WHERE id = $13
		RETURNING ` + userColumns

	var phone *string
	if user.Phone != "" {
		phone = &user.Phone
	}

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.Name, phone, user.PhoneVerified,
		user.MarketingConsent, user.TwoFactorEnabled, user.TwoFactorEnrolledAt,
		user.Role, user.UserType, user.TokenKey, user.Status,
		user.LockedUntil, user.UpdatedAt, id,
	))
}

// SetPhoneVerified records a provider-confirmed phone number on the account.
func (r *UserRepository) SetPhoneVerified(ctx context.Context, id, phone string) error {
	query := `
		UPDATE users SET phone = $1, phone_verified = true, updated_at = $2
		WHERE id = $3
	`

	result, err := r.pool.Exec(ctx, query, phone, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// SetTwoFactor flips second-factor enrollment on or off.
func (r *UserRepository) SetTwoFactor(ctx context.Context, id string, enabled bool) error {
	var enrolledAt *time.Time
	if enabled {
		now := time.Now()
		enrolledAt = &now
	}

	query := `
		UPDATE users SET two_factor_enabled = $1, two_factor_enrolled_at = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := r.pool.Exec(ctx, query, enabled, enrolledAt, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM users WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}
