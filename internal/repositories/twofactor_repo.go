package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stationhub/identity/internal/database"
	"github.com/stationhub/identity/internal/models"
)

// TwoFactorRepository stores TOTP enrollments.
type TwoFactorRepository struct {
	pool *pgxpool.Pool
}

func NewTwoFactorRepository(db *database.DB) *TwoFactorRepository {
	return &TwoFactorRepository{pool: db.Pool}
}

func (r *TwoFactorRepository) Create(ctx context.Context, enrollment *models.TwoFactorEnrollment) error {
	enrollment.ID = uuid.New().String()
	enrollment.CreatedAt = time.Now()

	query := `
		INSERT INTO two_factor_enrollments (id, user_id, secret_encrypted, secret_nonce, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query,
		enrollment.ID, enrollment.UserID,
		enrollment.SecretEncrypted, enrollment.SecretNonce,
		enrollment.CreatedAt,
	)
	return database.MapPostgresError(err)
}

func (r *TwoFactorRepository) GetByID(ctx context.Context, id string) (*models.TwoFactorEnrollment, error) {
	query := `
		SELECT id, user_id, secret_encrypted, secret_nonce, activated_at, last_used_at, created_at
		FROM two_factor_enrollments WHERE id = $1
	`

	return r.scanEnrollment(ctx, query, id)
}

// GetActiveByUserID returns the user's activated enrollment, if any.
func (r *TwoFactorRepository) GetActiveByUserID(ctx context.Context, userID string) (*models.TwoFactorEnrollment, error) {
	query := `
		SELECT id, user_id, secret_encrypted, secret_nonce, activated_at, last_used_at, created_at
		FROM two_factor_enrollments
		WHERE user_id = $1 AND activated_at IS NOT NULL
		ORDER BY activated_at DESC
		LIMIT 1
	`

	return r.scanEnrollment(ctx, query, userID)
}

func (r *TwoFactorRepository) scanEnrollment(ctx context.Context, query string, arg any) (*models.TwoFactorEnrollment, error) {
	var e models.TwoFactorEnrollment
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&e.ID, &e.UserID, &e.SecretEncrypted, &e.SecretNonce,
		&e.ActivatedAt, &e.LastUsedAt, &e.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &e, nil
}

func (r *TwoFactorRepository) Activate(ctx context.Context, id string) error {
	query := `
		UPDATE two_factor_enrollments SET activated_at = $1
		WHERE id = $2 AND activated_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrConflict
	}
	return nil
}

func (r *TwoFactorRepository) UpdateLastUsedAt(ctx context.Context, id string) error {
	query := `UPDATE two_factor_enrollments SET last_used_at = $1 WHERE id = $2`

	_, err := r.pool.Exec(ctx, query, time.Now(), id)
	return database.MapPostgresError(err)
}

func (r *TwoFactorRepository) DeleteByUserID(ctx context.Context, userID string) error {
	query := `DELETE FROM two_factor_enrollments WHERE user_id = $1`

	_, err := r.pool.Exec(ctx, query, userID)
	return database.MapPostgresError(err)
}
