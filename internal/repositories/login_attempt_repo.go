package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stationhub/identity/internal/database"
	"github.com/stationhub/identity/internal/models"
)

// LoginAttemptRepository records credential exchange outcomes for
// lockout decisions and audit queries.
type LoginAttemptRepository struct {
	pool *pgxpool.Pool
}

func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{pool: db.Pool}
}

func (r *LoginAttemptRepository) Record(ctx context.Context, attempt *models.LoginAttempt) error {
	attempt.ID = uuid.New().String()
	attempt.AttemptedAt = time.Now()

	query := `
		INSERT INTO login_attempts (id, email, ip_address, success, failure_reason, attempted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		attempt.ID, attempt.Email, attempt.IPAddress,
		attempt.Success, attempt.FailureReason, attempt.AttemptedAt,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// CountRecentFailures counts failed attempts for an email inside the window,
// ignoring anything before the most recent success.
func (r *LoginAttemptRepository) CountRecentFailures(ctx context.Context, email string, window time.Duration) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM login_attempts
		WHERE email = $1 AND success = FALSE AND attempted_at > $2
		  AND attempted_at > COALESCE(
			(SELECT MAX(attempted_at) FROM login_attempts WHERE email = $1 AND success = TRUE),
			'epoch'::timestamptz)
	`

	var count int
	err := r.pool.QueryRow(ctx, query, email, time.Now().Add(-window)).Scan(&count)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

func (r *LoginAttemptRepository) CleanupOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM login_attempts WHERE attempted_at < $1`, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
