package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stationhub/identity/internal/database"
	"github.com/stationhub/identity/internal/models"
)

// LoginChallengeRepository stores the single-use step-two credentials.
// Consumption is enforced in SQL so two racing step-two calls cannot both
// succeed against the same challenge.
type LoginChallengeRepository struct {
	pool *pgxpool.Pool
}

func NewLoginChallengeRepository(db *database.DB) *LoginChallengeRepository {
	return &LoginChallengeRepository{pool: db.Pool}
}

func (r *LoginChallengeRepository) Create(ctx context.Context, tokenHash, userID, emailHint string, remember bool, expiresAt time.Time) (*models.LoginChallenge, error) {
	challenge := &models.LoginChallenge{
		ID:        uuid.New().String(),
		UserID:    userID,
		EmailHint: emailHint,
		Remember:  remember,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}

	query := `
		INSERT INTO login_challenges (id, token_hash, user_id, email_hint, remember, attempts, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		challenge.ID, tokenHash, challenge.UserID, challenge.EmailHint,
		challenge.Remember, challenge.ExpiresAt, challenge.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return challenge, nil
}

func (r *LoginChallengeRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.LoginChallenge, error) {
	query := `
		SELECT id, user_id, email_hint, remember, attempts, consumed_at, expires_at, created_at
		FROM login_challenges WHERE token_hash = $1
	`

	var c models.LoginChallenge
	err := r.pool.QueryRow(ctx, query, tokenHash).Scan(
		&c.ID, &c.UserID, &c.EmailHint, &c.Remember,
		&c.Attempts, &c.ConsumedAt, &c.ExpiresAt, &c.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &c, nil
}

// IncrementAttempts bumps the failed step-two counter and returns the new
// value.
func (r *LoginChallengeRepository) IncrementAttempts(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE login_challenges SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts
	`

	var attempts int
	if err := r.pool.QueryRow(ctx, query, id).Scan(&attempts); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return attempts, nil
}

// Consume marks the challenge used. Returns ErrChallengeInvalid when it was
// already consumed or has expired; the conditional UPDATE makes consumption
// atomic.
func (r *LoginChallengeRepository) Consume(ctx context.Context, id string) error {
	query := `
		UPDATE login_challenges SET consumed_at = $1
		WHERE id = $2 AND consumed_at IS NULL AND expires_at > $1
	`

	now := time.Now()
	result, err := r.pool.Exec(ctx, query, now, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrChallengeInvalid
	}
	return nil
}

func (r *LoginChallengeRepository) CleanupExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM login_challenges WHERE expires_at < $1`

	result, err := r.pool.Exec(ctx, query, time.Now())
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
