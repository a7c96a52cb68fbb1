package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stationhub/identity/internal/database"
	"github.com/stationhub/identity/internal/models"
)

// EmergencyCodeRepository stores the email-delivered fallback codes.
type EmergencyCodeRepository struct {
	pool *pgxpool.Pool
}

func NewEmergencyCodeRepository(db *database.DB) *EmergencyCodeRepository {
	return &EmergencyCodeRepository{pool: db.Pool}
}

func (r *EmergencyCodeRepository) Create(ctx context.Context, challengeID, userID, codeHash string, expiresAt time.Time) (*models.EmergencyCode, error) {
	code := &models.EmergencyCode{
		ID:          uuid.New().String(),
		ChallengeID: challengeID,
		UserID:      userID,
		CodeHash:    codeHash,
		ExpiresAt:   expiresAt,
		CreatedAt:   time.Now(),
	}

	query := `
		INSERT INTO emergency_codes (id, challenge_id, user_id, code_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		code.ID, code.ChallengeID, code.UserID, code.CodeHash,
		code.ExpiresAt, code.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return code, nil
}

// GetActiveByChallengeID returns the newest unused, unexpired code for a
// challenge. Re-requesting a code supersedes the previous one.
func (r *EmergencyCodeRepository) GetActiveByChallengeID(ctx context.Context, challengeID string) (*models.EmergencyCode, error) {
	query := `
		SELECT id, challenge_id, user_id, code_hash, used_at, expires_at, created_at
		FROM emergency_codes
		WHERE challenge_id = $1 AND used_at IS NULL AND expires_at > $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	var c models.EmergencyCode
	err := r.pool.QueryRow(ctx, query, challengeID, time.Now()).Scan(
		&c.ID, &c.ChallengeID, &c.UserID, &c.CodeHash,
		&c.UsedAt, &c.ExpiresAt, &c.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &c, nil
}

// MarkUsed consumes the code. Single use is enforced by the conditional
// UPDATE.
func (r *EmergencyCodeRepository) MarkUsed(ctx context.Context, id string) error {
	query := `
		UPDATE emergency_codes SET used_at = $1
		WHERE id = $2 AND used_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrInvalidCode
	}
	return nil
}

// DeleteByUserID removes all codes for a user, used when the second factor
// is disabled.
func (r *EmergencyCodeRepository) DeleteByUserID(ctx context.Context, userID string) error {
	query := `DELETE FROM emergency_codes WHERE user_id = $1`

	_, err := r.pool.Exec(ctx, query, userID)
	return database.MapPostgresError(err)
}

func (r *EmergencyCodeRepository) CleanupExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM emergency_codes WHERE expires_at < $1`

	result, err := r.pool.Exec(ctx, query, time.Now())
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
