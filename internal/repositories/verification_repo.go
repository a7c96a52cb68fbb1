package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stationhub/identity/internal/database"
	"github.com/stationhub/identity/internal/models"
)

// VerificationRepository stores phone identity verification requests.
type VerificationRepository struct {
	pool *pgxpool.Pool
}

func NewVerificationRepository(db *database.DB) *VerificationRepository {
	return &VerificationRepository{pool: db.Pool}
}

func (r *VerificationRepository) Create(ctx context.Context, req *models.VerificationRequest) (*models.VerificationRequest, error) {
	req.ID = uuid.New().String()
	req.Status = models.VerificationCreated
	now := time.Now()
	req.CreatedAt = now
	req.UpdatedAt = now

	query := `
		INSERT INTO verification_requests (id, user_id, store_key, channel_key,
			customer_name, phone, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		req.ID, req.UserID, req.StoreKey, req.ChannelKey,
		req.CustomerName, req.Phone, req.Status, req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return req, nil
}

func (r *VerificationRepository) GetByID(ctx context.Context, id string) (*models.VerificationRequest, error) {
	query := `
		SELECT id, user_id, store_key, channel_key, customer_name, phone,
			status, verified_at, created_at, updated_at
		FROM verification_requests WHERE id = $1
	`

	var v models.VerificationRequest
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&v.ID, &v.UserID, &v.StoreKey, &v.ChannelKey, &v.CustomerName, &v.Phone,
		&v.Status, &v.VerifiedAt, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &v, nil
}

func (r *VerificationRepository) UpdateStatus(ctx context.Context, id, status string) error {
	query := `UPDATE verification_requests SET status = $1, updated_at = $2 WHERE id = $3`

	result, err := r.pool.Exec(ctx, query, status, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// MarkVerified is the terminal success transition. The status guard keeps a
// request id single use: a second confirmation attempt finds no
// non-terminal row to update.
func (r *VerificationRepository) MarkVerified(ctx context.Context, id string) error {
	query := `
		UPDATE verification_requests SET status = $1, verified_at = $2, updated_at = $2
		WHERE id = $3 AND status NOT IN ($4, $5, $6)
	`

	result, err := r.pool.Exec(ctx, query,
		models.VerificationVerified, time.Now(), id,
		models.VerificationVerified, models.VerificationCancelled, models.VerificationFailed,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrVerificationMismatch
	}
	return nil
}
