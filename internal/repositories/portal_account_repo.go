package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stationhub/identity/internal/database"
	"github.com/stationhub/identity/internal/models"
)

// PortalAccountRepository tracks which satellite applications a user's
// account has been provisioned into.
type PortalAccountRepository struct {
	pool *pgxpool.Pool
}

func NewPortalAccountRepository(db *database.DB) *PortalAccountRepository {
	return &PortalAccountRepository{pool: db.Pool}
}

// Upsert records a successful provisioning sync. The (user, app) pair is
// the primary key; repeated syncs just bump last_synced_at.
func (r *PortalAccountRepository) Upsert(ctx context.Context, userID, appID string) error {
	query := `
		INSERT INTO portal_accounts (user_id, app_id, last_synced_at, created_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (user_id, app_id) DO UPDATE SET last_synced_at = EXCLUDED.last_synced_at
	`

	_, err := r.pool.Exec(ctx, query, userID, appID, time.Now())
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

func (r *PortalAccountRepository) ListByUserID(ctx context.Context, userID string) ([]*models.PortalAccount, error) {
	query := `
		SELECT user_id, app_id, last_synced_at, created_at
		FROM portal_accounts WHERE user_id = $1 ORDER BY app_id
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	var accounts []*models.PortalAccount
	for rows.Next() {
		var a models.PortalAccount
		if err := rows.Scan(&a.UserID, &a.AppID, &a.LastSyncedAt, &a.CreatedAt); err != nil {
			return nil, database.MapPostgresError(err)
		}
		accounts = append(accounts, &a)
	}
	return accounts, rows.Err()
}

func (r *PortalAccountRepository) Get(ctx context.Context, userID, appID string) (*models.PortalAccount, error) {
	query := `
		SELECT user_id, app_id, last_synced_at, created_at
		FROM portal_accounts WHERE user_id = $1 AND app_id = $2
	`

	var a models.PortalAccount
	err := r.pool.QueryRow(ctx, query, userID, appID).Scan(
		&a.UserID, &a.AppID, &a.LastSyncedAt, &a.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &a, nil
}
