package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stationhub/identity/internal/database"
	"github.com/stationhub/identity/internal/models"
)

type InvitationRepository struct {
	pool *pgxpool.Pool
}

func NewInvitationRepository(db *database.DB) *InvitationRepository {
	return &InvitationRepository{pool: db.Pool}
}

const invitationColumns = `id, token_hash, email, role, user_type, admin_message,
	status, inviter_id, accepted_user_id, accepted_at, expires_at, created_at, updated_at`

func scanInvitation(row pgx.Row) (*models.Invitation, error) {
	var inv models.Invitation
	err := row.Scan(
		&inv.ID, &inv.TokenHash, &inv.Email, &inv.Role, &inv.UserType,
		&inv.AdminMessage, &inv.Status, &inv.InviterID,
		&inv.AcceptedUserID, &inv.AcceptedAt,
		&inv.ExpiresAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &inv, nil
}

func (r *InvitationRepository) Create(ctx context.Context, inv *models.Invitation) (*models.Invitation, error) {
	inv.ID = uuid.New().String()
	inv.Status = models.InvitationPending
	now := time.Now()
	inv.CreatedAt = now
	inv.UpdatedAt = now

	query := `
		INSERT INTO invitations (id, token_hash, email, role, user_type, admin_message,
			status, inviter_id, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + invitationColumns

	return scanInvitation(r.pool.QueryRow(ctx, query,
		inv.ID, inv.TokenHash, inv.Email, inv.Role, inv.UserType, inv.AdminMessage,
		inv.Status, inv.InviterID, inv.ExpiresAt, inv.CreatedAt, inv.UpdatedAt,
	))
}

func (r *InvitationRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE token_hash = $1`

	return scanInvitation(r.pool.QueryRow(ctx, query, tokenHash))
}

// AcceptTx marks a pending invitation accepted inside the caller's
// transaction. The conditional UPDATE guarantees a token is accepted at most
// once even when two acceptance calls race.
func (r *InvitationRepository) AcceptTx(ctx context.Context, tx pgx.Tx, id, acceptedUserID string) error {
	query := `
		UPDATE invitations
		SET status = $1, accepted_user_id = $2, accepted_at = $3, updated_at = $3
		WHERE id = $4 AND status = $5 AND expires_at > $3
	`

	now := time.Now()
	result, err := tx.Exec(ctx, query,
		models.InvitationAccepted, acceptedUserID, now, id, models.InvitationPending,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrTokenConsumed
	}
	return nil
}

func (r *InvitationRepository) Cancel(ctx context.Context, id string) error {
	query := `
		UPDATE invitations SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`

	result, err := r.pool.Exec(ctx, query,
		models.InvitationCancelled, time.Now(), id, models.InvitationPending,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// MarkExpired flips pending invitations past their expiry to expired.
func (r *InvitationRepository) MarkExpired(ctx context.Context) (int64, error) {
	query := `
		UPDATE invitations SET status = $1, updated_at = $2
		WHERE status = $3 AND expires_at < $2
	`

	result, err := r.pool.Exec(ctx, query,
		models.InvitationExpired, time.Now(), models.InvitationPending,
	)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
