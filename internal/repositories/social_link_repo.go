package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stationhub/identity/internal/database"
	"github.com/stationhub/identity/internal/models"
)

type SocialLinkRepository struct {
	pool *pgxpool.Pool
}

func NewSocialLinkRepository(db *database.DB) *SocialLinkRepository {
	return &SocialLinkRepository{pool: db.Pool}
}

func (r *SocialLinkRepository) Create(ctx context.Context, link *models.SocialLink) (*models.SocialLink, error) {
	link.ID = uuid.New().String()
	link.LinkedAt = time.Now()

	query := `
		INSERT INTO social_links (id, user_id, provider, provider_user_id, provider_email, linked_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		link.ID, link.UserID, link.Provider,
		link.ProviderUserID, link.ProviderEmail, link.LinkedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return link, nil
}

func (r *SocialLinkRepository) GetByUserID(ctx context.Context, userID string) ([]*models.SocialLink, error) {
	query := `
		SELECT id, user_id, provider, provider_user_id, provider_email, linked_at
		FROM social_links WHERE user_id = $1
		ORDER BY linked_at
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query social links: %w", err)
	}
	defer rows.Close()

	links := make([]*models.SocialLink, 0)
	for rows.Next() {
		var l models.SocialLink
		if err := rows.Scan(&l.ID, &l.UserID, &l.Provider, &l.ProviderUserID, &l.ProviderEmail, &l.LinkedAt); err != nil {
			return nil, fmt.Errorf("failed to scan social link: %w", err)
		}
		links = append(links, &l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return links, nil
}

// GetByProviderIdentity looks a link up by the provider's own user id,
// regardless of which local account it belongs to.
func (r *SocialLinkRepository) GetByProviderIdentity(ctx context.Context, provider, providerUserID string) (*models.SocialLink, error) {
	query := `
		SELECT id, user_id, provider, provider_user_id, provider_email, linked_at
		FROM social_links WHERE provider = $1 AND provider_user_id = $2
	`

	var l models.SocialLink
	err := r.pool.QueryRow(ctx, query, provider, providerUserID).Scan(
		&l.ID, &l.UserID, &l.Provider, &l.ProviderUserID, &l.ProviderEmail, &l.LinkedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &l, nil
}

func (r *SocialLinkRepository) CountByUserID(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM social_links WHERE user_id = $1`

	var count int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

func (r *SocialLinkRepository) Delete(ctx context.Context, userID, provider string) error {
	query := `DELETE FROM social_links WHERE user_id = $1 AND provider = $2`

	result, err := r.pool.Exec(ctx, query, userID, provider)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
