package entitlement

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dramaai/backend/internal/models"
)

// Repository is the Postgres ViewStore. The views primary key on
// (account_id, episode_id) is what makes the insert race safe: under
// concurrent requests exactly one INSERT lands a row.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *Repository) InsertIfAbsentTx(ctx context.Context, tx pgx.Tx, v *models.View) (bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO views (account_id, episode_id, coin_spent)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id, episode_id) DO NOTHING
	`, v.AccountID, v.EpisodeID, v.CoinSpent)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) UpsertFree(ctx context.Context, accountID, episodeID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO views (account_id, episode_id, coin_spent)
		VALUES ($1, $2, 0)
		ON CONFLICT (account_id, episode_id) DO NOTHING
	`, accountID, episodeID)
	return err
}
