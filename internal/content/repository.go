// Package content persists dramas and their episodes.
package content

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dramaai/backend/internal/models"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *Repository) CreateDrama(ctx context.Context, d *models.Drama) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO dramas (id, creator_id, title, description, genre, is_published)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, d.ID, d.CreatorID, d.Title, d.Description, d.Genre, d.IsPublished).Scan(&d.CreatedAt, &d.UpdatedAt)
}

func (r *Repository) GetDrama(ctx context.Context, id uuid.UUID) (*models.Drama, error) {
	var d models.Drama
	err := r.pool.QueryRow(ctx, `
		SELECT id, creator_id, title, description, genre, total_episodes, total_views, is_published, created_at, updated_at
		FROM dramas WHERE id = $1
	`, id).Scan(&d.ID, &d.CreatorID, &d.Title, &d.Description, &d.Genre, &d.TotalEpisodes, &d.TotalViews, &d.IsPublished, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDramaForUpdateTx locks the drama row. Serializes episode numbering
// when two generations target the same drama.
func (r *Repository) GetDramaForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Drama, error) {
	var d models.Drama
	err := tx.QueryRow(ctx, `
		SELECT id, creator_id, title, description, genre, total_episodes, total_views, is_published, created_at, updated_at
		FROM dramas WHERE id = $1 FOR UPDATE
	`, id).Scan(&d.ID, &d.CreatorID, &d.Title, &d.Description, &d.Genre, &d.TotalEpisodes, &d.TotalViews, &d.IsPublished, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *Repository) GetEpisode(ctx context.Context, id uuid.UUID) (*models.Episode, error) {
	var e models.Episode
	err := r.pool.QueryRow(ctx, `
		SELECT id, drama_id, episode_number, title, description, video_url, cloudflare_video_id,
		       duration, coin_price, view_count, is_free, is_published, created_at, updated_at
		FROM episodes WHERE id = $1
	`, id).Scan(&e.ID, &e.DramaID, &e.EpisodeNumber, &e.Title, &e.Description, &e.VideoURL, &e.CloudflareVideoID,
		&e.Duration, &e.CoinPrice, &e.ViewCount, &e.IsFree, &e.IsPublished, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *Repository) CreateEpisodeTx(ctx context.Context, tx pgx.Tx, e *models.Episode) error {
	return tx.QueryRow(ctx, `
		INSERT INTO episodes (id, drama_id, episode_number, title, description, duration, coin_price, is_free, is_published)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, e.ID, e.DramaID, e.EpisodeNumber, e.Title, e.Description, e.Duration, e.CoinPrice, e.IsFree, e.IsPublished).Scan(&e.CreatedAt, &e.UpdatedAt)
}

func (r *Repository) SetTotalEpisodesTx(ctx context.Context, tx pgx.Tx, dramaID uuid.UUID, total int) error {
	_, err := tx.Exec(ctx, `
		UPDATE dramas SET total_episodes = $1, updated_at = now() WHERE id = $2
	`, total, dramaID)
	return err
}

// IncrementViewCountersTx bumps the episode and drama view counters inside
// the entitlement transaction.
func (r *Repository) IncrementViewCountersTx(ctx context.Context, tx pgx.Tx, episodeID, dramaID uuid.UUID) error {
	if _, err := tx.Exec(ctx, `
		UPDATE episodes SET view_count = view_count + 1, updated_at = now() WHERE id = $1
	`, episodeID); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `
		UPDATE dramas SET total_views = total_views + 1, updated_at = now() WHERE id = $1
	`, dramaID)
	return err
}

func (r *Repository) ListEpisodesByDrama(ctx context.Context, dramaID uuid.UUID) ([]*models.Episode, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, drama_id, episode_number, title, description, video_url, cloudflare_video_id,
		       duration, coin_price, view_count, is_free, is_published, created_at, updated_at
		FROM episodes WHERE drama_id = $1 ORDER BY episode_number
	`, dramaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Episode
	for rows.Next() {
		var e models.Episode
		if err := rows.Scan(&e.ID, &e.DramaID, &e.EpisodeNumber, &e.Title, &e.Description, &e.VideoURL, &e.CloudflareVideoID,
			&e.Duration, &e.CoinPrice, &e.ViewCount, &e.IsFree, &e.IsPublished, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}

func (r *Repository) ListDramasByCreator(ctx context.Context, creatorID uuid.UUID) ([]*models.Drama, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, creator_id, title, description, genre, total_episodes, total_views, is_published, created_at, updated_at
		FROM dramas WHERE creator_id = $1 ORDER BY created_at DESC
	`, creatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Drama
	for rows.Next() {
		var d models.Drama
		if err := rows.Scan(&d.ID, &d.CreatorID, &d.Title, &d.Description, &d.Genre, &d.TotalEpisodes, &d.TotalViews, &d.IsPublished, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &d)
	}
	return list, rows.Err()
}

// UpdateEpisodeVideo records the generated asset references once the
// background job has them.
func (r *Repository) UpdateEpisodeVideo(ctx context.Context, id uuid.UUID, videoURL, cloudflareVideoID *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE episodes SET video_url = $1, cloudflare_video_id = $2, updated_at = now() WHERE id = $3
	`, videoURL, cloudflareVideoID, id)
	return err
}

// SumViewsByCreator totals lifetime views across a creator's dramas.
func (r *Repository) SumViewsByCreator(ctx context.Context, creatorID uuid.UUID) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_views), 0) FROM dramas WHERE creator_id = $1
	`, creatorID).Scan(&total)
	return total, err
}
