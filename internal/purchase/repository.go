package purchase

import (
	"context"
	"errors"

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

func (r *Repository) Create(ctx context.Context, p *models.Purchase) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO purchases (id, account_id, coin_amount, amount_jpy, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, p.ID, p.AccountID, p.CoinAmount, p.AmountJPY, p.Status).Scan(&p.CreatedAt, &p.UpdatedAt)
}

// AttachSession stores the gateway session id on the purchase once the
// hosted checkout session exists.
func (r *Repository) AttachSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE purchases SET stripe_session_id = $2, updated_at = now() WHERE id = $1
	`, id, sessionID)
	return err
}

// MarkCompletedIfPendingTx flips a purchase to completed only if it is still
// pending. The conditional UPDATE row-locks the purchase, so a concurrent
// duplicate delivery blocks here, then observes zero rows and reports
// flipped=false. This is the reconciler's idempotency anchor.
func (r *Repository) MarkCompletedIfPendingTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	var flipped uuid.UUID
	err := tx.QueryRow(ctx, `
		UPDATE purchases SET status = 'completed', updated_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING id
	`, id).Scan(&flipped)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	var p models.Purchase
	err := r.pool.QueryRow(ctx, `
		SELECT id, account_id, coin_amount, amount_jpy, stripe_session_id, status, created_at, updated_at
		FROM purchases WHERE id = $1
	`, id).Scan(&p.ID, &p.AccountID, &p.CoinAmount, &p.AmountJPY, &p.StripeSessionID, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
