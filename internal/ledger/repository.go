package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dramaai/backend/internal/models"
)

// Repository is the Postgres implementation of AccountStore and
// TransactionStore, plus the read queries the dashboard uses.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// BalanceForUpdate locks the profile row and returns its balance. Call
// within a transaction; returns pgx.ErrNoRows for an unknown account.
func (r *Repository) BalanceForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (int64, error) {
	var balance int64
	err := tx.QueryRow(ctx, `
		SELECT coin_balance FROM profiles WHERE id = $1 FOR UPDATE
	`, id).Scan(&balance)
	return balance, err
}

// ApplyDelta adjusts coin_balance and returns the new value. Call after
// BalanceForUpdate in the same transaction.
func (r *Repository) ApplyDelta(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int64) (int64, error) {
	var newBalance int64
	err := tx.QueryRow(ctx, `
		UPDATE profiles SET coin_balance = coin_balance + $1, updated_at = now()
		WHERE id = $2
		RETURNING coin_balance
	`, delta, id).Scan(&newBalance)
	return newBalance, err
}

// CreateTx appends a transaction row inside the given transaction.
func (r *Repository) CreateTx(ctx context.Context, tx pgx.Tx, t *models.Transaction) error {
	return tx.QueryRow(ctx, `
		INSERT INTO transactions (id, account_id, type, amount, balance_after, reference_id, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, t.ID, t.AccountID, t.Type, t.Amount, t.BalanceAfter, t.ReferenceID, t.Description).Scan(&t.CreatedAt)
}

// GetBalance reads the current balance without locking.
func (r *Repository) GetBalance(ctx context.Context, id uuid.UUID) (int64, error) {
	var balance int64
	err := r.pool.QueryRow(ctx, `
		SELECT coin_balance FROM profiles WHERE id = $1
	`, id).Scan(&balance)
	return balance, err
}

func (r *Repository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, type, amount, balance_after, reference_id, description, created_at
		FROM transactions WHERE account_id = $1 ORDER BY created_at DESC LIMIT $2
	`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Type, &t.Amount, &t.BalanceAfter, &t.ReferenceID, &t.Description, &t.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}

// SumByType totals the signed amounts of one transaction type for an
// account. Used for the creator revenue figure.
func (r *Repository) SumByType(ctx context.Context, accountID uuid.UUID, txType string) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE account_id = $1 AND type = $2
	`, accountID, txType).Scan(&total)
	return total, err
}
