package auth

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

func (r *Repository) Create(ctx context.Context, email, passwordHash, displayName string, isCreator bool) (*models.Account, error) {
	a := &models.Account{
		ID:          uuid.New(),
		Email:       email,
		DisplayName: displayName,
		IsCreator:   isCreator,
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO profiles (id, email, display_name, password_hash, coin_balance, is_creator)
		VALUES ($1, $2, $3, $4, 0, $5)
		RETURNING coin_balance, created_at, updated_at
	`, a.ID, email, displayName, passwordHash, isCreator).Scan(&a.CoinBalance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetByEmail returns the account and its password hash, or (nil, "", nil)
// when the email is unknown.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.Account, string, error) {
	var a models.Account
	var hash string
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, display_name, password_hash, coin_balance, is_creator, created_at, updated_at
		FROM profiles WHERE email = $1
	`, email).Scan(&a.ID, &a.Email, &a.DisplayName, &hash, &a.CoinBalance, &a.IsCreator, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	return &a, hash, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var a models.Account
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, display_name, password_hash, coin_balance, is_creator, created_at, updated_at
		FROM profiles WHERE id = $1
	`, id).Scan(&a.ID, &a.Email, &a.DisplayName, &a.PasswordHash, &a.CoinBalance, &a.IsCreator, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
