// Package ledger owns coin balances and the append-only transaction log.
// A balance change and its log entry always commit as one unit: callers
// either use DebitTx/CreditTx inside their own pgx transaction, or the
// Debit/Credit wrappers which open one and retry transient conflicts.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dramaai/backend/internal/models"
)

var (
	// ErrInsufficientFunds is returned when the account balance is too low
	// for the requested debit. The balance and log are left untouched.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidAmount is returned for a zero or negative amount.
	ErrInvalidAmount = errors.New("amount must be a positive integer")
	// ErrAccountNotFound is returned when the account row does not exist.
	ErrAccountNotFound = errors.New("account not found")
	// ErrTransientConflict is returned after the bounded retry loop loses
	// every attempt to a concurrent writer.
	ErrTransientConflict = errors.New("transaction conflict not resolved")
)

// maxAttempts bounds the retry loop for serialization/deadlock losers.
const maxAttempts = 3

// AccountStore is the minimal balance interface the service needs.
type AccountStore interface {
	BalanceForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (int64, error)
	ApplyDelta(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int64) (newBalance int64, err error)
}

// TransactionStore appends ledger entries.
type TransactionStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, t *models.Transaction) error
}

// DB starts transactions. *pgxpool.Pool satisfies it.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Service struct {
	db       DB
	accounts AccountStore
	txlog    TransactionStore
}

func NewService(db DB, accounts AccountStore, txlog TransactionStore) *Service {
	return &Service{db: db, accounts: accounts, txlog: txlog}
}

// DebitTx locks the account row, checks funds, applies the delta and appends
// the log entry, all inside the caller's transaction. On ErrInsufficientFunds
// nothing is written; the caller is expected to roll back.
func (s *Service) DebitTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64, txType string, referenceID *uuid.UUID, description string) (int64, *models.Transaction, error) {
	if amount <= 0 {
		return 0, nil, ErrInvalidAmount
	}
	balance, err := s.accounts.BalanceForUpdate(ctx, tx, accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil, ErrAccountNotFound
		}
		return 0, nil, err
	}
	if balance < amount {
		return 0, nil, ErrInsufficientFunds
	}
	newBalance, err := s.accounts.ApplyDelta(ctx, tx, accountID, -amount)
	if err != nil {
		return 0, nil, err
	}
	entry := &models.Transaction{
		ID:           uuid.New(),
		AccountID:    accountID,
		Type:         txType,
		Amount:       -amount,
		BalanceAfter: newBalance,
		ReferenceID:  referenceID,
		Description:  description,
	}
	if err := s.txlog.CreateTx(ctx, tx, entry); err != nil {
		return 0, nil, err
	}
	return newBalance, entry, nil
}

// CreditTx adds amount to the account and appends the log entry inside the
// caller's transaction.
func (s *Service) CreditTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64, txType string, referenceID *uuid.UUID, description string) (int64, *models.Transaction, error) {
	if amount <= 0 {
		return 0, nil, ErrInvalidAmount
	}
	// Lock first so credits serialize with debits on the same row and an
	// unknown account surfaces as ErrAccountNotFound, not a silent no-op.
	if _, err := s.accounts.BalanceForUpdate(ctx, tx, accountID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil, ErrAccountNotFound
		}
		return 0, nil, err
	}
	newBalance, err := s.accounts.ApplyDelta(ctx, tx, accountID, amount)
	if err != nil {
		return 0, nil, err
	}
	entry := &models.Transaction{
		ID:           uuid.New(),
		AccountID:    accountID,
		Type:         txType,
		Amount:       amount,
		BalanceAfter: newBalance,
		ReferenceID:  referenceID,
		Description:  description,
	}
	if err := s.txlog.CreateTx(ctx, tx, entry); err != nil {
		return 0, nil, err
	}
	return newBalance, entry, nil
}

// Debit runs DebitTx in its own transaction, retrying serialization and
// deadlock losers a bounded number of times.
func (s *Service) Debit(ctx context.Context, accountID uuid.UUID, amount int64, txType string, referenceID *uuid.UUID, description string) (int64, *models.Transaction, error) {
	return s.retry(ctx, func(tx pgx.Tx) (int64, *models.Transaction, error) {
		return s.DebitTx(ctx, tx, accountID, amount, txType, referenceID, description)
	})
}

// Credit runs CreditTx in its own transaction with the same retry policy.
func (s *Service) Credit(ctx context.Context, accountID uuid.UUID, amount int64, txType string, referenceID *uuid.UUID, description string) (int64, *models.Transaction, error) {
	return s.retry(ctx, func(tx pgx.Tx) (int64, *models.Transaction, error) {
		return s.CreditTx(ctx, tx, accountID, amount, txType, referenceID, description)
	})
}

func (s *Service) retry(ctx context.Context, op func(pgx.Tx) (int64, *models.Transaction, error)) (int64, *models.Transaction, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		balance, entry, err := s.runOnce(ctx, op)
		if err == nil || !IsTransient(err) {
			return balance, entry, err
		}
		lastErr = err
	}
	return 0, nil, fmt.Errorf("%w after %d attempts: %v", ErrTransientConflict, maxAttempts, lastErr)
}

func (s *Service) runOnce(ctx context.Context, op func(pgx.Tx) (int64, *models.Transaction, error)) (int64, *models.Transaction, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, nil, err
	}
	defer tx.Rollback(ctx)
	balance, entry, err := op(tx)
	if err != nil {
		return 0, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, nil, err
	}
	return balance, entry, nil
}

// IsTransient reports whether err is a Postgres serialization failure (40001)
// or deadlock (40P01), both safe to retry from scratch.
func IsTransient(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
