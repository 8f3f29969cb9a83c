package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dramaai/backend/internal/models"
)

// ---------------------------------------------------------------------------
// In-memory mocks. memDB hands out transactions that hold a global lock
// until Commit/Rollback, so the Debit/Credit wrappers serialize the same way
// row locks do in Postgres.
// ---------------------------------------------------------------------------

type memDB struct {
	mu sync.Mutex
}

func (d *memDB) Begin(_ context.Context) (pgx.Tx, error) {
	d.mu.Lock()
	return &memTx{db: d}, nil
}

type memTx struct {
	pgx.Tx
	db   *memDB
	done bool
}

func (t *memTx) Commit(_ context.Context) error {
	if !t.done {
		t.done = true
		t.db.mu.Unlock()
	}
	return nil
}

func (t *memTx) Rollback(_ context.Context) error {
	if !t.done {
		t.done = true
		t.db.mu.Unlock()
	}
	return nil
}

type mockAccounts struct {
	mu       sync.Mutex
	balances map[uuid.UUID]int64
	// failures injects this many transient errors before succeeding.
	failures int
}

func newMockAccounts() *mockAccounts {
	return &mockAccounts{balances: make(map[uuid.UUID]int64)}
}

func (m *mockAccounts) BalanceForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return 0, &pgconn.PgError{Code: "40001"}
	}
	b, ok := m.balances[id]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	return b, nil
}

func (m *mockAccounts) ApplyDelta(_ context.Context, _ pgx.Tx, id uuid.UUID, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[id] += delta
	return m.balances[id], nil
}

func (m *mockAccounts) balance(id uuid.UUID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[id]
}

type mockTxLog struct {
	mu      sync.Mutex
	entries []*models.Transaction
}

func (m *mockTxLog) CreateTx(_ context.Context, _ pgx.Tx, t *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *mockTxLog) sum(id uuid.UUID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, e := range m.entries {
		if e.AccountID == id {
			total += e.Amount
		}
	}
	return total
}

func (m *mockTxLog) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func newTestService(accounts *mockAccounts, txlog *mockTxLog) *Service {
	return NewService(&memDB{}, accounts, txlog)
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestCreditThenDebit(t *testing.T) {
	ctx := context.Background()
	account := uuid.New()
	accounts := newMockAccounts()
	accounts.balances[account] = 0
	txlog := &mockTxLog{}
	svc := newTestService(accounts, txlog)

	bal, entry, err := svc.Credit(ctx, account, 1000, models.TxTypePurchase, nil, "coin pack")
	if err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if bal != 1000 {
		t.Errorf("balance after credit: got %d, want 1000", bal)
	}
	if entry.Amount != 1000 || entry.BalanceAfter != 1000 {
		t.Errorf("credit entry: amount %d balance_after %d", entry.Amount, entry.BalanceAfter)
	}

	ref := uuid.New()
	bal, entry, err = svc.Debit(ctx, account, 300, models.TxTypeView, &ref, "episode unlock")
	if err != nil {
		t.Fatalf("Debit: %v", err)
	}
	if bal != 700 {
		t.Errorf("balance after debit: got %d, want 700", bal)
	}
	if entry.Amount != -300 || entry.BalanceAfter != 700 {
		t.Errorf("debit entry: amount %d balance_after %d", entry.Amount, entry.BalanceAfter)
	}
	if entry.ReferenceID == nil || *entry.ReferenceID != ref {
		t.Error("debit entry should carry the reference id")
	}

	// Ledger invariant: balance equals the sum of logged amounts.
	if got := txlog.sum(account); got != accounts.balance(account) {
		t.Errorf("log sum %d != balance %d", got, accounts.balance(account))
	}
}

func TestDebitInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	account := uuid.New()
	accounts := newMockAccounts()
	accounts.balances[account] = 40
	txlog := &mockTxLog{}
	svc := newTestService(accounts, txlog)

	_, _, err := svc.Debit(ctx, account, 50, models.TxTypeView, nil, "")
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := accounts.balance(account); got != 40 {
		t.Errorf("balance must be untouched: got %d, want 40", got)
	}
	if txlog.count() != 0 {
		t.Errorf("no transaction row may be written: got %d", txlog.count())
	}
}

func TestInvalidAmount(t *testing.T) {
	ctx := context.Background()
	account := uuid.New()
	accounts := newMockAccounts()
	accounts.balances[account] = 100
	svc := newTestService(accounts, &mockTxLog{})

	for _, amount := range []int64{0, -5} {
		if _, _, err := svc.Debit(ctx, account, amount, models.TxTypeView, nil, ""); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Debit(%d): expected ErrInvalidAmount, got %v", amount, err)
		}
		if _, _, err := svc.Credit(ctx, account, amount, models.TxTypePurchase, nil, ""); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Credit(%d): expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestDebitUnknownAccount(t *testing.T) {
	svc := newTestService(newMockAccounts(), &mockTxLog{})
	_, _, err := svc.Debit(context.Background(), uuid.New(), 10, models.TxTypeView, nil, "")
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	account := uuid.New()
	accounts := newMockAccounts()
	accounts.balances[account] = 50
	txlog := &mockTxLog{}
	svc := newTestService(accounts, txlog)

	const workers = 10
	var wg sync.WaitGroup
	var okCount, insufficientCount int
	var mu sync.Mutex
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.Debit(ctx, account, 10, models.TxTypeView, nil, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				okCount++
			case errors.Is(err, ErrInsufficientFunds):
				insufficientCount++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if okCount != 5 || insufficientCount != 5 {
		t.Errorf("got %d successes and %d rejections, want 5/5", okCount, insufficientCount)
	}
	if got := accounts.balance(account); got != 0 {
		t.Errorf("final balance: got %d, want 0", got)
	}
	if got := txlog.sum(account); got != -50 {
		t.Errorf("log sum: got %d, want -50", got)
	}
}

func TestTransientConflictRetries(t *testing.T) {
	ctx := context.Background()
	account := uuid.New()
	accounts := newMockAccounts()
	accounts.balances[account] = 100
	accounts.failures = 2 // two losses, third attempt wins
	svc := newTestService(accounts, &mockTxLog{})

	bal, _, err := svc.Debit(ctx, account, 100, models.TxTypeGenerate, nil, "")
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if bal != 0 {
		t.Errorf("balance: got %d, want 0", bal)
	}
}

func TestTransientConflictExhausted(t *testing.T) {
	ctx := context.Background()
	account := uuid.New()
	accounts := newMockAccounts()
	accounts.balances[account] = 100
	accounts.failures = maxAttempts
	svc := newTestService(accounts, &mockTxLog{})

	_, _, err := svc.Debit(ctx, account, 100, models.TxTypeGenerate, nil, "")
	if !errors.Is(err, ErrTransientConflict) {
		t.Fatalf("expected ErrTransientConflict, got %v", err)
	}
	if got := accounts.balance(account); got != 100 {
		t.Errorf("balance must be untouched: got %d, want 100", got)
	}
}
