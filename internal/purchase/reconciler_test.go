package purchase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dramaai/backend/internal/models"
	"github.com/dramaai/backend/internal/payments"
)

// ---------------------------------------------------------------------------
// In-memory mocks. The fake transaction holds a store-wide lock until
// Commit/Rollback so concurrent deliveries serialize like row locks would.
// ---------------------------------------------------------------------------

type memPurchases struct {
	txMu     sync.Mutex
	mu       sync.Mutex
	statuses map[uuid.UUID]string
}

func newMemPurchases() *memPurchases {
	return &memPurchases{statuses: make(map[uuid.UUID]string)}
}

func (m *memPurchases) Begin(_ context.Context) (pgx.Tx, error) {
	m.txMu.Lock()
	return &memTx{unlock: m.txMu.Unlock}, nil
}

func (m *memPurchases) MarkCompletedIfPendingTx(_ context.Context, _ pgx.Tx, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statuses[id] != models.PurchaseStatusPending {
		return false, nil
	}
	m.statuses[id] = models.PurchaseStatusCompleted
	return true, nil
}

type memTx struct {
	pgx.Tx
	unlock func()
	done   bool
}

func (t *memTx) Commit(_ context.Context) error   { return t.finish() }
func (t *memTx) Rollback(_ context.Context) error { return t.finish() }

func (t *memTx) finish() error {
	if !t.done {
		t.done = true
		t.unlock()
	}
	return nil
}

type memLedger struct {
	mu       sync.Mutex
	balances map[uuid.UUID]int64
	entries  []*models.Transaction
}

func newMemLedger() *memLedger {
	return &memLedger{balances: make(map[uuid.UUID]int64)}
}

func (m *memLedger) CreditTx(_ context.Context, _ pgx.Tx, accountID uuid.UUID, amount int64, txType string, referenceID *uuid.UUID, description string) (int64, *models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[accountID] += amount
	entry := &models.Transaction{
		ID: uuid.New(), AccountID: accountID, Type: txType,
		Amount: amount, BalanceAfter: m.balances[accountID],
		ReferenceID: referenceID, Description: description,
	}
	m.entries = append(m.entries, entry)
	return m.balances[accountID], entry, nil
}

func (m *memLedger) balance(id uuid.UUID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[id]
}

func (m *memLedger) creditCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

type stubVerifier struct {
	ev  *payments.CheckoutCompleted
	err error
}

func (v *stubVerifier) VerifyEvent(_ []byte, _ string) (*payments.CheckoutCompleted, error) {
	return v.ev, v.err
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestDuplicateDeliveryCreditsOnce(t *testing.T) {
	ctx := context.Background()
	account := uuid.New()
	purchaseID := uuid.New()

	store := newMemPurchases()
	store.statuses[purchaseID] = models.PurchaseStatusPending
	ledger := newMemLedger()
	ledger.balances[account] = 1000

	rec := NewReconciler(&stubVerifier{ev: &payments.CheckoutCompleted{
		PurchaseID: purchaseID, AccountID: account, CoinAmount: 500,
	}}, store, ledger, nil)

	for i := 0; i < 2; i++ {
		if err := rec.HandleEvent(ctx, []byte("{}"), "sig"); err != nil {
			t.Fatalf("delivery %d: %v", i+1, err)
		}
	}

	if got := ledger.balance(account); got != 1500 {
		t.Errorf("balance: got %d, want 1500", got)
	}
	if got := ledger.creditCount(); got != 1 {
		t.Errorf("credits: got %d, want 1", got)
	}
	if store.statuses[purchaseID] != models.PurchaseStatusCompleted {
		t.Error("purchase should be completed")
	}
}

func TestConcurrentDeliveriesCreditOnce(t *testing.T) {
	ctx := context.Background()
	account := uuid.New()
	purchaseID := uuid.New()

	store := newMemPurchases()
	store.statuses[purchaseID] = models.PurchaseStatusPending
	ledger := newMemLedger()

	rec := NewReconciler(&stubVerifier{ev: &payments.CheckoutCompleted{
		PurchaseID: purchaseID, AccountID: account, CoinAmount: 500,
	}}, store, ledger, nil)

	const deliveries = 8
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := rec.HandleEvent(ctx, []byte("{}"), "sig"); err != nil {
				t.Errorf("HandleEvent: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := ledger.creditCount(); got != 1 {
		t.Errorf("credits: got %d, want 1", got)
	}
	if got := ledger.balance(account); got != 500 {
		t.Errorf("balance: got %d, want 500", got)
	}
}

func TestInvalidSignatureIsRejected(t *testing.T) {
	rec := NewReconciler(&stubVerifier{
		err: fmt.Errorf("%w: header mismatch", payments.ErrInvalidSignature),
	}, newMemPurchases(), newMemLedger(), nil)

	err := rec.HandleEvent(context.Background(), []byte("{}"), "bad")
	if !errors.Is(err, payments.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestMalformedEventIsAcknowledged(t *testing.T) {
	ledger := newMemLedger()
	rec := NewReconciler(&stubVerifier{
		err: fmt.Errorf("%w: bad coin_amount", payments.ErrMalformedEvent),
	}, newMemPurchases(), ledger, nil)

	if err := rec.HandleEvent(context.Background(), []byte("{}"), "sig"); err != nil {
		t.Fatalf("malformed event must be acked, got %v", err)
	}
	if ledger.creditCount() != 0 {
		t.Error("malformed event must not credit")
	}
}

func TestIrrelevantEventIsAcknowledged(t *testing.T) {
	ledger := newMemLedger()
	rec := NewReconciler(&stubVerifier{}, newMemPurchases(), ledger, nil)

	if err := rec.HandleEvent(context.Background(), []byte("{}"), "sig"); err != nil {
		t.Fatalf("irrelevant event must be acked, got %v", err)
	}
	if ledger.creditCount() != 0 {
		t.Error("irrelevant event must not credit")
	}
}

func TestUnknownPurchaseIsAcknowledgedWithoutCredit(t *testing.T) {
	ledger := newMemLedger()
	rec := NewReconciler(&stubVerifier{ev: &payments.CheckoutCompleted{
		PurchaseID: uuid.New(), AccountID: uuid.New(), CoinAmount: 500,
	}}, newMemPurchases(), ledger, nil)

	if err := rec.HandleEvent(context.Background(), []byte("{}"), "sig"); err != nil {
		t.Fatalf("unknown purchase must be acked, got %v", err)
	}
	if ledger.creditCount() != 0 {
		t.Error("unknown purchase must not credit")
	}
}
