package generation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dramaai/backend/internal/ledger"
	"github.com/dramaai/backend/internal/models"
)

// ---------------------------------------------------------------------------
// In-memory mocks. Writes stage inside the fake transaction and only land
// on commit, so a failed charge leaves neither an episode nor a job.
// ---------------------------------------------------------------------------

type mockStore struct {
	txMu     sync.Mutex
	mu       sync.Mutex
	dramas   map[uuid.UUID]*models.Drama
	episodes []*models.Episode
	jobs     []GenerateEpisodeArgs
}

func newMockStore() *mockStore {
	return &mockStore{dramas: make(map[uuid.UUID]*models.Drama)}
}

func (m *mockStore) Begin(_ context.Context) (pgx.Tx, error) {
	m.txMu.Lock()
	return &genTx{store: m}, nil
}

func (m *mockStore) GetDramaForUpdateTx(_ context.Context, _ pgx.Tx, id uuid.UUID) (*models.Drama, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.dramas[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *d
	return &cp, nil
}

func (m *mockStore) CreateEpisodeTx(_ context.Context, tx pgx.Tx, e *models.Episode) error {
	t := tx.(*genTx)
	cp := *e
	t.episodes = append(t.episodes, &cp)
	return nil
}

func (m *mockStore) SetTotalEpisodesTx(_ context.Context, tx pgx.Tx, dramaID uuid.UUID, total int) error {
	t := tx.(*genTx)
	t.totals = append(t.totals, totalUpdate{dramaID, total})
	return nil
}

// insertTx is the InsertGenerateEpisodeTxFunc used by the tests.
func (m *mockStore) insertTx(_ context.Context, tx pgx.Tx, args GenerateEpisodeArgs) error {
	t := tx.(*genTx)
	t.jobs = append(t.jobs, args)
	return nil
}

type totalUpdate struct {
	dramaID uuid.UUID
	total   int
}

type genTx struct {
	pgx.Tx
	store    *mockStore
	episodes []*models.Episode
	totals   []totalUpdate
	jobs     []GenerateEpisodeArgs
	done     bool
}

func (t *genTx) Commit(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.mu.Lock()
	t.store.episodes = append(t.store.episodes, t.episodes...)
	for _, u := range t.totals {
		t.store.dramas[u.dramaID].TotalEpisodes = u.total
	}
	t.store.jobs = append(t.store.jobs, t.jobs...)
	t.store.mu.Unlock()
	t.store.txMu.Unlock()
	return nil
}

func (t *genTx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.txMu.Unlock()
	return nil
}

type mockLedger struct {
	mu       sync.Mutex
	balances map[uuid.UUID]int64
	debits   []*models.Transaction
}

func newMockLedger() *mockLedger {
	return &mockLedger{balances: make(map[uuid.UUID]int64)}
}

func (m *mockLedger) DebitTx(_ context.Context, _ pgx.Tx, accountID uuid.UUID, amount int64, txType string, referenceID *uuid.UUID, description string) (int64, *models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[accountID] < amount {
		return 0, nil, ledger.ErrInsufficientFunds
	}
	m.balances[accountID] -= amount
	entry := &models.Transaction{
		ID: uuid.New(), AccountID: accountID, Type: txType,
		Amount: -amount, BalanceAfter: m.balances[accountID],
		ReferenceID: referenceID, Description: description,
	}
	m.debits = append(m.debits, entry)
	return m.balances[accountID], entry, nil
}

func newTestService(store *mockStore, led *mockLedger) *Service {
	return NewService(store, led, store.insertTx, 500, 50, nil)
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestStartGenerationChargesAndEnqueues(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	led := newMockLedger()
	creator := uuid.New()
	drama := &models.Drama{ID: uuid.New(), CreatorID: creator, TotalEpisodes: 2}
	store.dramas[drama.ID] = drama
	led.balances[creator] = 600

	svc := newTestService(store, led)
	ep, balance, err := svc.StartGeneration(ctx, creator, StartRequest{
		DramaID: drama.ID, Title: "Episode 3", Prompt: "a storm gathers",
	})
	if err != nil {
		t.Fatalf("StartGeneration: %v", err)
	}
	if balance != 100 {
		t.Errorf("balance: got %d, want 100", balance)
	}
	if ep.EpisodeNumber != 3 {
		t.Errorf("episode number: got %d, want 3", ep.EpisodeNumber)
	}
	if ep.CoinPrice != 50 {
		t.Errorf("default coin price: got %d, want 50", ep.CoinPrice)
	}

	if len(store.episodes) != 1 {
		t.Fatalf("episodes persisted: got %d, want 1", len(store.episodes))
	}
	if store.dramas[drama.ID].TotalEpisodes != 3 {
		t.Errorf("total episodes: got %d, want 3", store.dramas[drama.ID].TotalEpisodes)
	}
	if len(store.jobs) != 1 {
		t.Fatalf("jobs enqueued: got %d, want 1", len(store.jobs))
	}
	job := store.jobs[0]
	if job.EpisodeID != ep.ID || job.Prompt != "a storm gathers" {
		t.Errorf("job args: %+v", job)
	}
	if len(led.debits) != 1 || led.debits[0].Type != models.TxTypeGenerate || led.debits[0].Amount != -500 {
		t.Errorf("debit: %+v", led.debits)
	}
}

func TestStartGenerationInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	led := newMockLedger()
	creator := uuid.New()
	drama := &models.Drama{ID: uuid.New(), CreatorID: creator}
	store.dramas[drama.ID] = drama
	led.balances[creator] = 100

	svc := newTestService(store, led)
	_, _, err := svc.StartGeneration(ctx, creator, StartRequest{
		DramaID: drama.ID, Title: "Episode 1", Prompt: "prompt",
	})
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if len(store.episodes) != 0 || len(store.jobs) != 0 {
		t.Error("a failed charge must persist nothing")
	}
	if store.dramas[drama.ID].TotalEpisodes != 0 {
		t.Error("episode count must be untouched")
	}
}

func TestStartGenerationNotOwner(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	led := newMockLedger()
	drama := &models.Drama{ID: uuid.New(), CreatorID: uuid.New()}
	store.dramas[drama.ID] = drama
	intruder := uuid.New()
	led.balances[intruder] = 1000

	svc := newTestService(store, led)
	_, _, err := svc.StartGeneration(ctx, intruder, StartRequest{
		DramaID: drama.ID, Title: "Hijack", Prompt: "prompt",
	})
	if !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if len(led.debits) != 0 {
		t.Error("no charge for a rejected request")
	}
}

func TestStartGenerationUnknownDrama(t *testing.T) {
	svc := newTestService(newMockStore(), newMockLedger())
	_, _, err := svc.StartGeneration(context.Background(), uuid.New(), StartRequest{
		DramaID: uuid.New(), Title: "Ghost", Prompt: "prompt",
	})
	if !errors.Is(err, ErrDramaNotFound) {
		t.Fatalf("expected ErrDramaNotFound, got %v", err)
	}
}
