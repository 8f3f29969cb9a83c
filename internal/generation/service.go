// Package generation charges creators for AI episode generation and runs
// the render pipeline in the background. The fixed coin charge, the
// episode row and the job enqueue commit as one transaction; the charge
// is not refunded if the render later fails.
package generation

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dramaai/backend/internal/models"
)

var (
	// ErrDramaNotFound is returned when the target drama does not exist.
	ErrDramaNotFound = errors.New("drama not found")
	// ErrNotOwner is returned when the caller does not own the drama.
	ErrNotOwner = errors.New("drama belongs to another creator")
)

// DramaStore is the content persistence the service needs. The drama row
// is locked for the duration of the transaction so concurrent generations
// against one drama get distinct episode numbers.
type DramaStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	GetDramaForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Drama, error)
	CreateEpisodeTx(ctx context.Context, tx pgx.Tx, e *models.Episode) error
	SetTotalEpisodesTx(ctx context.Context, tx pgx.Tx, dramaID uuid.UUID, total int) error
}

// Ledger debits the generation charge inside the service's transaction.
type Ledger interface {
	DebitTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64, txType string, referenceID *uuid.UUID, description string) (int64, *models.Transaction, error)
}

// InsertGenerateEpisodeTxFunc enqueues the background render job in the
// same transaction as the charge.
type InsertGenerateEpisodeTxFunc func(ctx context.Context, tx pgx.Tx, args GenerateEpisodeArgs) error

// StartRequest describes one requested episode.
type StartRequest struct {
	DramaID     uuid.UUID
	Title       string
	Description string
	Prompt      string
	CoinPrice   int64
	IsFree      bool
	Duration    int
}

type Service struct {
	store        DramaStore
	ledger       Ledger
	insertJob    InsertGenerateEpisodeTxFunc
	costCoins    int64
	defaultPrice int64
	log          *slog.Logger
}

func NewService(store DramaStore, ledger Ledger, insertJob InsertGenerateEpisodeTxFunc, costCoins, defaultPrice int64, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, ledger: ledger, insertJob: insertJob, costCoins: costCoins, defaultPrice: defaultPrice, log: log}
}

// StartGeneration debits the fixed generation cost, creates the episode
// shell and enqueues the render, all in one transaction. On
// ledger.ErrInsufficientFunds nothing is persisted. The returned balance
// reflects the charge.
func (s *Service) StartGeneration(ctx context.Context, creatorID uuid.UUID, req StartRequest) (*models.Episode, int64, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer tx.Rollback(ctx)

	drama, err := s.store.GetDramaForUpdateTx(ctx, tx, req.DramaID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, ErrDramaNotFound
		}
		return nil, 0, err
	}
	if drama.CreatorID != creatorID {
		return nil, 0, ErrNotOwner
	}

	ref := drama.ID
	newBalance, _, err := s.ledger.DebitTx(ctx, tx, creatorID, s.costCoins, models.TxTypeGenerate, &ref, "AI video generation: "+req.Title)
	if err != nil {
		return nil, 0, err
	}

	price := req.CoinPrice
	if price <= 0 && !req.IsFree {
		price = s.defaultPrice
	}
	duration := req.Duration
	if duration <= 0 {
		duration = 10
	}
	ep := &models.Episode{
		ID:            uuid.New(),
		DramaID:       drama.ID,
		EpisodeNumber: drama.TotalEpisodes + 1,
		Title:         req.Title,
		Description:   req.Description,
		Duration:      duration,
		CoinPrice:     price,
		IsFree:        req.IsFree,
		IsPublished:   true,
	}
	if err := s.store.CreateEpisodeTx(ctx, tx, ep); err != nil {
		return nil, 0, err
	}
	if err := s.store.SetTotalEpisodesTx(ctx, tx, drama.ID, drama.TotalEpisodes+1); err != nil {
		return nil, 0, err
	}
	if err := s.insertJob(ctx, tx, GenerateEpisodeArgs{
		EpisodeID: ep.ID,
		Prompt:    req.Prompt,
		Title:     req.Title,
	}); err != nil {
		return nil, 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, 0, err
	}

	s.log.Info("generation started",
		"creator_id", creatorID, "drama_id", drama.ID, "episode_id", ep.ID, "cost", s.costCoins)
	return ep, newBalance, nil
}
