// Package entitlement answers "may this account watch this episode" and
// charges at most once per (account, episode) pair. The view record insert
// and the coin debit share one transaction: whichever concurrent request
// wins the insert pays, everyone else is granted access for free.
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dramaai/backend/internal/ledger"
	"github.com/dramaai/backend/internal/models"
)

// ErrEpisodeNotFound is returned when the episode does not exist.
var ErrEpisodeNotFound = errors.New("episode not found")

// maxAttempts bounds the retry loop on serialization/deadlock losers.
const maxAttempts = 3

// ViewStore persists the at-most-one view record per (account, episode).
type ViewStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	// InsertIfAbsentTx reports whether this call created the record.
	InsertIfAbsentTx(ctx context.Context, tx pgx.Tx, v *models.View) (bool, error)
	UpsertFree(ctx context.Context, accountID, episodeID uuid.UUID) error
}

// ContentStore resolves episodes and maintains view counters.
type ContentStore interface {
	GetEpisode(ctx context.Context, id uuid.UUID) (*models.Episode, error)
	GetDrama(ctx context.Context, id uuid.UUID) (*models.Drama, error)
	IncrementViewCountersTx(ctx context.Context, tx pgx.Tx, episodeID, dramaID uuid.UUID) error
}

// Ledger moves coins inside the entitlement transaction.
type Ledger interface {
	DebitTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64, txType string, referenceID *uuid.UUID, description string) (int64, *models.Transaction, error)
	CreditTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64, txType string, referenceID *uuid.UUID, description string) (int64, *models.Transaction, error)
}

// BalanceReader reads a balance outside any transaction, for responses
// that did not touch the ledger.
type BalanceReader interface {
	GetBalance(ctx context.Context, id uuid.UUID) (int64, error)
}

// Grant is a successful access decision.
type Grant struct {
	EpisodeID      uuid.UUID `json:"episode_id"`
	VideoReference string    `json:"video_reference"`
	CoinSpent      int64     `json:"coin_spent"`
	Balance        int64     `json:"balance"`
}

type Service struct {
	views        ViewStore
	content      ContentStore
	ledger       Ledger
	balances     BalanceReader
	revenueShare int64
	log          *slog.Logger
}

// NewService wires the checker. revenueShare is the percentage of each
// paid view credited to the episode's creator.
func NewService(views ViewStore, content ContentStore, ledger Ledger, balances BalanceReader, revenueShare int64, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{views: views, content: content, ledger: ledger, balances: balances, revenueShare: revenueShare, log: log}
}

// Access grants playback for an episode, charging the account once at
// most. A repeat request for an already-watched episode is granted with
// no ledger effect. ledger.ErrInsufficientFunds means nothing was
// recorded and the caller should top up.
func (s *Service) Access(ctx context.Context, accountID, episodeID uuid.UUID) (*Grant, error) {
	ep, err := s.content.GetEpisode(ctx, episodeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEpisodeNotFound
		}
		return nil, err
	}

	if ep.IsFree || ep.CoinPrice <= 0 {
		if err := s.views.UpsertFree(ctx, accountID, episodeID); err != nil {
			return nil, err
		}
		return s.freeGrant(ctx, accountID, ep)
	}

	drama, err := s.content.GetDrama(ctx, ep.DramaID)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		grant, err := s.unlock(ctx, accountID, ep, drama)
		if err == nil || !ledger.IsTransient(err) {
			return grant, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ledger.ErrTransientConflict, maxAttempts, lastErr)
}

// unlock is one attempt at the charge-and-record transaction.
func (s *Service) unlock(ctx context.Context, accountID uuid.UUID, ep *models.Episode, drama *models.Drama) (*Grant, error) {
	tx, err := s.views.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	inserted, err := s.views.InsertIfAbsentTx(ctx, tx, &models.View{
		AccountID: accountID,
		EpisodeID: ep.ID,
		CoinSpent: ep.CoinPrice,
	})
	if err != nil {
		return nil, err
	}
	if !inserted {
		// Already entitled; nothing to charge.
		_ = tx.Rollback(ctx)
		return s.freeGrant(ctx, accountID, ep)
	}

	ref := ep.ID
	newBalance, _, err := s.ledger.DebitTx(ctx, tx, accountID, ep.CoinPrice, models.TxTypeView, &ref, "Episode unlock: "+ep.Title)
	if err != nil {
		// Includes ErrInsufficientFunds: the rollback also discards the
		// view record, so a failed charge leaves no entitlement behind.
		return nil, err
	}

	if drama.CreatorID != accountID {
		share := ep.CoinPrice * s.revenueShare / 100
		if share > 0 {
			if _, _, err := s.ledger.CreditTx(ctx, tx, drama.CreatorID, share, models.TxTypeRevenue, &ref, "Viewer revenue: "+ep.Title); err != nil {
				return nil, err
			}
		}
	}

	if err := s.content.IncrementViewCountersTx(ctx, tx, ep.ID, drama.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &Grant{EpisodeID: ep.ID, VideoReference: ep.VideoReference(), CoinSpent: ep.CoinPrice, Balance: newBalance}, nil
}

func (s *Service) freeGrant(ctx context.Context, accountID uuid.UUID, ep *models.Episode) (*Grant, error) {
	balance, err := s.balances.GetBalance(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &Grant{EpisodeID: ep.ID, VideoReference: ep.VideoReference(), CoinSpent: 0, Balance: balance}, nil
}
