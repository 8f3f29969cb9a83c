package purchase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dramaai/backend/internal/models"
	"github.com/dramaai/backend/internal/payments"
)

// Verifier authenticates and parses raw webhook payloads.
type Verifier interface {
	VerifyEvent(payload []byte, sigHeader string) (*payments.CheckoutCompleted, error)
}

// ReconcilerStore is the purchase persistence the reconciler needs.
type ReconcilerStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	MarkCompletedIfPendingTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error)
}

// Ledger credits coins inside the reconciler's transaction.
type Ledger interface {
	CreditTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64, txType string, referenceID *uuid.UUID, description string) (int64, *models.Transaction, error)
}

// Reconciler applies payment-completed events exactly once. The status
// flip and the coin credit share one transaction, so a duplicate delivery
// (sequential or concurrent) observes the completed status and never
// credits twice.
type Reconciler struct {
	verifier Verifier
	store    ReconcilerStore
	ledger   Ledger
	log      *slog.Logger
}

func NewReconciler(verifier Verifier, store ReconcilerStore, ledger Ledger, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{verifier: verifier, store: store, ledger: ledger, log: log}
}

// HandleEvent processes one raw webhook delivery. The only error it returns
// is payments.ErrInvalidSignature; every other outcome is acknowledged so
// the gateway does not retry-storm on problems retries cannot fix.
func (r *Reconciler) HandleEvent(ctx context.Context, payload []byte, sigHeader string) error {
	ev, err := r.verifier.VerifyEvent(payload, sigHeader)
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			return err
		}
		r.log.Warn("ignoring malformed payment event", "error", err)
		return nil
	}
	if ev == nil {
		// Verified event of a type we do not handle.
		return nil
	}

	if err := r.apply(ctx, ev); err != nil {
		r.log.Error("payment event not applied",
			"purchase_id", ev.PurchaseID, "account_id", ev.AccountID, "error", err)
	}
	return nil
}

func (r *Reconciler) apply(ctx context.Context, ev *payments.CheckoutCompleted) error {
	tx, err := r.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	flipped, err := r.store.MarkCompletedIfPendingTx(ctx, tx, ev.PurchaseID)
	if err != nil {
		return err
	}
	if !flipped {
		// Already completed (duplicate delivery) or unknown purchase id.
		r.log.Info("purchase not pending, skipping credit", "purchase_id", ev.PurchaseID)
		return nil
	}

	ref := ev.PurchaseID
	if _, _, err := r.ledger.CreditTx(ctx, tx, ev.AccountID, ev.CoinAmount, models.TxTypePurchase, &ref, "Coin purchase"); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
