// Package purchase owns purchase rows: the workflow that creates them in
// pending status and the webhook reconciler that completes them.
package purchase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dramaai/backend/internal/models"
	"github.com/dramaai/backend/internal/payments"
)

// ErrUnknownPackage is returned when the requested package id is not in the
// fixed catalog.
var ErrUnknownPackage = errors.New("unknown coin package")

// ErrPurchaseNotFound covers both an unknown purchase id and another
// account's purchase; callers cannot tell the two apart.
var ErrPurchaseNotFound = errors.New("purchase not found")

// Gateway creates hosted checkout sessions.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, args payments.SessionArgs) (*payments.Session, error)
}

// Store is the purchase persistence the workflow needs.
type Store interface {
	Create(ctx context.Context, p *models.Purchase) error
	AttachSession(ctx context.Context, id uuid.UUID, sessionID string) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error)
}

type Service struct {
	store   Store
	gateway Gateway
	appURL  string
}

func NewService(store Store, gateway Gateway, appURL string) *Service {
	return &Service{store: store, gateway: gateway, appURL: appURL}
}

// Initiate validates the package, records a pending purchase and creates the
// checkout session for it. The ledger is not touched; coins only move when
// the reconciler sees the completed event.
func (s *Service) Initiate(ctx context.Context, accountID uuid.UUID, packageID string) (string, error) {
	pkg, ok := FindPackage(packageID)
	if !ok {
		return "", ErrUnknownPackage
	}

	p := &models.Purchase{
		ID:         uuid.New(),
		AccountID:  accountID,
		CoinAmount: pkg.Coins,
		AmountJPY:  pkg.PriceJPY,
		Status:     models.PurchaseStatusPending,
	}
	if err := s.store.Create(ctx, p); err != nil {
		return "", fmt.Errorf("create purchase: %w", err)
	}

	description := pkg.Label
	if pkg.Bonus != "" {
		description = fmt.Sprintf("%s (%s)", pkg.Label, pkg.Bonus)
	}
	sess, err := s.gateway.CreateCheckoutSession(ctx, payments.SessionArgs{
		PurchaseID:  p.ID,
		AccountID:   accountID,
		CoinAmount:  pkg.Coins,
		AmountJPY:   pkg.PriceJPY,
		ProductName: fmt.Sprintf("DramaAI Coins - %s", pkg.Label),
		Description: description,
		SuccessURL:  s.appURL + "/coins?success=true",
		CancelURL:   s.appURL + "/coins?canceled=true",
	})
	if err != nil {
		return "", err
	}
	if err := s.store.AttachSession(ctx, p.ID, sess.ID); err != nil {
		return "", fmt.Errorf("attach session: %w", err)
	}
	return sess.URL, nil
}

// Get returns one of the caller's purchases, for polling the status after
// the checkout redirect. The webhook lands asynchronously, so a purchase
// can still be pending when the success page first asks.
func (s *Service) Get(ctx context.Context, accountID, purchaseID uuid.UUID) (*models.Purchase, error) {
	p, err := s.store.GetByID(ctx, purchaseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPurchaseNotFound
		}
		return nil, err
	}
	if p.AccountID != accountID {
		return nil, ErrPurchaseNotFound
	}
	return p, nil
}
