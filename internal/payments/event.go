// Package payments adapts the Stripe SDK to the narrow gateway surface the
// purchase workflow needs: hosted checkout sessions out, verified typed
// events in. Nothing outside this package touches Stripe types.
package payments

import (
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrInvalidSignature means the webhook payload failed signature
	// verification. The transport layer must reject, not acknowledge.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrMalformedEvent means the event verified but its payload or
	// metadata is structurally unusable. Retrying cannot fix it, so the
	// caller logs and acknowledges.
	ErrMalformedEvent = errors.New("malformed payment event")
)

// CheckoutCompleted is the validated, strongly-typed form of a
// "checkout.session.completed" event. It is produced in one parsing step at
// the boundary; business logic never sees raw metadata strings.
type CheckoutCompleted struct {
	PurchaseID uuid.UUID
	AccountID  uuid.UUID
	CoinAmount int64
}

// SessionArgs describes the hosted checkout session to create. The metadata
// triple is what lets the completed event find its way back to the purchase
// without a session lookup.
type SessionArgs struct {
	PurchaseID  uuid.UUID
	AccountID   uuid.UUID
	CoinAmount  int64
	AmountJPY   int64
	ProductName string
	Description string
	SuccessURL  string
	CancelURL   string
}

// Session is the created checkout session: its gateway id and the redirect
// URL to hand back to the browser.
type Session struct {
	ID  string
	URL string
}
