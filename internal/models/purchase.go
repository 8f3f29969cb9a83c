package models

import (
	"time"

	"github.com/google/uuid"
)

// Purchase status enums. A purchase transitions pending -> completed exactly
// once (done by the webhook reconciler); abandoned checkouts stay pending.
const (
	PurchaseStatusPending   = "pending"
	PurchaseStatusCompleted = "completed"
	PurchaseStatusFailed    = "failed"
)

type Purchase struct {
	ID              uuid.UUID `json:"id"`
	AccountID       uuid.UUID `json:"account_id"`
	CoinAmount      int64     `json:"coin_amount"`
	AmountJPY       int64     `json:"amount_jpy"`
	StripeSessionID *string   `json:"stripe_session_id,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
