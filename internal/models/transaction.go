package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction type enums. Amounts are signed: debits are negative.
const (
	TxTypePurchase = "purchase"
	TxTypeView     = "view"
	TxTypeGenerate = "generate"
	TxTypeRevenue  = "revenue"
)

// Transaction is an append-only ledger entry. Rows are never updated or
// deleted; the chronological sum of Amount per account equals the account's
// current coin balance.
type Transaction struct {
	ID           uuid.UUID  `json:"id"`
	AccountID    uuid.UUID  `json:"account_id"`
	Type         string     `json:"type"`
	Amount       int64      `json:"amount"`
	BalanceAfter int64      `json:"balance_after"`
	ReferenceID  *uuid.UUID `json:"reference_id,omitempty"`
	Description  string     `json:"description"`
	CreatedAt    time.Time  `json:"created_at"`
}
