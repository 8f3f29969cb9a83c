package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is a user profile plus its coin balance. The balance is only ever
// mutated through the ledger service together with a transaction row.
type Account struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	CoinBalance  int64     `json:"coin_balance"`
	IsCreator    bool      `json:"is_creator"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
