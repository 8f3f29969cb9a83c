package models

import (
	"time"

	"github.com/google/uuid"
)

// View is the entitlement record: its existence grants the account permanent
// access to the episode. (AccountID, EpisodeID) is unique, which is what
// makes the paid-access charge idempotent.
type View struct {
	AccountID uuid.UUID `json:"account_id"`
	EpisodeID uuid.UUID `json:"episode_id"`
	CoinSpent int64     `json:"coin_spent"`
	WatchedAt time.Time `json:"watched_at"`
}
