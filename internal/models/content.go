package models

import (
	"time"

	"github.com/google/uuid"
)

type Drama struct {
	ID            uuid.UUID `json:"id"`
	CreatorID     uuid.UUID `json:"creator_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Genre         string    `json:"genre"`
	TotalEpisodes int       `json:"total_episodes"`
	TotalViews    int64     `json:"total_views"`
	IsPublished   bool      `json:"is_published"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Episode struct {
	ID                uuid.UUID `json:"id"`
	DramaID           uuid.UUID `json:"drama_id"`
	EpisodeNumber     int       `json:"episode_number"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	VideoURL          *string   `json:"video_url,omitempty"`
	CloudflareVideoID *string   `json:"cloudflare_video_id,omitempty"`
	Duration          int       `json:"duration"`
	CoinPrice         int64     `json:"coin_price"`
	ViewCount         int64     `json:"view_count"`
	IsFree            bool      `json:"is_free"`
	IsPublished       bool      `json:"is_published"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// VideoReference returns the best available playback reference for an
// episode: the hosted Cloudflare id wins over the raw generation URL.
func (e *Episode) VideoReference() string {
	if e.CloudflareVideoID != nil && *e.CloudflareVideoID != "" {
		return *e.CloudflareVideoID
	}
	if e.VideoURL != nil {
		return *e.VideoURL
	}
	return ""
}
