package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/dramaai/backend/internal/videogen"
)

type GenerateEpisodeArgs struct {
	EpisodeID uuid.UUID `json:"episode_id"`
	Prompt    string    `json:"prompt"`
	Title     string    `json:"title"`
}

func (GenerateEpisodeArgs) Kind() string { return "generate_episode" }

// Renderer produces a video URL from a prompt.
type Renderer interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Ingester copies a rendered video into hosted streaming storage.
type Ingester interface {
	Ingest(ctx context.Context, sourceURL, name string) (string, error)
}

// EpisodeUpdater records the finished asset references.
type EpisodeUpdater interface {
	UpdateEpisodeVideo(ctx context.Context, id uuid.UUID, videoURL, cloudflareVideoID *string) error
}

type GenerateEpisodeWorker struct {
	river.WorkerDefaults[GenerateEpisodeArgs]
	renderer Renderer
	ingester Ingester
	episodes EpisodeUpdater
	log      *slog.Logger
}

func NewGenerateEpisodeWorker(renderer Renderer, ingester Ingester, episodes EpisodeUpdater, log *slog.Logger) *GenerateEpisodeWorker {
	if log == nil {
		log = slog.Default()
	}
	return &GenerateEpisodeWorker{renderer: renderer, ingester: ingester, episodes: episodes, log: log}
}

// Work renders the episode and stores the asset references. A terminal
// render failure is swallowed: the generation charge stays spent and the
// episode keeps its null video. Transient errors bubble up so the queue
// retries them.
func (w *GenerateEpisodeWorker) Work(ctx context.Context, job *river.Job[GenerateEpisodeArgs]) error {
	args := job.Args

	videoURL, err := w.renderer.Generate(ctx, args.Prompt)
	if err != nil {
		if errors.Is(err, videogen.ErrGenerationFailed) {
			w.log.Error("render failed, episode left without video",
				"episode_id", args.EpisodeID, "error", err)
			return nil
		}
		return fmt.Errorf("render episode %s: %w", args.EpisodeID, err)
	}

	// Ingest is best effort: the raw render URL still plays if hosting
	// the copy fails.
	var cloudflareID *string
	if uid, err := w.ingester.Ingest(ctx, videoURL, args.Title); err != nil {
		w.log.Warn("stream ingest failed, keeping raw video url",
			"episode_id", args.EpisodeID, "error", err)
	} else {
		cloudflareID = &uid
	}

	if err := w.episodes.UpdateEpisodeVideo(ctx, args.EpisodeID, &videoURL, cloudflareID); err != nil {
		return fmt.Errorf("store video refs for episode %s: %w", args.EpisodeID, err)
	}
	w.log.Info("episode rendered", "episode_id", args.EpisodeID, "hosted", cloudflareID != nil)
	return nil
}
