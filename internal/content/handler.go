package content

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dramaai/backend/internal/middleware"
	"github.com/dramaai/backend/internal/models"
)

type CreateDramaRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Genre       string `json:"genre"`
}

type Handler struct {
	repo *Repository
	log  *slog.Logger
}

func NewHandler(repo *Repository, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{repo: repo, log: log}
}

// CreateDrama handles POST /api/v1/dramas. Creator-gated by middleware.
func (h *Handler) CreateDrama(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req CreateDramaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		http.Error(w, `{"error":"title is required"}`, http.StatusBadRequest)
		return
	}
	drama := &models.Drama{
		ID:          uuid.New(),
		CreatorID:   acc.ID,
		Title:       req.Title,
		Description: req.Description,
		Genre:       req.Genre,
		IsPublished: true,
	}
	if err := h.repo.CreateDrama(r.Context(), drama); err != nil {
		h.log.Error("create drama failed", "creator_id", acc.ID, "error", err)
		http.Error(w, `{"error":"create failed"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(drama)
}

// ListEpisodes handles GET /api/v1/dramas/{id}/episodes.
func (h *Handler) ListEpisodes(w http.ResponseWriter, r *http.Request) {
	dramaID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid drama id"}`, http.StatusBadRequest)
		return
	}
	if _, err := h.repo.GetDrama(r.Context(), dramaID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, `{"error":"drama not found"}`, http.StatusNotFound)
			return
		}
		h.log.Error("load drama failed", "drama_id", dramaID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	episodes, err := h.repo.ListEpisodesByDrama(r.Context(), dramaID)
	if err != nil {
		h.log.Error("list episodes failed", "drama_id", dramaID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if episodes == nil {
		episodes = []*models.Episode{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(episodes)
}
