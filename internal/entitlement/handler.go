package entitlement

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/dramaai/backend/internal/ledger"
	"github.com/dramaai/backend/internal/middleware"
)

type WatchRequest struct {
	EpisodeID uuid.UUID `json:"episode_id"`
}

type Handler struct {
	svc *Service
	log *slog.Logger
}

func NewHandler(svc *Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

// Watch handles POST /api/v1/watch.
func (h *Handler) Watch(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req WatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.EpisodeID == uuid.Nil {
		http.Error(w, `{"error":"episode_id is required"}`, http.StatusBadRequest)
		return
	}
	grant, err := h.svc.Access(r.Context(), acc.ID, req.EpisodeID)
	if err != nil {
		switch {
		case errors.Is(err, ErrEpisodeNotFound):
			http.Error(w, `{"error":"episode not found"}`, http.StatusNotFound)
		case errors.Is(err, ledger.ErrInsufficientFunds):
			http.Error(w, `{"error":"insufficient coins"}`, http.StatusPaymentRequired)
		case errors.Is(err, ledger.ErrTransientConflict):
			http.Error(w, `{"error":"conflict, retry"}`, http.StatusConflict)
		default:
			h.log.Error("watch failed", "account_id", acc.ID, "episode_id", req.EpisodeID, "error", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(grant)
}
