package generation

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/dramaai/backend/internal/ledger"
	"github.com/dramaai/backend/internal/middleware"
	"github.com/dramaai/backend/internal/models"
)

type GenerateRequest struct {
	DramaID     uuid.UUID `json:"drama_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Prompt      string    `json:"prompt"`
	CoinPrice   int64     `json:"coin_price"`
	IsFree      bool      `json:"is_free"`
	Duration    int       `json:"duration"`
}

type GenerateResponse struct {
	Episode *models.Episode `json:"episode"`
	Balance int64           `json:"balance"`
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

// Generate handles POST /api/v1/generate. Creator-gated by middleware.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.DramaID == uuid.Nil || req.Title == "" || req.Prompt == "" {
		http.Error(w, `{"error":"drama_id, title and prompt are required"}`, http.StatusBadRequest)
		return
	}
	ep, balance, err := h.svc.StartGeneration(r.Context(), acc.ID, StartRequest{
		DramaID:     req.DramaID,
		Title:       req.Title,
		Description: req.Description,
		Prompt:      req.Prompt,
		CoinPrice:   req.CoinPrice,
		IsFree:      req.IsFree,
		Duration:    req.Duration,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrDramaNotFound):
			http.Error(w, `{"error":"drama not found"}`, http.StatusNotFound)
		case errors.Is(err, ErrNotOwner):
			http.Error(w, `{"error":"not your drama"}`, http.StatusForbidden)
		case errors.Is(err, ledger.ErrInsufficientFunds):
			http.Error(w, `{"error":"insufficient coins"}`, http.StatusPaymentRequired)
		default:
			h.log.Error("start generation failed", "account_id", acc.ID, "error", err)
			http.Error(w, `{"error":"generation failed"}`, http.StatusInternalServerError)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(GenerateResponse{Episode: ep, Balance: balance})
}
