// Package dashboard serves the read-only account views: profile,
// transaction history and creator earnings.
package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/dramaai/backend/internal/auth"
	"github.com/dramaai/backend/internal/middleware"
	"github.com/dramaai/backend/internal/models"
)

// TransactionReader exposes the ledger's read queries.
type TransactionReader interface {
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.Transaction, error)
	SumByType(ctx context.Context, accountID uuid.UUID, txType string) (int64, error)
}

// ViewsReader totals lifetime views across a creator's dramas.
type ViewsReader interface {
	SumViewsByCreator(ctx context.Context, creatorID uuid.UUID) (int64, error)
}

type CreatorStatsResponse struct {
	TotalViews   int64 `json:"total_views"`
	RevenueCoins int64 `json:"revenue_coins"`
}

type Handler struct {
	transactions TransactionReader
	views        ViewsReader
	log          *slog.Logger
}

func NewHandler(transactions TransactionReader, views ViewsReader, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{transactions: transactions, views: views, log: log}
}

// GetMe handles GET /api/v1/account/me.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(auth.AccountToResponse(acc))
}

// ListTransactions handles GET /api/v1/transactions. Newest first.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.transactions.ListByAccount(r.Context(), acc.ID, limit)
	if err != nil {
		h.log.Error("list transactions failed", "account_id", acc.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*models.Transaction{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

// CreatorStats handles GET /api/v1/creator/stats. Creator-gated by
// middleware.
func (h *Handler) CreatorStats(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	totalViews, err := h.views.SumViewsByCreator(r.Context(), acc.ID)
	if err != nil {
		h.log.Error("sum views failed", "account_id", acc.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	revenue, err := h.transactions.SumByType(r.Context(), acc.ID, models.TxTypeRevenue)
	if err != nil {
		h.log.Error("sum revenue failed", "account_id", acc.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(CreatorStatsResponse{TotalViews: totalViews, RevenueCoins: revenue})
}
