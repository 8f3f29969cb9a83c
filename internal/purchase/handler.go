package purchase

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/dramaai/backend/internal/middleware"
	"github.com/dramaai/backend/internal/payments"
)

// maxWebhookBody caps webhook payload reads; Stripe events are small.
const maxWebhookBody = 1 << 16

type InitiateRequest struct {
	PackageID string `json:"package_id"`
}

type InitiateResponse struct {
	URL string `json:"url"`
}

type Handler struct {
	svc        *Service
	reconciler *Reconciler
	log        *slog.Logger
}

func NewHandler(svc *Service, reconciler *Reconciler, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, reconciler: reconciler, log: log}
}

// Initiate handles POST /api/v1/coins/purchase.
func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req InitiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	url, err := h.svc.Initiate(r.Context(), acc.ID, req.PackageID)
	if err != nil {
		if errors.Is(err, ErrUnknownPackage) {
			http.Error(w, `{"error":"unknown coin package"}`, http.StatusBadRequest)
			return
		}
		h.log.Error("initiate purchase failed", "account_id", acc.ID, "error", err)
		http.Error(w, `{"error":"purchase failed"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(InitiateResponse{URL: url})
}

// GetPurchase handles GET /api/v1/purchases/{id}. The coins success page
// polls it until the webhook flips the purchase to completed.
func (h *Handler) GetPurchase(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	purchaseID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid purchase id"}`, http.StatusBadRequest)
		return
	}
	p, err := h.svc.Get(r.Context(), acc.ID, purchaseID)
	if err != nil {
		if errors.Is(err, ErrPurchaseNotFound) {
			http.Error(w, `{"error":"purchase not found"}`, http.StatusNotFound)
			return
		}
		h.log.Error("get purchase failed", "purchase_id", purchaseID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(p)
}

// ListPackages handles GET /api/v1/coins/packages.
func (h *Handler) ListPackages(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(Packages)
}

// Webhook handles POST /api/v1/stripe/webhook. Unauthenticated; the
// signature header is the only gate.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, `{"error":"unreadable body"}`, http.StatusBadRequest)
		return
	}
	sig := r.Header.Get("Stripe-Signature")
	if sig == "" {
		http.Error(w, `{"error":"signature missing"}`, http.StatusBadRequest)
		return
	}
	if err := h.reconciler.HandleEvent(r.Context(), payload, sig); err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			http.Error(w, `{"error":"invalid signature"}`, http.StatusBadRequest)
			return
		}
		h.log.Error("webhook handling failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"received": true})
}
