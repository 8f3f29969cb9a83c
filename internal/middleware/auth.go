package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dramaai/backend/internal/auth"
	"github.com/dramaai/backend/internal/models"
)

type contextKey string

const ctxAccountKey contextKey = "account"

// AccountLookup resolves the authenticated account id to a full profile.
type AccountLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

// BearerAuth validates the Bearer JWT and puts the account into request
// context. Requests without a valid token get 401.
func BearerAuth(authSvc auth.Service, accounts AccountLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractBearer(r)
			if raw == "" {
				writeError(w, http.StatusUnauthorized, "missing or malformed Authorization header")
				return
			}
			accountID, err := authSvc.ValidateToken(r.Context(), raw)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			acc, err := accounts.GetByID(r.Context(), accountID)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			ctx := context.WithValue(r.Context(), ctxAccountKey, acc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireCreator rejects requests whose account lacks the creator flag.
// Chain after BearerAuth.
func RequireCreator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acc := AccountFromCtx(r.Context())
		if acc == nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !acc.IsCreator {
			writeError(w, http.StatusForbidden, "creator account required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AccountFromCtx returns the authenticated account or nil.
func AccountFromCtx(ctx context.Context) *models.Account {
	acc, _ := ctx.Value(ctxAccountKey).(*models.Account)
	return acc
}

// WithAccount returns a context carrying the given account. Used by tests.
func WithAccount(ctx context.Context, acc *models.Account) context.Context {
	return context.WithValue(ctx, ctxAccountKey, acc)
}

// writeError emits the JSON error shape the handlers use, with the
// matching Content-Type.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
