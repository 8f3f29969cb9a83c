package main

import (
	"net/http"

	"github.com/dramaai/backend/internal/auth"
	"github.com/dramaai/backend/internal/content"
	"github.com/dramaai/backend/internal/dashboard"
	"github.com/dramaai/backend/internal/entitlement"
	"github.com/dramaai/backend/internal/generation"
	"github.com/dramaai/backend/internal/middleware"
	"github.com/dramaai/backend/internal/purchase"
)

// RegisterRoutes wires the /api/v1 surface. authed validates the Bearer
// token and loads the account; creator routes additionally require the
// creator flag. The Stripe webhook stays unauthenticated: its signature
// header is the only gate.
func RegisterRoutes(
	mux *http.ServeMux,
	authed func(http.Handler) http.Handler,
	authH *auth.Handler,
	dashH *dashboard.Handler,
	purchaseH *purchase.Handler,
	entH *entitlement.Handler,
	genH *generation.Handler,
	contentH *content.Handler,
) {
	creator := func(h http.HandlerFunc) http.Handler {
		return authed(middleware.RequireCreator(h))
	}

	// Public
	mux.HandleFunc("POST /api/v1/auth/register", authH.Register)
	mux.HandleFunc("POST /api/v1/auth/login", authH.Login)
	mux.HandleFunc("GET /api/v1/coins/packages", purchaseH.ListPackages)
	mux.HandleFunc("POST /api/v1/stripe/webhook", purchaseH.Webhook)
	mux.HandleFunc("GET /api/v1/dramas/{id}/episodes", contentH.ListEpisodes)

	// Authenticated
	mux.Handle("GET /api/v1/account/me", authed(http.HandlerFunc(dashH.GetMe)))
	mux.Handle("GET /api/v1/transactions", authed(http.HandlerFunc(dashH.ListTransactions)))
	mux.Handle("POST /api/v1/coins/purchase", authed(http.HandlerFunc(purchaseH.Initiate)))
	mux.Handle("GET /api/v1/purchases/{id}", authed(http.HandlerFunc(purchaseH.GetPurchase)))
	mux.Handle("POST /api/v1/watch", authed(http.HandlerFunc(entH.Watch)))

	// Creator only
	mux.Handle("GET /api/v1/creator/stats", creator(dashH.CreatorStats))
	mux.Handle("POST /api/v1/generate", creator(genH.Generate))
	mux.Handle("POST /api/v1/dramas", creator(contentH.CreateDrama))
}
