package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/dramaai/backend/internal/auth"
	"github.com/dramaai/backend/internal/config"
	"github.com/dramaai/backend/internal/content"
	"github.com/dramaai/backend/internal/dashboard"
	"github.com/dramaai/backend/internal/db"
	"github.com/dramaai/backend/internal/entitlement"
	"github.com/dramaai/backend/internal/generation"
	"github.com/dramaai/backend/internal/ledger"
	"github.com/dramaai/backend/internal/middleware"
	"github.com/dramaai/backend/internal/payments"
	"github.com/dramaai/backend/internal/purchase"
	"github.com/dramaai/backend/internal/videogen"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		slog.Error("Cannot reach PostgreSQL (connection refused or invalid). Ensure Postgres is running, e.g. make dev-up or docker-compose up -d", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	slog.Info("Connected to PostgreSQL database successfully!")

	if err := db.EnsureSchema(ctx, pool); err != nil {
		slog.Error("Schema bootstrap failed", "error", err)
		os.Exit(1)
	}

	// River migrations
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed. If the error is 'connection refused', start PostgreSQL first (e.g. make dev-up)", "error", err)
		os.Exit(1)
	}
	slog.Info("River migrations applied")

	// Ledger
	ledgerRepo := ledger.NewRepository(pool)
	ledgerSvc := ledger.NewService(ledgerRepo, ledgerRepo, ledgerRepo)

	// Content
	contentRepo := content.NewRepository(pool)

	// Generation: insert func is set after the River client is created
	// (breaks the init cycle).
	var insertMu sync.Mutex
	var insertFn generation.InsertGenerateEpisodeTxFunc
	insertGenerateEpisode := func(ctx context.Context, tx pgx.Tx, args generation.GenerateEpisodeArgs) error {
		insertMu.Lock()
		fn := insertFn
		insertMu.Unlock()
		if fn == nil {
			panic("river insert not wired")
		}
		return fn(ctx, tx, args)
	}
	genSvc := generation.NewService(contentRepo, ledgerSvc, insertGenerateEpisode, cfg.GenerateCostCoins, cfg.EpisodePriceCoins, logger)

	runway := videogen.NewRunwayClient(cfg.RunwayBaseURL, cfg.RunwayAPIKey)
	cloudflare := videogen.NewCloudflareClient(cfg.CloudflareBaseURL, cfg.CloudflareAccount, cfg.CloudflareAPIToken)

	workers := river.NewWorkers()
	river.AddWorker(workers, generation.NewGenerateEpisodeWorker(runway, cloudflare, contentRepo, logger))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers: workers,
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	insertMu.Lock()
	insertFn = func(ctx context.Context, tx pgx.Tx, args generation.GenerateEpisodeArgs) error {
		_, err := riverClient.InsertTx(ctx, tx, args, nil)
		return err
	}
	insertMu.Unlock()

	// Auth
	authRepo := auth.NewRepository(pool)
	authSvc := auth.NewService(authRepo, cfg.JWTSecret)
	authHandler := auth.NewHandler(authSvc, logger)

	// Payments & purchases
	gateway := payments.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	purchaseRepo := purchase.NewRepository(pool)
	purchaseSvc := purchase.NewService(purchaseRepo, gateway, cfg.AppURL)
	reconciler := purchase.NewReconciler(gateway, purchaseRepo, ledgerSvc, logger)
	purchaseHandler := purchase.NewHandler(purchaseSvc, reconciler, logger)

	// Entitlement
	viewRepo := entitlement.NewRepository(pool)
	entSvc := entitlement.NewService(viewRepo, contentRepo, ledgerSvc, ledgerRepo, cfg.CreatorRevenueShare, logger)
	entHandler := entitlement.NewHandler(entSvc, logger)

	genHandler := generation.NewHandler(genSvc, logger)
	contentHandler := content.NewHandler(contentRepo, logger)
	dashHandler := dashboard.NewHandler(ledgerRepo, contentRepo, logger)

	authed := middleware.BearerAuth(authSvc, authRepo)

	mux := http.NewServeMux()
	RegisterRoutes(mux, authed, authHandler, dashHandler, purchaseHandler, entHandler, genHandler, contentHandler)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Stripe-Signature"},
		AllowCredentials: true,
	}).Handler(mux)

	// Start River client (processes render jobs)
	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	serverAddr := "0.0.0.0:" + cfg.Port
	slog.Info("Starting HTTP server", "addr", serverAddr)
	if err := http.ListenAndServe(serverAddr, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
