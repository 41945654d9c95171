package cmd

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Jasmitsingh01/tiktok/api/schemas"
	"github.com/Jasmitsingh01/tiktok/internal/actions"
	"github.com/Jasmitsingh01/tiktok/internal/analytics"
	"github.com/Jasmitsingh01/tiktok/internal/auth"
	"github.com/Jasmitsingh01/tiktok/internal/browser"
	"github.com/Jasmitsingh01/tiktok/internal/captcha"
	"github.com/Jasmitsingh01/tiktok/internal/config"
	"github.com/Jasmitsingh01/tiktok/internal/llmclient"
	"github.com/Jasmitsingh01/tiktok/internal/observability"
	"github.com/Jasmitsingh01/tiktok/internal/orchestrator"
	"github.com/Jasmitsingh01/tiktok/internal/store"
	"github.com/Jasmitsingh01/tiktok/internal/verification"
	"github.com/Jasmitsingh01/tiktok/internal/warmup"
)

// Components holds the initialized services behind one command run and
// centralizes their lifecycle.
type Components struct {
	DBPool         *pgxpool.Pool
	Store          *store.Store
	BrowserManager *browser.Manager
	Orchestrator   *orchestrator.Orchestrator
}

// Shutdown releases everything in reverse initialization order.
func (c *Components) Shutdown() {
	logger := observability.GetLogger()

	if c.BrowserManager != nil {
		// A separate context so shutdown completes even when the main
		// context was canceled.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := c.BrowserManager.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Error during browser manager shutdown.", zap.Error(err))
		}
	}

	if c.DBPool != nil {
		c.DBPool.Close()
	}

	logger.Debug("All components shut down.")
}

// buildComponents handles the full dependency injection for a command:
// database pool, session store, browser manager, service clients, and
// the orchestrator on top.
func buildComponents(ctx context.Context, cfg *config.Config) (*Components, error) {
	logger := observability.GetLogger()
	components := &Components{}

	// Clean up partially created components when a later step fails.
	var initializationErr error
	defer func() {
		if initializationErr != nil {
			logger.Warn("Initialization failed, shutting down partially created components.",
				zap.Error(initializationErr))
			components.Shutdown()
		}
	}()

	// 1. Database pool and session store
	if cfg.Postgres.URL == "" {
		initializationErr = fmt.Errorf("database URL is not configured (hint: set TIKTOK_POSTGRES_URL)")
		return nil, initializationErr
	}
	dbPool, err := pgxpool.New(ctx, cfg.Postgres.URL)
	if err != nil {
		initializationErr = fmt.Errorf("failed to create database connection pool: %w", err)
		return nil, initializationErr
	}
	components.DBPool = dbPool

	sessionStore, err := store.New(ctx, dbPool, logger)
	if err != nil {
		initializationErr = fmt.Errorf("failed to initialize session store: %w", err)
		return nil, initializationErr
	}
	components.Store = sessionStore

	// 2. Browser manager
	manager, err := browser.NewManager(ctx, logger, cfg)
	if err != nil {
		initializationErr = fmt.Errorf("failed to initialize browser manager: %w", err)
		return nil, initializationErr
	}
	components.BrowserManager = manager

	openPage := func(ctx context.Context) (browser.Surface, error) {
		return manager.NewPage(ctx, schemas.DefaultPersona)
	}

	// 3. External service clients
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	transcriber := llmclient.NewTranscriber(cfg.Services.Transcription, logger)
	humanizer := llmclient.NewHumanizer(cfg.Services.Humanizer, logger, rng)
	vision := llmclient.NewVision(cfg.Services.Vision, logger)

	// 4. Flow components
	resolver := captcha.NewResolver(cfg.Captcha, cfg.Platform.Selectors, transcriber, logger)
	retriever := verification.NewRetriever(cfg.Verification, verification.TabOpener(openPage), logger)
	flow := auth.New(cfg.Auth, cfg.Platform, sessionStore, resolver, retriever, logger)

	acts := actions.New(cfg.Platform, humanizer, logger, rng)
	scheduler := warmup.New(cfg.Warmup, cfg.Platform.FeedURL, acts, logger, rng)
	collector := analytics.NewCollector(cfg.Platform, vision, logger)

	components.Orchestrator = orchestrator.New(flow, scheduler, collector, openPage, logger)

	logger.Debug("All components initialized.")
	return components, nil
}
