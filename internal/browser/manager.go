// Package browser owns the Chrome process lifecycle and exposes pages
// as a mockable Surface for the automation flows.
package browser

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Jasmitsingh01/tiktok/api/schemas"
	"github.com/Jasmitsingh01/tiktok/internal/config"
)

// Manager manages the browser executable and the set of open pages.
type Manager struct {
	logger *zap.Logger
	cfg    *config.Config

	// ChromeDP allocator context manages the underlying browser process.
	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc

	// Track open pages for graceful shutdown.
	pages map[string]*Page
	mu    sync.Mutex
}

// NewManager starts the allocator for the browser executable.
func NewManager(ctx context.Context, logger *zap.Logger, cfg *config.Config) (*Manager, error) {
	m := &Manager{
		logger: logger.Named("browser_manager"),
		cfg:    cfg,
		pages:  make(map[string]*Page),
	}

	opts := m.generateAllocatorOptions()
	m.allocatorCtx, m.allocatorCancel = chromedp.NewExecAllocator(ctx, opts...)

	m.logger.Info("Browser manager initialized",
		zap.Bool("headless", cfg.Browser.Headless),
		zap.Bool("proxy_enabled", cfg.Browser.Proxy.Enabled),
	)
	return m, nil
}

// generateAllocatorOptions configures the flags for the browser executable.
func (m *Manager) generateAllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	browserCfg := m.cfg.Browser
	if browserCfg.Headless {
		opts = append(opts, chromedp.Headless)
	}

	opts = append(opts,
		// Essential flags for automation detection evasion.
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),

		// Performance and stability flags.
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("metrics-recording-only", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-prompt-on-repost", true),
		chromedp.Flag("disable-extensions", true),

		// GPU often causes issues in headless/containerized environments.
		chromedp.Flag("disable-gpu", browserCfg.Headless),

		chromedp.Flag("ignore-certificate-errors", browserCfg.IgnoreTLSErrors),
	)

	if browserCfg.Proxy.Enabled && browserCfg.Proxy.Address != "" {
		proxyURL := "http://" + browserCfg.Proxy.Address
		if _, err := url.Parse(proxyURL); err == nil {
			opts = append(opts, chromedp.ProxyServer(proxyURL))
			// The browser will not trust a MITM proxy's certificates.
			opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
		} else {
			m.logger.Error("Invalid proxy address in config, cannot set proxy",
				zap.String("address", browserCfg.Proxy.Address))
		}
	}

	return opts
}

// NewPage opens an isolated tab configured with the given persona and
// fingerprint evasions applied before any document loads.
func (m *Manager) NewPage(sessionCtx context.Context, persona schemas.Persona) (*Page, error) {
	ctx, cancel := chromedp.NewContext(m.allocatorCtx,
		chromedp.WithLogf(m.logger.Sugar().Debugf),
		chromedp.WithErrorf(m.logger.Sugar().Errorf),
	)

	// Tie the tab to the lifecycle of the incoming session request.
	go func() {
		select {
		case <-sessionCtx.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := chromedp.Run(ctx, chromedp.Navigate("about:blank")); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize new browser tab: %w", err)
	}

	if persona.UserAgent == "" {
		persona = schemas.DefaultPersona
	}
	if err := chromedp.Run(ctx, applyEvasions(persona)); err != nil {
		// Non-fatal; the page still works, just with a louder fingerprint.
		m.logger.Warn("Failed to apply fingerprint evasions", zap.Error(err))
	}

	pageID := uuid.New().String()
	p := newPage(ctx, cancel, m.logger, m.cfg, m, pageID)

	m.mu.Lock()
	m.pages[pageID] = p
	m.mu.Unlock()

	return p, nil
}

// unregisterPage removes the page from the tracking map. Called by
// Page.Close.
func (m *Manager) unregisterPage(pageID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pages, pageID)
}

// Shutdown closes all open pages and terminates the browser process.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down browser manager...")

	m.mu.Lock()
	pagesToClose := make([]*Page, 0, len(m.pages))
	for _, p := range m.pages {
		pagesToClose = append(pagesToClose, p)
	}
	m.pages = make(map[string]*Page)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, p := range pagesToClose {
		wg.Add(1)
		go func(p *Page) {
			defer wg.Done()
			closeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			if err := p.Close(closeCtx); err != nil {
				m.logger.Warn("Error closing page during shutdown",
					zap.String("page_id", p.pageID), zap.Error(err))
			}
		}(p)
	}
	wg.Wait()

	if m.allocatorCancel != nil {
		m.allocatorCancel()
	}

	m.logger.Info("Browser manager shutdown complete.")
	return nil
}
