// Package orchestrator serializes account operations. All work for one
// username runs single file; different usernames proceed concurrently.
package orchestrator

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Jasmitsingh01/tiktok/api/schemas"
	"github.com/Jasmitsingh01/tiktok/internal/auth"
	"github.com/Jasmitsingh01/tiktok/internal/browser"
)

// WarmupRunner drives a behavioral session. Satisfied by
// warmup.Scheduler.
type WarmupRunner interface {
	Run(ctx context.Context, page browser.Surface) (*schemas.RunSummary, error)
}

// AnalyticsCollector reads post metrics. Satisfied by
// analytics.Collector.
type AnalyticsCollector interface {
	Collect(ctx context.Context, page browser.Surface, postID string) (*schemas.VideoAnalytics, error)
}

// LoginFlow is the authentication surface. Satisfied by auth.Flow.
type LoginFlow interface {
	Login(ctx context.Context, page browser.Surface, creds auth.Credentials) schemas.LoginResult
	Logout(ctx context.Context, page browser.Surface, username string) error
}

// PageOpener creates a fresh tab for an operation.
type PageOpener func(ctx context.Context) (browser.Surface, error)

// Orchestrator is the top level entry point for account operations.
type Orchestrator struct {
	flow      LoginFlow
	warmup    WarmupRunner
	analytics AnalyticsCollector
	openPage  PageOpener
	log       *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(flow LoginFlow, warmup WarmupRunner, analytics AnalyticsCollector, openPage PageOpener, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		flow:      flow,
		warmup:    warmup,
		analytics: analytics,
		openPage:  openPage,
		log:       logger.Named("orchestrator"),
		locks:     make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex owning all operations for one username.
// Locks are never removed: the identity count is small and a removed
// lock could let two operations interleave.
func (o *Orchestrator) lockFor(username string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.locks[username]
	if !ok {
		l = &sync.Mutex{}
		o.locks[username] = l
	}
	return l
}

// Login authenticates the account on a fresh page.
func (o *Orchestrator) Login(ctx context.Context, creds auth.Credentials) (schemas.LoginResult, error) {
	l := o.lockFor(creds.Username)
	l.Lock()
	defer l.Unlock()

	page, err := o.openPage(ctx)
	if err != nil {
		return schemas.LoginResult{}, err
	}
	defer o.closePage(page)

	return o.flow.Login(ctx, page, creds), nil
}

// Warmup logs in (cached session preferred) and runs the behavioral
// session on the same page.
func (o *Orchestrator) Warmup(ctx context.Context, creds auth.Credentials) (*schemas.RunSummary, error) {
	l := o.lockFor(creds.Username)
	l.Lock()
	defer l.Unlock()

	page, err := o.openPage(ctx)
	if err != nil {
		return nil, err
	}
	defer o.closePage(page)

	result := o.flow.Login(ctx, page, creds)
	if !result.Success {
		return nil, &LoginError{Result: result}
	}

	return o.warmup.Run(ctx, page)
}

// Logout removes the persisted session and clears browser state.
func (o *Orchestrator) Logout(ctx context.Context, username string) error {
	l := o.lockFor(username)
	l.Lock()
	defer l.Unlock()

	page, err := o.openPage(ctx)
	if err != nil {
		return err
	}
	defer o.closePage(page)

	return o.flow.Logout(ctx, page, username)
}

// Analytics logs in and collects metrics for one post.
func (o *Orchestrator) Analytics(ctx context.Context, creds auth.Credentials, postID string) (*schemas.VideoAnalytics, error) {
	l := o.lockFor(creds.Username)
	l.Lock()
	defer l.Unlock()

	page, err := o.openPage(ctx)
	if err != nil {
		return nil, err
	}
	defer o.closePage(page)

	result := o.flow.Login(ctx, page, creds)
	if !result.Success {
		return nil, &LoginError{Result: result}
	}

	return o.analytics.Collect(ctx, page, postID)
}

func (o *Orchestrator) closePage(page browser.Surface) {
	if err := page.Close(context.Background()); err != nil {
		o.log.Warn("page close failed", zap.Error(err))
	}
}

// LoginError carries the typed login result through an error return.
type LoginError struct {
	Result schemas.LoginResult
}

func (e *LoginError) Error() string {
	if e.Result.Message != "" {
		return "login failed: " + e.Result.Message
	}
	return "login failed"
}
