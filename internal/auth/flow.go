// Package auth drives the login state machine: cached-session restore,
// credential submission, the captcha and email-verification gates, and
// the final snapshot persist.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Jasmitsingh01/tiktok/api/schemas"
	"github.com/Jasmitsingh01/tiktok/internal/browser"
	"github.com/Jasmitsingh01/tiktok/internal/config"
	"github.com/Jasmitsingh01/tiktok/internal/store"
)

// SessionRepository is the persistence surface the flow needs.
// Satisfied by store.Store.
type SessionRepository interface {
	Save(ctx context.Context, record *schemas.SessionRecord) error
	Load(ctx context.Context, username string) (*schemas.SessionRecord, error)
	MarkUsed(ctx context.Context, username string) error
	Invalidate(ctx context.Context, username string) error
	Delete(ctx context.Context, username string) error
}

// ChallengeSolver handles the audio captcha. Satisfied by
// captcha.Resolver.
type ChallengeSolver interface {
	Present(ctx context.Context, page browser.Surface) (bool, error)
	Solve(ctx context.Context, page browser.Surface) (bool, error)
}

// CodeRetriever fetches the emailed verification code. Satisfied by
// verification.Retriever.
type CodeRetriever interface {
	RetrieveCode(ctx context.Context, email string) (string, error)
}

// Credentials is the input to a login attempt.
type Credentials struct {
	Username          string
	Password          string
	VerificationEmail string
}

// Flow is the authentication state machine.
type Flow struct {
	cfg       config.AuthConfig
	platform  config.PlatformConfig
	selectors config.SelectorsConfig
	repo      SessionRepository
	captcha   ChallengeSolver
	codes     CodeRetriever
	log       *zap.Logger

	// pauseScale shrinks every wait in tests.
	pauseScale float64
}

func New(cfg config.AuthConfig, platform config.PlatformConfig, repo SessionRepository, solver ChallengeSolver, codes CodeRetriever, logger *zap.Logger) *Flow {
	return &Flow{
		cfg:        cfg,
		platform:   platform,
		selectors:  platform.Selectors,
		repo:       repo,
		captcha:    solver,
		codes:      codes,
		log:        logger.Named("auth"),
		pauseScale: 1,
	}
}

// Login authenticates the account on the given page. A usable persisted
// session short-circuits the credential flow entirely. A persistence
// failure after a successful platform-side login is logged but never
// downgrades the result.
func (f *Flow) Login(ctx context.Context, page browser.Surface, creds Credentials) schemas.LoginResult {
	if creds.Username == "" || creds.Password == "" || creds.VerificationEmail == "" {
		return schemas.LoginResult{
			Reason:  schemas.ReasonMissingInput,
			Message: "username, password and verification email are required",
		}
	}

	if result, ok := f.restoreCached(ctx, page, creds.Username); ok {
		return result
	}

	f.log.Info("performing fresh login", zap.String("username", creds.Username))

	if err := f.submitCredentials(ctx, page, creds); err != nil {
		return schemas.LoginResult{
			Reason:  schemas.ReasonInternal,
			Message: fmt.Sprintf("credential submission failed: %v", err),
		}
	}

	if !f.captchaGate(ctx, page) {
		return schemas.LoginResult{
			Reason:  schemas.ReasonCaptchaUnsolved,
			Message: "failed to solve captcha",
		}
	}

	if err := f.sleep(ctx, f.cfg.VerifyCheckWait); err != nil {
		return cancelled(err)
	}
	if f.needsVerification(ctx, page) {
		if result, ok := f.verificationGate(ctx, page, creds.VerificationEmail); !ok {
			return result
		}
	}

	if err := f.sleep(ctx, f.cfg.SettleWait); err != nil {
		return cancelled(err)
	}
	// The platform sometimes raises a second challenge after the
	// verification screen.
	if !f.captchaGate(ctx, page) {
		return schemas.LoginResult{
			Reason:  schemas.ReasonCaptchaUnsolved,
			Message: "failed to solve captcha",
		}
	}

	f.log.Info("login succeeded", zap.String("username", creds.Username))
	f.persist(ctx, page, creds.Username)

	return schemas.LoginResult{
		Success: true,
		Message: "login successful and session saved",
	}
}

// Logout removes the persisted session and clears the browser state.
// Browser-side cleanup is best effort; the repository's Delete is
// idempotent, so a missing record is not an error.
func (f *Flow) Logout(ctx context.Context, page browser.Surface, username string) error {
	if username == "" {
		return errors.New("username is required")
	}

	var dbErr error
	if err := f.repo.Delete(ctx, username); err != nil {
		f.log.Warn("session delete failed", zap.String("username", username), zap.Error(err))
		dbErr = err
	}

	if err := page.ClearBrowserData(ctx); err != nil {
		f.log.Warn("browser data clear failed", zap.Error(err))
	} else if err := page.Navigate(ctx, f.platform.FeedURL); err != nil {
		f.log.Warn("post-logout navigation failed", zap.Error(err))
	}

	if dbErr != nil {
		return fmt.Errorf("deleting session for %s: %w", username, dbErr)
	}
	f.log.Info("logged out", zap.String("username", username))
	return nil
}

// restoreCached tries the persisted-session short circuit. The second
// return is true when the caller should stop with the given result.
func (f *Flow) restoreCached(ctx context.Context, page browser.Surface, username string) (schemas.LoginResult, bool) {
	record, err := f.repo.Load(ctx, username)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			f.log.Warn("session lookup failed", zap.String("username", username), zap.Error(err))
		}
		return schemas.LoginResult{}, false
	}
	if !record.IsUsable(time.Now()) {
		f.log.Info("persisted session unusable, logging in fresh",
			zap.String("username", username),
			zap.Time("last_login", record.LastLogin))
		return schemas.LoginResult{}, false
	}

	report, err := replay(ctx, page, record, f.log)
	if err != nil {
		f.log.Warn("session restore failed, invalidating",
			zap.String("username", username), zap.Error(err))
		if ierr := f.repo.Invalidate(ctx, username); ierr != nil {
			f.log.Warn("session invalidate failed", zap.Error(ierr))
		}
		return schemas.LoginResult{}, false
	}

	if err := f.repo.MarkUsed(ctx, username); err != nil {
		f.log.Warn("usage stamp failed", zap.Error(err))
	}

	f.log.Info("session restored from cache",
		zap.String("username", username),
		zap.Int("cookies_restored", report.CookiesRestored),
		zap.Int("cookies_dropped", report.CookiesDropped))
	return schemas.LoginResult{
		Success:   true,
		FromCache: true,
		Message:   "session already active",
	}, true
}

func (f *Flow) submitCredentials(ctx context.Context, page browser.Surface, creds Credentials) error {
	if err := page.ClearBrowserData(ctx); err != nil {
		f.log.Warn("pre-login browser data clear failed", zap.Error(err))
	}
	if err := page.Navigate(ctx, f.platform.LoginURL); err != nil {
		return fmt.Errorf("opening login page: %w", err)
	}

	if err := page.WaitVisible(ctx, f.selectors.UsernameInput, 10*time.Second); err != nil {
		return fmt.Errorf("username field: %w", err)
	}
	if err := page.Type(ctx, f.selectors.UsernameInput, creds.Username); err != nil {
		return fmt.Errorf("typing username: %w", err)
	}
	if err := page.WaitVisible(ctx, f.selectors.PasswordInput, 10*time.Second); err != nil {
		return fmt.Errorf("password field: %w", err)
	}
	if err := page.Type(ctx, f.selectors.PasswordInput, creds.Password); err != nil {
		return fmt.Errorf("typing password: %w", err)
	}
	if err := page.PressKey(ctx, "Enter"); err != nil {
		return fmt.Errorf("submitting credentials: %w", err)
	}

	return f.sleep(ctx, f.cfg.SubmitWait)
}

// captchaGate reports whether the page is clear of the challenge. When
// the solver gives up it lingers for the grace window so an out-of-band
// solve can still rescue the attempt.
func (f *Flow) captchaGate(ctx context.Context, page browser.Surface) bool {
	present, err := f.captcha.Present(ctx, page)
	if err != nil {
		f.log.Warn("captcha presence check failed", zap.Error(err))
		return true
	}
	if !present {
		return true
	}

	f.log.Info("captcha detected, solving")
	solved, err := f.captcha.Solve(ctx, page)
	if err != nil {
		f.log.Warn("captcha solver failed", zap.Error(err))
	}
	if solved {
		return true
	}

	f.log.Warn("captcha unsolved, waiting for manual intervention")
	if f.sleep(ctx, f.cfg.GraceWait) != nil {
		return false
	}
	present, err = f.captcha.Present(ctx, page)
	return err == nil && !present
}

func (f *Flow) needsVerification(ctx context.Context, page browser.Surface) bool {
	if ok, err := page.Exists(ctx, f.selectors.VerificationInput); err == nil && ok {
		return true
	}
	var body string
	if err := page.Evaluate(ctx, "document.body.textContent", &body); err != nil {
		f.log.Warn("verification check failed", zap.Error(err))
		return false
	}
	lower := strings.ToLower(body)
	for _, marker := range f.selectors.VerificationMarkers {
		if strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

// verificationGate fetches and enters the emailed code. The second
// return is false when the attempt is terminal.
func (f *Flow) verificationGate(ctx context.Context, page browser.Surface, email string) (schemas.LoginResult, bool) {
	f.log.Info("email verification required")

	code, err := f.codes.RetrieveCode(ctx, email)
	if err != nil || code == "" {
		f.log.Warn("verification code retrieval failed", zap.Error(err))
		_ = f.sleep(ctx, f.cfg.GraceWait)
		return schemas.LoginResult{
			Reason:  schemas.ReasonVerificationFailed,
			Message: "failed to retrieve verification code",
		}, false
	}

	if err := f.enterCode(ctx, page, code); err != nil {
		f.log.Warn("verification code entry failed", zap.Error(err))
		_ = f.sleep(ctx, f.cfg.GraceWait)
		return schemas.LoginResult{
			Reason:  schemas.ReasonVerificationFailed,
			Message: "failed to enter verification code",
		}, false
	}

	return schemas.LoginResult{}, true
}

func (f *Flow) enterCode(ctx context.Context, page browser.Surface, code string) error {
	f.log.Info("entering verification code")

	if err := page.WaitVisible(ctx, f.selectors.VerificationInput, 10*time.Second); err != nil {
		return fmt.Errorf("code input: %w", err)
	}
	if err := page.Type(ctx, f.selectors.VerificationInput, code); err != nil {
		return fmt.Errorf("typing code: %w", err)
	}
	if err := f.sleep(ctx, time.Second); err != nil {
		return err
	}

	if ok, _ := page.Exists(ctx, f.selectors.VerificationSubmit); ok {
		if err := page.Click(ctx, f.selectors.VerificationSubmit); err != nil {
			return fmt.Errorf("clicking submit: %w", err)
		}
	} else if err := page.PressKey(ctx, "Enter"); err != nil {
		return fmt.Errorf("submitting code: %w", err)
	}

	return f.sleep(ctx, f.cfg.CodeSubmitWait)
}

// persist snapshots and saves the session. Failures here never reach
// the caller.
func (f *Flow) persist(ctx context.Context, page browser.Surface, username string) {
	record, err := harvest(ctx, page, username, schemas.PlatformTikTok)
	if err != nil {
		f.log.Error("session snapshot failed", zap.String("username", username), zap.Error(err))
		return
	}
	if err := f.repo.Save(ctx, record); err != nil {
		f.log.Error("session persist failed", zap.String("username", username), zap.Error(err))
		return
	}
	f.log.Info("session data saved", zap.String("username", username))
}

func (f *Flow) sleep(ctx context.Context, d time.Duration) error {
	d = time.Duration(float64(d) * f.pauseScale)
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func cancelled(err error) schemas.LoginResult {
	return schemas.LoginResult{
		Reason:  schemas.ReasonInternal,
		Message: err.Error(),
	}
}
