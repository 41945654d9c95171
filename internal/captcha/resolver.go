// Package captcha solves the platform's audio captcha challenge by
// downloading the challenge audio, transcribing it, and submitting the
// normalized answer.
package captcha

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/Jasmitsingh01/tiktok/internal/browser"
	"github.com/Jasmitsingh01/tiktok/internal/config"
)

// Transcriber converts challenge audio into a normalized answer string.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Resolver runs the bounded solve loop against a page showing the
// captcha overlay.
type Resolver struct {
	cfg         config.CaptchaConfig
	selectors   config.SelectorsConfig
	transcriber Transcriber
	downloader  *http.Client
	log         *zap.Logger
}

// sleep blocks for d or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func NewResolver(cfg config.CaptchaConfig, selectors config.SelectorsConfig, transcriber Transcriber, logger *zap.Logger) *Resolver {
	return &Resolver{
		cfg:         cfg,
		selectors:   selectors,
		transcriber: transcriber,
		downloader:  &http.Client{Timeout: cfg.DownloadTimeout},
		log:         logger.Named("captcha"),
	}
}

// Present reports whether the captcha overlay is on the page.
func (r *Resolver) Present(ctx context.Context, page browser.Surface) (bool, error) {
	return page.Exists(ctx, r.selectors.CaptchaContainer)
}

// Solve attempts the audio challenge up to the configured attempt
// budget. It returns true when the overlay has gone away, false when
// every attempt failed. A false result is not an error: callers decide
// whether an unsolved captcha is terminal.
func (r *Resolver) Solve(ctx context.Context, page browser.Surface) (bool, error) {
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		r.log.Info("Audio captcha attempt",
			zap.Int("attempt", attempt), zap.Int("max_attempts", r.cfg.MaxAttempts))

		solved, err := r.attempt(ctx, page, attempt)
		if err != nil {
			if ctx.Err() != nil {
				return false, err
			}
			// A failed attempt burns budget but never aborts the loop.
			r.log.Warn("Captcha attempt failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		if solved {
			r.log.Info("Audio captcha solved", zap.Int("attempt", attempt))
			return true, nil
		}
	}
	return false, nil
}

func (r *Resolver) attempt(ctx context.Context, page browser.Surface, attempt int) (bool, error) {
	// First attempt switches to the audio variant; later attempts
	// refresh for a new challenge.
	if attempt == 1 {
		found, err := page.Exists(ctx, r.selectors.CaptchaAudioButton)
		if err != nil {
			return false, err
		}
		if !found {
			return false, fmt.Errorf("audio switch button %q not found", r.selectors.CaptchaAudioButton)
		}
		if err := page.Click(ctx, r.selectors.CaptchaAudioButton); err != nil {
			return false, fmt.Errorf("switching to audio challenge: %w", err)
		}
	} else {
		found, err := page.Exists(ctx, r.selectors.CaptchaRefreshButton)
		if err != nil {
			return false, err
		}
		if found {
			if err := page.Click(ctx, r.selectors.CaptchaRefreshButton); err != nil {
				return false, fmt.Errorf("refreshing challenge: %w", err)
			}
		}
	}
	if err := sleep(ctx, r.cfg.SwitchWait); err != nil {
		return false, err
	}

	audioURL, err := r.audioURL(ctx, page)
	if err != nil {
		return false, err
	}

	audio, artifactPath, err := r.downloadAudio(ctx, audioURL, attempt)
	if err != nil {
		return false, err
	}
	defer func() {
		if artifactPath != "" {
			_ = os.Remove(artifactPath)
		}
	}()

	answer, err := r.transcriber.Transcribe(ctx, audio)
	if err != nil {
		return false, fmt.Errorf("transcribing challenge audio: %w", err)
	}

	if err := r.submitAnswer(ctx, page, answer); err != nil {
		return false, err
	}
	if err := sleep(ctx, r.cfg.SettleWait); err != nil {
		return false, err
	}

	stillPresent, err := page.Exists(ctx, r.selectors.CaptchaContainer)
	if err != nil {
		return false, err
	}
	return !stillPresent, nil
}

func (r *Resolver) audioURL(ctx context.Context, page browser.Surface) (string, error) {
	var url string
	expr := `(() => { const a = document.querySelector('audio'); return a ? a.src : ''; })()`
	if err := page.Evaluate(ctx, expr, &url); err != nil {
		return "", fmt.Errorf("locating challenge audio: %w", err)
	}
	if url == "" {
		return "", fmt.Errorf("challenge audio element has no source")
	}
	return url, nil
}

// downloadAudio fetches the challenge audio and keeps an on-disk
// artifact for the duration of the attempt so a failed transcription
// can be inspected.
func (r *Resolver) downloadAudio(ctx context.Context, url string, attempt int) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("building audio download request: %w", err)
	}
	resp, err := r.downloader.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("downloading challenge audio: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("audio download returned status %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading challenge audio: %w", err)
	}

	var artifactPath string
	if r.cfg.AudioDir != "" {
		if err := os.MkdirAll(r.cfg.AudioDir, 0o755); err == nil {
			artifactPath = filepath.Join(r.cfg.AudioDir, fmt.Sprintf("captcha-audio-%d.mp3", attempt))
			if err := os.WriteFile(artifactPath, audio, 0o644); err != nil {
				r.log.Debug("Could not persist audio artifact", zap.Error(err))
				artifactPath = ""
			}
		}
	}
	return audio, artifactPath, nil
}

func (r *Resolver) submitAnswer(ctx context.Context, page browser.Surface, answer string) error {
	found, err := page.Exists(ctx, r.selectors.CaptchaAnswerInput)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("answer input %q not found", r.selectors.CaptchaAnswerInput)
	}

	// Clear any remnants of a previous attempt before typing.
	clearExpr := fmt.Sprintf(`(() => { const el = document.querySelector(%q); if (el) el.value = ''; })()`,
		r.selectors.CaptchaAnswerInput)
	if err := page.Evaluate(ctx, clearExpr, nil); err != nil {
		return fmt.Errorf("clearing answer input: %w", err)
	}
	if err := page.Type(ctx, r.selectors.CaptchaAnswerInput, answer); err != nil {
		return fmt.Errorf("typing answer: %w", err)
	}

	verifyFound, err := page.Exists(ctx, r.selectors.CaptchaVerifyButton)
	if err != nil {
		return err
	}
	if verifyFound {
		if err := page.Click(ctx, r.selectors.CaptchaVerifyButton); err != nil {
			return fmt.Errorf("clicking verify: %w", err)
		}
		return nil
	}
	if err := page.PressKey(ctx, "Enter"); err != nil {
		return fmt.Errorf("submitting answer with Enter: %w", err)
	}
	return nil
}
