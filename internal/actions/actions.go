// Package actions implements the single-step feed interactions: like,
// follow, comment, and scroll. Every primitive checks its preconditions
// on the live DOM and reports "skipped" rather than failing when the
// state makes the action redundant.
package actions

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/Jasmitsingh01/tiktok/api/schemas"
	"github.com/Jasmitsingh01/tiktok/internal/browser"
	"github.com/Jasmitsingh01/tiktok/internal/config"
)

// CommentProvider turns scraped comment context into a comment to post.
// It must always return something usable; degradation is its problem.
type CommentProvider interface {
	Comment(ctx context.Context, scraped []string) schemas.HumanizedComment
}

// Actions bundles the feed primitives with their selector map.
type Actions struct {
	selectors config.SelectorsConfig
	// following holds the lowercase button texts that mean a follow
	// would be redundant.
	following []string
	comments  CommentProvider
	log       *zap.Logger
	rng       *rand.Rand

	// pauseScale shrinks behavioral pauses in tests.
	pauseScale float64
}

func New(platformCfg config.PlatformConfig, comments CommentProvider, logger *zap.Logger, rng *rand.Rand) *Actions {
	return &Actions{
		selectors:  platformCfg.Selectors,
		following:  platformCfg.AlreadyFollowingTexts,
		comments:   comments,
		log:        logger.Named("actions"),
		rng:        rng,
		pauseScale: 1,
	}
}

// pause sleeps a uniform random duration in [min, max], scaled.
func (a *Actions) pause(ctx context.Context, min, max time.Duration) error {
	d := min + time.Duration(a.rng.Float64()*float64(max-min))
	d = time.Duration(float64(d) * a.pauseScale)
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Author returns the handle of the creator whose video currently fills
// the viewport.
func (a *Actions) Author(ctx context.Context, page browser.Surface) (string, bool, error) {
	return page.Text(ctx, a.selectors.AuthorName)
}

// Like presses the like control unless the video is already liked.
// Returns true only when a new like was registered.
func (a *Actions) Like(ctx context.Context, page browser.Surface) (bool, error) {
	if err := page.WaitVisible(ctx, a.selectors.LikeButton, 10*time.Second); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		a.log.Debug("Like button not visible, skipping")
		return false, nil
	}

	pressed, ok, err := page.AttributeValue(ctx, a.selectors.LikeButton, "aria-pressed")
	if err != nil {
		return false, fmt.Errorf("reading like state: %w", err)
	}
	if ok && pressed == "true" {
		a.log.Debug("Video already liked, skipping")
		return false, nil
	}

	// Watch a little before reacting.
	if err := a.pause(ctx, 2*time.Second, 5*time.Second); err != nil {
		return false, err
	}
	if err := page.Click(ctx, a.selectors.LikeButton); err != nil {
		return false, fmt.Errorf("clicking like: %w", err)
	}

	// Confirmation is best-effort: the state flip can lag the click.
	a.awaitLikeConfirmation(ctx, page)

	if err := a.pause(ctx, 800*time.Millisecond, 1500*time.Millisecond); err != nil {
		return false, err
	}
	a.log.Info("Video liked")
	return true, nil
}

func (a *Actions) awaitLikeConfirmation(ctx context.Context, page browser.Surface) {
	for i := 0; i < 15; i++ {
		pressed, ok, err := page.AttributeValue(ctx, a.selectors.LikeButton, "aria-pressed")
		if err == nil && ok && pressed == "true" {
			return
		}
		if err := a.pause(ctx, 200*time.Millisecond, 400*time.Millisecond); err != nil {
			return
		}
	}
	a.log.Debug("Like state did not confirm, assuming success")
}

// Follow follows the current video's creator unless the relationship
// already exists. Returns true only when a new follow was made.
func (a *Actions) Follow(ctx context.Context, page browser.Surface) (bool, error) {
	if err := page.WaitVisible(ctx, a.selectors.FollowButton, 8*time.Second); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		found, existsErr := page.Exists(ctx, a.selectors.FollowButton)
		if existsErr != nil || !found {
			a.log.Debug("Follow button absent, skipping")
			return false, nil
		}
		// Present but not visible; try anyway.
	}

	text, ok, err := page.Text(ctx, a.selectors.FollowButton)
	if err != nil {
		return false, fmt.Errorf("reading follow state: %w", err)
	}
	if ok && a.alreadyFollowing(text) {
		a.log.Debug("Already following creator, skipping", zap.String("button_text", text))
		return false, nil
	}

	// Watch before committing to a follow.
	if err := a.pause(ctx, 2*time.Second, 4*time.Second); err != nil {
		return false, err
	}
	if err := page.Click(ctx, a.selectors.FollowButton); err != nil {
		return false, fmt.Errorf("clicking follow: %w", err)
	}

	a.awaitFollowConfirmation(ctx, page)

	if err := a.pause(ctx, 1*time.Second, 2*time.Second); err != nil {
		return false, err
	}
	a.log.Info("Creator followed")
	return true, nil
}

func (a *Actions) alreadyFollowing(buttonText string) bool {
	lower := strings.ToLower(strings.TrimSpace(buttonText))
	for _, marker := range a.following {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func (a *Actions) awaitFollowConfirmation(ctx context.Context, page browser.Surface) {
	for i := 0; i < 15; i++ {
		text, ok, err := page.Text(ctx, a.selectors.FollowButton)
		if err == nil && ok && a.alreadyFollowing(text) {
			return
		}
		if err := a.pause(ctx, 200*time.Millisecond, 400*time.Millisecond); err != nil {
			return
		}
	}
	a.log.Debug("Follow state did not confirm, assuming success")
}

// Comment opens the comment drawer, generates a comment matched to the
// existing discussion, posts it, and closes the drawer. The drawer is
// closed on failure paths too so the feed stays scrollable.
func (a *Actions) Comment(ctx context.Context, page browser.Surface) (posted bool, err error) {
	if err := page.WaitVisible(ctx, a.selectors.CommentOpenButton, 10*time.Second); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		a.log.Debug("Comment control not visible, skipping")
		return false, nil
	}
	if err := page.Click(ctx, a.selectors.CommentOpenButton); err != nil {
		return false, fmt.Errorf("opening comment drawer: %w", err)
	}
	defer a.closeComments(ctx, page)

	// Let the drawer populate before scraping.
	if err := a.pause(ctx, 2500*time.Millisecond, 4*time.Second); err != nil {
		return false, err
	}

	scraped := a.scrapeComments(ctx, page)
	comment := a.comments.Comment(ctx, scraped)

	if err := page.WaitVisible(ctx, a.selectors.CommentBox, 15*time.Second); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		a.log.Warn("Comment box never appeared, skipping")
		return false, nil
	}
	if err := page.Type(ctx, a.selectors.CommentBox, comment.Comment); err != nil {
		return false, fmt.Errorf("typing comment: %w", err)
	}

	// Review before posting.
	if err := a.pause(ctx, 1500*time.Millisecond, 3*time.Second); err != nil {
		return false, err
	}

	if err := page.WaitVisible(ctx, a.selectors.CommentPostButton, 10*time.Second); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		a.log.Warn("Post button never enabled, skipping")
		return false, nil
	}
	if err := page.Click(ctx, a.selectors.CommentPostButton); err != nil {
		return false, fmt.Errorf("posting comment: %w", err)
	}
	if err := a.pause(ctx, 2500*time.Millisecond, 4*time.Second); err != nil {
		return false, err
	}

	a.log.Info("Comment posted", zap.String("language", comment.Language))
	return true, nil
}

// scrapeComments reads up to 20 existing comments for tone and language
// context. Failures yield an empty sample; the provider falls back.
func (a *Actions) scrapeComments(ctx context.Context, page browser.Surface) []string {
	html, err := page.OuterHTML(ctx, `[role="dialog"]`)
	if err != nil {
		a.log.Debug("No comment drawer markup to scrape", zap.Error(err))
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		a.log.Debug("Could not parse comment drawer markup", zap.Error(err))
		return nil
	}

	var scraped []string
	doc.Find(a.selectors.CommentItemText).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if text != "" {
			scraped = append(scraped, text)
		}
		return len(scraped) < 20
	})
	return scraped
}

// closeComments dismisses the drawer, falling back to toggling the
// comment control when the exit button is missing. Best-effort.
func (a *Actions) closeComments(ctx context.Context, page browser.Surface) {
	found, err := page.Exists(ctx, a.selectors.CommentExitButton)
	if err == nil && found {
		if err := page.Click(ctx, a.selectors.CommentExitButton); err == nil {
			_ = a.pause(ctx, 800*time.Millisecond, 1500*time.Millisecond)
			return
		}
	}
	if err := page.Click(ctx, a.selectors.CommentOpenButton); err != nil {
		a.log.Debug("Could not close comment drawer", zap.Error(err))
	}
}

// Scroll advances the feed to the next video and waits for it to load.
// The scroll gesture is randomized between keyboard and wheel input.
func (a *Actions) Scroll(ctx context.Context, page browser.Surface) error {
	before, _, err := page.Text(ctx, a.selectors.AuthorName)
	if err != nil {
		return fmt.Errorf("reading current author: %w", err)
	}

	if err := a.pause(ctx, 300*time.Millisecond, 1*time.Second); err != nil {
		return err
	}
	if err := a.scrollGesture(ctx, page); err != nil {
		return err
	}
	if err := a.pause(ctx, 4*time.Second, 7*time.Second); err != nil {
		return err
	}

	after, ok, err := page.Text(ctx, a.selectors.AuthorName)
	if err != nil {
		return fmt.Errorf("verifying scroll: %w", err)
	}
	if ok && before != "" && after == before {
		// Snap scrolling sometimes swallows the first gesture.
		if err := page.PressKey(ctx, "ArrowDown"); err != nil {
			return fmt.Errorf("retrying scroll: %w", err)
		}
		if err := a.pause(ctx, 2*time.Second, 3*time.Second); err != nil {
			return err
		}
	}
	return nil
}

func (a *Actions) scrollGesture(ctx context.Context, page browser.Surface) error {
	if a.rng.Float64() < 0.6 {
		if err := page.PressKey(ctx, "ArrowDown"); err != nil {
			return fmt.Errorf("keyboard scroll: %w", err)
		}
		return nil
	}
	expr := `window.scrollBy({ top: window.innerHeight, behavior: 'smooth' })`
	if err := page.Evaluate(ctx, expr, nil); err != nil {
		// Keyboard input is the most reliable fallback.
		if err := page.PressKey(ctx, "ArrowDown"); err != nil {
			return fmt.Errorf("fallback scroll: %w", err)
		}
	}
	return nil
}
