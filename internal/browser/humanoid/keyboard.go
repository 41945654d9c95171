package humanoid

import (
	"context"
	"fmt"
	"time"
	"unicode"
)

// keyDelay draws the gap before the next keystroke. Gaps are clamped
// so a fast draw never collapses to an inhuman burst.
func (h *Humanoid) keyDelay() time.Duration {
	d := time.Duration(float64(h.cfg.KeyDelayMean) + h.randNorm()*float64(h.cfg.KeyDelayStdDev))
	if d < 30*time.Millisecond {
		d = 30 * time.Millisecond
	}
	return d
}

// Type clicks into the field and emits text one keystroke at a time
// with variable inter-key delays, occasional mid-word pauses, and
// longer breaks after sentence punctuation.
func (h *Humanoid) Type(ctx context.Context, selector, text string) error {
	if err := h.Click(ctx, selector); err != nil {
		return fmt.Errorf("focusing %q for typing: %w", selector, err)
	}
	if err := h.Pause(ctx, 120*time.Millisecond, 350*time.Millisecond); err != nil {
		return err
	}

	for _, r := range text {
		if err := h.exec.SendKey(ctx, string(r)); err != nil {
			return fmt.Errorf("sending keystroke: %w", err)
		}

		switch {
		case r == '.' || r == ',' || r == '!' || r == '?':
			if err := h.Pause(ctx, 200*time.Millisecond, 600*time.Millisecond); err != nil {
				return err
			}
		case unicode.IsSpace(r):
			if err := h.exec.Sleep(ctx, h.keyDelay()+h.keyDelay()/2); err != nil {
				return err
			}
		case h.randFloat() < h.cfg.MidWordPauseP:
			// Brief think-pause inside a word.
			if err := h.Pause(ctx, 300*time.Millisecond, 900*time.Millisecond); err != nil {
				return err
			}
		default:
			if err := h.exec.Sleep(ctx, h.keyDelay()); err != nil {
				return err
			}
		}
	}
	return nil
}
