package humanoid

import (
	"context"
	"fmt"
	"time"
)

// Click moves to the element, settles briefly, then presses and
// releases with a human press-hold duration.
func (h *Humanoid) Click(ctx context.Context, selector string) error {
	if err := h.MoveTo(ctx, selector); err != nil {
		return err
	}
	// Terminal settle before commitment.
	if err := h.Pause(ctx, 40*time.Millisecond, 160*time.Millisecond); err != nil {
		return err
	}
	if err := h.exec.MouseDown(ctx, h.cursorX, h.cursorY); err != nil {
		return fmt.Errorf("pressing at (%.0f, %.0f): %w", h.cursorX, h.cursorY, err)
	}
	if err := h.exec.Sleep(ctx, h.durationBetween(h.cfg.ClickHoldMin, h.cfg.ClickHoldMax)); err != nil {
		return err
	}
	if err := h.exec.MouseUp(ctx, h.cursorX, h.cursorY); err != nil {
		return fmt.Errorf("releasing at (%.0f, %.0f): %w", h.cursorX, h.cursorY, err)
	}
	return nil
}
