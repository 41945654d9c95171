package humanoid

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/aquilax/go-perlin"
)

const (
	perlinAlpha   = 2.0
	perlinBeta    = 2.0
	perlinOctaves = 3
)

// easeInOutCubic maps t in [0,1] to an s-curve: slow start, fast
// middle, decelerating approach.
func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// fittsDuration estimates movement time from travel distance and
// target width.
func (h *Humanoid) fittsDuration(distance, width float64) time.Duration {
	if width < 4 {
		width = 4
	}
	ms := h.cfg.FittsA + h.cfg.FittsB*math.Log2(distance/width+1)
	// Natural per-movement variance.
	ms *= 0.85 + h.randFloat()*0.3
	return time.Duration(ms) * time.Millisecond
}

// targetPoint picks a landing point inside the box, biased toward the
// center so repeated clicks do not pile onto one pixel.
func (h *Humanoid) targetPoint(box Box) (float64, float64) {
	x := box.X + box.Width/2 + h.randNorm()*box.Width/8
	y := box.Y + box.Height/2 + h.randNorm()*box.Height/8
	x = math.Max(box.X+1, math.Min(x, box.X+box.Width-1))
	y = math.Max(box.Y+1, math.Min(y, box.Y+box.Height-1))
	return x, y
}

// MoveTo walks the cursor to a point inside the element identified by
// selector along an eased, noisy trajectory.
func (h *Humanoid) MoveTo(ctx context.Context, selector string) error {
	box, err := h.exec.ElementBox(ctx, selector)
	if err != nil {
		return fmt.Errorf("locating %q for pointer travel: %w", selector, err)
	}
	tx, ty := h.targetPoint(box)
	return h.moveToPoint(ctx, tx, ty, math.Min(box.Width, box.Height))
}

func (h *Humanoid) moveToPoint(ctx context.Context, tx, ty, targetWidth float64) error {
	sx, sy := h.cursorX, h.cursorY
	dx, dy := tx-sx, ty-sy
	distance := math.Hypot(dx, dy)
	if distance < 1 {
		return nil
	}

	total := h.fittsDuration(distance, targetWidth)
	steps := int(total / h.cfg.StepInterval)
	if steps < 4 {
		steps = 4
	}

	// Drift applies perpendicular to the travel direction and fades
	// out near the target.
	perpX, perpY := -dy/distance, dx/distance
	noise := perlin.NewPerlin(perlinAlpha, perlinBeta, perlinOctaves, int64(h.randFloat()*math.MaxInt32))

	for i := 1; i <= steps; i++ {
		t := easeInOutCubic(float64(i) / float64(steps))
		fade := math.Sin(t * math.Pi)
		h.perlinT += 0.07
		drift := noise.Noise1D(h.perlinT) * h.cfg.PerlinAmplitude * fade

		x := sx + dx*t + perpX*drift + h.randNorm()*h.cfg.TremorStdDev*fade
		y := sy + dy*t + perpY*drift + h.randNorm()*h.cfg.TremorStdDev*fade

		if err := h.exec.DispatchMouseMove(ctx, x, y); err != nil {
			return fmt.Errorf("dispatching pointer step: %w", err)
		}
		h.cursorX, h.cursorY = x, y
		if err := h.exec.Sleep(ctx, h.cfg.StepInterval); err != nil {
			return err
		}
	}

	// Land exactly on the chosen point.
	if err := h.exec.DispatchMouseMove(ctx, tx, ty); err != nil {
		return err
	}
	h.cursorX, h.cursorY = tx, ty
	return nil
}
