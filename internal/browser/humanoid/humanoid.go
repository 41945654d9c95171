// Package humanoid generates human-plausible pointer and keyboard input.
// Cursor paths follow eased trajectories with Perlin drift and Gaussian
// tremor; keystrokes carry per-character delays and mid-word pauses.
package humanoid

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Box is the layout rectangle of a DOM element in CSS pixels.
type Box struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Executor dispatches low-level input against a live page. The browser
// page satisfies this; tests substitute a recorder.
type Executor interface {
	ElementBox(ctx context.Context, selector string) (Box, error)
	DispatchMouseMove(ctx context.Context, x, y float64) error
	MouseDown(ctx context.Context, x, y float64) error
	MouseUp(ctx context.Context, x, y float64) error
	SendKey(ctx context.Context, key string) error
	Sleep(ctx context.Context, d time.Duration) error
}

// Config tunes the motion and typing models.
type Config struct {
	Enabled bool `mapstructure:"enabled"`

	// Fitts's law coefficients for movement duration:
	// t = a + b*log2(distance/width + 1), in milliseconds.
	FittsA float64 `mapstructure:"fitts_a"`
	FittsB float64 `mapstructure:"fitts_b"`

	// PerlinAmplitude scales low-frequency drift perpendicular to the
	// travel direction, in pixels.
	PerlinAmplitude float64 `mapstructure:"perlin_amplitude"`
	// TremorStdDev is the per-step Gaussian jitter, in pixels.
	TremorStdDev float64 `mapstructure:"tremor_std_dev"`
	// StepInterval is the pacing between dispatched move events.
	StepInterval time.Duration `mapstructure:"step_interval"`

	ClickHoldMin time.Duration `mapstructure:"click_hold_min"`
	ClickHoldMax time.Duration `mapstructure:"click_hold_max"`

	// KeyDelayMean and KeyDelayStdDev shape the inter-keystroke gap.
	KeyDelayMean   time.Duration `mapstructure:"key_delay_mean"`
	KeyDelayStdDev time.Duration `mapstructure:"key_delay_std_dev"`
	// MidWordPauseP is the chance of a longer think-pause inside a word.
	MidWordPauseP float64 `mapstructure:"mid_word_pause_p"`
}

// DefaultConfig returns motion parameters calibrated against recorded
// human sessions.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		FittsA:          120,
		FittsB:          180,
		PerlinAmplitude: 6.0,
		TremorStdDev:    0.8,
		StepInterval:    12 * time.Millisecond,
		ClickHoldMin:    45 * time.Millisecond,
		ClickHoldMax:    130 * time.Millisecond,
		KeyDelayMean:    140 * time.Millisecond,
		KeyDelayStdDev:  60 * time.Millisecond,
		MidWordPauseP:   0.06,
	}
}

// Humanoid drives an Executor with the configured motion model. Safe
// for use by a single goroutine per instance.
type Humanoid struct {
	cfg  Config
	exec Executor

	mu  sync.Mutex
	rng *rand.Rand

	// cursor tracks the last dispatched pointer position.
	cursorX float64
	cursorY float64

	perlinT float64
}

// New builds a Humanoid seeded from the wall clock.
func New(cfg Config, exec Executor) *Humanoid {
	return newHumanoid(cfg, exec, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewSeeded builds a Humanoid with a deterministic random source.
func NewSeeded(cfg Config, exec Executor, seed int64) *Humanoid {
	return newHumanoid(cfg, exec, rand.New(rand.NewSource(seed)))
}

func newHumanoid(cfg Config, exec Executor, rng *rand.Rand) *Humanoid {
	return &Humanoid{
		cfg:     cfg,
		exec:    exec,
		rng:     rng,
		cursorX: 200 + rng.Float64()*400,
		cursorY: 150 + rng.Float64()*300,
	}
}

func (h *Humanoid) randFloat() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rng.Float64()
}

func (h *Humanoid) randNorm() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rng.NormFloat64()
}

// durationBetween picks a uniform duration in [min, max].
func (h *Humanoid) durationBetween(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(h.randFloat()*float64(max-min))
}

// Hesitate blocks for d or until the context is cancelled.
func (h *Humanoid) Hesitate(ctx context.Context, d time.Duration) error {
	return h.exec.Sleep(ctx, d)
}

// Pause sleeps for a uniform random duration in [min, max].
func (h *Humanoid) Pause(ctx context.Context, min, max time.Duration) error {
	return h.Hesitate(ctx, h.durationBetween(min, max))
}
