package humanoid

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorderExec captures dispatched input without a browser. Sleeps are
// tallied rather than slept so tests stay fast.
type recorderExec struct {
	box      Box
	moves    [][2]float64
	downs    [][2]float64
	ups      [][2]float64
	keys     []string
	slept    time.Duration
	sleepErr error
}

func (r *recorderExec) ElementBox(ctx context.Context, selector string) (Box, error) {
	return r.box, nil
}

func (r *recorderExec) DispatchMouseMove(ctx context.Context, x, y float64) error {
	r.moves = append(r.moves, [2]float64{x, y})
	return nil
}

func (r *recorderExec) MouseDown(ctx context.Context, x, y float64) error {
	r.downs = append(r.downs, [2]float64{x, y})
	return nil
}

func (r *recorderExec) MouseUp(ctx context.Context, x, y float64) error {
	r.ups = append(r.ups, [2]float64{x, y})
	return nil
}

func (r *recorderExec) SendKey(ctx context.Context, key string) error {
	r.keys = append(r.keys, key)
	return nil
}

func (r *recorderExec) Sleep(ctx context.Context, d time.Duration) error {
	if r.sleepErr != nil {
		return r.sleepErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.slept += d
	return nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.StepInterval = time.Millisecond
	return cfg
}

func TestMoveToLandsInsideTarget(t *testing.T) {
	exec := &recorderExec{box: Box{X: 500, Y: 400, Width: 80, Height: 30}}
	h := NewSeeded(testConfig(), exec, 42)

	require.NoError(t, h.MoveTo(context.Background(), "#submit"))
	require.NotEmpty(t, exec.moves)

	last := exec.moves[len(exec.moves)-1]
	assert.GreaterOrEqual(t, last[0], 500.0)
	assert.LessOrEqual(t, last[0], 580.0)
	assert.GreaterOrEqual(t, last[1], 400.0)
	assert.LessOrEqual(t, last[1], 430.0)
}

func TestMoveToTakesCurvedPath(t *testing.T) {
	exec := &recorderExec{box: Box{X: 900, Y: 600, Width: 60, Height: 40}}
	h := NewSeeded(testConfig(), exec, 7)

	require.NoError(t, h.MoveTo(context.Background(), "#far"))
	require.Greater(t, len(exec.moves), 4, "long travel should be decomposed into steps")

	// A straight-line dispatch would keep every intermediate point on
	// the segment; drift and tremor must bend at least one off it.
	first, last := exec.moves[0], exec.moves[len(exec.moves)-1]
	offSegment := false
	for _, p := range exec.moves[1 : len(exec.moves)-1] {
		if distToSegment(p, first, last) > 0.5 {
			offSegment = true
			break
		}
	}
	assert.True(t, offSegment)
}

func distToSegment(p, a, b [2]float64) float64 {
	abx, aby := b[0]-a[0], b[1]-a[1]
	l2 := abx*abx + aby*aby
	if l2 == 0 {
		return math.Hypot(p[0]-a[0], p[1]-a[1])
	}
	t := ((p[0]-a[0])*abx + (p[1]-a[1])*aby) / l2
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(p[0]-(a[0]+t*abx), p[1]-(a[1]+t*aby))
}

func TestClickPressesWhereCursorLanded(t *testing.T) {
	exec := &recorderExec{box: Box{X: 100, Y: 100, Width: 50, Height: 50}}
	h := NewSeeded(testConfig(), exec, 99)

	require.NoError(t, h.Click(context.Background(), "#like"))
	require.Len(t, exec.downs, 1)
	require.Len(t, exec.ups, 1)
	assert.Equal(t, exec.downs[0], exec.ups[0])

	last := exec.moves[len(exec.moves)-1]
	assert.Equal(t, last, exec.downs[0])
}

func TestTypeEmitsEveryRuneInOrder(t *testing.T) {
	exec := &recorderExec{box: Box{X: 10, Y: 10, Width: 200, Height: 30}}
	h := NewSeeded(testConfig(), exec, 3)

	require.NoError(t, h.Type(context.Background(), "#comment", "nice video!"))

	var got string
	for _, k := range exec.keys {
		got += k
	}
	assert.Equal(t, "nice video!", got)
	assert.Greater(t, exec.slept, time.Duration(0), "typing must pace keystrokes")
}

func TestPauseStaysWithinBounds(t *testing.T) {
	exec := &recorderExec{}
	h := NewSeeded(testConfig(), exec, 11)

	for i := 0; i < 50; i++ {
		exec.slept = 0
		require.NoError(t, h.Pause(context.Background(), 100*time.Millisecond, 300*time.Millisecond))
		assert.GreaterOrEqual(t, exec.slept, 100*time.Millisecond)
		assert.LessOrEqual(t, exec.slept, 300*time.Millisecond)
	}
}

func TestMoveToHonorsCancellation(t *testing.T) {
	exec := &recorderExec{box: Box{X: 800, Y: 700, Width: 40, Height: 40}}
	h := NewSeeded(testConfig(), exec, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := h.MoveTo(ctx, "#anything")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
