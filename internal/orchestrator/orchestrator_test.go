package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Jasmitsingh01/tiktok/api/schemas"
	"github.com/Jasmitsingh01/tiktok/internal/auth"
	"github.com/Jasmitsingh01/tiktok/internal/browser"
	"github.com/Jasmitsingh01/tiktok/internal/mocks"
)

// trackingFlow counts concurrent Login calls per username so tests can
// prove single-flight behavior.
type trackingFlow struct {
	mu         sync.Mutex
	inFlight   map[string]int
	overlapped atomic.Bool

	loginResult schemas.LoginResult
	hold        time.Duration
}

func newTrackingFlow(result schemas.LoginResult) *trackingFlow {
	return &trackingFlow{
		inFlight:    make(map[string]int),
		loginResult: result,
		hold:        5 * time.Millisecond,
	}
}

func (f *trackingFlow) Login(ctx context.Context, _ browser.Surface, creds auth.Credentials) schemas.LoginResult {
	f.mu.Lock()
	f.inFlight[creds.Username]++
	if f.inFlight[creds.Username] > 1 {
		f.overlapped.Store(true)
	}
	f.mu.Unlock()

	time.Sleep(f.hold)

	f.mu.Lock()
	f.inFlight[creds.Username]--
	f.mu.Unlock()
	return f.loginResult
}

func (f *trackingFlow) Logout(ctx context.Context, _ browser.Surface, username string) error {
	return nil
}

type stubWarmup struct {
	calls atomic.Int32
	err   error
}

func (s *stubWarmup) Run(context.Context, browser.Surface) (*schemas.RunSummary, error) {
	s.calls.Add(1)
	return &schemas.RunSummary{RunID: "run-1", VideosWatched: 7}, s.err
}

type stubAnalytics struct{}

func (stubAnalytics) Collect(context.Context, browser.Surface, string) (*schemas.VideoAnalytics, error) {
	views := 42
	return &schemas.VideoAnalytics{VideoViews: &views}, nil
}

func newClosablePage() *mocks.MockSurface {
	page := new(mocks.MockSurface)
	page.On("Close", mock.Anything).Return(nil)
	return page
}

func newTestOrchestrator(flow LoginFlow, w WarmupRunner) *Orchestrator {
	opener := func(ctx context.Context) (browser.Surface, error) {
		return newClosablePage(), nil
	}
	return New(flow, w, stubAnalytics{}, opener, zap.NewNop())
}

func TestSameUsernameSerialized(t *testing.T) {
	flow := newTrackingFlow(schemas.LoginResult{Success: true})
	o := newTestOrchestrator(flow, &stubWarmup{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := o.Login(context.Background(), auth.Credentials{
				Username: "creator01", Password: "p", VerificationEmail: "e",
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.False(t, flow.overlapped.Load(), "logins for one username overlapped")
}

func TestDifferentUsernamesProceedConcurrently(t *testing.T) {
	flow := newTrackingFlow(schemas.LoginResult{Success: true})
	flow.hold = 50 * time.Millisecond
	o := newTestOrchestrator(flow, &stubWarmup{})

	start := time.Now()
	var wg sync.WaitGroup
	for _, name := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_, _ = o.Login(context.Background(), auth.Credentials{
				Username: name, Password: "p", VerificationEmail: "e",
			})
		}(name)
	}
	wg.Wait()

	// Serial execution would take at least 4x the hold.
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestWarmupRequiresLogin(t *testing.T) {
	w := &stubWarmup{}
	flow := newTrackingFlow(schemas.LoginResult{
		Reason: schemas.ReasonCaptchaUnsolved, Message: "failed to solve captcha",
	})
	o := newTestOrchestrator(flow, w)

	_, err := o.Warmup(context.Background(), auth.Credentials{
		Username: "creator01", Password: "p", VerificationEmail: "e",
	})

	var loginErr *LoginError
	require.ErrorAs(t, err, &loginErr)
	assert.Equal(t, schemas.ReasonCaptchaUnsolved, loginErr.Result.Reason)
	assert.Zero(t, w.calls.Load())
}

func TestWarmupRunsAfterLogin(t *testing.T) {
	w := &stubWarmup{}
	o := newTestOrchestrator(newTrackingFlow(schemas.LoginResult{Success: true}), w)

	summary, err := o.Warmup(context.Background(), auth.Credentials{
		Username: "creator01", Password: "p", VerificationEmail: "e",
	})
	require.NoError(t, err)
	assert.Equal(t, 7, summary.VideosWatched)
	assert.Equal(t, int32(1), w.calls.Load())
}

func TestPageOpenFailurePropagates(t *testing.T) {
	opener := func(ctx context.Context) (browser.Surface, error) {
		return nil, errors.New("allocator exhausted")
	}
	o := New(newTrackingFlow(schemas.LoginResult{}), &stubWarmup{}, stubAnalytics{}, opener, zap.NewNop())

	_, err := o.Login(context.Background(), auth.Credentials{
		Username: "creator01", Password: "p", VerificationEmail: "e",
	})
	assert.ErrorContains(t, err, "allocator exhausted")
}

func TestAnalyticsAfterLogin(t *testing.T) {
	o := newTestOrchestrator(newTrackingFlow(schemas.LoginResult{Success: true}), &stubWarmup{})

	metrics, err := o.Analytics(context.Background(), auth.Credentials{
		Username: "creator01", Password: "p", VerificationEmail: "e",
	}, "7312")
	require.NoError(t, err)
	require.NotNil(t, metrics.VideoViews)
	assert.Equal(t, 42, *metrics.VideoViews)
}
