package warmup

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Jasmitsingh01/tiktok/internal/browser"
	"github.com/Jasmitsingh01/tiktok/internal/config"
	"github.com/Jasmitsingh01/tiktok/internal/mocks"
)

// stubInteractor scripts the feed primitives without a real page.
type stubInteractor struct {
	authors     []string
	idx         int
	likeErr     error
	authorPanic bool

	scrollDelay time.Duration
	onScroll    func(n int)

	likes, follows, comments, scrolls int
}

func (s *stubInteractor) Author(ctx context.Context, _ browser.Surface) (string, bool, error) {
	if s.authorPanic {
		panic("author selector exploded")
	}
	if len(s.authors) == 0 {
		return "", false, nil
	}
	a := s.authors[s.idx%len(s.authors)]
	s.idx++
	return a, true, nil
}

func (s *stubInteractor) Like(ctx context.Context, _ browser.Surface) (bool, error) {
	if s.likeErr != nil {
		return false, s.likeErr
	}
	s.likes++
	return true, nil
}

func (s *stubInteractor) Follow(ctx context.Context, _ browser.Surface) (bool, error) {
	s.follows++
	return true, nil
}

func (s *stubInteractor) Comment(ctx context.Context, _ browser.Surface) (bool, error) {
	s.comments++
	return true, nil
}

func (s *stubInteractor) Scroll(ctx context.Context, _ browser.Surface) error {
	s.scrolls++
	if s.scrollDelay > 0 {
		time.Sleep(s.scrollDelay)
	}
	if s.onScroll != nil {
		s.onScroll(s.scrolls)
	}
	return nil
}

func testWarmupConfig() config.WarmupConfig {
	return config.WarmupConfig{
		Duration:  50 * time.Millisecond,
		WatchMin:  time.Millisecond,
		WatchMax:  2 * time.Millisecond,
		SeenLimit: 100,
	}
}

func newTestScheduler(cfg config.WarmupConfig, acts Interactor) *Scheduler {
	s := New(cfg, "https://www.tiktok.com/foryou", acts, zap.NewNop(), rand.New(rand.NewSource(1)))
	s.pauseScale = 0
	return s
}

func feedPage() *mocks.MockSurface {
	page := new(mocks.MockSurface)
	page.On("Navigate", mock.Anything, "https://www.tiktok.com/foryou").Return(nil)
	return page
}

func TestRunStopsAtDeadline(t *testing.T) {
	cfg := testWarmupConfig()
	cfg.Duration = 60 * time.Millisecond
	acts := &stubInteractor{scrollDelay: 5 * time.Millisecond}

	s := newTestScheduler(cfg, acts)
	start := time.Now()
	summary, err := s.Run(context.Background(), feedPage())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), cfg.Duration)
	assert.Less(t, time.Since(start), time.Second)
	assert.NotEmpty(t, summary.RunID)
	assert.GreaterOrEqual(t, summary.VideosWatched, 1)
	assert.GreaterOrEqual(t, summary.Elapsed, cfg.Duration)
	// All probabilities are zero, so nothing beyond watching happened.
	assert.Zero(t, summary.VideosLiked)
	assert.Zero(t, summary.UsersFollowed)
	assert.Zero(t, summary.CommentsMade)
	assert.Equal(t, summary.VideosWatched, acts.scrolls)
}

func TestRunZeroDurationDoesNothing(t *testing.T) {
	cfg := testWarmupConfig()
	cfg.Duration = 0
	cfg.LikeP, cfg.FollowP, cfg.CommentP = 1, 1, 1
	acts := &stubInteractor{authors: []string{"a"}}

	summary, err := newTestScheduler(cfg, acts).Run(context.Background(), feedPage())
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Zero(t, summary.VideosWatched)
	assert.Zero(t, summary.VideosLiked)
	assert.Zero(t, summary.UsersFollowed)
	assert.Zero(t, summary.CommentsMade)
	assert.Zero(t, acts.scrolls)
}

func TestRunCountsEngagements(t *testing.T) {
	cfg := testWarmupConfig()
	cfg.Duration = time.Minute
	cfg.LikeP, cfg.FollowP, cfg.CommentP = 1, 1, 1

	ctx, cancel := context.WithCancel(context.Background())
	acts := &stubInteractor{
		authors: []string{"a", "b", "c", "d", "e"},
		onScroll: func(n int) {
			if n >= 3 {
				cancel()
			}
		},
	}

	summary, err := newTestScheduler(cfg, acts).Run(ctx, feedPage())
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 3, summary.VideosWatched)
	assert.Equal(t, 3, summary.VideosLiked)
	assert.Equal(t, 3, summary.UsersFollowed)
	assert.Equal(t, 3, summary.CommentsMade)
}

func TestRunWatchesOnlyForSeenAuthors(t *testing.T) {
	cfg := testWarmupConfig()
	cfg.Duration = time.Minute
	cfg.LikeP, cfg.FollowP, cfg.CommentP = 1, 1, 1

	ctx, cancel := context.WithCancel(context.Background())
	acts := &stubInteractor{
		authors: []string{"samecreator"},
		onScroll: func(n int) {
			if n >= 4 {
				cancel()
			}
		},
	}

	summary, err := newTestScheduler(cfg, acts).Run(ctx, feedPage())
	require.ErrorIs(t, err, context.Canceled)

	// Only the first encounter with the creator triggers engagement.
	assert.Equal(t, 4, summary.VideosWatched)
	assert.Equal(t, 1, summary.VideosLiked)
	assert.Equal(t, 1, summary.UsersFollowed)
	assert.Equal(t, 1, summary.CommentsMade)
}

func TestRunSurvivesActionErrors(t *testing.T) {
	cfg := testWarmupConfig()
	cfg.LikeP = 1
	acts := &stubInteractor{
		authors:     []string{"a", "b", "c"},
		likeErr:     errors.New("button vanished"),
		scrollDelay: 5 * time.Millisecond,
	}

	summary, err := newTestScheduler(cfg, acts).Run(context.Background(), feedPage())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, summary.VideosWatched, 2)
	assert.Zero(t, summary.VideosLiked)
	assert.Equal(t, summary.VideosWatched, acts.scrolls)
}

func TestRunSurvivesIterationPanics(t *testing.T) {
	cfg := testWarmupConfig()
	acts := &stubInteractor{authorPanic: true, scrollDelay: 5 * time.Millisecond}

	summary, err := newTestScheduler(cfg, acts).Run(context.Background(), feedPage())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, summary.VideosWatched, 2)
	// The panic fires before the scroll, so iterations watch and nothing else.
	assert.Zero(t, acts.scrolls)
}

func TestRunAbortsWhenFeedUnreachable(t *testing.T) {
	page := new(mocks.MockSurface)
	page.On("Navigate", mock.Anything, mock.Anything).Return(errors.New("net::ERR_NAME_NOT_RESOLVED"))

	summary, err := newTestScheduler(testWarmupConfig(), &stubInteractor{}).Run(context.Background(), page)
	require.Error(t, err)
	assert.Zero(t, summary.VideosWatched)
	assert.NotEmpty(t, summary.RunID)
}

func TestSeenSet(t *testing.T) {
	t.Run("should clear itself when full", func(t *testing.T) {
		s := NewSeenSet(3)
		s.Add("a")
		s.Add("b")
		s.Add("c")
		require.Equal(t, 3, s.Len())
		assert.True(t, s.Seen("a"))

		s.Add("d")
		assert.Equal(t, 1, s.Len())
		assert.True(t, s.Seen("d"))
		assert.False(t, s.Seen("a"))
		assert.False(t, s.Seen("c"))
	})

	t.Run("should ignore empty handles", func(t *testing.T) {
		s := NewSeenSet(3)
		s.Add("")
		assert.Zero(t, s.Len())
		assert.False(t, s.Seen(""))
	})
}
