package warmup

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Jasmitsingh01/tiktok/api/schemas"
	"github.com/Jasmitsingh01/tiktok/internal/browser"
	"github.com/Jasmitsingh01/tiktok/internal/config"
)

// Interactor is the set of feed primitives the scheduler drives. It is
// satisfied by actions.Actions.
type Interactor interface {
	Author(ctx context.Context, page browser.Surface) (string, bool, error)
	Like(ctx context.Context, page browser.Surface) (bool, error)
	Follow(ctx context.Context, page browser.Surface) (bool, error)
	Comment(ctx context.Context, page browser.Surface) (bool, error)
	Scroll(ctx context.Context, page browser.Surface) error
}

// Scheduler runs a bounded browsing session over the video feed: watch,
// maybe engage, scroll, repeat until the configured duration elapses.
// Engagement per video is decided by independent probability draws so
// the session does not follow a detectable fixed pattern.
type Scheduler struct {
	cfg     config.WarmupConfig
	feedURL string
	acts    Interactor
	seen    *SeenSet
	log     *zap.Logger
	rng     *rand.Rand

	// pauseScale shrinks every wait in tests.
	pauseScale float64
}

func New(cfg config.WarmupConfig, feedURL string, acts Interactor, logger *zap.Logger, rng *rand.Rand) *Scheduler {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Scheduler{
		cfg:        cfg,
		feedURL:    feedURL,
		acts:       acts,
		seen:       NewSeenSet(cfg.SeenLimit),
		log:        logger,
		rng:        rng,
		pauseScale: 1,
	}
}

// Run browses the feed until the configured duration has elapsed or the
// context is cancelled. Errors inside a single video iteration are
// logged and the loop moves on to the next video; only a failure to
// reach the feed at all, or caller cancellation, aborts the run. The
// returned summary is populated in both cases.
func (s *Scheduler) Run(ctx context.Context, page browser.Surface) (*schemas.RunSummary, error) {
	summary := &schemas.RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}

	s.log.Info("warmup run starting",
		zap.String("run_id", summary.RunID),
		zap.Duration("duration", s.cfg.Duration))

	if err := page.Navigate(ctx, s.feedURL); err != nil {
		summary.Elapsed = time.Since(summary.StartedAt)
		return summary, err
	}
	if err := s.sleep(ctx, s.cfg.SettleWait); err != nil {
		summary.Elapsed = time.Since(summary.StartedAt)
		return summary, err
	}

	deadline := summary.StartedAt.Add(s.cfg.Duration)
	runCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	for runCtx.Err() == nil && time.Now().Before(deadline) {
		s.iteration(runCtx, page, summary)
	}

	summary.Elapsed = time.Since(summary.StartedAt)
	s.log.Info("warmup run finished",
		zap.String("run_id", summary.RunID),
		zap.Duration("elapsed", summary.Elapsed),
		zap.Int("videos_watched", summary.VideosWatched),
		zap.Int("videos_liked", summary.VideosLiked),
		zap.Int("users_followed", summary.UsersFollowed),
		zap.Int("comments_made", summary.CommentsMade))

	// Cancellation by the caller is an error, hitting the deadline is not.
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// iteration handles exactly one video. Nothing it does can take down
// the run: errors are logged and panics are recovered so the next video
// still gets its turn.
func (s *Scheduler) iteration(ctx context.Context, page browser.Surface, summary *schemas.RunSummary) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("recovered panic in video iteration", zap.Any("panic", r))
		}
	}()

	summary.VideosWatched++

	if err := s.sleep(ctx, s.watchDuration()); err != nil {
		return
	}

	engage := true
	author, found, err := s.acts.Author(ctx, page)
	if err != nil {
		s.log.Warn("author lookup failed", zap.Error(err))
	} else if found && author != "" {
		if s.seen.Seen(author) {
			s.log.Debug("creator already engaged this run, watching only",
				zap.String("author", author))
			engage = false
		} else {
			s.seen.Add(author)
		}
	}

	// All three draws happen up front so one outcome never biases another.
	doLike := s.rng.Float64() < s.cfg.LikeP
	doFollow := s.rng.Float64() < s.cfg.FollowP
	doComment := s.rng.Float64() < s.cfg.CommentP

	if engage && ctx.Err() == nil {
		if doLike {
			if liked, err := s.acts.Like(ctx, page); err != nil {
				s.log.Warn("like failed", zap.Error(err))
			} else if liked {
				summary.VideosLiked++
			}
			if s.sleep(ctx, s.interActionPause()) != nil {
				return
			}
		}
		if doFollow && ctx.Err() == nil {
			if followed, err := s.acts.Follow(ctx, page); err != nil {
				s.log.Warn("follow failed", zap.Error(err))
			} else if followed {
				summary.UsersFollowed++
			}
			if s.sleep(ctx, s.interActionPause()) != nil {
				return
			}
		}
		if doComment && ctx.Err() == nil {
			if commented, err := s.acts.Comment(ctx, page); err != nil {
				s.log.Warn("comment failed", zap.Error(err))
			} else if commented {
				summary.CommentsMade++
			}
			if s.sleep(ctx, s.interActionPause()) != nil {
				return
			}
		}
	}

	if ctx.Err() != nil {
		return
	}
	if err := s.acts.Scroll(ctx, page); err != nil {
		s.log.Warn("scroll failed", zap.Error(err))
	}
}

func (s *Scheduler) watchDuration() time.Duration {
	min, max := s.cfg.WatchMin, s.cfg.WatchMax
	if max <= min {
		return min
	}
	return min + time.Duration(s.rng.Int63n(int64(max-min)))
}

func (s *Scheduler) interActionPause() time.Duration {
	return time.Second + time.Duration(s.rng.Int63n(int64(time.Second)))
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) error {
	d = time.Duration(float64(d) * s.pauseScale)
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
