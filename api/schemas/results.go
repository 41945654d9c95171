package schemas

import "time"

// -- Operation Result Models --

// FailureReason classifies why a login attempt failed.
type FailureReason string

const (
	// ReasonNone indicates no failure.
	ReasonNone FailureReason = ""
	// ReasonMissingInput covers precondition failures (absent credentials).
	ReasonMissingInput FailureReason = "missing_input"
	// ReasonCaptchaUnsolved means the audio challenge survived all attempts.
	ReasonCaptchaUnsolved FailureReason = "captcha_unsolved"
	// ReasonVerificationFailed means no code was obtained or it was rejected.
	ReasonVerificationFailed FailureReason = "verification_failed"
	// ReasonInternal covers unexpected faults.
	ReasonInternal FailureReason = "internal"
)

// LoginResult is returned to the caller of the authentication flow.
// A persistence failure after a successful platform-side login does not
// downgrade Success.
type LoginResult struct {
	Success   bool          `json:"success"`
	FromCache bool          `json:"from_cache"`
	Reason    FailureReason `json:"reason,omitempty"`
	Message   string        `json:"message"`
}

// RunSummary aggregates the counters of one behavioral run. It is created at
// scheduler start and returned at the deadline; it is never persisted.
type RunSummary struct {
	RunID         string        `json:"run_id"`
	StartedAt     time.Time     `json:"started_at"`
	Elapsed       time.Duration `json:"elapsed"`
	VideosWatched int           `json:"videos_watched"`
	VideosLiked   int           `json:"videos_liked"`
	UsersFollowed int           `json:"users_followed"`
	CommentsMade  int           `json:"comments_made"`
}

// VideoAnalytics is the structured interpretation of a studio analytics
// screenshot, as decoded from the vision service response.
type VideoAnalytics struct {
	VideoViews        *int              `json:"videoViews"`
	TotalPlayTime     string            `json:"totalPlayTime,omitempty"`
	AverageWatchTime  string            `json:"averageWatchTime,omitempty"`
	WatchedFullVideo  string            `json:"watchedFullVideo,omitempty"`
	NewFollowers      *int              `json:"newFollowers"`
	Likes             *int              `json:"likes"`
	Comments          *int              `json:"comments"`
	Shares            *int              `json:"shares"`
	Saved             *int              `json:"saved"`
	ProfileViews      *int              `json:"profileViews"`
	AdditionalMetrics map[string]any    `json:"additionalMetrics,omitempty"`
}

// HumanizedComment is one generated comment with its detected language.
type HumanizedComment struct {
	Comment  string `json:"comment"`
	Language string `json:"language"`
}
