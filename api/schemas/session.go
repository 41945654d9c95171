package schemas

import "time"

// -- Session Persistence Models --
// These types represent the authenticated-state snapshot persisted for each
// account identity and are shared between the store, the auth flow, and the
// browser surface.

// PlatformType enumerates the supported target platforms.
type PlatformType string

const (
	PlatformTikTok    PlatformType = "tiktok"
	PlatformInstagram PlatformType = "instagram"
)

// SessionValidityWindow is how long a persisted session remains usable after
// the last successful login.
const SessionValidityWindow = 30 * 24 * time.Hour

// Cookie is the persisted representation of a browser cookie. Name, Value and
// Domain are required for replay; the remaining fields are optional and only
// restored when present.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path,omitempty"`
	Expires  float64 `json:"expires,omitempty"` // Unix seconds; <= 0 means session cookie.
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}

// Replayable reports whether the cookie carries the minimum fields required
// to be set back onto a browser. Malformed persisted cookies are dropped
// rather than failing the whole restore.
func (c Cookie) Replayable() bool {
	return c.Name != "" && c.Value != "" && c.Domain != ""
}

// SessionMetadata tracks usage statistics for a persisted session.
type SessionMetadata struct {
	LoginCount int       `json:"login_count"`
	LastUsed   time.Time `json:"last_used"`
}

// SessionRecord is the persisted authenticated-state snapshot for one account.
// Username uniquely identifies at most one record (upsert semantics).
type SessionRecord struct {
	Username       string            `json:"username"`
	Platform       PlatformType      `json:"platform"`
	Cookies        []Cookie          `json:"cookies"`
	LocalStorage   map[string]string `json:"local_storage"`
	SessionStorage map[string]string `json:"session_storage"`
	UserAgent      string            `json:"user_agent"`
	LastLogin      time.Time         `json:"last_login"`
	IsValid        bool              `json:"is_valid"`
	Metadata       SessionMetadata   `json:"metadata"`
}

// IsUsable applies the validity rule: the record must not be invalidated and
// the last login must fall inside the validity window.
func (r *SessionRecord) IsUsable(now time.Time) bool {
	if r == nil || !r.IsValid {
		return false
	}
	return now.Sub(r.LastLogin) < SessionValidityWindow
}

// RestoreReport summarizes a best-effort session restore.
type RestoreReport struct {
	CookiesRestored int
	CookiesDropped  int
	StorageReplayed bool
}
