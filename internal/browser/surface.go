package browser

import (
	"context"
	"time"

	"github.com/Jasmitsingh01/tiktok/api/schemas"
)

// Surface is the DOM-level contract the flows drive. Page implements it
// against a live Chrome tab; tests substitute a mock so every flow is
// exercisable without a browser.
type Surface interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	Reload(ctx context.Context) error

	// WaitVisible blocks until the selector matches a visible element or
	// the timeout elapses.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// Exists reports selector presence without waiting.
	Exists(ctx context.Context, selector string) (bool, error)

	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	PressKey(ctx context.Context, key string) error
	ScrollBy(ctx context.Context, dx, dy float64) error

	// Text returns the trimmed inner text of the first match. The bool
	// is false when nothing matched.
	Text(ctx context.Context, selector string) (string, bool, error)
	AttributeValue(ctx context.Context, selector, attribute string) (string, bool, error)
	OuterHTML(ctx context.Context, selector string) (string, error)
	Evaluate(ctx context.Context, expression string, out any) error

	Screenshot(ctx context.Context) ([]byte, error)

	Cookies(ctx context.Context) ([]schemas.Cookie, error)
	SetCookies(ctx context.Context, cookies []schemas.Cookie) error
	SetCookie(ctx context.Context, cookie schemas.Cookie) error
	LocalStorage(ctx context.Context) (map[string]string, error)
	SetLocalStorage(ctx context.Context, items map[string]string) error
	SessionStorage(ctx context.Context) (map[string]string, error)
	SetSessionStorage(ctx context.Context, items map[string]string) error

	UserAgent(ctx context.Context) (string, error)
	SetUserAgent(ctx context.Context, ua string) error

	// ClearBrowserData wipes cookies, cache, and both storage areas.
	ClearBrowserData(ctx context.Context) error

	Close(ctx context.Context) error
}
