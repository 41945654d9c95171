package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/Jasmitsingh01/tiktok/api/schemas"
	"github.com/Jasmitsingh01/tiktok/internal/browser/humanoid"
	"github.com/Jasmitsingh01/tiktok/internal/config"
)

// Page wraps one browser tab. It satisfies Surface for the flows and
// humanoid.Executor for the input simulator.
type Page struct {
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *zap.Logger
	cfg     *config.Config
	manager *Manager
	pageID  string

	// human is nil when humanized input is disabled; Click and Type then
	// fall back to direct CDP dispatch.
	human *humanoid.Humanoid
}

var (
	_ Surface           = (*Page)(nil)
	_ humanoid.Executor = (*Page)(nil)
)

func newPage(ctx context.Context, cancel context.CancelFunc, logger *zap.Logger, cfg *config.Config, manager *Manager, pageID string) *Page {
	p := &Page{
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger.Named("page").With(zap.String("page_id", pageID)),
		cfg:     cfg,
		manager: manager,
		pageID:  pageID,
	}
	if cfg.Browser.Humanoid.Enabled {
		p.human = humanoid.New(cfg.Browser.Humanoid, p)
	}
	return p
}

// run executes actions on the tab's context while honoring the
// caller's cancellation and deadline.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(runCtx, deadline)
		defer cancel()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.logger.Debug("Navigating", zap.String("url", url))
	if err := p.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

func (p *Page) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	if err := p.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("reading location: %w", err)
	}
	return loc, nil
}

func (p *Page) Reload(ctx context.Context) error {
	if err := p.run(ctx, chromedp.Reload(), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("reloading page: %w", err)
	}
	return nil
}

func (p *Page) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := p.run(waitCtx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("waiting for %q: %w", selector, err)
	}
	return nil
}

func (p *Page) Exists(ctx context.Context, selector string) (bool, error) {
	var found bool
	expr := fmt.Sprintf(`document.querySelector(%q) !== null`, selector)
	if err := p.run(ctx, chromedp.Evaluate(expr, &found)); err != nil {
		return false, fmt.Errorf("probing for %q: %w", selector, err)
	}
	return found, nil
}

// Click prefers the humanized pointer path and falls back to a direct
// CDP click when the simulator is disabled.
func (p *Page) Click(ctx context.Context, selector string) error {
	if p.human != nil {
		return p.human.Click(ctx, selector)
	}
	if err := p.run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("clicking %q: %w", selector, err)
	}
	return nil
}

// Type emits text into the element. The humanized path paces each
// keystroke; the fallback sends the whole string at once.
func (p *Page) Type(ctx context.Context, selector, text string) error {
	if p.human != nil {
		return p.human.Type(ctx, selector, text)
	}
	if err := p.run(ctx,
		chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("typing into %q: %w", selector, err)
	}
	return nil
}

// namedKeys maps DOM key names onto the control runes the keyboard
// layer expects.
var namedKeys = map[string]string{
	"Enter":     kb.Enter,
	"Tab":       kb.Tab,
	"Escape":    kb.Escape,
	"ArrowDown": kb.ArrowDown,
	"ArrowUp":   kb.ArrowUp,
	"PageDown":  kb.PageDown,
	"PageUp":    kb.PageUp,
}

func (p *Page) PressKey(ctx context.Context, key string) error {
	if mapped, ok := namedKeys[key]; ok {
		key = mapped
	}
	if err := p.run(ctx, chromedp.KeyEvent(key)); err != nil {
		return fmt.Errorf("pressing key %q: %w", key, err)
	}
	return nil
}

func (p *Page) ScrollBy(ctx context.Context, dx, dy float64) error {
	expr := fmt.Sprintf(`window.scrollBy(%f, %f)`, dx, dy)
	if err := p.run(ctx, chromedp.Evaluate(expr, nil)); err != nil {
		return fmt.Errorf("scrolling: %w", err)
	}
	return nil
}

func (p *Page) Text(ctx context.Context, selector string) (string, bool, error) {
	found, err := p.Exists(ctx, selector)
	if err != nil || !found {
		return "", false, err
	}
	var text string
	if err := p.run(ctx, chromedp.Text(selector, &text, chromedp.ByQuery)); err != nil {
		return "", false, fmt.Errorf("reading text of %q: %w", selector, err)
	}
	return strings.TrimSpace(text), true, nil
}

func (p *Page) AttributeValue(ctx context.Context, selector, attribute string) (string, bool, error) {
	var value string
	var ok bool
	if err := p.run(ctx, chromedp.AttributeValue(selector, attribute, &value, &ok, chromedp.ByQuery)); err != nil {
		return "", false, fmt.Errorf("reading attribute %q of %q: %w", attribute, selector, err)
	}
	return value, ok, nil
}

func (p *Page) OuterHTML(ctx context.Context, selector string) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML(selector, &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("reading outer HTML of %q: %w", selector, err)
	}
	return html, nil
}

func (p *Page) Evaluate(ctx context.Context, expression string, out any) error {
	if err := p.run(ctx, chromedp.Evaluate(expression, out)); err != nil {
		return fmt.Errorf("evaluating expression: %w", err)
	}
	return nil
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	return buf, nil
}

func (p *Page) Cookies(ctx context.Context) ([]schemas.Cookie, error) {
	var cookies []schemas.Cookie
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		raw, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		cookies = make([]schemas.Cookie, 0, len(raw))
		for _, c := range raw {
			cookies = append(cookies, schemas.Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Expires:  c.Expires,
				HTTPOnly: c.HTTPOnly,
				Secure:   c.Secure,
				SameSite: string(c.SameSite),
			})
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("collecting cookies: %w", err)
	}
	return cookies, nil
}

func setCookieAction(c schemas.Cookie) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		params := network.SetCookie(c.Name, c.Value).
			WithDomain(c.Domain).
			WithHTTPOnly(c.HTTPOnly).
			WithSecure(c.Secure)
		if c.Path != "" {
			params = params.WithPath(c.Path)
		}
		if c.SameSite != "" {
			params = params.WithSameSite(network.CookieSameSite(c.SameSite))
		}
		if c.Expires > 0 {
			expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			params = params.WithExpires(&expires)
		}
		return params.Do(ctx)
	})
}

// SetCookies replays all cookies in one batch. A single malformed
// cookie fails the batch; callers fall back to SetCookie per item.
func (p *Page) SetCookies(ctx context.Context, cookies []schemas.Cookie) error {
	actions := make([]chromedp.Action, 0, len(cookies))
	for _, c := range cookies {
		actions = append(actions, setCookieAction(c))
	}
	if err := p.run(ctx, actions...); err != nil {
		return fmt.Errorf("replaying cookie batch: %w", err)
	}
	return nil
}

func (p *Page) SetCookie(ctx context.Context, cookie schemas.Cookie) error {
	if err := p.run(ctx, setCookieAction(cookie)); err != nil {
		return fmt.Errorf("replaying cookie %q: %w", cookie.Name, err)
	}
	return nil
}

const readStorageJS = `(() => {
  const out = {};
  for (let i = 0; i < %[1]s.length; i++) {
    const k = %[1]s.key(i);
    out[k] = %[1]s.getItem(k);
  }
  return out;
})()`

const writeStorageJS = `(() => {
  const items = %s;
  for (const [k, v] of Object.entries(items)) {
    %s.setItem(k, v);
  }
})()`

func (p *Page) readStorage(ctx context.Context, area string) (map[string]string, error) {
	items := make(map[string]string)
	if err := p.run(ctx, chromedp.Evaluate(fmt.Sprintf(readStorageJS, area), &items)); err != nil {
		return nil, fmt.Errorf("reading %s: %w", area, err)
	}
	return items, nil
}

func (p *Page) writeStorage(ctx context.Context, area string, items map[string]string) error {
	if len(items) == 0 {
		return nil
	}
	encoded, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encoding %s items: %w", area, err)
	}
	if err := p.run(ctx, chromedp.Evaluate(fmt.Sprintf(writeStorageJS, encoded, area), nil)); err != nil {
		return fmt.Errorf("writing %s: %w", area, err)
	}
	return nil
}

func (p *Page) LocalStorage(ctx context.Context) (map[string]string, error) {
	return p.readStorage(ctx, "localStorage")
}

func (p *Page) SetLocalStorage(ctx context.Context, items map[string]string) error {
	return p.writeStorage(ctx, "localStorage", items)
}

func (p *Page) SessionStorage(ctx context.Context) (map[string]string, error) {
	return p.readStorage(ctx, "sessionStorage")
}

func (p *Page) SetSessionStorage(ctx context.Context, items map[string]string) error {
	return p.writeStorage(ctx, "sessionStorage", items)
}

func (p *Page) UserAgent(ctx context.Context) (string, error) {
	var ua string
	if err := p.run(ctx, chromedp.Evaluate(`navigator.userAgent`, &ua)); err != nil {
		return "", fmt.Errorf("reading user agent: %w", err)
	}
	return ua, nil
}

func (p *Page) SetUserAgent(ctx context.Context, ua string) error {
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return emulation.SetUserAgentOverride(ua).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("overriding user agent: %w", err)
	}
	return nil
}

// ClearBrowserData wipes cookies, cache, and both storage areas so a
// fresh login starts from a clean identity.
func (p *Page) ClearBrowserData(ctx context.Context) error {
	err := p.run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			if err := network.ClearBrowserCookies().Do(ctx); err != nil {
				return err
			}
			return network.ClearBrowserCache().Do(ctx)
		}),
		chromedp.Evaluate(`(() => { localStorage.clear(); sessionStorage.clear(); })()`, nil),
	)
	if err != nil {
		return fmt.Errorf("clearing browser data: %w", err)
	}
	return nil
}

func (p *Page) Close(ctx context.Context) error {
	p.manager.unregisterPage(p.pageID)
	p.cancel()
	return nil
}

// -- humanoid.Executor --

func (p *Page) ElementBox(ctx context.Context, selector string) (humanoid.Box, error) {
	var box humanoid.Box
	expr := fmt.Sprintf(`(() => {
  const el = document.querySelector(%q);
  if (!el) return null;
  const r = el.getBoundingClientRect();
  return { X: r.x, Y: r.y, Width: r.width, Height: r.height };
})()`, selector)
	if err := p.run(ctx, chromedp.Evaluate(expr, &box)); err != nil {
		return humanoid.Box{}, fmt.Errorf("measuring %q: %w", selector, err)
	}
	if box.Width == 0 && box.Height == 0 {
		return humanoid.Box{}, fmt.Errorf("element %q not found or has no layout", selector)
	}
	return box, nil
}

func (p *Page) dispatchMouse(ctx context.Context, typ input.MouseType, x, y float64, clicks int64) error {
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		ev := input.DispatchMouseEvent(typ, x, y)
		if clicks > 0 {
			ev = ev.WithButton(input.Left).WithClickCount(clicks)
		}
		return ev.Do(ctx)
	}))
}

func (p *Page) DispatchMouseMove(ctx context.Context, x, y float64) error {
	return p.dispatchMouse(ctx, input.MouseMoved, x, y, 0)
}

func (p *Page) MouseDown(ctx context.Context, x, y float64) error {
	return p.dispatchMouse(ctx, input.MousePressed, x, y, 1)
}

func (p *Page) MouseUp(ctx context.Context, x, y float64) error {
	return p.dispatchMouse(ctx, input.MouseReleased, x, y, 1)
}

func (p *Page) SendKey(ctx context.Context, key string) error {
	return p.run(ctx, chromedp.KeyEvent(key))
}

func (p *Page) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
