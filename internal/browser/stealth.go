package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/Jasmitsingh01/tiktok/api/schemas"
)

// evasionScript runs before any document script. It removes the
// automation tells that survive the allocator flags: the webdriver
// flag, the empty plugin list, and the missing chrome runtime object.
const evasionScript = `
(() => {
  Object.defineProperty(navigator, 'webdriver', { get: () => undefined });

  if (!window.chrome) {
    window.chrome = { runtime: {} };
  }

  Object.defineProperty(navigator, 'languages', { get: () => %s });
  Object.defineProperty(navigator, 'platform', { get: () => %s });

  Object.defineProperty(navigator, 'plugins', {
    get: () => {
      const p = [
        { name: 'PDF Viewer', filename: 'internal-pdf-viewer' },
        { name: 'Chrome PDF Viewer', filename: 'internal-pdf-viewer' },
        { name: 'Native Client', filename: 'internal-nacl-plugin' },
      ];
      p.item = i => p[i];
      p.namedItem = n => p.find(x => x.name === n) || null;
      return p;
    },
  });

  const originalQuery = window.navigator.permissions.query.bind(window.navigator.permissions);
  window.navigator.permissions.query = (parameters) =>
    parameters.name === 'notifications'
      ? Promise.resolve({ state: Notification.permission })
      : originalQuery(parameters);
})();
`

// applyEvasions overrides the user agent and viewport to match the
// persona and installs the evasion script on every new document.
func applyEvasions(persona schemas.Persona) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		languages, err := json.Marshal(persona.Languages)
		if err != nil {
			return fmt.Errorf("encoding persona languages: %w", err)
		}
		platform, err := json.Marshal(persona.Platform)
		if err != nil {
			return fmt.Errorf("encoding persona platform: %w", err)
		}
		script := fmt.Sprintf(evasionScript, languages, platform)

		if err := emulation.SetUserAgentOverride(persona.UserAgent).Do(ctx); err != nil {
			return fmt.Errorf("overriding user agent: %w", err)
		}
		if err := emulation.SetDeviceMetricsOverride(persona.Width, persona.Height, 1.0, false).Do(ctx); err != nil {
			return fmt.Errorf("overriding viewport: %w", err)
		}
		if _, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx); err != nil {
			return fmt.Errorf("installing evasion script: %w", err)
		}
		return nil
	})
}
