// Package verification fetches email verification codes from the mail
// portal the test accounts receive their mail on.
package verification

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/Jasmitsingh01/tiktok/internal/browser"
	"github.com/Jasmitsingh01/tiktok/internal/config"
)

// codeRe matches the 6-digit code the platform embeds in the mail
// subject line.
var codeRe = regexp.MustCompile(`\d{6}`)

// TabOpener opens an isolated tab so portal browsing never disturbs the
// login page state.
type TabOpener func(ctx context.Context) (browser.Surface, error)

// Retriever drives the mail portal and extracts the verification code.
type Retriever struct {
	cfg     config.VerificationConfig
	openTab TabOpener
	log     *zap.Logger
}

func NewRetriever(cfg config.VerificationConfig, openTab TabOpener, logger *zap.Logger) *Retriever {
	return &Retriever{
		cfg:     cfg,
		openTab: openTab,
		log:     logger.Named("verification"),
	}
}

// RetrieveCode opens the portal in its own tab, requests the latest
// mail for the address, and returns the code from the subject line. The
// tab is closed on every path, including failures.
func (r *Retriever) RetrieveCode(ctx context.Context, email string) (code string, err error) {
	if email == "" {
		return "", fmt.Errorf("verification email address is empty")
	}

	tab, err := r.openTab(ctx)
	if err != nil {
		return "", fmt.Errorf("opening mail portal tab: %w", err)
	}
	defer func() {
		if closeErr := tab.Close(context.Background()); closeErr != nil && err == nil {
			r.log.Warn("Failed to close mail portal tab", zap.Error(closeErr))
		}
	}()

	if err := tab.Navigate(ctx, r.cfg.PortalURL); err != nil {
		return "", fmt.Errorf("navigating to mail portal: %w", err)
	}
	if err := tab.WaitVisible(ctx, r.cfg.EmailInput, 10*time.Second); err != nil {
		return "", fmt.Errorf("mail portal did not load: %w", err)
	}
	if err := tab.Type(ctx, r.cfg.EmailInput, email); err != nil {
		return "", fmt.Errorf("entering address: %w", err)
	}

	if err := r.selectService(ctx, tab); err != nil {
		return "", err
	}

	if err := tab.Click(ctx, r.cfg.GetCodeButton); err != nil {
		return "", fmt.Errorf("requesting mail: %w", err)
	}

	// Give the mail time to arrive before reading the subject.
	if err := sleep(ctx, r.cfg.ArrivalWait); err != nil {
		return "", err
	}

	code, err = r.extractCode(ctx, tab)
	if err != nil {
		return "", err
	}
	r.log.Info("Verification code retrieved", zap.String("email", email))
	return code, nil
}

// selectService picks the platform entry in the portal's service
// dropdown and fires a change event so the portal's own script reacts.
func (r *Retriever) selectService(ctx context.Context, tab browser.Surface) error {
	found, err := tab.Exists(ctx, r.cfg.ServiceSelect)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("service selector %q not found", r.cfg.ServiceSelect)
	}
	expr := fmt.Sprintf(`(() => {
  const sel = document.querySelector(%q);
  sel.value = %q;
  sel.dispatchEvent(new Event('change', { bubbles: true }));
})()`, r.cfg.ServiceSelect, r.cfg.ServiceOption)
	if err := tab.Evaluate(ctx, expr, nil); err != nil {
		return fmt.Errorf("selecting service: %w", err)
	}
	return nil
}

// extractCode parses the subject element and pulls the first 6-digit
// run out of it.
func (r *Retriever) extractCode(ctx context.Context, tab browser.Surface) (string, error) {
	html, err := tab.OuterHTML(ctx, r.cfg.SubjectElement)
	if err != nil {
		return "", fmt.Errorf("reading mail subject: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parsing mail subject markup: %w", err)
	}
	subject := strings.TrimSpace(doc.Text())
	if subject == "" {
		return "", fmt.Errorf("mail subject is empty")
	}

	code := codeRe.FindString(subject)
	if code == "" {
		return "", fmt.Errorf("no 6-digit code in subject %q", subject)
	}
	return code, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
