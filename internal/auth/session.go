package auth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Jasmitsingh01/tiktok/api/schemas"
	"github.com/Jasmitsingh01/tiktok/internal/browser"
)

// harvest snapshots the authenticated browser state. A user agent that
// cannot be read is recorded absent rather than failing the snapshot;
// cookie or storage read failures do fail it, because a snapshot
// without them cannot restore a session.
func harvest(ctx context.Context, page browser.Surface, username string, platform schemas.PlatformType) (*schemas.SessionRecord, error) {
	cookies, err := page.Cookies(ctx)
	if err != nil {
		return nil, err
	}
	localStorage, err := page.LocalStorage(ctx)
	if err != nil {
		return nil, err
	}
	sessionStorage, err := page.SessionStorage(ctx)
	if err != nil {
		return nil, err
	}
	ua, _ := page.UserAgent(ctx)

	return &schemas.SessionRecord{
		Username:       username,
		Platform:       platform,
		Cookies:        cookies,
		LocalStorage:   localStorage,
		SessionStorage: sessionStorage,
		UserAgent:      ua,
		LastLogin:      time.Now(),
		IsValid:        true,
	}, nil
}

// replay puts a persisted snapshot back onto the browser. Malformed
// cookies are dropped, a failed bulk set falls back to setting cookies
// one at a time, and the restore counts as successful if at least one
// cookie lands. Storage replay is best effort.
func replay(ctx context.Context, page browser.Surface, record *schemas.SessionRecord, log *zap.Logger) (*schemas.RestoreReport, error) {
	report := &schemas.RestoreReport{}

	var valid []schemas.Cookie
	for _, c := range record.Cookies {
		if c.Replayable() {
			valid = append(valid, c)
		} else {
			report.CookiesDropped++
		}
	}
	if len(valid) == 0 {
		return report, errors.New("no replayable cookies in snapshot")
	}

	if record.UserAgent != "" {
		if err := page.SetUserAgent(ctx, record.UserAgent); err != nil {
			log.Warn("user agent restore failed", zap.Error(err))
		}
	}

	if err := page.SetCookies(ctx, valid); err != nil {
		log.Warn("bulk cookie restore failed, retrying individually", zap.Error(err))
		for _, c := range valid {
			if err := page.SetCookie(ctx, c); err != nil {
				log.Warn("cookie restore failed",
					zap.String("cookie", c.Name), zap.Error(err))
				continue
			}
			report.CookiesRestored++
		}
	} else {
		report.CookiesRestored = len(valid)
	}
	if report.CookiesRestored == 0 {
		return report, errors.New("no cookies could be restored")
	}

	report.StorageReplayed = true
	if len(record.LocalStorage) > 0 {
		if err := page.SetLocalStorage(ctx, record.LocalStorage); err != nil {
			log.Warn("local storage restore failed", zap.Error(err))
			report.StorageReplayed = false
		}
	}
	if len(record.SessionStorage) > 0 {
		if err := page.SetSessionStorage(ctx, record.SessionStorage); err != nil {
			log.Warn("session storage restore failed", zap.Error(err))
			report.StorageReplayed = false
		}
	}

	return report, nil
}
