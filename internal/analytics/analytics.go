// Package analytics reads post metrics off the studio dashboard. The
// dashboard renders its numbers client-side in a layout that changes
// often, so instead of scraping selectors we screenshot the page and
// let the vision service read it.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Jasmitsingh01/tiktok/api/schemas"
	"github.com/Jasmitsingh01/tiktok/internal/browser"
	"github.com/Jasmitsingh01/tiktok/internal/config"
)

// Analyzer turns a screenshot into structured metrics. Satisfied by
// llmclient.Vision.
type Analyzer interface {
	AnalyzeScreenshot(ctx context.Context, png []byte) (*schemas.VideoAnalytics, error)
}

type Collector struct {
	cfg    config.PlatformConfig
	vision Analyzer
	log    *zap.Logger
}

func NewCollector(cfg config.PlatformConfig, vision Analyzer, logger *zap.Logger) *Collector {
	return &Collector{
		cfg:    cfg,
		vision: vision,
		log:    logger.Named("analytics"),
	}
}

// Collect opens the studio analytics page for a post, waits for the
// metric cards to render, and returns what the vision service reads
// from a full-page capture.
func (c *Collector) Collect(ctx context.Context, page browser.Surface, postID string) (*schemas.VideoAnalytics, error) {
	if postID == "" {
		return nil, errors.New("post ID is required")
	}

	url := fmt.Sprintf(c.cfg.StudioAnalyticsURL, postID)
	c.log.Info("fetching post analytics", zap.String("post_id", postID))

	if err := page.Navigate(ctx, url); err != nil {
		return nil, fmt.Errorf("opening analytics page: %w", err)
	}
	if err := sleep(ctx, c.cfg.AnalyticsSettle); err != nil {
		return nil, err
	}

	shot, err := page.Screenshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("capturing analytics page: %w", err)
	}

	metrics, err := c.vision.AnalyzeScreenshot(ctx, shot)
	if err != nil {
		return nil, err
	}

	c.log.Info("analytics retrieved", zap.String("post_id", postID))
	return metrics, nil
}

func sleep(ctx context.Context, d time.Duration) error {
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
