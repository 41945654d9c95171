package analytics

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Jasmitsingh01/tiktok/api/schemas"
	"github.com/Jasmitsingh01/tiktok/internal/config"
	"github.com/Jasmitsingh01/tiktok/internal/mocks"
)

type stubAnalyzer struct {
	got    []byte
	result *schemas.VideoAnalytics
	err    error
}

func (s *stubAnalyzer) AnalyzeScreenshot(_ context.Context, png []byte) (*schemas.VideoAnalytics, error) {
	s.got = png
	return s.result, s.err
}

func testCollector(a Analyzer) *Collector {
	cfg := config.PlatformConfig{
		StudioAnalyticsURL: "https://www.tiktok.com/tiktokstudio/analytics/%s",
	}
	return NewCollector(cfg, a, zap.NewNop())
}

func TestCollect(t *testing.T) {
	ctx := context.Background()
	shot := []byte("png-bytes")

	t.Run("should screenshot the post page and return metrics", func(t *testing.T) {
		views := 1234
		analyzer := &stubAnalyzer{result: &schemas.VideoAnalytics{VideoViews: &views}}

		page := new(mocks.MockSurface)
		page.On("Navigate", mock.Anything, "https://www.tiktok.com/tiktokstudio/analytics/7312").Return(nil)
		page.On("Screenshot", mock.Anything).Return(shot, nil)

		metrics, err := testCollector(analyzer).Collect(ctx, page, "7312")
		require.NoError(t, err)
		require.NotNil(t, metrics.VideoViews)
		assert.Equal(t, 1234, *metrics.VideoViews)
		assert.Equal(t, shot, analyzer.got)
	})

	t.Run("should reject an empty post ID before touching the page", func(t *testing.T) {
		page := new(mocks.MockSurface)
		_, err := testCollector(&stubAnalyzer{}).Collect(ctx, page, "")
		require.Error(t, err)
		page.AssertNotCalled(t, "Navigate", mock.Anything, mock.Anything)
	})

	t.Run("should propagate navigation failures", func(t *testing.T) {
		page := new(mocks.MockSurface)
		page.On("Navigate", mock.Anything, mock.Anything).Return(errors.New("timeout"))

		_, err := testCollector(&stubAnalyzer{}).Collect(ctx, page, "7312")
		require.ErrorContains(t, err, "opening analytics page")
	})

	t.Run("should propagate vision failures", func(t *testing.T) {
		analyzer := &stubAnalyzer{err: errors.New("vision unavailable")}
		page := new(mocks.MockSurface)
		page.On("Navigate", mock.Anything, mock.Anything).Return(nil)
		page.On("Screenshot", mock.Anything).Return(shot, nil)

		_, err := testCollector(analyzer).Collect(ctx, page, "7312")
		require.ErrorContains(t, err, "vision unavailable")
	})
}
