package llmclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Jasmitsingh01/tiktok/api/schemas"
	"github.com/Jasmitsingh01/tiktok/internal/config"
)

const visionPrompt = `You are an expert at analyzing TikTok video analytics screenshots.

Analyze this TikTok video analytics image and extract all the data you can see.
Please return ONLY a valid JSON object (no markdown code blocks, no explanation) with the following structure:

{
  "videoViews": number or null,
  "totalPlayTime": string or null,
  "averageWatchTime": string or null,
  "watchedFullVideo": string or null,
  "newFollowers": number or null,
  "likes": number or null,
  "comments": number or null,
  "shares": number or null,
  "saved": number or null,
  "profileViews": number or null,
  "additionalMetrics": {}
}

Important:
- Extract all numeric values you can see in the screenshot
- For time values (like "0h:0m:0s"), keep them as strings
- If a value is "0" or not visible, use appropriate null or 0
- Return ONLY the JSON object, no additional text
- Ensure all numbers are actual numbers, not strings (except time formats)
- Include any additional metrics you find in the "additionalMetrics" object`

// Vision interprets analytics screenshots into structured metrics.
type Vision struct {
	cfg    config.ServiceConfig
	client *http.Client
	log    *zap.Logger
}

func NewVision(cfg config.ServiceConfig, logger *zap.Logger) *Vision {
	return &Vision{
		cfg:    cfg,
		client: newHTTPClient(cfg),
		log:    logger.Named("vision"),
	}
}

// AnalyzeScreenshot sends a PNG capture to the vision model and decodes
// the metrics it reads off the page.
func (v *Vision) AnalyzeScreenshot(ctx context.Context, png []byte) (*schemas.VideoAnalytics, error) {
	if v.cfg.APIKey == "" {
		return nil, errors.New("vision service API key not configured")
	}
	if len(png) == 0 {
		return nil, errors.New("no screenshot data to analyze")
	}

	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
	payload := map[string]any{
		"model": v.cfg.Model,
		"messages": []map[string]any{{
			"role": "user",
			"content": []map[string]any{
				{"type": "text", "text": visionPrompt},
				{"type": "image_url", "image_url": map[string]string{"url": dataURL}},
			},
		}},
		"temperature": 0.1,
		"max_tokens":  4096,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding vision request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building vision request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+v.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling vision service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, classifyStatus("vision", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding vision response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.New("vision response had no choices")
	}

	cleaned := cleanJSONResponse(parsed.Choices[0].Message.Content)
	var analytics schemas.VideoAnalytics
	if err := json.Unmarshal([]byte(cleaned), &analytics); err != nil {
		return nil, fmt.Errorf("parsing vision response: %w", err)
	}

	v.log.Debug("Screenshot analyzed")
	return &analytics, nil
}
