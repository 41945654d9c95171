package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Jasmitsingh01/tiktok/api/schemas"
	"github.com/Jasmitsingh01/tiktok/internal/config"
)

const humanizerSystemPrompt = `You are a helpful assistant that humanizes comments.

You will receive a list of comments from different users on a video. Analyze each comment and its language, then make it more natural and human-like while preserving the original language.

Input format:
<username> (<time>): <comment>

Output ONLY a valid JSON array in this exact format:
[
  {
    "comment": "Your humanized comment",
    "language": "The language of the comment"
  }
]

Rules:
- Keep the same tone and sentiment
- Preserve emojis and special characters
- Make it sound natural and conversational
- Output ONLY the JSON array, no other text`

// fallbackComments are used when the generation service is unreachable
// or misconfigured. A bland comment beats a skipped run.
var fallbackComments = []string{
	"Nice video! 👍",
	"Love this! ❤️",
	"Amazing content! 🔥",
	"This is so good! 😍",
	"Great video! 👏",
	"Keep it up! 💪",
	"Awesome! ⭐",
	"So cool! 😎",
	"Incredible! 🤩",
	"Love your content! 💕",
	"This is fire! 🔥",
	"So talented! 👑",
	"Amazing! 😊",
	"Beautiful! ✨",
	"Perfect! 💯",
	"Can't stop watching! 😍",
	"This made my day! 🌟",
	"So creative! 🎨",
	"Wow! 😲",
	"Impressive! 👌",
}

// Humanizer produces a natural-sounding comment matched to the tone and
// language of the comments already under a video.
type Humanizer struct {
	cfg    config.ServiceConfig
	client *http.Client
	log    *zap.Logger
	rng    *rand.Rand
}

func NewHumanizer(cfg config.ServiceConfig, logger *zap.Logger, rng *rand.Rand) *Humanizer {
	return &Humanizer{
		cfg:    cfg,
		client: newHTTPClient(cfg),
		log:    logger.Named("humanizer"),
		rng:    rng,
	}
}

// FallbackComment picks a canned comment at random.
func (h *Humanizer) FallbackComment() schemas.HumanizedComment {
	return schemas.HumanizedComment{
		Comment:  fallbackComments[h.rng.Intn(len(fallbackComments))],
		Language: "en",
	}
}

// Comment generates a comment from the scraped sample. Any failure
// degrades to a fallback comment rather than an error: commenting is an
// optional action and must never abort a run.
func (h *Humanizer) Comment(ctx context.Context, scrapedComments []string) schemas.HumanizedComment {
	generated, err := h.generate(ctx, scrapedComments)
	if err != nil {
		h.log.Warn("Comment generation failed, using fallback", zap.Error(err))
		return h.FallbackComment()
	}
	return generated
}

func (h *Humanizer) generate(ctx context.Context, scrapedComments []string) (schemas.HumanizedComment, error) {
	var empty schemas.HumanizedComment
	if h.cfg.APIKey == "" {
		return empty, errors.New("humanizer service API key not configured")
	}
	sample := strings.TrimSpace(strings.Join(scrapedComments, "\n"))
	if sample == "" {
		return empty, errors.New("no comments scraped to humanize")
	}

	payload := map[string]any{
		"model": h.cfg.Model,
		"messages": []map[string]string{
			{"role": "system", "content": humanizerSystemPrompt},
			{"role": "user", "content": sample},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return empty, fmt.Errorf("encoding humanizer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return empty, fmt.Errorf("building humanizer request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+h.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return empty, fmt.Errorf("calling humanizer service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return empty, classifyStatus("humanizer", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return empty, fmt.Errorf("decoding humanizer response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return empty, errors.New("humanizer response had no choices")
	}

	cleaned := cleanJSONResponse(parsed.Choices[0].Message.Content)

	// The model is asked for an array but sometimes returns a bare
	// object.
	var comments []schemas.HumanizedComment
	if err := json.Unmarshal([]byte(cleaned), &comments); err != nil {
		var single schemas.HumanizedComment
		if err := json.Unmarshal([]byte(cleaned), &single); err != nil {
			return empty, fmt.Errorf("parsing humanizer response: %w", err)
		}
		comments = []schemas.HumanizedComment{single}
	}
	if len(comments) == 0 || comments[0].Comment == "" {
		return empty, errors.New("humanizer returned no usable comment")
	}

	result := comments[0]
	if result.Language == "" {
		result.Language = "en"
	}
	return result, nil
}
