package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Jasmitsingh01/tiktok/internal/config"
)

// Transcriber converts captcha audio into text via a Whisper-compatible
// transcription endpoint.
type Transcriber struct {
	cfg    config.ServiceConfig
	client *http.Client
	log    *zap.Logger
}

func NewTranscriber(cfg config.ServiceConfig, logger *zap.Logger) *Transcriber {
	return &Transcriber{
		cfg:    cfg,
		client: newHTTPClient(cfg),
		log:    logger.Named("transcriber"),
	}
}

// Transcribe uploads the audio bytes and returns the normalized answer:
// lowercase with everything but letters and digits stripped, since that
// is the only alphabet the challenge accepts.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if t.cfg.APIKey == "" {
		return "", errors.New("transcription service API key not configured")
	}
	if len(audio) == 0 {
		return "", errors.New("no audio data to transcribe")
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "audio.mp3")
	if err != nil {
		return "", fmt.Errorf("building transcription form: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("writing audio to form: %w", err)
	}
	for field, value := range map[string]string{
		"model":           t.cfg.Model,
		"response_format": "json",
		"language":        "en",
		"temperature":     "0",
	} {
		if err := form.WriteField(field, value); err != nil {
			return "", fmt.Errorf("writing form field %s: %w", field, err)
		}
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("finalizing transcription form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.Endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("building transcription request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling transcription service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", classifyStatus("transcription", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding transcription response: %w", err)
	}

	answer := NormalizeAnswer(parsed.Text)
	if answer == "" {
		return "", errors.New("transcription produced no usable characters")
	}
	t.log.Debug("Audio transcribed", zap.Int("answer_length", len(answer)))
	return answer, nil
}

// NormalizeAnswer lowercases the transcription and strips whitespace
// and punctuation.
func NormalizeAnswer(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
