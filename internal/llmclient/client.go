// Package llmclient talks to the external inference services: audio
// transcription for captcha challenges, vision analysis of analytics
// screenshots, and comment generation.
package llmclient

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/Jasmitsingh01/tiktok/internal/config"
)

// ServiceError describes a failed call to an external service with
// enough context to act on it.
type ServiceError struct {
	Service     string
	Status      int
	Message     string
	Remediation string
}

func (e *ServiceError) Error() string {
	if e.Remediation != "" {
		return fmt.Sprintf("%s request failed (status %d): %s (%s)", e.Service, e.Status, e.Message, e.Remediation)
	}
	return fmt.Sprintf("%s request failed (status %d): %s", e.Service, e.Status, e.Message)
}

// classifyStatus attaches a remediation hint for the statuses operators
// hit most often.
func classifyStatus(service string, status int, message string) *ServiceError {
	err := &ServiceError{Service: service, Status: status, Message: message}
	switch status {
	case http.StatusUnauthorized:
		err.Remediation = "check the configured API key"
	case http.StatusTooManyRequests:
		err.Remediation = "rate limit exceeded, retry later"
	}
	return err
}

func newHTTPClient(cfg config.ServiceConfig) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

var codeFenceRe = regexp.MustCompile("```(?:json|javascript)?\\s*")

// cleanJSONResponse strips markdown code fences that models wrap around
// JSON payloads despite instructions not to.
func cleanJSONResponse(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = codeFenceRe.ReplaceAllString(cleaned, "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	return strings.TrimSpace(cleaned)
}

// chatResponse is the shared completion envelope of the chat services.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
