// FilePath: internal/verification/client.go
package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hydrozen/leakwatch/internal/errors"
	"github.com/hydrozen/leakwatch/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

// VerdictPrompt is sent with every image.
const VerdictPrompt = "Look at this image and tell me if you see any signs of water leakage or water-related issues. " +
	"Consider things like: water puddles, wet surfaces, dripping, or any water-related damage. " +
	`Respond ONLY in this exact JSON format: { "isLeakage": boolean, "confidence": number between 0 and 1, "description": "detailed description of what you see" }`

// ClientConfig configures the OpenRouter-compatible verdict client
type ClientConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Referer string
	Title   string
	Timeout time.Duration
}

// Client asks a vision model whether an uploaded image shows a leak.
type Client struct {
	cfg    ClientConfig
	client *http.Client
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "google/gemini-2.0-flash-001"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// IsConfigured reports whether an API key is set.
func (c *Client) IsConfigured() bool {
	return c.cfg.APIKey != ""
}

type contentPart struct {
	Type     string     `json:"type"`
	Text     string     `json:"text,omitempty"`
	ImageURL *imagePart `json:"image_url,omitempty"`
}

type imagePart struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Verify sends imageURL to the model and parses its answer. Transport errors
// and non-2xx responses are verification service errors; a malformed answer
// is not an error and yields a degraded verdict.
func (c *Client) Verify(ctx context.Context, imageURL string) (models.Verdict, error) {
	if !c.IsConfigured() {
		return models.Verdict{}, errors.NewVerificationServiceError("verification service is not configured", 0, nil)
	}

	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: VerdictPrompt},
				{Type: "image_url", ImageURL: &imagePart{URL: imageURL}},
			},
		}},
	})
	if err != nil {
		return models.Verdict{}, errors.NewInternalError("failed to encode verdict request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return models.Verdict{}, errors.NewInternalError("failed to build verdict request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return models.Verdict{}, errors.NewVerificationServiceError("verification service unreachable", 0, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Verdict{}, errors.NewVerificationServiceError("failed to read verification response", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		nuts.L.Errorf("[Verification] Verdict request failed with status %d: %s", resp.StatusCode, truncate(string(respBody), 500))
		return models.Verdict{}, errors.NewVerificationServiceError(
			fmt.Sprintf("verification service returned %s", resp.Status), resp.StatusCode, nil)
	}

	var chat chatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return models.Verdict{}, errors.NewVerificationServiceError("verification response is not valid JSON", resp.StatusCode, err)
	}
	text := ""
	if len(chat.Choices) > 0 {
		text = chat.Choices[0].Message.Content
	}

	verdict := ParseVerdict(text)
	if verdict.Degraded {
		nuts.L.Warnf("[Verification] Malformed verdict payload, used keyword heuristic (leak=%t)", verdict.IsLeakage)
	}
	return verdict, nil
}
