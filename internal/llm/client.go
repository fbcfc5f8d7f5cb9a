package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/craigmmills/enviroagent/internal/config"
	"github.com/craigmmills/enviroagent/internal/retry"
)

// Completer produces free-form text for a prompt. The evaluator, summary,
// and rewrite collaborators all speak this interface so stages can be
// tested against stubs.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Client calls the Anthropic Messages API.
type Client struct {
	apiKey    string
	model     string
	maxTokens int
	baseURL   string
	client    *http.Client
	retry     retry.Config
}

func NewClient(cfg config.LLMConfig) *Client {
	return &Client{
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		baseURL:   "https://api.anthropic.com/v1/messages",
		client:    &http.Client{Timeout: 120 * time.Second},
		retry:     retry.DefaultConfig(),
	}
}

// Anthropic API request/response types

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
	Error   *anthropicError    `json:"error,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Complete sends the prompt as a single user message and returns the text
// of the first content block. Transient failures (5xx, 429, network) are
// retried with backoff before the error reaches the caller.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	var text string
	err := retry.WithBackoff(ctx, c.retry, func(ctx context.Context) error {
		var callErr error
		text, callErr = c.callAPI(ctx, prompt)
		return callErr
	})
	return text, err
}

func (c *Client) callAPI(ctx context.Context, prompt string) (string, error) {
	reqBody := anthropicRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("anthropic: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("anthropic: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("anthropic: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("anthropic: failed to read response: %w", err)
	}

	if retry.HTTPStatusRetryable(resp.StatusCode) {
		return "", fmt.Errorf("anthropic: unexpected status %d", resp.StatusCode)
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("anthropic: failed to parse response: %w", err)
	}

	if apiResp.Error != nil {
		return "", fmt.Errorf("anthropic: API error: %s - %s", apiResp.Error.Type, apiResp.Error.Message)
	}

	if len(apiResp.Content) == 0 {
		return "", fmt.Errorf("anthropic: empty response")
	}

	return apiResp.Content[0].Text, nil
}
