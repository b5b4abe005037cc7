package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/metalagman/droidagent/internal/config"
)

// retryDelays is the backoff ladder between attempts. The attempt after
// the last delay reuses it.
var retryDelays = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// Client posts chat completions to an OpenAI-compatible endpoint. It is
// safe for concurrent use.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	maxRetries  int
	httpClient  *http.Client
}

// NewClient creates a client from model configuration.
func NewClient(cfg config.ModelConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Name,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		maxRetries:  cfg.MaxRetries,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Close releases the client's idle connections. The client must not be
// used after Close.
func (c *Client) Close() { c.httpClient.CloseIdleConnections() }

// Chat sends the conversation and returns the completion. Transient
// failures are retried with increasing delays; the last error is
// returned when every attempt fails.
func (c *Client) Chat(ctx context.Context, messages []Message) (*ChatResponse, error) {
	var lastErr error
	attempts := c.maxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := retryDelays[min(attempt-1, len(retryDelays)-1)]
			log.Debug().Int("attempt", attempt+1).Dur("delay", delay).Msg("retrying chat completion")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := c.complete(ctx, messages)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt+1).Msg("chat completion failed")
	}
	return nil, fmt.Errorf("chat completion after %d attempts: %w", attempts, lastErr)
}

func (c *Client) complete(ctx context.Context, messages []Message) (*ChatResponse, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Stream:      false,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	resp, err := c.post(ctx, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("completion endpoint returned %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var completion chatCompletion
	if err := json.Unmarshal(raw, &completion); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if completion.Error != nil {
		return nil, fmt.Errorf("completion error: %s", completion.Error.Message)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("completion returned no choices")
	}

	model := completion.Model
	if model == "" {
		model = c.model
	}
	return &ChatResponse{
		Content: completion.Choices[0].Message.Content,
		Model:   model,
		Usage:   completion.Usage,
	}, nil
}

func (c *Client) post(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post completion: %w", err)
	}
	return resp, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
