package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/yhanli/innervoice/internal/config"
	"github.com/yhanli/innervoice/internal/metrics"
)

// Client handles HTTP requests to one OpenAI-compatible API endpoint.
// Each call issues exactly one request; retrying a failed sentence is
// the operator's decision, made through the failure file.
type Client struct {
	httpClient *http.Client
	pacer      *Pacer
	collector  *metrics.Collector
	logger     *slog.Logger
	cfg        config.ModelConfig
	apiKey     string
}

// NewClient creates a new API client for the configured endpoint.
// A zero request timeout disables the HTTP deadline.
func NewClient(cfg config.ModelConfig, apiKey string, collector *metrics.Collector, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		},
		pacer:     NewPacer(cfg.RateLimitPerMinute),
		collector: collector,
		logger:    logger,
		cfg:       cfg,
		apiKey:    apiKey,
	}
}

// ModelName returns the configured model identifier.
func (c *Client) ModelName() string {
	return c.cfg.ModelName
}

// Complete sends the conversation so far and returns the assistant text
// of the first choice, stripped of surrounding whitespace. The reply is
// requested as a JSON object.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	waitStart := time.Now()
	if err := c.pacer.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter wait failed: %w", err)
	}
	c.collector.RecordRateLimiterWait(c.cfg.ModelName, time.Since(waitStart))

	req := ChatCompletionRequest{
		Model:       c.cfg.ModelName,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxOutputTokens,
		N:           1,
		ResponseFormat: &ResponseFormat{
			Type: "json_object",
		},
	}

	reqStart := time.Now()
	resp, err := c.doRequest(ctx, req)
	c.collector.RecordAPIRequest(c.cfg.ModelName, time.Since(reqStart), err == nil)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *Client) doRequest(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := c.cfg.BaseURL
	if endpoint[len(endpoint)-1] != '/' {
		endpoint += "/"
	}
	endpoint += "chat/completions"

	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	} else {
		c.logger.Warn("API request without key", "endpoint", endpoint)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &APIError{
			Message: fmt.Sprintf("request failed: %v", err),
		}
	}
	defer func() {
		if err := httpResp.Body.Close(); err != nil {
			c.logger.Warn("Failed to close response body", "error", err)
		}
	}()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
			return nil, &APIError{
				Message:    errResp.Error.Message,
				StatusCode: httpResp.StatusCode,
				Type:       errResp.Error.Type,
				Code:       errResp.Error.Code,
			}
		}

		return nil, &APIError{
			Message:    fmt.Sprintf("API request failed with status %d: %s", httpResp.StatusCode, string(respBody)),
			StatusCode: httpResp.StatusCode,
		}
	}

	var resp ChatCompletionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned in response")
	}

	return &resp, nil
}

// APIError represents an error returned by the API
type APIError struct {
	Message    string
	StatusCode int
	Type       string
	Code       string
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error: %s", e.Message)
}
