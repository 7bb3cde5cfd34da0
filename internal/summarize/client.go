package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNotConfigured is returned by Noop.
var ErrNotConfigured = errors.New("summarization endpoint not configured")

// Noop is used when no endpoint is configured. It always fails so the
// adapter falls back to the local summary.
type Noop struct{}

// Summarize implements Client.
func (Noop) Summarize(context.Context, string, string) (string, error) {
	return "", ErrNotConfigured
}

// HTTPClient calls a JSON summarization endpoint.
type HTTPClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPClient builds a client for endpoint. A non-positive timeout
// defaults to 30s.
func NewHTTPClient(endpoint, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type summarizeRequest struct {
	Instruction string `json:"instruction"`
	Text        string `json:"text"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

// Summarize posts the instruction and text and returns the summary field.
func (c *HTTPClient) Summarize(ctx context.Context, instruction, text string) (string, error) {
	body, err := json.Marshal(summarizeRequest{Instruction: instruction, Text: text})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("summarize request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("summarizer returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var out summarizeResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if strings.TrimSpace(out.Summary) == "" {
		return "", errors.New("summarizer returned an empty summary")
	}
	return out.Summary, nil
}
