// Package ai proxies chat completion and vector-store search calls to
// an OpenAI-compatible endpoint.
package ai

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

const (
	defaultBaseURL     = "https://api.openai.com"
	defaultModel       = "gpt-4.1-mini"
	defaultTemperature = 0.7
	defaultMaxResults  = 5
)

// ErrNotConfigured reports a call without an API key.
var ErrNotConfigured = errors.New("ai: api key not configured")

// UpstreamError carries a non-2xx response from the AI provider.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("ai: upstream status %d: %s", e.Status, e.Body)
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest describes a chat completion call. Zero Model and
// Temperature fall back to defaults.
type ChatRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

// VectorSearchRequest describes a vector-store search call.
type VectorSearchRequest struct {
	VectorStoreID string `json:"vectorStoreId"`
	Query         string `json:"query"`
	MaxNumResults int    `json:"maxNumResults,omitempty"`
}

// Client talks to one OpenAI-compatible endpoint. The base URL is
// overridable so tests can point it at a local server.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

// NewClient builds a client; empty baseURL means the public endpoint.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
		httpc:   &http.Client{Timeout: 60 * time.Second},
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Chat runs a chat completion and returns the first choice's content.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	if len(req.Messages) == 0 {
		return "", errors.New("ai: messages are required")
	}
	model := req.Model
	if model == "" {
		model = defaultModel
	}
	temperature := req.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}

	payload := map[string]any{
		"model":       model,
		"messages":    req.Messages,
		"temperature": temperature,
	}
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.post(ctx, "/v1/chat/completions", nil, payload, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", nil
	}
	return parsed.Choices[0].Message.Content, nil
}

// VectorSearch queries a vector store and returns the matching chunks'
// text, one string per result.
func (c *Client) VectorSearch(ctx context.Context, req VectorSearchRequest) ([]string, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(req.VectorStoreID) == "" || strings.TrimSpace(req.Query) == "" {
		return nil, errors.New("ai: vectorStoreId and query are required")
	}
	maxResults := req.MaxNumResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	payload := map[string]any{
		"query":           req.Query,
		"max_num_results": maxResults,
	}
	var parsed struct {
		Data []struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"data"`
	}
	path := "/v1/vector_stores/" + req.VectorStoreID + "/search"
	headers := map[string]string{"OpenAI-Beta": "assistants=v2"}
	if err := c.post(ctx, path, headers, payload, &parsed); err != nil {
		return nil, err
	}

	chunks := make([]string, 0, len(parsed.Data))
	for _, item := range parsed.Data {
		var lines []string
		for _, content := range item.Content {
			if content.Text != "" {
				lines = append(lines, content.Text)
			}
		}
		if len(lines) > 0 {
			chunks = append(chunks, strings.Join(lines, "\n"))
		}
	}
	return chunks, nil
}

func (c *Client) post(ctx context.Context, path string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ai: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ai: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("ai: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("ai: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UpstreamError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("ai: decode response: %w", err)
	}
	return nil
}
