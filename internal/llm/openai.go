// Package llm talks to the language-model backend used for task
// classification and free-form guidance.
package llm

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

// Backend is the model capability the agent depends on.
type Backend interface {
	// Complete sends a single prompt and returns the model's text.
	Complete(ctx context.Context, prompt string) (string, error)
}

// HTTPClient interface for HTTP requests (enables testing)
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// ErrUnavailable reports a backend that could not be reached or answered
// with a non-success status.
var ErrUnavailable = errors.New("language model unavailable")

// StatusError carries a non-200 backend response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("backend returned HTTP %d: %s", e.Code, body)
}

func (e *StatusError) Unwrap() error { return ErrUnavailable }

const defaultMaxTokens = 500

// Option modifies client configuration.
type Option func(*OpenAI)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c HTTPClient) Option {
	return func(o *OpenAI) { o.client = c }
}

// WithModel sets the chat model.
func WithModel(model string) Option {
	return func(o *OpenAI) { o.model = model }
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) Option {
	return func(o *OpenAI) { o.maxTokens = n }
}

// WithTimeout sets a timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(o *OpenAI) { o.client = &http.Client{Timeout: d} }
}

// OpenAI is a client for OpenAI-compatible chat completion endpoints,
// including proxies that speak the same protocol.
type OpenAI struct {
	apiKey    string
	endpoint  string
	model     string
	maxTokens int
	client    HTTPClient
}

// NewOpenAI returns a client for baseURL. The base URL may be a bare host,
// end in /v1, or already name /chat/completions.
func NewOpenAI(apiKey, baseURL string, opts ...Option) *OpenAI {
	o := &OpenAI{
		apiKey:    apiKey,
		endpoint:  chatEndpoint(baseURL),
		model:     "gpt-4o-mini",
		maxTokens: defaultMaxTokens,
		client:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func chatEndpoint(baseURL string) string {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return "https://api.openai.com/v1/chat/completions"
	}
	if strings.HasSuffix(baseURL, "/chat/completions") {
		return baseURL
	}
	if strings.HasSuffix(baseURL, "/v1") {
		return baseURL + "/chat/completions"
	}
	return baseURL + "/v1/chat/completions"
}

// Endpoint returns the resolved chat completions URL.
func (o *OpenAI) Endpoint() string { return o.endpoint }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
		Text    string      `json:"text"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (o *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:     o.model,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens: o.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Code: resp.StatusCode, Body: string(data)}
	}

	var cr chatResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if cr.Error != nil {
		return "", fmt.Errorf("%w: %s", ErrUnavailable, cr.Error.Message)
	}
	if len(cr.Choices) == 0 {
		return "", nil
	}
	c := cr.Choices[0]
	if c.Message.Content != "" {
		return c.Message.Content, nil
	}
	return c.Text, nil
}

var _ Backend = (*OpenAI)(nil)
