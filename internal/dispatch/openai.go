package dispatch

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

	"github.com/gridmind/gridmind/internal/core"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultModel         = "gpt-4o"
	defaultTemperature   = 0.1
	defaultMaxTokens     = 500
)

// OpenAIClient calls the OpenAI chat completions API.
type OpenAIClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// OpenAIOption configures an OpenAIClient.
type OpenAIOption func(*OpenAIClient)

// WithOpenAIBaseURL overrides the API endpoint, for tests and proxies.
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(c *OpenAIClient) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithOpenAIHTTPClient overrides the HTTP client.
func WithOpenAIHTTPClient(hc *http.Client) OpenAIOption {
	return func(c *OpenAIClient) { c.httpClient = hc }
}

// WithOpenAIModel overrides the default model.
func WithOpenAIModel(model string) OpenAIOption {
	return func(c *OpenAIClient) {
		if model != "" {
			c.model = model
		}
	}
}

// NewOpenAIClient creates a completion client. apiKey is the configured
// default credential; per-request keys take precedence.
func NewOpenAIClient(apiKey string, opts ...OpenAIOption) *OpenAIClient {
	c := &OpenAIClient{
		// No client-level timeout: per-call deadlines come from the
		// dispatcher's context.
		httpClient: &http.Client{},
		baseURL:    defaultOpenAIBaseURL,
		apiKey:     apiKey,
		model:      defaultModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string { return "openai" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends one chat completion request and blocks for the response.
// Failures map to the error taxonomy: 401/403 auth, 429 rate limit, other
// 4xx malformed request, 5xx service, context deadline timeout.
func (c *OpenAIClient) Complete(ctx context.Context, req core.CompletionRequest) (*core.CompletionResponse, error) {
	key := req.APIKey
	if key == "" {
		key = c.apiKey
	}
	if key == "" {
		return nil, core.ErrAuth("no completion API key configured")
	}

	model := req.Model
	if model == "" {
		model = c.model
	}
	temperature := req.Payload.Temperature
	maxTokens := req.Payload.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: req.Payload.System},
			{Role: "user", Content: req.Payload.User},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return nil, core.ErrMalformedRequest("encoding completion request").WithCause(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, core.ErrMalformedRequest("building completion request").WithCause(err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+key)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, core.ErrTimeout("completion request timed out").WithCause(err)
		}
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			return nil, core.ErrCancelled("completion request cancelled").WithCause(err)
		}
		return nil, core.ErrService("completion request failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, core.ErrService("decoding completion response").WithCause(err)
	}
	if len(parsed.Choices) == 0 {
		return nil, core.ErrService("completion response carried no choices")
	}

	choice := parsed.Choices[0]
	return &core.CompletionResponse{
		Text:         strings.TrimSpace(choice.Message.Content),
		Model:        parsed.Model,
		TokensIn:     parsed.Usage.PromptTokens,
		TokensOut:    parsed.Usage.CompletionTokens,
		FinishReason: choice.FinishReason,
		Duration:     time.Since(start),
	}, nil
}

// statusError maps a non-200 response to a typed failure.
func (c *OpenAIClient) statusError(resp *http.Response) error {
	var parsed chatResponse
	detail := ""
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8192)).Decode(&parsed); err == nil && parsed.Error != nil {
		detail = parsed.Error.Message
	}

	msg := fmt.Sprintf("completion API returned status %d", resp.StatusCode)
	if detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, detail)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return core.ErrAuth(msg)
	case resp.StatusCode == http.StatusTooManyRequests:
		return core.ErrRateLimit(msg)
	case resp.StatusCode >= 500:
		return core.ErrService(msg)
	default:
		return core.ErrMalformedRequest(msg)
	}
}
