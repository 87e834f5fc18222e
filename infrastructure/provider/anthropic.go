package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// AnthropicProvider implements text generation using the Anthropic API.
// Anthropic does not provide embeddings.
type AnthropicProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	retry      retryPolicy
}

// AnthropicOption is a functional option for AnthropicProvider.
type AnthropicOption func(*AnthropicProvider)

// WithAnthropicModel sets the default model.
func WithAnthropicModel(model string) AnthropicOption {
	return func(p *AnthropicProvider) { p.model = model }
}

// WithAnthropicBaseURL sets the base URL (for testing or proxies).
func WithAnthropicBaseURL(url string) AnthropicOption {
	return func(p *AnthropicProvider) { p.baseURL = url }
}

// WithAnthropicTimeout sets the HTTP timeout.
func WithAnthropicTimeout(d time.Duration) AnthropicOption {
	return func(p *AnthropicProvider) { p.httpClient.Timeout = d }
}

// WithAnthropicMaxRetries sets the maximum retry count.
func WithAnthropicMaxRetries(n int) AnthropicOption {
	return func(p *AnthropicProvider) { p.retry.maxRetries = n }
}

// WithAnthropicInitialDelay sets the initial retry delay.
func WithAnthropicInitialDelay(d time.Duration) AnthropicOption {
	return func(p *AnthropicProvider) { p.retry.initialDelay = d }
}

// NewAnthropicProvider creates a new AnthropicProvider.
func NewAnthropicProvider(apiKey string, opts ...AnthropicOption) *AnthropicProvider {
	p := &AnthropicProvider{
		apiKey:  apiKey,
		baseURL: "https://api.anthropic.com",
		model:   "claude-sonnet-4-20250514",
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		retry: defaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
	System    string             `json:"system,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content    []anthropicBlock `json:"content"`
	StopReason string           `json:"stop_reason"`
	Usage      anthropicUsage   `json:"usage"`
}

type anthropicBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicAPIError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// ChatCompletion generates a chat completion through /v1/messages.
func (p *AnthropicProvider) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (ChatCompletionResponse, error) {
	messages := req.Messages()
	if len(messages) == 0 {
		return ChatCompletionResponse{}, NewProviderError("chat_completion", 0, "no messages provided", nil)
	}

	model := req.Model()
	if model == "" {
		model = p.model
	}
	maxTokens := req.MaxTokens()
	if maxTokens == 0 {
		maxTokens = 4096
	}

	// The messages endpoint takes the system prompt as a top-level field.
	var systemMessage string
	var apiMessages []anthropicMessage
	for _, m := range messages {
		if m.Role() == "system" {
			systemMessage = m.Content()
			continue
		}
		apiMessages = append(apiMessages, anthropicMessage{
			Role:    m.Role(),
			Content: m.Content(),
		})
	}

	apiReq := anthropicRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Messages:  apiMessages,
		System:    systemMessage,
	}

	var resp anthropicResponse
	err := p.retry.do(ctx, func() error {
		var callErr error
		resp, callErr = p.doRequest(ctx, apiReq)
		return callErr
	})
	if err != nil {
		return ChatCompletionResponse{}, err
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	usage := NewUsage(
		resp.Usage.InputTokens,
		resp.Usage.OutputTokens,
		resp.Usage.InputTokens+resp.Usage.OutputTokens,
	)
	return NewChatCompletionResponse(content, resp.StopReason, usage), nil
}

func (p *AnthropicProvider) doRequest(ctx context.Context, req anthropicRequest) (anthropicResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return anthropicResponse{}, NewProviderError("chat_completion", 0, "failed to marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return anthropicResponse{}, NewProviderError("chat_completion", 0, "failed to create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return anthropicResponse{}, NewProviderError("chat_completion", 0, "request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return anthropicResponse{}, NewProviderError("chat_completion", resp.StatusCode, "failed to read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr anthropicAPIError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error.Message != "" {
			return anthropicResponse{}, NewProviderError("chat_completion", resp.StatusCode, apiErr.Error.Message, nil)
		}
		return anthropicResponse{}, NewProviderError("chat_completion", resp.StatusCode, string(respBody), nil)
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return anthropicResponse{}, NewProviderError("chat_completion", 0, "failed to unmarshal response", err)
	}
	return apiResp, nil
}

// Ensure AnthropicProvider implements the interface.
var _ TextGenerator = (*AnthropicProvider)(nil)
