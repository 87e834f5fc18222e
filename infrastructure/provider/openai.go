package provider

import (
	"context"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements text generation against any OpenAI-compatible
// API. It is the paid back-end used when an Anthropic key is not set.
type OpenAIProvider struct {
	client *openai.Client
	model  string
	retry  retryPolicy
}

// OpenAIOption is a functional option for OpenAIProvider.
type OpenAIOption func(*openAIOptions)

type openAIOptions struct {
	baseURL string
	model   string
	timeout time.Duration
	retry   retryPolicy
}

// WithOpenAIModel sets the default chat model.
func WithOpenAIModel(model string) OpenAIOption {
	return func(o *openAIOptions) { o.model = model }
}

// WithOpenAIBaseURL sets the base URL for OpenAI-compatible servers.
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(o *openAIOptions) { o.baseURL = url }
}

// WithOpenAITimeout sets the HTTP timeout.
func WithOpenAITimeout(d time.Duration) OpenAIOption {
	return func(o *openAIOptions) { o.timeout = d }
}

// WithOpenAIMaxRetries sets the maximum retry count.
func WithOpenAIMaxRetries(n int) OpenAIOption {
	return func(o *openAIOptions) { o.retry.maxRetries = n }
}

// NewOpenAIProvider creates a new OpenAIProvider.
func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	options := openAIOptions{
		model:   openai.GPT4o,
		timeout: 60 * time.Second,
		retry:   defaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	config := openai.DefaultConfig(apiKey)
	if options.baseURL != "" {
		config.BaseURL = options.baseURL
	}
	config.HTTPClient = &http.Client{Timeout: options.timeout}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(config),
		model:  options.model,
		retry:  options.retry,
	}
}

// ChatCompletion generates a chat completion.
func (p *OpenAIProvider) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (ChatCompletionResponse, error) {
	messages := req.Messages()
	if len(messages) == 0 {
		return ChatCompletionResponse{}, NewProviderError("chat_completion", 0, "no messages provided", nil)
	}

	model := req.Model()
	if model == "" {
		model = p.model
	}

	apiReq := openai.ChatCompletionRequest{
		Model:     model,
		MaxTokens: req.MaxTokens(),
	}
	for _, m := range messages {
		apiReq.Messages = append(apiReq.Messages, openai.ChatCompletionMessage{
			Role:    m.Role(),
			Content: m.Content(),
		})
	}

	var resp openai.ChatCompletionResponse
	err := p.retry.do(ctx, func() error {
		var callErr error
		resp, callErr = p.client.CreateChatCompletion(ctx, apiReq)
		if callErr != nil {
			return wrapOpenAIError(callErr)
		}
		return nil
	})
	if err != nil {
		return ChatCompletionResponse{}, err
	}

	if len(resp.Choices) == 0 {
		return ChatCompletionResponse{}, NewProviderError("chat_completion", 0, "no choices in response", nil)
	}

	usage := NewUsage(
		resp.Usage.PromptTokens,
		resp.Usage.CompletionTokens,
		resp.Usage.TotalTokens,
	)
	choice := resp.Choices[0]
	return NewChatCompletionResponse(choice.Message.Content, string(choice.FinishReason), usage), nil
}

func wrapOpenAIError(err error) error {
	if apiErr, ok := err.(*openai.APIError); ok {
		return NewProviderError("chat_completion", apiErr.HTTPStatusCode, apiErr.Message, err)
	}
	return NewProviderError("chat_completion", 0, "request failed", err)
}

// Ensure OpenAIProvider implements the interface.
var _ TextGenerator = (*OpenAIProvider)(nil)
