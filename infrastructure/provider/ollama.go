package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// OllamaProvider talks to a local Ollama server for chat completion and
// embedding generation. Local calls are free; token counts are reported
// when the server provides them and zero otherwise.
type OllamaProvider struct {
	baseURL        string
	chatModel      string
	embeddingModel string
	httpClient     *http.Client
	retry          retryPolicy
}

// OllamaOption is a functional option for OllamaProvider.
type OllamaOption func(*OllamaProvider)

// WithOllamaChatModel sets the default chat model.
func WithOllamaChatModel(model string) OllamaOption {
	return func(p *OllamaProvider) { p.chatModel = model }
}

// WithOllamaEmbeddingModel sets the default embedding model.
func WithOllamaEmbeddingModel(model string) OllamaOption {
	return func(p *OllamaProvider) { p.embeddingModel = model }
}

// WithOllamaTimeout sets the HTTP timeout.
func WithOllamaTimeout(d time.Duration) OllamaOption {
	return func(p *OllamaProvider) { p.httpClient.Timeout = d }
}

// WithOllamaMaxRetries sets the maximum retry count.
func WithOllamaMaxRetries(n int) OllamaOption {
	return func(p *OllamaProvider) { p.retry.maxRetries = n }
}

// WithOllamaInitialDelay sets the initial retry delay.
func WithOllamaInitialDelay(d time.Duration) OllamaOption {
	return func(p *OllamaProvider) { p.retry.initialDelay = d }
}

// NewOllamaProvider creates a new OllamaProvider.
func NewOllamaProvider(baseURL string, opts ...OllamaOption) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	p := &OllamaProvider{
		baseURL:        baseURL,
		chatModel:      "llama3.1:8b",
		embeddingModel: "nomic-embed-text",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retry: defaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

type ollamaError struct {
	Error string `json:"error"`
}

// ChatCompletion generates a chat completion through /api/chat.
func (p *OllamaProvider) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (ChatCompletionResponse, error) {
	messages := req.Messages()
	if len(messages) == 0 {
		return ChatCompletionResponse{}, NewProviderError("chat_completion", 0, "no messages provided", nil)
	}

	model := req.Model()
	if model == "" {
		model = p.chatModel
	}

	apiReq := ollamaChatRequest{
		Model:  model,
		Stream: false,
	}
	for _, m := range messages {
		apiReq.Messages = append(apiReq.Messages, ollamaMessage{
			Role:    m.Role(),
			Content: m.Content(),
		})
	}

	var resp ollamaChatResponse
	err := p.retry.do(ctx, func() error {
		var callErr error
		resp, callErr = p.doChat(ctx, apiReq)
		return callErr
	})
	if err != nil {
		return ChatCompletionResponse{}, err
	}

	usage := NewUsage(
		resp.PromptEvalCount,
		resp.EvalCount,
		resp.PromptEvalCount+resp.EvalCount,
	)
	return NewChatCompletionResponse(resp.Message.Content, "stop", usage), nil
}

// Embed generates one embedding per input text through /api/embeddings.
func (p *OllamaProvider) Embed(ctx context.Context, req EmbeddingRequest) (EmbeddingResponse, error) {
	texts := req.Texts()
	if len(texts) == 0 {
		return NewEmbeddingResponse(nil, Usage{}), nil
	}

	model := req.Model()
	if model == "" {
		model = p.embeddingModel
	}

	embeddings := make([][]float64, 0, len(texts))
	for _, text := range texts {
		var resp ollamaEmbeddingResponse
		err := p.retry.do(ctx, func() error {
			var callErr error
			resp, callErr = p.doEmbed(ctx, ollamaEmbeddingRequest{
				Model:  model,
				Prompt: text,
			})
			return callErr
		})
		if err != nil {
			return EmbeddingResponse{}, err
		}
		embeddings = append(embeddings, resp.Embedding)
	}

	return NewEmbeddingResponse(embeddings, Usage{}), nil
}

func (p *OllamaProvider) doChat(ctx context.Context, req ollamaChatRequest) (ollamaChatResponse, error) {
	var resp ollamaChatResponse
	if err := p.post(ctx, "chat_completion", "/api/chat", req, &resp); err != nil {
		return ollamaChatResponse{}, err
	}
	return resp, nil
}

func (p *OllamaProvider) doEmbed(ctx context.Context, req ollamaEmbeddingRequest) (ollamaEmbeddingResponse, error) {
	var resp ollamaEmbeddingResponse
	if err := p.post(ctx, "embedding", "/api/embeddings", req, &resp); err != nil {
		return ollamaEmbeddingResponse{}, err
	}
	return resp, nil
}

func (p *OllamaProvider) post(ctx context.Context, operation, path string, reqBody, out any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return NewProviderError(operation, 0, "failed to marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return NewProviderError(operation, 0, "failed to create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return NewProviderError(operation, 0, "request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewProviderError(operation, resp.StatusCode, "failed to read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr ollamaError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error != "" {
			return NewProviderError(operation, resp.StatusCode, apiErr.Error, nil)
		}
		return NewProviderError(operation, resp.StatusCode, string(respBody), nil)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return NewProviderError(operation, 0, "failed to unmarshal response", err)
	}
	return nil
}

// Ensure OllamaProvider implements the interfaces.
var (
	_ TextGenerator = (*OllamaProvider)(nil)
	_ Embedder      = (*OllamaProvider)(nil)
)
