package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI implements Responder against the OpenAI chat completion API, or
// any compatible gateway via WithOpenAIBaseURL.
type OpenAI struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	logger      *slog.Logger

	baseURL    string
	httpClient *http.Client
}

// OpenAIOption configures the OpenAI responder.
type OpenAIOption func(*OpenAI)

// WithOpenAIModel sets the chat model.
func WithOpenAIModel(model string) OpenAIOption {
	return func(o *OpenAI) { o.model = model }
}

// WithOpenAITemperature sets the sampling temperature.
func WithOpenAITemperature(t float32) OpenAIOption {
	return func(o *OpenAI) { o.temperature = t }
}

// WithOpenAIMaxTokens bounds the reply length at the token level. The
// orchestrator's word cap still applies on top.
func WithOpenAIMaxTokens(n int) OpenAIOption {
	return func(o *OpenAI) { o.maxTokens = n }
}

// WithOpenAILogger sets the structured logger.
func WithOpenAILogger(logger *slog.Logger) OpenAIOption {
	return func(o *OpenAI) { o.logger = logger }
}

// WithOpenAIBaseURL points the responder at an OpenAI-compatible gateway.
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(o *OpenAI) { o.baseURL = url }
}

// WithOpenAIHTTPClient sets the HTTP client used for API requests.
func WithOpenAIHTTPClient(client *http.Client) OpenAIOption {
	return func(o *OpenAI) { o.httpClient = client }
}

// NewOpenAI creates an OpenAI-backed responder.
func NewOpenAI(apiKey string, opts ...OpenAIOption) (*OpenAI, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}

	o := &OpenAI{
		model:       openai.GPT4oMini,
		temperature: 0.7,
		maxTokens:   512,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "dialogue.openai")

	cfg := openai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}
	if o.httpClient != nil {
		cfg.HTTPClient = o.httpClient
	}
	o.client = openai.NewClientWithConfig(cfg)

	return o, nil
}

// Respond sends one chat completion request and returns the reply text.
func (o *OpenAI) Respond(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: req.System,
	})
	for _, turn := range req.History {
		role := openai.ChatMessageRoleUser
		if turn.Speaker == SpeakerAgent {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: turn.Text,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Transcript,
	})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	})
	if err != nil {
		return "", wrapOpenAIError(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyReply
	}

	o.logger.Debug("reply generated",
		"model", o.model,
		"history_turns", len(req.History),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	return resp.Choices[0].Message.Content, nil
}

// Close releases provider resources.
func (o *OpenAI) Close() error {
	return nil
}

// wrapOpenAIError converts go-openai errors into the package taxonomy so
// the guard can classify them by status code.
func wrapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &APIError{StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error()}
	}
	return fmt.Errorf("dialogue: %w", err)
}

// Verify OpenAI implements Responder at compile time.
var _ Responder = (*OpenAI)(nil)
