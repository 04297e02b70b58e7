package provider

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/ZaguanLabs/potlai"
)

// OpenAIClient implements CompletionClient on the OpenAI chat completions
// API or any compatible endpoint.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// OpenAIConfig holds configuration for the OpenAI client.
type OpenAIConfig struct {
	APIKey     string       // API key sent as bearer token
	Model      string       // Model to use (default: "gpt-4o-mini")
	BaseURL    string       // Custom base URL (optional)
	HTTPClient *http.Client // Custom HTTP client (optional)
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		config.HTTPClient = cfg.HTTPClient
	}

	model := cfg.Model
	if model == "" {
		model = potlai.DefaultModel
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

// Model returns the model requests are sent to.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Complete sends one system and one user message.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.buildRequest(req))
	if err != nil {
		return nil, &potlai.ProviderError{
			Message: "chat completion failed",
			Cause:   err,
			Kind:    classify(err),
		}
	}

	if len(resp.Choices) == 0 {
		return nil, &potlai.ProviderError{
			Message: "no choices in response",
			Kind:    potlai.KindTransient,
		}
	}

	return &Completion{
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

func (c *OpenAIClient) buildRequest(req CompletionRequest) openai.ChatCompletionRequest {
	// A zero temperature is dropped by omitempty, so send the smallest
	// positive value instead.
	temperature := req.Options.Temperature
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	out := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: temperature,
		MaxTokens:   req.Options.MaxOutputTokens,
	}
	if req.Options.JSON {
		out.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return out
}

// classify maps a client error to how the orchestrator reacts to it.
func classify(err error) potlai.ErrorKind {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return kindForStatus(apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return kindForStatus(reqErr.HTTPStatusCode, reqErr.Error())
	}

	if errors.Is(err, context.Canceled) {
		return potlai.KindFatal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return potlai.KindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return potlai.KindTransient
	}

	return kindForMessage(err.Error())
}

func kindForStatus(status int, msg string) potlai.ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return potlai.KindRateLimit
	case status == http.StatusRequestTimeout, status >= 500:
		return potlai.KindTransient
	case status >= 400:
		return potlai.KindFatal
	default:
		return kindForMessage(msg)
	}
}

func kindForMessage(msg string) potlai.ErrorKind {
	msg = strings.ToLower(msg)
	if strings.Contains(msg, "rate limit") || strings.Contains(msg, "429") {
		return potlai.KindRateLimit
	}

	transientPatterns := []string{
		"timeout",
		"connection refused",
		"connection reset",
		"temporary",
		"eof",
		"503",
		"502",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return potlai.KindTransient
		}
	}
	return potlai.KindFatal
}

// Verify OpenAIClient implements CompletionClient
var _ CompletionClient = (*OpenAIClient)(nil)
