package llm

import (
	"context"
	"errors"
	"math"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/k5assist/internal/model"
)

const defaultHostedURL = "https://api.openai.com/v1"

// hostedBackend calls an OpenAI-compatible chat-completion API.
type hostedBackend struct {
	http *http.Client
}

func (b *hostedBackend) name() string { return string(ProviderHosted) }

func (b *hostedBackend) generate(ctx context.Context, req Request, cfg Config) (*Response, error) {
	if cfg.APIKey == "" {
		return nil, &model.ConfigurationError{Message: "API key required for API provider"}
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = defaultHostedURL
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = b.http
	client := openai.NewClientWithConfig(clientCfg)

	var messages []openai.ChatCompletionMessage
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	// go-openai omits a zero temperature, so 0 is sent as the smallest
	// representable value instead.
	temperature := float32(cfg.temperature())
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       cfg.Model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   cfg.MaxTokens,
	})
	if err != nil {
		return nil, b.transportError(err)
	}

	out := &Response{Model: resp.Model}
	if out.Model == "" {
		out.Model = cfg.Model
	}
	if len(resp.Choices) > 0 {
		out.Content = resp.Choices[0].Message.Content
	}
	if resp.Usage.TotalTokens > 0 || resp.Usage.PromptTokens > 0 || resp.Usage.CompletionTokens > 0 {
		out.Usage = &Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return out, nil
}

func (b *hostedBackend) stream(ctx context.Context, req Request, cfg Config) (*Stream, error) {
	resp, err := b.generate(ctx, req, cfg)
	if err != nil {
		return nil, err
	}
	return newChunkStream(resp.Content), nil
}

func (b *hostedBackend) transportError(err error) error {
	terr := &model.TransportError{Provider: b.name(), Err: err}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		terr.StatusCode = apiErr.HTTPStatusCode
		terr.Body = apiErr.Message
		return terr
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		terr.StatusCode = reqErr.HTTPStatusCode
		if reqErr.Err != nil {
			terr.Body = reqErr.Err.Error()
		}
	}
	return terr
}
