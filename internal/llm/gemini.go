package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/pavelanni/k5assist/internal/model"
)

// geminiBackend calls the Google Gemini API through the genai SDK.
type geminiBackend struct {
	http *http.Client
}

func (b *geminiBackend) name() string { return string(ProviderGemini) }

func (b *geminiBackend) generate(ctx context.Context, req Request, cfg Config) (*Response, error) {
	if cfg.APIKey == "" {
		return nil, &model.ConfigurationError{Message: "API key required for gemini provider"}
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: b.http,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, &model.ConfigurationError{Message: fmt.Sprintf("creating gemini client: %v", err)}
	}

	temperature := float32(cfg.temperature())
	genCfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(cfg.MaxTokens),
	}
	if req.SystemPrompt != "" {
		genCfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		}
	}

	result, err := client.Models.GenerateContent(ctx, cfg.Model, genai.Text(req.Prompt), genCfg)
	if err != nil {
		return nil, b.transportError(err)
	}

	out := &Response{Content: result.Text(), Model: cfg.Model}
	if result.ModelVersion != "" {
		out.Model = result.ModelVersion
	}
	if u := result.UsageMetadata; u != nil {
		out.Usage = &Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

func (b *geminiBackend) transportError(err error) error {
	terr := &model.TransportError{Provider: b.name(), Err: err}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		terr.StatusCode = apiErr.Code
		terr.Body = apiErr.Message
		return terr
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		terr.StatusCode = apiErrPtr.Code
		terr.Body = apiErrPtr.Message
	}
	return terr
}

func (b *geminiBackend) stream(ctx context.Context, req Request, cfg Config) (*Stream, error) {
	resp, err := b.generate(ctx, req, cfg)
	if err != nil {
		return nil, err
	}
	return newChunkStream(resp.Content), nil
}
