package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pavelanni/k5assist/internal/model"
)

const defaultLocalURL = "http://localhost:11434"

// maxErrorBody caps how much of a failed response body ends up in an error.
const maxErrorBody = 4 << 10

// localBackend talks to an Ollama-compatible /api/generate endpoint.
type localBackend struct {
	http *http.Client
}

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaGenerateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func (b *localBackend) name() string { return string(ProviderLocal) }

func (b *localBackend) generate(ctx context.Context, req Request, cfg Config) (*Response, error) {
	resp, err := b.post(ctx, req, cfg, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &model.TransportError{Provider: b.name(), Err: fmt.Errorf("decoding response: %w", err)}
	}

	modelName := out.Model
	if modelName == "" {
		modelName = cfg.Model
	}
	return &Response{
		Content: out.Response,
		Model:   modelName,
		Usage: &Usage{
			PromptTokens:     out.PromptEvalCount,
			CompletionTokens: out.EvalCount,
			TotalTokens:      out.PromptEvalCount + out.EvalCount,
		},
	}, nil
}

func (b *localBackend) stream(ctx context.Context, req Request, cfg Config) (*Stream, error) {
	resp, err := b.post(ctx, req, cfg, true)
	if err != nil {
		return nil, err
	}
	return newLineStream(b.name(), resp.Body), nil
}

// post sends the generate call and returns the response only for a 200
// status. The caller owns the body.
func (b *localBackend) post(ctx context.Context, req Request, cfg Config, stream bool) (*http.Response, error) {
	payload := ollamaGenerateRequest{
		Model:  cfg.Model,
		Prompt: joinPrompt(req),
		Stream: stream,
		Options: ollamaOptions{
			Temperature: Temperature(cfg.temperature()),
			NumPredict:  cfg.MaxTokens,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultLocalURL
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(baseURL, "/")+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(httpReq)
	if err != nil {
		return nil, &model.TransportError{Provider: b.name(), Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &model.TransportError{
			Provider:   b.name(),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(text)),
		}
	}
	return resp, nil
}
