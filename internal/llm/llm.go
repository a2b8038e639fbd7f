// Package llm is the gateway to the language-model backends. It hides the
// request and response shapes of each backend behind one Request/Response
// pair.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pavelanni/k5assist/internal/model"
)

// Provider names a backend.
type Provider string

const (
	// ProviderLocal is a local Ollama-style inference server.
	ProviderLocal Provider = "ollama"
	// ProviderHosted is an OpenAI-compatible chat-completion API.
	ProviderHosted Provider = "api"
	// ProviderGemini is the Google Gemini API.
	ProviderGemini Provider = "gemini"
)

// ParseProvider normalizes a provider name. Unknown names wrap
// model.ErrUnsupportedProvider.
func ParseProvider(name string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ollama", "local":
		return ProviderLocal, nil
	case "api", "hosted", "openai":
		return ProviderHosted, nil
	case "gemini", "google":
		return ProviderGemini, nil
	}
	return "", fmt.Errorf("%w: %q", model.ErrUnsupportedProvider, name)
}

// Config selects and tunes a backend. Zero fields mean "unset" when one
// Config is merged over another; Temperature is a pointer so that an
// explicit 0 still overrides.
type Config struct {
	Provider    Provider      `json:"provider,omitempty"`
	Model       string        `json:"model,omitempty"`
	BaseURL     string        `json:"baseUrl,omitempty"`
	APIKey      string        `json:"-"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"maxTokens,omitempty"`
	Timeout     time.Duration `json:"-"`
}

// DefaultConfig returns the compiled-in defaults.
func DefaultConfig() Config {
	return Config{
		Provider:    ProviderLocal,
		Model:       "phi3:mini",
		Temperature: Temperature(0.7),
		MaxTokens:   2000,
		Timeout:     120 * time.Second,
	}
}

// Merge returns c with every non-zero field of over applied on top.
func (c Config) Merge(over Config) Config {
	if over.Provider != "" {
		c.Provider = over.Provider
	}
	if over.Model != "" {
		c.Model = over.Model
	}
	if over.BaseURL != "" {
		c.BaseURL = over.BaseURL
	}
	if over.APIKey != "" {
		c.APIKey = over.APIKey
	}
	if over.Temperature != nil {
		c.Temperature = Temperature(*over.Temperature)
	}
	if over.MaxTokens != 0 {
		c.MaxTokens = over.MaxTokens
	}
	if over.Timeout != 0 {
		c.Timeout = over.Timeout
	}
	return c
}

// Temperature returns a pointer to t for use in Config.
func Temperature(t float64) *float64 { return &t }

// temperature is the effective sampling temperature.
func (c Config) temperature() float64 {
	if c.Temperature == nil {
		return *DefaultConfig().Temperature
	}
	return *c.Temperature
}

func (c Config) validate() error {
	if t := c.temperature(); t < 0 || t > 2 {
		return model.NewValidationError("temperature", fmt.Sprintf("must be within [0, 2], got %g", t))
	}
	if c.MaxTokens < 0 {
		return model.NewValidationError("maxTokens", fmt.Sprintf("must not be negative, got %d", c.MaxTokens))
	}
	return nil
}

// Request is one generation call.
type Request struct {
	Prompt       string
	SystemPrompt string
	// Config, when set, is merged over the client configuration for this
	// call only.
	Config *Config
}

// Usage holds token counters reported by a backend.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Response is the untyped text produced by a backend.
type Response struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Usage   *Usage `json:"usage,omitempty"`
}

// backend is implemented by each provider variant.
type backend interface {
	name() string
	generate(ctx context.Context, req Request, cfg Config) (*Response, error)
	stream(ctx context.Context, req Request, cfg Config) (*Stream, error)
}

// Client dispatches requests to the configured backend.
type Client struct {
	config     Config
	httpClient *http.Client
}

// New creates a Client whose configuration is cfg merged over the defaults.
func New(cfg Config) *Client {
	return &Client{
		config: DefaultConfig().Merge(cfg),
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Config returns a copy of the client configuration.
func (c *Client) Config() Config {
	return c.config
}

// UpdateConfig merges over into the client configuration. It must not be
// called while requests are in flight on the same Client.
func (c *Client) UpdateConfig(over Config) {
	c.config = c.config.Merge(over)
}

// GenerateCompletion runs a single non-streaming generation.
func (c *Client) GenerateCompletion(ctx context.Context, req Request) (*Response, error) {
	cfg, b, err := c.resolve(req)
	if err != nil {
		return nil, err
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	slog.Debug("LLM request", "provider", b.name(), "model", cfg.Model, "prompt_chars", len(req.Prompt))
	start := time.Now()
	resp, err := b.generate(ctx, req, cfg)
	if err != nil {
		return nil, err
	}
	slog.Debug("LLM response", "provider", b.name(), "model", resp.Model, "elapsed", time.Since(start), "raw", resp.Content)
	return resp, nil
}

// StreamCompletion starts a streaming generation. The caller must Close the
// returned Stream. Backends without native streaming yield the full
// completion as a single chunk.
func (c *Client) StreamCompletion(ctx context.Context, req Request) (*Stream, error) {
	cfg, b, err := c.resolve(req)
	if err != nil {
		return nil, err
	}

	cancel := context.CancelFunc(func() {})
	if cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
	}

	slog.Debug("LLM stream request", "provider", b.name(), "model", cfg.Model)
	s, err := b.stream(ctx, req, cfg)
	if err != nil {
		cancel()
		return nil, err
	}
	s.cancel = cancel
	return s, nil
}

func (c *Client) resolve(req Request) (Config, backend, error) {
	cfg := c.config
	if req.Config != nil {
		cfg = cfg.Merge(*req.Config)
	}
	if err := cfg.validate(); err != nil {
		return cfg, nil, err
	}
	b, err := c.backendFor(cfg.Provider)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, b, nil
}

func (c *Client) backendFor(p Provider) (backend, error) {
	provider, err := ParseProvider(string(p))
	if err != nil {
		return nil, err
	}
	switch provider {
	case ProviderLocal:
		return &localBackend{http: c.httpClient}, nil
	case ProviderHosted:
		return &hostedBackend{http: c.httpClient}, nil
	default:
		return &geminiBackend{http: c.httpClient}, nil
	}
}

// joinPrompt puts the system prompt first, separated by a blank line.
func joinPrompt(req Request) string {
	if req.SystemPrompt == "" {
		return req.Prompt
	}
	return req.SystemPrompt + "\n\n" + req.Prompt
}
