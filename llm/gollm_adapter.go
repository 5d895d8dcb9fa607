package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/teilomillet/gollm"
)

// GollmAdapter wraps a gollm.LLM instance and implements Backend.
type GollmAdapter struct {
	provider string
	llm      gollm.LLM
	model    string
}

// GollmAdapterOption configures a GollmAdapter.
type GollmAdapterOption func(*gollmAdapterConfig)

type gollmAdapterConfig struct {
	model       string
	maxTokens   int
	temperature float64
	extraOpts   []gollm.ConfigOption
}

// WithModel sets the default model for the adapter.
func WithModel(model string) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.model = model
	}
}

// WithMaxTokens sets the default max tokens.
func WithMaxTokens(n int) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.maxTokens = n
	}
}

// WithTemperature sets the default temperature.
func WithTemperature(t float64) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.temperature = t
	}
}

// WithGollmOptions adds extra gollm configuration options.
func WithGollmOptions(opts ...gollm.ConfigOption) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.extraOpts = append(c.extraOpts, opts...)
	}
}

// NewGollmAdapter creates a new GollmAdapter for the given provider.
// If apiKey is empty, gollm reads it from the provider's environment variable.
func NewGollmAdapter(provider string, apiKey string, opts ...GollmAdapterOption) (*GollmAdapter, error) {
	cfg := &gollmAdapterConfig{
		maxTokens:   512,
		temperature: 0.8,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	model := cfg.model
	if model == "" {
		model = DefaultModel(provider)
	}
	if model == "" {
		return nil, configError("no model configured for provider %q", provider)
	}

	gollmOpts := []gollm.ConfigOption{
		gollm.SetProvider(provider),
		gollm.SetModel(model),
		gollm.SetMaxTokens(cfg.maxTokens),
		gollm.SetTemperature(cfg.temperature),
		gollm.SetMaxRetries(0), // Client.Complete retries.
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if apiKey != "" {
		gollmOpts = append(gollmOpts, gollm.SetAPIKey(apiKey))
	}
	gollmOpts = append(gollmOpts, cfg.extraOpts...)

	llm, err := gollm.NewLLM(gollmOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gollm LLM for provider %s: %w", provider, err)
	}

	return &GollmAdapter{
		provider: provider,
		llm:      llm,
		model:    model,
	}, nil
}

// NewGollmAdapterFromLLM wraps an existing gollm.LLM instance.
func NewGollmAdapterFromLLM(provider string, llm gollm.LLM) *GollmAdapter {
	return &GollmAdapter{
		provider: provider,
		llm:      llm,
	}
}

// Name returns the provider identifier.
func (a *GollmAdapter) Name() string {
	return a.provider
}

// Complete sends the raw prompt and returns the generated text.
func (a *GollmAdapter) Complete(ctx context.Context, req Request) (*Completion, error) {
	a.applyRequestOptions(req)

	text, err := a.llm.Generate(ctx, gollm.NewPrompt(req.Prompt))
	if err != nil {
		return nil, a.translateError(err)
	}
	return a.buildCompletion(req, text), nil
}

// applyRequestOptions applies request-level parameters to the gollm LLM.
func (a *GollmAdapter) applyRequestOptions(req Request) {
	if req.Model != "" {
		a.llm.SetOption("model", req.Model)
	}
	a.llm.SetOption("temperature", req.Temperature)
	if req.MaxTokens > 0 {
		a.llm.SetOption("max_tokens", req.MaxTokens)
	}
}

func (a *GollmAdapter) buildCompletion(req Request, text string) *Completion {
	model := req.Model
	if model == "" {
		model = a.model
	}
	// gollm doesn't expose usage; estimate from text length.
	in := estimateTokens(req.Prompt)
	out := len(text) / 4
	return &Completion{
		ID:           "cmpl_" + uuid.New().String()[:8],
		Text:         text,
		Model:        model,
		Provider:     a.provider,
		FinishReason: FinishStop,
		Usage: Usage{
			InputTokens:  in,
			OutputTokens: out,
			TotalTokens:  in + out,
		},
	}
}

// errorRules map fragments of gollm error text to a classification. gollm
// flattens provider responses into strings, so matching text is all there
// is. The first matching rule wins.
var errorRules = []struct {
	kind    ErrorKind
	status  int
	needles []string
}{
	{KindAuthentication, 401, []string{"401", "unauthorized", "invalid api key"}},
	{KindAccessDenied, 403, []string{"403", "forbidden"}},
	{KindNotFound, 404, []string{"404", "not found"}},
	{KindRateLimit, 429, []string{"429", "rate limit"}},
	{KindContextLength, 413, []string{"context length", "too many tokens"}},
	{KindServer, 500, []string{"500", "502", "503", "internal server", "overloaded"}},
	{KindTimeout, 0, []string{"timeout", "timed out"}},
	{KindContentFilter, 0, []string{"content filter", "safety"}},
}

// translateError classifies a gollm error.
func (a *GollmAdapter) translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindCanceled, Provider: a.provider, Err: err}
	}
	msg := strings.ToLower(err.Error())
	for _, rule := range errorRules {
		for _, needle := range rule.needles {
			if strings.Contains(msg, needle) {
				return &Error{Kind: rule.kind, Provider: a.provider, StatusCode: rule.status, Err: err}
			}
		}
	}
	return &Error{Kind: KindUnknown, Provider: a.provider, Err: err}
}

func estimateTokens(prompt string) int {
	if n := len(prompt) / 4; n > 0 {
		return n
	}
	return 1
}
