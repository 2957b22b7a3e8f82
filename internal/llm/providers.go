// Package llm builds the language model a run talks to.
package llm

import (
	"errors"
	"fmt"

	"github.com/rahul/stepwise/pkg/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrNoProvider is returned when the config enables no provider.
var ErrNoProvider = errors.New("no enabled provider found in config")

const openRouterURL = "https://openrouter.ai/api/v1"

// FromConfig builds the default provider's model, throttled when the
// provider sets requests_per_minute.
func FromConfig(cfg *config.Config) (llms.Model, string, error) {
	name, pCfg := cfg.GetDefaultProvider()
	if name == "" {
		return nil, "", ErrNoProvider
	}
	model, err := New(name, pCfg)
	if err != nil {
		return nil, name, err
	}
	if pCfg.RequestsPerMinute > 0 {
		model = NewRateLimited(model, pCfg.RequestsPerMinute)
	}
	return model, name, nil
}

// NativeToolCalls reports whether the provider's model accepts tool
// definitions and tool call records. ollama in langchaingo takes text parts
// only, so its runs call tools with inline <tool_call> blocks.
func NativeToolCalls(provider string) bool {
	return provider != "ollama"
}

// New constructs a model for one provider entry.
func New(name string, p config.ProviderConfig) (llms.Model, error) {
	switch name {
	case "openai", "openrouter":
		opts := []openai.Option{
			openai.WithToken(p.APIKey),
			openai.WithModel(p.Model),
		}
		baseURL := p.BaseURL
		if baseURL == "" && name == "openrouter" {
			baseURL = openRouterURL
		}
		if baseURL != "" {
			opts = append(opts, openai.WithBaseURL(baseURL))
		}
		return openai.New(opts...)

	case "anthropic":
		opts := []anthropic.Option{
			anthropic.WithToken(p.APIKey),
			anthropic.WithModel(p.Model),
		}
		if p.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(p.BaseURL))
		}
		return anthropic.New(opts...)

	case "ollama":
		opts := []ollama.Option{ollama.WithModel(p.Model)}
		if p.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(p.BaseURL))
		}
		return ollama.New(opts...)

	default:
		return nil, fmt.Errorf("provider %s not supported", name)
	}
}
