package llm

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fathomdata/fathom-engine/pkg/config"
)

// GeneratorFactory creates code generators for a requested model. Use
// this interface for dependency injection and testing.
type GeneratorFactory interface {
	ForModel(model string) (CodeGenerator, error)
}

// ClientFactory routes a model name to the provider that serves it.
type ClientFactory struct {
	cfg    config.AIConfig
	logger *zap.Logger
}

// NewClientFactory creates a new factory from the AI configuration.
func NewClientFactory(cfg config.AIConfig, logger *zap.Logger) *ClientFactory {
	return &ClientFactory{cfg: cfg, logger: logger}
}

// ForModel creates a code generator for the given model. Names starting
// with "claude" go to Anthropic; names starting with "gpt" or "o" go to
// OpenAI; anything else falls back to the configured default model.
func (f *ClientFactory) ForModel(model string) (CodeGenerator, error) {
	provider, resolved := resolveProvider(model, f.cfg.DefaultModel)

	switch provider {
	case "anthropic":
		return NewAnthropicClient(&AnthropicConfig{
			Model:  resolved,
			APIKey: f.cfg.AnthropicAPIKey,
		}, f.logger)
	case "openai":
		return NewOpenAIClient(&OpenAIConfig{
			Model:   resolved,
			APIKey:  f.cfg.OpenAIAPIKey,
			BaseURL: f.cfg.OpenAIBaseURL,
		}, f.logger)
	default:
		return nil, fmt.Errorf("no provider serves model %q", resolved)
	}
}

func resolveProvider(model, defaultModel string) (provider, resolved string) {
	resolved = model
	if providerFor(resolved) == "" {
		resolved = defaultModel
	}
	return providerFor(resolved), resolved
}

func providerFor(model string) string {
	switch {
	case strings.HasPrefix(model, "claude"):
		return "anthropic"
	case strings.HasPrefix(model, "gpt"), strings.HasPrefix(model, "o"):
		return "openai"
	default:
		return ""
	}
}
