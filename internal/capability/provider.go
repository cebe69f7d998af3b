package capability

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Provider bundles the upstream-model capabilities one backend offers.
// Any field may be nil when the backend cannot serve it; callers degrade
// accordingly. A nil Generator means no live upstream exists, so runs
// using the built-in sampler report themselves degraded.
type Provider struct {
	Name      string
	Generator AgentGenerator
	Evaluator PromptEvaluator
	Splitter  *LLMClauseSplitter
}

// NewProvider constructs the capability set for the named backend.
// Supported names are "anthropic", "gemini", and "none". The "none"
// backend runs fully offline on the fallback generator.
func NewProvider(ctx context.Context, name, apiKey, model string, logger *zap.Logger) (*Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch name {
	case "anthropic":
		cfg := DefaultAnthropicConfig(apiKey)
		if model != "" {
			cfg.Model = model
		}
		client := NewAnthropicClientWithConfig(cfg)
		if apiKey == "" {
			return nil, fmt.Errorf("%w: anthropic provider requires an API key", ErrUnavailable)
		}
		return &Provider{
			Name:      name,
			Generator: NewLLMAgentGenerator(client, logger),
			Evaluator: NewLLMEvaluator(client, logger),
			Splitter:  NewLLMClauseSplitter(client),
		}, nil

	case "gemini":
		client, err := NewGeminiClient(ctx, apiKey, model)
		if err != nil {
			return nil, err
		}
		return &Provider{
			Name:      name,
			Generator: NewLLMAgentGenerator(client, logger),
			Evaluator: NewLLMEvaluator(client, logger),
			Splitter:  NewLLMClauseSplitter(client),
		}, nil

	case "none", "":
		logger.Info("no upstream provider configured, experiments will use the offline fallback sampler")
		return &Provider{Name: "none"}, nil

	default:
		return nil, fmt.Errorf("unknown capability provider %q", name)
	}
}
