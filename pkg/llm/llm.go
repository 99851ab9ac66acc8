// Package llm exposes a uniform call surface to an LLM back-end across three
// complexity tiers. Callers pick a tier; the provider maps it to a model.
package llm

import (
	"context"
	"fmt"

	"github.com/berinia/berinia/pkg/config"
)

// Tier selects the model complexity for a request.
type Tier string

const (
	TierFast     Tier = "fast"
	TierStandard Tier = "standard"
	TierDeep     Tier = "deep"
)

// Request is a single completion request.
type Request struct {
	System      string
	Prompt      string
	Tier        Tier
	Temperature float64
	MaxTokens   int
}

// Response carries the completion text and accounting data.
type Response struct {
	Text   string
	Model  string
	Tokens int
}

// Service is the uniform LLM call surface. Implementations are safe for
// concurrent use.
type Service interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Close() error
}

// New builds the configured provider.
func New(cfg *config.LLMConfig) (Service, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIService(cfg)
	case "anthropic":
		return NewAnthropicService(cfg)
	case "ollama":
		return NewOllamaService(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s (supported: openai, anthropic, ollama)", cfg.Provider)
	}
}

// modelFor resolves a tier to a configured model name.
func modelFor(models config.TierModels, tier Tier) string {
	switch tier {
	case TierFast:
		return models.Fast
	case TierDeep:
		return models.Deep
	default:
		return models.Standard
	}
}
