package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/berinia/berinia/pkg/config"
	"github.com/berinia/berinia/pkg/httpclient"
)

const anthropicVersion = "2023-06-01"

// AnthropicService talks to the Anthropic messages API. Anthropic has no
// embeddings endpoint, so knowledge retrieval falls back to the offline
// store when this provider is selected without a separate embedder.
type AnthropicService struct {
	cfg    *config.LLMConfig
	client *httpclient.Client
	host   string
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewAnthropicService builds the Anthropic provider from config.
func NewAnthropicService(cfg *config.LLMConfig) (*AnthropicService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for the anthropic provider")
	}

	host := cfg.Host
	if host == "" {
		host = "https://api.anthropic.com/v1"
	}

	client := httpclient.New(
		httpclient.WithTimeout(time.Duration(cfg.TimeoutS)*time.Second),
		httpclient.WithMaxRetries(cfg.MaxRetries),
	)

	return &AnthropicService{cfg: cfg, client: client, host: host}, nil
}

// Generate performs a non-streaming messages request.
func (s *AnthropicService) Generate(ctx context.Context, req Request) (*Response, error) {
	model := modelFor(s.cfg.Models, req.Tier)

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = s.cfg.MaxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = s.cfg.Temperature
	}

	var resp anthropicResponse
	err := s.client.PostJSON(ctx, s.host+"/messages", map[string]string{
		"x-api-key":         s.cfg.APIKey,
		"anthropic-version": anthropicVersion,
	}, anthropicRequest{
		Model:       model,
		System:      req.System,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("anthropic API error: %s", resp.Error.Message)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &Response{
		Text:   text.String(),
		Model:  model,
		Tokens: resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}, nil
}

// Embed is unsupported; callers degrade to the offline knowledge store.
func (s *AnthropicService) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("anthropic provider has no embeddings endpoint")
}

// EmbedBatch is unsupported; callers degrade to the offline knowledge store.
func (s *AnthropicService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("anthropic provider has no embeddings endpoint")
}

func (s *AnthropicService) Close() error { return nil }
