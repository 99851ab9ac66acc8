package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/berinia/berinia/pkg/config"
	"github.com/berinia/berinia/pkg/httpclient"
)

// OpenAIService talks to the OpenAI chat completions and embeddings APIs.
type OpenAIService struct {
	cfg    *config.LLMConfig
	client *httpclient.Client
	host   string
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *openAIError `json:"error,omitempty"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

type openAIEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *openAIError `json:"error,omitempty"`
}

// NewOpenAIService builds the OpenAI provider from config.
func NewOpenAIService(cfg *config.LLMConfig) (*OpenAIService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for the openai provider")
	}

	host := cfg.Host
	if host == "" {
		host = "https://api.openai.com/v1"
	}

	client := httpclient.New(
		httpclient.WithTimeout(time.Duration(cfg.TimeoutS)*time.Second),
		httpclient.WithMaxRetries(cfg.MaxRetries),
	)

	return &OpenAIService{cfg: cfg, client: client, host: host}, nil
}

func (s *OpenAIService) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + s.cfg.APIKey}
}

// Generate performs a non-streaming completion request.
func (s *OpenAIService) Generate(ctx context.Context, req Request) (*Response, error) {
	model := modelFor(s.cfg.Models, req.Tier)

	temperature := req.Temperature
	if temperature == 0 {
		temperature = s.cfg.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = s.cfg.MaxTokens
	}

	messages := make([]openAIMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: req.Prompt})

	var resp openAIResponse
	err := s.client.PostJSON(ctx, s.host+"/chat/completions", s.headers(), openAIRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("openai API error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	return &Response{
		Text:   resp.Choices[0].Message.Content,
		Model:  model,
		Tokens: resp.Usage.TotalTokens,
	}, nil
}

// Embed returns the embedding vector for a single text.
func (s *OpenAIService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("openai returned an empty embedding")
	}
	return vectors[0], nil
}

// EmbedBatch embeds several texts in one call, preserving input order.
func (s *OpenAIService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp openAIEmbedResponse
	err := s.client.PostJSON(ctx, s.host+"/embeddings", s.headers(), openAIEmbedRequest{
		Model: s.cfg.EmbeddingModel,
		Input: texts,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings request failed: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("openai API error: %s", resp.Error.Message)
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index >= 0 && item.Index < len(vectors) {
			vectors[item.Index] = item.Embedding
		}
	}
	return vectors, nil
}

func (s *OpenAIService) Close() error { return nil }
