package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/berinia/berinia/pkg/config"
	"github.com/berinia/berinia/pkg/httpclient"
)

// OllamaService talks to a local Ollama instance. No API key required.
type OllamaService struct {
	cfg    *config.LLMConfig
	client *httpclient.Client
	host   string
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Message         ollamaMessage `json:"message"`
	EvalCount       int           `json:"eval_count"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	Error           string        `json:"error,omitempty"`
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

// NewOllamaService builds the Ollama provider from config.
func NewOllamaService(cfg *config.LLMConfig) (*OllamaService, error) {
	host := cfg.Host
	if host == "" {
		host = "http://localhost:11434"
	}

	client := httpclient.New(
		httpclient.WithTimeout(time.Duration(cfg.TimeoutS)*time.Second),
		httpclient.WithMaxRetries(cfg.MaxRetries),
	)

	return &OllamaService{cfg: cfg, client: client, host: host}, nil
}

// Generate performs a non-streaming chat request.
func (s *OllamaService) Generate(ctx context.Context, req Request) (*Response, error) {
	model := modelFor(s.cfg.Models, req.Tier)

	messages := make([]ollamaMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, ollamaMessage{Role: "user", Content: req.Prompt})

	temperature := req.Temperature
	if temperature == 0 {
		temperature = s.cfg.Temperature
	}

	var resp ollamaChatResponse
	err := s.client.PostJSON(ctx, s.host+"/api/chat", nil, ollamaChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
		Options: ollamaOptions{
			Temperature: temperature,
			NumPredict:  req.MaxTokens,
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("ollama error: %s", resp.Error)
	}

	return &Response{
		Text:   resp.Message.Content,
		Model:  model,
		Tokens: resp.EvalCount + resp.PromptEvalCount,
	}, nil
}

// Embed returns the embedding vector for a single text.
func (s *OllamaService) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp ollamaEmbedResponse
	err := s.client.PostJSON(ctx, s.host+"/api/embeddings", nil, ollamaEmbedRequest{
		Model:  s.cfg.EmbeddingModel,
		Prompt: text,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings request failed: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("ollama error: %s", resp.Error)
	}
	return resp.Embedding, nil
}

// EmbedBatch embeds texts one request at a time; Ollama has no batch endpoint.
func (s *OllamaService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := s.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

func (s *OllamaService) Close() error { return nil }
