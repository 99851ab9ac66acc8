package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berinia/berinia/pkg/config"
)

func openAITestConfig(host string) *config.LLMConfig {
	return &config.LLMConfig{
		Provider: "openai",
		APIKey:   "sk-test",
		Host:     host,
		Models: config.TierModels{
			Fast:     "gpt-4o-mini",
			Standard: "gpt-4o",
			Deep:     "gpt-4o",
		},
		EmbeddingModel: "text-embedding-3-small",
		Temperature:    0.7,
		MaxTokens:      128,
		TimeoutS:       5,
		MaxRetries:     1,
	}
}

func TestOpenAIGenerate(t *testing.T) {
	var gotAuth string
	var gotReq openAIRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "bonjour"}},
			},
			"usage": map[string]any{"total_tokens": 12},
		})
	}))
	defer server.Close()

	svc, err := NewOpenAIService(openAITestConfig(server.URL))
	require.NoError(t, err)

	resp, err := svc.Generate(context.Background(), Request{
		System: "tu es utile",
		Prompt: "dis bonjour",
		Tier:   TierFast,
	})
	require.NoError(t, err)

	assert.Equal(t, "bonjour", resp.Text)
	assert.Equal(t, "gpt-4o-mini", resp.Model)
	assert.Equal(t, 12, resp.Tokens)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "gpt-4o-mini", gotReq.Model)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
}

func TestOpenAIGenerateAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "invalid model", "type": "invalid_request_error"},
		})
	}))
	defer server.Close()

	svc, err := NewOpenAIService(openAITestConfig(server.URL))
	require.NoError(t, err)

	_, err = svc.Generate(context.Background(), Request{Prompt: "x", Tier: TierStandard})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid model")
}

func TestOpenAIEmbedBatchPreservesOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)
		// Out-of-order response data, indexed.
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float32{0.2}},
				{"index": 0, "embedding": []float32{0.1}},
			},
		})
	}))
	defer server.Close()

	svc, err := NewOpenAIService(openAITestConfig(server.URL))
	require.NoError(t, err)

	vectors, err := svc.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1}, vectors[0])
	assert.Equal(t, []float32{0.2}, vectors[1])
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(&config.LLMConfig{Provider: "bard"})
	assert.Error(t, err)
}

func TestModelFor(t *testing.T) {
	models := config.TierModels{Fast: "f", Standard: "s", Deep: "d"}
	assert.Equal(t, "f", modelFor(models, TierFast))
	assert.Equal(t, "s", modelFor(models, TierStandard))
	assert.Equal(t, "d", modelFor(models, TierDeep))
	assert.Equal(t, "s", modelFor(models, Tier("")))
}
