// Package knowledge provides vector-search backed retrieval and storage of
// text chunks used to enrich LLM prompts. Three backends share one surface:
// qdrant (remote), chromem (embedded), and an offline markdown corpus with
// term-overlap scoring for when no vector store or embedder is available.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/berinia/berinia/pkg/config"
)

// CollectionKnowledge is the system documentation collection every
// deployment carries.
const CollectionKnowledge = "knowledge"

// Hit is one retrieval result.
type Hit struct {
	ID       string
	Score    float64
	Content  string
	Metadata map[string]any
}

// Store is the uniform retrieval surface. All backends expose it
// identically; agents only read.
type Store interface {
	CreateCollection(ctx context.Context, name string, vectorSize int) error
	Add(ctx context.Context, collection, text string, metadata map[string]any) error
	Search(ctx context.Context, collection, query string, limit int) ([]Hit, error)
	Close() error
}

// Embedder turns text into a vector. The llm service satisfies it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// New selects the backend: qdrant when a host is configured, chromem when an
// embedder is available, otherwise the offline markdown corpus. A qdrant or
// chromem failure degrades to offline rather than failing bootstrap.
func New(cfg *config.KnowledgeConfig, embedder Embedder) Store {
	if cfg.QdrantHost != "" && embedder != nil {
		store, err := newQdrantStore(cfg, embedder)
		if err == nil {
			slog.Info("knowledge store ready", "backend", "qdrant", "host", cfg.QdrantHost)
			return store
		}
		slog.Warn("qdrant unavailable, degrading to offline knowledge store", "error", err)
	}

	if embedder != nil && cfg.QdrantHost == "" {
		store, err := newChromemStore(cfg, embedder)
		if err == nil {
			slog.Info("knowledge store ready", "backend", "chromem")
			return store
		}
		slog.Warn("chromem unavailable, degrading to offline knowledge store", "error", err)
	}

	store := newOfflineStore(cfg)
	slog.Info("knowledge store ready", "backend", "offline", "dir", cfg.FallbackDir)
	return store
}

// chunkMetadata stamps the standard chunk fields onto caller metadata.
func chunkMetadata(metadata map[string]any, content string, index, total int) map[string]any {
	out := make(map[string]any, len(metadata)+5)
	for k, v := range metadata {
		out[k] = v
	}
	out["content"] = content
	out["chunk_index"] = index
	out["total_chunks"] = total
	if _, ok := out["created_at"]; !ok {
		out["created_at"] = time.Now().UTC().Format(time.RFC3339)
	}
	return out
}

// SplitChunks cuts a document into word-bounded chunks of roughly chunkWords
// words each.
func SplitChunks(text string, chunkWords int) []string {
	if chunkWords <= 0 {
		chunkWords = 200
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	for start := 0; start < len(words); start += chunkWords {
		end := start + chunkWords
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks
}

// AddDocument chunks a document and adds every chunk with chunk_index and
// total_chunks metadata.
func AddDocument(ctx context.Context, store Store, collection, text string, metadata map[string]any) error {
	chunks := SplitChunks(text, 200)
	for i, chunk := range chunks {
		md := make(map[string]any, len(metadata)+2)
		for k, v := range metadata {
			md[k] = v
		}
		md["chunk_index"] = i
		md["total_chunks"] = len(chunks)
		if err := store.Add(ctx, collection, chunk, md); err != nil {
			return fmt.Errorf("failed to add chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	return nil
}

func newChunkID() string { return uuid.New().String() }
