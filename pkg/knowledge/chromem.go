package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/berinia/berinia/pkg/config"
)

// chromemStore is the embedded vector backend: pure Go, all vectors in RAM,
// optional gob persistence. Used when no qdrant host is configured but an
// embedder is available.
type chromemStore struct {
	db       *chromem.DB
	embedder Embedder
	minScore float64

	mu          sync.Mutex
	collections map[string]*chromem.Collection
}

func newChromemStore(cfg *config.KnowledgeConfig, embedder Embedder) (*chromemStore, error) {
	var db *chromem.DB
	if cfg.PersistPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.PersistPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create persist directory: %w", err)
		}
		var err error
		db, err = chromem.NewPersistentDB(cfg.PersistPath, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open vector database: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	return &chromemStore{
		db:          db,
		embedder:    embedder,
		minScore:    cfg.MinScore,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

// collection gets or creates a collection. Vectors are pre-computed by the
// embedder, so the chromem embedding func must never fire.
func (s *chromemStore) collection(name string) (*chromem.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if col, ok := s.collections[name]; ok {
		return col, nil
	}
	col, err := s.db.GetOrCreateCollection(name, nil, func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("vectors must be pre-computed")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get collection %s: %w", name, err)
	}
	s.collections[name] = col
	return col, nil
}

func (s *chromemStore) CreateCollection(ctx context.Context, name string, vectorSize int) error {
	_, err := s.collection(name)
	return err
}

func (s *chromemStore) Add(ctx context.Context, collection, text string, metadata map[string]any) error {
	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to embed text: %w", err)
	}

	col, err := s.collection(collection)
	if err != nil {
		return err
	}

	index, _ := metadata["chunk_index"].(int)
	total, _ := metadata["total_chunks"].(int)
	strMetadata := make(map[string]string, len(metadata)+4)
	for key, value := range chunkMetadata(metadata, text, index, total) {
		if key == "content" {
			continue
		}
		strMetadata[key] = fmt.Sprint(value)
	}

	doc := chromem.Document{
		ID:        newChunkID(),
		Content:   text,
		Metadata:  strMetadata,
		Embedding: vector,
	}
	if err := col.AddDocuments(ctx, []chromem.Document{doc}, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add document: %w", err)
	}
	return nil
}

func (s *chromemStore) Search(ctx context.Context, collection, query string, limit int) ([]Hit, error) {
	col, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	// chromem rejects a limit above the collection size.
	if count := col.Count(); count < limit {
		limit = count
	}
	if limit == 0 {
		return nil, nil
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := col.QueryEmbedding(ctx, vector, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	var hits []Hit
	for _, r := range results {
		score := float64(r.Similarity)
		if score < s.minScore {
			continue
		}
		metadata := make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			metadata[k] = v
		}
		hits = append(hits, Hit{
			ID:       r.ID,
			Score:    score,
			Content:  r.Content,
			Metadata: metadata,
		})
	}
	return hits, nil
}

func (s *chromemStore) Close() error { return nil }
