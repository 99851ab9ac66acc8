package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/qdrant/go-client/qdrant"

	"github.com/berinia/berinia/pkg/config"
)

// qdrantStore backs the knowledge surface with a remote qdrant instance over
// gRPC. Embeddings are computed by the injected embedder before every upsert
// and search.
type qdrantStore struct {
	client     *qdrant.Client
	embedder   Embedder
	minScore   float64
	vectorSize int
}

func newQdrantStore(cfg *config.KnowledgeConfig, embedder Embedder) (*qdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.QdrantHost,
		Port:   cfg.QdrantPort,
		APIKey: cfg.QdrantKey,
		UseTLS: cfg.QdrantKey != "",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	// A cheap liveness probe so bootstrap can degrade to the offline store
	// instead of discovering a dead host on first search.
	probeCtx, cancel := context.WithTimeout(context.Background(), cfg.ProbeTimeout())
	defer cancel()
	if _, err := client.HealthCheck(probeCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("qdrant health check failed: %w", err)
	}

	return &qdrantStore{
		client:     client,
		embedder:   embedder,
		minScore:   cfg.MinScore,
		vectorSize: cfg.VectorSize,
	}, nil
}

func (s *qdrantStore) CreateCollection(ctx context.Context, name string, vectorSize int) error {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	if exists {
		return nil
	}

	if vectorSize <= 0 {
		vectorSize = s.vectorSize
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(vectorSize),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	return nil
}

func (s *qdrantStore) Add(ctx context.Context, collection, text string, metadata map[string]any) error {
	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to embed text: %w", err)
	}

	if err := s.CreateCollection(ctx, collection, len(vector)); err != nil {
		return err
	}

	index, _ := metadata["chunk_index"].(int)
	total, _ := metadata["total_chunks"].(int)
	payload := make(map[string]*qdrant.Value)
	for key, value := range chunkMetadata(metadata, text, index, total) {
		val, err := qdrant.NewValue(value)
		if err != nil {
			return fmt.Errorf("failed to convert metadata value %s: %w", key, err)
		}
		payload[key] = val
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewID(newChunkID()),
			Vectors: qdrant.NewVectors(vector...),
			Payload: payload,
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert point: %w", err)
	}
	return nil
}

func (s *qdrantStore) Search(ctx context.Context, collection, query string, limit int) ([]Hit, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection %s: %w", collection, err)
	}
	if !exists {
		return nil, nil
	}

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQueryDense(vector),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search collection %s: %w", collection, err)
	}

	var hits []Hit
	for _, point := range points {
		score := float64(point.Score)
		if score < s.minScore {
			continue
		}
		hits = append(hits, Hit{
			ID:       pointID(point.Id),
			Score:    score,
			Content:  pointContent(point.Payload),
			Metadata: pointMetadata(point.Payload),
		})
	}
	return hits, nil
}

func (s *qdrantStore) Close() error {
	return s.client.Close()
}

func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	switch v := id.PointIdOptions.(type) {
	case *qdrant.PointId_Uuid:
		return v.Uuid
	case *qdrant.PointId_Num:
		return fmt.Sprintf("%d", v.Num)
	}
	return ""
}

func pointContent(payload map[string]*qdrant.Value) string {
	if payload == nil {
		return ""
	}
	return payload["content"].GetStringValue()
}

func pointMetadata(payload map[string]*qdrant.Value) map[string]any {
	metadata := make(map[string]any, len(payload))
	for key, value := range payload {
		switch v := value.Kind.(type) {
		case *qdrant.Value_StringValue:
			metadata[key] = v.StringValue
		case *qdrant.Value_IntegerValue:
			metadata[key] = v.IntegerValue
		case *qdrant.Value_DoubleValue:
			metadata[key] = v.DoubleValue
		case *qdrant.Value_BoolValue:
			metadata[key] = v.BoolValue
		}
	}
	return metadata
}
