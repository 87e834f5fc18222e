package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lostworld/plateau/infrastructure/provider"
)

// EmbeddingStore generates embeddings through the local back-end and
// persists them in the vector store. Storing is idempotent; re-embedding
// an existing reference just refreshes its vector.
type EmbeddingStore struct {
	embedder provider.Embedder
	vectors  VectorStore
	model    string
	logger   *slog.Logger
}

// EmbeddingStoreOption is a functional option for EmbeddingStore.
type EmbeddingStoreOption func(*EmbeddingStore)

// WithEmbeddingModel overrides the embedding model.
func WithEmbeddingModel(model string) EmbeddingStoreOption {
	return func(s *EmbeddingStore) { s.model = model }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) EmbeddingStoreOption {
	return func(s *EmbeddingStore) { s.logger = logger }
}

// NewEmbeddingStore creates a new EmbeddingStore.
func NewEmbeddingStore(embedder provider.Embedder, vectors VectorStore, opts ...EmbeddingStoreOption) *EmbeddingStore {
	s := &EmbeddingStore{
		embedder: embedder,
		vectors:  vectors,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store generates an embedding for text and persists it under reference.
func (s *EmbeddingStore) Store(ctx context.Context, reference, text string) error {
	req := provider.NewEmbeddingRequest([]string{text})
	if s.model != "" {
		req = req.WithModel(s.model)
	}
	resp, err := s.embedder.Embed(ctx, req)
	if err != nil {
		return fmt.Errorf("generate embedding for %s: %w", reference, err)
	}
	embeddings := resp.Embeddings()
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return fmt.Errorf("generate embedding for %s: empty vector", reference)
	}
	if err := s.vectors.Upsert(ctx, reference, text, embeddings[0]); err != nil {
		return err
	}
	s.logger.Debug("embedding stored", "reference", reference, "dim", len(embeddings[0]))
	return nil
}

// Get retrieves the stored records for the given references.
func (s *EmbeddingStore) Get(ctx context.Context, references []string) ([]Record, error) {
	return s.vectors.Get(ctx, references)
}

// Query returns up to nResults stored records closest to vector.
func (s *EmbeddingStore) Query(ctx context.Context, vector []float64, nResults int) ([]Match, error) {
	return s.vectors.Query(ctx, vector, nResults)
}
