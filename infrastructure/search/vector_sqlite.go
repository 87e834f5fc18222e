package search

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/lostworld/plateau/infrastructure/persistence"
	"github.com/lostworld/plateau/internal/database"
	"gorm.io/gorm/clause"
)

// SQLiteVectorStore implements VectorStore on the relational database.
// Vectors are stored as JSON; distance computation runs in-memory, which
// is fine at this system's scale (tens to hundreds of submissions).
type SQLiteVectorStore struct {
	db database.Database
}

// Compile-time interface check.
var _ VectorStore = (*SQLiteVectorStore)(nil)

// NewSQLiteVectorStore creates a new SQLiteVectorStore.
func NewSQLiteVectorStore(db database.Database) *SQLiteVectorStore {
	return &SQLiteVectorStore{db: db}
}

// Upsert stores or replaces the embedding for a reference.
func (s *SQLiteVectorStore) Upsert(ctx context.Context, reference, document string, vector []float64) error {
	model := persistence.EmbeddingModel{
		Reference: reference,
		Document:  document,
		Embedding: persistence.Float64Slice(vector),
		CreatedAt: time.Now().UTC(),
	}
	err := s.db.Session(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "reference"}},
		DoUpdates: clause.AssignmentColumns([]string{"document", "embedding"}),
	}).Create(&model).Error
	if err != nil {
		return fmt.Errorf("upsert embedding %s: %w", reference, err)
	}
	return nil
}

// Get retrieves the stored records for the given references.
func (s *SQLiteVectorStore) Get(ctx context.Context, references []string) ([]Record, error) {
	if len(references) == 0 {
		return nil, nil
	}
	var models []persistence.EmbeddingModel
	err := s.db.Session(ctx).
		Where("reference IN ?", references).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("get embeddings: %w", err)
	}

	// Preserve the caller's reference order.
	byRef := make(map[string]persistence.EmbeddingModel, len(models))
	for _, m := range models {
		byRef[m.Reference] = m
	}
	records := make([]Record, 0, len(models))
	for _, ref := range references {
		m, ok := byRef[ref]
		if !ok {
			continue
		}
		records = append(records, NewRecord(m.Reference, m.Document, m.Embedding))
	}
	return records, nil
}

// Query returns up to nResults records closest to vector by L2 distance.
func (s *SQLiteVectorStore) Query(ctx context.Context, vector []float64, nResults int) ([]Match, error) {
	if len(vector) == 0 || nResults <= 0 {
		return nil, nil
	}
	var models []persistence.EmbeddingModel
	if err := s.db.Session(ctx).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}

	matches := make([]Match, 0, len(models))
	for _, m := range models {
		matches = append(matches, NewMatch(m.Reference, m.Document, l2Distance(vector, m.Embedding)))
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance() < matches[j].Distance()
	})
	if len(matches) > nResults {
		matches = matches[:nResults]
	}
	return matches, nil
}

// l2Distance computes the Euclidean distance between two vectors.
// Mismatched dimensions yield +Inf so such pairs never cluster.
func l2Distance(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
