// Package search provides embedding storage and vector similarity
// queries for feedback submissions.
package search

import "context"

// Record is a stored embedding keyed by submission reference.
type Record struct {
	reference string
	document  string
	vector    []float64
}

// NewRecord creates a Record.
func NewRecord(reference, document string, vector []float64) Record {
	r := Record{reference: reference, document: document}
	r.vector = make([]float64, len(vector))
	copy(r.vector, vector)
	return r
}

// Reference returns the submission reference.
func (r Record) Reference() string { return r.reference }

// Document returns the text that was embedded.
func (r Record) Document() string { return r.document }

// Vector returns the embedding vector.
func (r Record) Vector() []float64 {
	out := make([]float64, len(r.vector))
	copy(out, r.vector)
	return out
}

// Match is a similarity query result.
type Match struct {
	reference string
	document  string
	distance  float64
}

// NewMatch creates a Match.
func NewMatch(reference, document string, distance float64) Match {
	return Match{reference: reference, document: document, distance: distance}
}

// Reference returns the matched submission reference.
func (m Match) Reference() string { return m.reference }

// Document returns the matched document text.
func (m Match) Document() string { return m.document }

// Distance returns the L2 distance from the query vector.
func (m Match) Distance() float64 { return m.distance }

// VectorStore persists embeddings and answers similarity queries.
type VectorStore interface {
	// Upsert stores or replaces the embedding for a reference.
	Upsert(ctx context.Context, reference, document string, vector []float64) error

	// Get retrieves the stored records for the given references.
	// References without a stored embedding are omitted.
	Get(ctx context.Context, references []string) ([]Record, error)

	// Query returns up to nResults records closest to vector, ordered by
	// ascending L2 distance.
	Query(ctx context.Context, vector []float64, nResults int) ([]Match, error)
}
