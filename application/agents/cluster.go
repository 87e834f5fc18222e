package agents

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/lostworld/plateau/domain/agent"
	"github.com/lostworld/plateau/domain/change"
	"github.com/lostworld/plateau/infrastructure/search"
)

// Cluster defaults.
const (
	// DefaultDistanceThreshold is the maximum L2 distance for two
	// submissions to land in the same cluster.
	DefaultDistanceThreshold = 1.0

	// DefaultMaxQueryResults caps neighbour queries per seed.
	DefaultMaxQueryResults = 50
)

// Clusterer groups pending submissions by embedding similarity using
// greedy nearest-neighbour assignment.
type Clusterer struct {
	embeddings *search.EmbeddingStore
	threshold  float64
	maxResults int
	logger     *slog.Logger
}

// ClustererOption is a functional option for Clusterer.
type ClustererOption func(*Clusterer)

// WithDistanceThreshold overrides the clustering distance threshold.
func WithDistanceThreshold(d float64) ClustererOption {
	return func(c *Clusterer) { c.threshold = d }
}

// WithMaxQueryResults overrides the per-seed neighbour query cap.
func WithMaxQueryResults(n int) ClustererOption {
	return func(c *Clusterer) { c.maxResults = n }
}

// WithClustererLogger sets the logger.
func WithClustererLogger(logger *slog.Logger) ClustererOption {
	return func(c *Clusterer) { c.logger = logger }
}

// NewClusterer creates the cluster agent.
func NewClusterer(embeddings *search.EmbeddingStore, opts ...ClustererOption) *Clusterer {
	c := &Clusterer{
		embeddings: embeddings,
		threshold:  DefaultDistanceThreshold,
		maxResults: DefaultMaxQueryResults,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the registry name.
func (c *Clusterer) Name() string { return agent.NameCluster }

// Run clusters the references in input.Payload ([]string). References
// without a stored embedding are dropped. Each unassigned reference
// seeds a cluster, in input order, pulling in its unassigned neighbours
// within the distance threshold. Clusters come back largest first.
func (c *Clusterer) Run(ctx context.Context, input agent.Input) agent.Output {
	references, ok := input.Payload().([]string)
	if !ok {
		return agent.NewFailure("cluster input must be a reference list", 0)
	}
	if len(references) == 0 {
		return agent.NewOutput([]change.Cluster{}, 0)
	}

	records, err := c.embeddings.Get(ctx, references)
	if err != nil {
		return agent.NewFailure(fmt.Sprintf("fetch embeddings: %v", err), 0)
	}
	if len(records) == 0 {
		return agent.NewOutput([]change.Cluster{}, 0)
	}

	inBatch := make(map[string]search.Record, len(records))
	for _, r := range records {
		inBatch[r.Reference()] = r
	}

	nResults := len(records)
	if nResults > c.maxResults {
		nResults = c.maxResults
	}

	assigned := make(map[string]bool, len(records))
	var clusters []change.Cluster

	for _, seed := range records {
		if assigned[seed.Reference()] {
			continue
		}

		matches, err := c.embeddings.Query(ctx, seed.Vector(), nResults)
		if err != nil {
			c.logger.Warn("neighbour query failed, seeding singleton cluster",
				"reference", seed.Reference(), "error", err)
			assigned[seed.Reference()] = true
			clusters = append(clusters, change.NewCluster(
				[]string{seed.Reference()}, []string{seed.Document()}))
			continue
		}

		refs := []string{seed.Reference()}
		docs := []string{seed.Document()}
		assigned[seed.Reference()] = true
		for _, m := range matches {
			if m.Reference() == seed.Reference() || assigned[m.Reference()] {
				continue
			}
			if _, ok := inBatch[m.Reference()]; !ok {
				continue
			}
			if m.Distance() > c.threshold {
				continue
			}
			assigned[m.Reference()] = true
			refs = append(refs, m.Reference())
			docs = append(docs, m.Document())
		}
		clusters = append(clusters, change.NewCluster(refs, docs))
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].Size() > clusters[j].Size()
	})

	c.logger.Info("feedback clustered",
		"submissions", len(records), "clusters", len(clusters))
	return agent.NewOutput(clusters, 0)
}
