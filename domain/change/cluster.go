// Package change holds the value types that flow between pipeline
// stages: clusters, tasks, change sets, verdicts, and batch summaries.
package change

// Cluster groups related feedback submissions for one batch run.
type Cluster struct {
	references []string
	documents  []string
}

// NewCluster creates a Cluster from parallel reference and document slices.
func NewCluster(references, documents []string) Cluster {
	c := Cluster{
		references: make([]string, len(references)),
		documents:  make([]string, len(documents)),
	}
	copy(c.references, references)
	copy(c.documents, documents)
	return c
}

// References returns the submission references in the cluster.
func (c Cluster) References() []string {
	out := make([]string, len(c.references))
	copy(out, c.references)
	return out
}

// Documents returns the submission texts in the cluster.
func (c Cluster) Documents() []string {
	out := make([]string, len(c.documents))
	copy(out, c.documents)
	return out
}

// Size returns the number of submissions in the cluster.
func (c Cluster) Size() int { return len(c.references) }
