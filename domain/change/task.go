package change

// Task is a prioritised unit of work derived from a cluster.
type Task struct {
	references  []string
	documents   []string
	summary     string
	clusterSize int
}

// NewTask creates a Task from a cluster and its generated summary.
func NewTask(cluster Cluster, summary string) Task {
	return Task{
		references:  cluster.References(),
		documents:   cluster.Documents(),
		summary:     summary,
		clusterSize: cluster.Size(),
	}
}

// References returns the submission references the task covers.
func (t Task) References() []string {
	out := make([]string, len(t.references))
	copy(out, t.references)
	return out
}

// Documents returns the submission texts the task covers.
func (t Task) Documents() []string {
	out := make([]string, len(t.documents))
	copy(out, t.documents)
	return out
}

// Summary returns the 1-2 sentence task summary.
func (t Task) Summary() string { return t.summary }

// ClusterSize returns the size of the originating cluster.
func (t Task) ClusterSize() int { return t.clusterSize }
