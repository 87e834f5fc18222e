package agent

import (
	"fmt"
	"sort"
	"sync"
)

// Well-known agent names.
const (
	NameFilter     = "filter"
	NameCluster    = "cluster"
	NamePrioritise = "prioritise"
	NameWrite      = "write"
	NameReview     = "review"
	NameDeploy     = "deploy"
)

// Registry maps agent names to implementations. The orchestrator looks
// stages up by name, so swapping an entry swaps the behavior of that
// stage for the whole pipeline.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]Agent)}
}

// Register adds or replaces an agent under its own name.
func (r *Registry) Register(a Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.Name()] = a
}

// Get returns the agent registered under name.
func (r *Registry) Get(name string) (Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[name]
	if !ok {
		return nil, fmt.Errorf("no agent registered under %q", name)
	}
	return a, nil
}

// Names returns the registered agent names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
