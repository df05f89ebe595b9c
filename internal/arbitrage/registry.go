package arbitrage

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds named match strategies so the cascade can be chosen by
// config.
type Registry struct {
	strategies map[string]MatchStrategy
	mu         sync.RWMutex
}

// NewRegistry returns an empty registry. Call Register to add strategies.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]MatchStrategy)}
}

// DefaultRegistry registers the three built-in tiers.
func DefaultRegistry(minSpread float64, syntheticTopN int) *Registry {
	r := NewRegistry()
	r.Register(NewExactMatch(minSpread))
	r.Register(NewRelaxedMatch())
	r.Register(NewSyntheticPairing(syntheticTopN))
	return r
}

// Register adds s under its own name, replacing any previous entry.
func (r *Registry) Register(s MatchStrategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[s.Name()] = s
}

// Get returns the strategy by name, or an error if not found.
func (r *Registry) Get(name string) (MatchStrategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("arbitrage: match strategy %q not found", name)
	}
	return s, nil
}

// Cascade resolves names into an ordered strategy list.
func (r *Registry) Cascade(names ...string) ([]MatchStrategy, error) {
	out := make([]MatchStrategy, 0, len(names))
	for _, n := range names {
		s, err := r.Get(n)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// List returns all registered strategy names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.strategies))
	for n := range r.strategies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
