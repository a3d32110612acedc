package venue

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mExOms/sor/pkg/types"
)

// Registry holds the venues available to the router.
type Registry struct {
	mu     sync.RWMutex
	venues map[string]types.Venue
}

// NewRegistry creates an empty venue registry
func NewRegistry() *Registry {
	return &Registry{
		venues: make(map[string]types.Venue),
	}
}

// Add registers a venue under its own ID.
func (r *Registry) Add(v types.Venue) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.venues[v.ID()]; exists {
		return fmt.Errorf("venue %s already registered", v.ID())
	}

	r.venues[v.ID()] = v
	return nil
}

// Get returns a venue by ID.
func (r *Registry) Get(id string) (types.Venue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, exists := r.venues[id]
	if !exists {
		return nil, fmt.Errorf("venue %s not found", id)
	}

	return v, nil
}

// Remove drops a venue from the registry.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.venues[id]; !exists {
		return fmt.Errorf("venue %s not found", id)
	}

	delete(r.venues, id)
	return nil
}

// List returns all venue IDs, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.venues))
	for id := range r.venues {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}

// Venues returns all venues ordered by ID. The ordering makes feature
// collection, allocation and dispatch deterministic for a given registry.
func (r *Registry) Venues() []types.Venue {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.venues))
	for id := range r.venues {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	venues := make([]types.Venue, 0, len(ids))
	for _, id := range ids {
		venues = append(venues, r.venues[id])
	}

	return venues
}

// Statuses returns the status board for every venue, ordered by ID.
func (r *Registry) Statuses() []types.VenueStatus {
	statuses := make([]types.VenueStatus, 0)
	for _, v := range r.Venues() {
		statuses = append(statuses, v.Status())
	}
	return statuses
}
