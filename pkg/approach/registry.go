package approach

import (
	"sort"
	"sync"

	"github.com/GeorgeStrakhov/briefboarder/pkg/errors"
)

// Registry manages named approaches.
type Registry struct {
	mu         sync.RWMutex
	approaches map[string]Approach
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		approaches: make(map[string]Approach),
	}
}

// Register adds an approach under its name.
func (r *Registry) Register(a Approach) error {
	if a == nil {
		return errors.New(errors.InvalidInput, "approach cannot be nil")
	}
	if a.Name() == "" {
		return errors.New(errors.InvalidInput, "approach name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.approaches[a.Name()]; exists {
		return errors.WithFields(
			errors.New(errors.InvalidInput, "approach already registered"),
			errors.Fields{"approach": a.Name()})
	}

	r.approaches[a.Name()] = a
	return nil
}

// Get resolves an approach by name.
func (r *Registry) Get(name string) (Approach, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.approaches[name]
	if !ok {
		return nil, errors.WithFields(
			errors.New(errors.ResourceNotFound, "unknown approach"),
			errors.Fields{"approach": name})
	}
	return a, nil
}

// List returns registered approach names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.approaches))
	for name := range r.approaches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry with builtins installed.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

func init() {
	for _, a := range []Approach{
		NewDirectApproach(),
		NewCampaignApproach(),
		NewVariantsApproach(),
	} {
		if err := defaultRegistry.Register(a); err != nil {
			panic(err)
		}
	}
}
