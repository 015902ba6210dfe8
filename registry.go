package relay

import (
	"fmt"
	"sort"

	"github.com/puzpuzpuz/xsync/v3"
)

// Registry holds named orchestrators sharing a data container type.
//
// Applications hosting several saga definitions register them once at
// startup and look them up by saga type name when an inbound trigger or a
// recovery scan identifies which saga a persisted container belongs to.
type Registry[T SagaData] struct {
	orchestrators *xsync.MapOf[string, *Orchestrator[T]]
}

// NewRegistry creates an empty Registry.
func NewRegistry[T SagaData]() *Registry[T] {
	return &Registry[T]{
		orchestrators: xsync.NewMapOf[string, *Orchestrator[T]](),
	}
}

// Register adds an orchestrator to the registry under its saga type name.
func (r *Registry[T]) Register(orchestrator *Orchestrator[T]) error {
	if _, ok := r.orchestrators.Load(orchestrator.Name()); ok {
		return fmt.Errorf("orchestrator with name '%s' already registered", orchestrator.Name())
	}
	r.orchestrators.Store(orchestrator.Name(), orchestrator)
	return nil
}

// Get retrieves an orchestrator by saga type name.
func (r *Registry[T]) Get(name string) (*Orchestrator[T], error) {
	orchestrator, ok := r.orchestrators.Load(name)
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrOrchestratorNotFound)
	}
	return orchestrator, nil
}

// Names returns the registered saga type names, sorted.
func (r *Registry[T]) Names() []string {
	var names []string
	r.orchestrators.Range(func(name string, _ *Orchestrator[T]) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}
