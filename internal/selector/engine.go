package selector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bulkproc/bulkproc/internal/entity"
)

// FieldCondition is one (field, operator, value) predicate. Conditions
// supplied to a selection are ANDed in the order given.
type FieldCondition struct {
	Field    string
	Operator string
	Value    string
}

// QueryEngine is the capability set a substitute engine must satisfy.
// A selection builds a conjunctive query through these methods and then
// executes it once.
type QueryEngine interface {
	// TypeCondition restricts the query to one entity type.
	TypeCondition(entityType string)

	// BundleCondition restricts the query to records whose bundle is a
	// member of the given set.
	BundleCondition(bundles []string)

	// FieldCondition ANDs one field predicate onto the query.
	FieldCondition(cond FieldCondition)

	// Execute runs the query and returns matching IDs in the engine's
	// natural result order. No re-sorting is imposed downstream; callers
	// that need a stable order must get it from the engine itself.
	Execute(ctx context.Context) ([]entity.ID, error)
}

// Builder constructs a fresh, empty query engine for one selection.
type Builder func() QueryEngine

// Engines is a registry of query-engine builders. Engines are
// registered explicitly by name at startup; the name is what the
// operator selects on the command line. There is no by-name discovery
// of arbitrary implementations.
type Engines struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewEngines creates an empty engine registry.
func NewEngines() *Engines {
	return &Engines{builders: make(map[string]Builder)}
}

// Register adds an engine builder under the given name.
func (e *Engines) Register(name string, b Builder) error {
	if name == "" {
		return fmt.Errorf("engine name must not be empty")
	}
	if b == nil {
		return fmt.Errorf("engine %q builder must not be nil", name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.builders[name]; exists {
		return fmt.Errorf("engine %q already registered", name)
	}
	e.builders[name] = b
	return nil
}

// Build constructs a fresh engine for one selection. It fails with
// ErrInvalidQueryEngine when the name is not registered or the builder
// does not produce a usable engine.
func (e *Engines) Build(name string) (QueryEngine, error) {
	e.mu.RLock()
	b, ok := e.builders[name]
	e.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q is not a registered engine", entity.ErrInvalidQueryEngine, name)
	}
	eng := b()
	if eng == nil {
		return nil, fmt.Errorf("%w: %q produced no engine", entity.ErrInvalidQueryEngine, name)
	}
	return eng, nil
}

// Names returns the registered engine names in sorted order.
func (e *Engines) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.builders))
	for name := range e.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
