package entity

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Callback is one operation applied to a single record. The boolean
// return is the callback's own success signal; internal failure handling
// is the callback's concern.
type Callback func(ctx context.Context, entityType string, rec Record) bool

// Registry maps callback names to implementations. Callbacks are
// registered in code at startup; names are what operators pass on the
// command line and what queue items carry into durable storage.
type Registry struct {
	mu        sync.RWMutex
	callbacks map[string]Callback
}

// NewRegistry creates an empty callback registry.
func NewRegistry() *Registry {
	return &Registry{callbacks: make(map[string]Callback)}
}

// Register adds a callback under the given name. Registering an empty
// name, a nil callback, or a duplicate name is an error.
func (r *Registry) Register(name string, cb Callback) error {
	if name == "" {
		return fmt.Errorf("callback name must not be empty")
	}
	if cb == nil {
		return fmt.Errorf("callback %q must not be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.callbacks[name]; exists {
		return fmt.Errorf("callback %q already registered", name)
	}
	r.callbacks[name] = cb
	return nil
}

// Lookup returns the callback registered under name.
func (r *Registry) Lookup(name string) (Callback, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cb, ok := r.callbacks[name]
	return cb, ok
}

// Names returns the registered callback names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.callbacks))
	for name := range r.callbacks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Operation is one validated (record, callback) pairing, ready to
// execute. Validation is separated from execution so that a run over
// many records with a bad callback reference fails fast per record with
// no ambiguous partial state.
type Operation struct {
	entityType string
	record     Record
	callback   Callback
}

// Prepare resolves callbackRef against the registry and binds it to the
// record. It fails with ErrInvalidCallback when the reference does not
// resolve; this is the only checked failure of an operation.
func Prepare(reg *Registry, entityType string, rec Record, callbackRef string) (*Operation, error) {
	cb, ok := reg.Lookup(callbackRef)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a registered callback", ErrInvalidCallback, callbackRef)
	}
	return &Operation{
		entityType: entityType,
		record:     rec,
		callback:   cb,
	}, nil
}

// Execute invokes the callback with the bound record and returns the
// callback's boolean success signal.
func (o *Operation) Execute(ctx context.Context) bool {
	return o.callback(ctx, o.entityType, o.record)
}
