// Package selector resolves the working ID set for a bulk run, either
// from an explicit ID list or from a filtered query against a
// registered query engine.
package selector

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bulkproc/bulkproc/internal/entity"
)

// Criteria describes one selection. Exactly one branch is active per
// run: a non-empty IDs list wins and suppresses Bundles and Conditions
// entirely; otherwise a conjunctive filtered query is built from the
// remaining fields.
type Criteria struct {
	IDs        []entity.ID
	Bundles    []string
	Conditions []FieldCondition
}

// Explicit reports whether the criteria carries an explicit ID list.
func (c Criteria) Explicit() bool {
	return len(c.IDs) > 0
}

// Selector resolves selection criteria into an ordered ID sequence.
type Selector struct {
	schema  entity.Schema
	engines *Engines
	engine  string
	log     zerolog.Logger
}

// New creates a selector that validates types and bundles against
// schema and builds filtered queries with the named engine from the
// registry.
func New(schema entity.Schema, engines *Engines, engineName string, log zerolog.Logger) *Selector {
	return &Selector{
		schema:  schema,
		engines: engines,
		engine:  engineName,
		log:     log,
	}
}

// Resolve returns the ID sequence the run will operate on.
//
// Explicit IDs are returned verbatim and bypass type, bundle, and
// engine validation; they are assumed operator-verified. Filtered
// selections validate the type and every named bundle, build a
// conjunctive query (type AND bundle-membership AND each field
// condition in order), and return IDs in the engine's natural result
// order. A filtered selection matching zero records fails with
// ErrEmptySelection.
func (s *Selector) Resolve(ctx context.Context, entityType string, c Criteria) ([]entity.ID, error) {
	if c.Explicit() {
		s.log.Debug().Ctx(ctx).
			Str("entity_type", entityType).
			Int("count", len(c.IDs)).
			Msg("explicit ID selection, filters suppressed")
		return append([]entity.ID(nil), c.IDs...), nil
	}

	eng, err := s.engines.Build(s.engine)
	if err != nil {
		return nil, err
	}

	if !s.schema.HasType(entityType) {
		return nil, fmt.Errorf("%w: %q", entity.ErrInvalidType, entityType)
	}
	for _, b := range c.Bundles {
		if !s.schema.HasBundle(entityType, b) {
			return nil, fmt.Errorf("%w: %q does not exist for type %q", entity.ErrInvalidBundle, b, entityType)
		}
	}

	eng.TypeCondition(entityType)
	if len(c.Bundles) > 0 {
		eng.BundleCondition(c.Bundles)
	}
	for _, cond := range c.Conditions {
		eng.FieldCondition(cond)
	}

	ids, err := eng.Execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("executing selection query: %w", err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no %q records match the given filters", entity.ErrEmptySelection, entityType)
	}

	s.log.Debug().Ctx(ctx).
		Str("entity_type", entityType).
		Str("engine", s.engine).
		Int("count", len(ids)).
		Msg("filtered selection resolved")
	return ids, nil
}
