// Package store provides record-store backends: an in-memory store used
// by tests and as the default backend, and a MySQL-backed store for
// real deployments. Each backend registers a matching query engine.
package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/bulkproc/bulkproc/internal/entity"
	"github.com/bulkproc/bulkproc/internal/selector"
)

// MemoryEngineName is the registry name of the in-memory query engine.
const MemoryEngineName = "memory"

// Memory is an in-memory record store. Records keep insertion order per
// entity type; that order is the memory engine's natural result order.
type Memory struct {
	mu      sync.RWMutex
	bundles map[string]map[string]struct{}
	records map[string][]entity.Record
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		bundles: make(map[string]map[string]struct{}),
		records: make(map[string][]entity.Record),
	}
}

// AddType declares an entity type and its bundles.
func (m *Memory) AddType(entityType string, bundles ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.bundles[entityType]
	if !ok {
		set = make(map[string]struct{})
		m.bundles[entityType] = set
	}
	for _, b := range bundles {
		set[b] = struct{}{}
	}
}

// Put stores a record. The record's type must have been declared with
// AddType; an existing record with the same ID is replaced in place,
// keeping its original position.
func (m *Memory) Put(rec entity.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bundles[rec.Type]; !ok {
		return fmt.Errorf("%w: %q", entity.ErrInvalidType, rec.Type)
	}

	recs := m.records[rec.Type]
	for i := range recs {
		if recs[i].ID == rec.ID {
			recs[i] = rec
			return nil
		}
	}
	m.records[rec.Type] = append(recs, rec)
	return nil
}

// Load implements entity.Store. IDs with no backing record are silently
// absent from the result.
func (m *Memory) Load(_ context.Context, entityType string, ids []entity.ID) (map[entity.ID]entity.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	want := make(map[entity.ID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	out := make(map[entity.ID]entity.Record, len(ids))
	for _, rec := range m.records[entityType] {
		if _, ok := want[rec.ID]; ok {
			out[rec.ID] = rec
		}
	}
	return out, nil
}

// HasType implements entity.Schema.
func (m *Memory) HasType(entityType string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.bundles[entityType]
	return ok
}

// HasBundle implements entity.Schema.
func (m *Memory) HasBundle(entityType, bundle string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.bundles[entityType][bundle]
	return ok
}

// Engine returns a builder for the in-memory query engine backed by
// this store.
func (m *Memory) Engine() selector.Builder {
	return func() selector.QueryEngine {
		return &memoryQuery{store: m}
	}
}

// memoryQuery evaluates a conjunctive query against a Memory store by
// scanning the type's records in insertion order.
type memoryQuery struct {
	store      *Memory
	entityType string
	bundles    []string
	conds      []selector.FieldCondition
}

func (q *memoryQuery) TypeCondition(entityType string) {
	q.entityType = entityType
}

func (q *memoryQuery) BundleCondition(bundles []string) {
	q.bundles = bundles
}

func (q *memoryQuery) FieldCondition(cond selector.FieldCondition) {
	q.conds = append(q.conds, cond)
}

func (q *memoryQuery) Execute(_ context.Context) ([]entity.ID, error) {
	q.store.mu.RLock()
	defer q.store.mu.RUnlock()

	var bundleSet map[string]struct{}
	if len(q.bundles) > 0 {
		bundleSet = make(map[string]struct{}, len(q.bundles))
		for _, b := range q.bundles {
			bundleSet[b] = struct{}{}
		}
	}

	var ids []entity.ID
	for _, rec := range q.store.records[q.entityType] {
		if bundleSet != nil {
			if _, ok := bundleSet[rec.Bundle]; !ok {
				continue
			}
		}
		matched := true
		for _, cond := range q.conds {
			ok, err := matchCondition(rec.Fields[cond.Field], cond)
			if err != nil {
				return nil, err
			}
			if !ok {
				matched = false
				break
			}
		}
		if matched {
			ids = append(ids, rec.ID)
		}
	}
	return ids, nil
}

// matchCondition applies one field predicate to a field value.
// Ordering operators compare numerically when both sides parse as
// numbers, lexicographically otherwise. LIKE treats % as a wildcard.
func matchCondition(value string, cond selector.FieldCondition) (bool, error) {
	switch cond.Operator {
	case "=":
		return value == cond.Value, nil
	case "!=", "<>":
		return value != cond.Value, nil
	case "<":
		return compareValues(value, cond.Value) < 0, nil
	case "<=":
		return compareValues(value, cond.Value) <= 0, nil
	case ">":
		return compareValues(value, cond.Value) > 0, nil
	case ">=":
		return compareValues(value, cond.Value) >= 0, nil
	case "LIKE", "like":
		return matchLike(value, cond.Value), nil
	default:
		return false, fmt.Errorf("unsupported field operator %q", cond.Operator)
	}
}

func compareValues(a, b string) int {
	na, errA := strconv.ParseFloat(a, 64)
	nb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}

// matchLike matches value against a SQL-style pattern where % matches
// any run of characters. Matching is case-insensitive.
func matchLike(value, pattern string) bool {
	value = strings.ToLower(value)
	parts := strings.Split(strings.ToLower(pattern), "%")

	if len(parts) == 1 {
		return value == parts[0]
	}
	if !strings.HasPrefix(value, parts[0]) {
		return false
	}
	value = value[len(parts[0]):]
	last := parts[len(parts)-1]
	if !strings.HasSuffix(value, last) {
		return false
	}
	value = value[:len(value)-len(last)]
	for _, mid := range parts[1 : len(parts)-1] {
		if mid == "" {
			continue
		}
		idx := strings.Index(value, mid)
		if idx < 0 {
			return false
		}
		value = value[idx+len(mid):]
	}
	return true
}
