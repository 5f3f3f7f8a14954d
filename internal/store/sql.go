package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	// MySQL driver registered for database/sql.
	_ "github.com/go-sql-driver/mysql"

	"github.com/bulkproc/bulkproc/internal/entity"
	"github.com/bulkproc/bulkproc/internal/selector"
)

// SQLEngineName is the registry name of the SQL query engine.
const SQLEngineName = "sql"

// sqlOperators is the whitelist of operators accepted in SQL field
// conditions. Operators outside this set are rejected before any query
// text is built.
var sqlOperators = map[string]string{
	"=":    "=",
	"!=":   "<>",
	"<>":   "<>",
	"<":    "<",
	"<=":   "<=",
	">":    ">",
	">=":   ">=",
	"LIKE": "LIKE",
	"like": "LIKE",
}

// SQL is a MySQL-backed record store. Records live in a single table
// with columns (id BIGINT, entity_type VARCHAR, bundle VARCHAR,
// fields JSON); field conditions are evaluated with JSON_EXTRACT.
type SQL struct {
	db    *sql.DB
	table string
}

// OpenSQL opens a MySQL connection for the given DSN and verifies it
// with a ping.
func OpenSQL(ctx context.Context, dsn, table string) (*SQL, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening mysql connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging mysql: %w", err)
	}
	return NewSQL(db, table), nil
}

// NewSQL wraps an existing database handle.
func NewSQL(db *sql.DB, table string) *SQL {
	return &SQL{db: db, table: table}
}

// Close closes the underlying database handle.
func (s *SQL) Close() error {
	return s.db.Close()
}

// Load implements entity.Store with one IN query per chunk. IDs with no
// backing row are absent from the result.
func (s *SQL) Load(ctx context.Context, entityType string, ids []entity.ID) (map[entity.ID]entity.Record, error) {
	if len(ids) == 0 {
		return map[entity.ID]entity.Record{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := fmt.Sprintf(
		"SELECT id, bundle, fields FROM %s WHERE entity_type = ? AND id IN (%s)",
		s.table, placeholders,
	)

	args := make([]any, 0, len(ids)+1)
	args = append(args, entityType)
	for _, id := range ids {
		args = append(args, int64(id))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}
	defer rows.Close()

	out := make(map[entity.ID]entity.Record, len(ids))
	for rows.Next() {
		var (
			id     int64
			bundle string
			fields sql.NullString
		)
		if err := rows.Scan(&id, &bundle, &fields); err != nil {
			return nil, fmt.Errorf("scanning record row: %w", err)
		}
		rec := entity.Record{
			ID:     entity.ID(id),
			Type:   entityType,
			Bundle: bundle,
		}
		if fields.Valid && fields.String != "" {
			if err := json.Unmarshal([]byte(fields.String), &rec.Fields); err != nil {
				return nil, fmt.Errorf("decoding fields for record %d: %w", id, err)
			}
		}
		out[rec.ID] = rec
	}
	return out, rows.Err()
}

// HasType implements entity.Schema. A type is known when at least one
// row carries it.
func (s *SQL) HasType(entityType string) bool {
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE entity_type = ?)", s.table)
	var exists bool
	if err := s.db.QueryRow(query, entityType).Scan(&exists); err != nil {
		return false
	}
	return exists
}

// HasBundle implements entity.Schema.
func (s *SQL) HasBundle(entityType, bundle string) bool {
	query := fmt.Sprintf(
		"SELECT EXISTS(SELECT 1 FROM %s WHERE entity_type = ? AND bundle = ?)", s.table)
	var exists bool
	if err := s.db.QueryRow(query, entityType, bundle).Scan(&exists); err != nil {
		return false
	}
	return exists
}

// Engine returns a builder for the SQL query engine backed by this
// store. Natural result order is whatever the server returns for the
// unordered SELECT.
func (s *SQL) Engine() selector.Builder {
	return func() selector.QueryEngine {
		return &sqlQuery{store: s}
	}
}

// sqlQuery accumulates a conjunctive WHERE clause and executes it once.
type sqlQuery struct {
	store      *SQL
	entityType string
	bundles    []string
	conds      []selector.FieldCondition
}

func (q *sqlQuery) TypeCondition(entityType string) {
	q.entityType = entityType
}

func (q *sqlQuery) BundleCondition(bundles []string) {
	q.bundles = bundles
}

func (q *sqlQuery) FieldCondition(cond selector.FieldCondition) {
	q.conds = append(q.conds, cond)
}

func (q *sqlQuery) Execute(ctx context.Context) ([]entity.ID, error) {
	where, args, err := q.buildWhere()
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT id FROM %s WHERE %s", q.store.table, where)
	rows, err := q.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing selection query: %w", err)
	}
	defer rows.Close()

	var ids []entity.ID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning selection row: %w", err)
		}
		ids = append(ids, entity.ID(id))
	}
	return ids, rows.Err()
}

// buildWhere renders the accumulated conditions as a parameterized
// WHERE clause. Field names are embedded as JSON path strings through a
// placeholder, so only whitelisted operators reach the query text.
func (q *sqlQuery) buildWhere() (string, []any, error) {
	var (
		clauses []string
		args    []any
	)

	clauses = append(clauses, "entity_type = ?")
	args = append(args, q.entityType)

	if len(q.bundles) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(q.bundles)), ",")
		clauses = append(clauses, fmt.Sprintf("bundle IN (%s)", placeholders))
		for _, b := range q.bundles {
			args = append(args, b)
		}
	}

	for _, cond := range q.conds {
		op, ok := sqlOperators[cond.Operator]
		if !ok {
			return "", nil, fmt.Errorf("unsupported field operator %q", cond.Operator)
		}
		clauses = append(clauses, fmt.Sprintf("JSON_UNQUOTE(JSON_EXTRACT(fields, ?)) %s ?", op))
		args = append(args, "$."+cond.Field, cond.Value)
	}

	return strings.Join(clauses, " AND "), args, nil
}
