package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tmoreau/marginalia/internal/model"
)

// ScanOptions controls a projected, filtered, paginated read over a table.
type ScanOptions struct {
	Columns []string // nil/empty means SELECT *
	Filter  *Filter
	OrderBy string // raw "col ASC, col2 DESC" fragment, caller-controlled
	Limit   int    // <=0 means no limit
	Offset  int    // <=0 means no offset
}

// Scan runs a projection + predicate-pushdown read and returns the raw
// *sql.Rows; callers are responsible for scanning into their own structs
// and closing the result.
func (s *Store) Scan(ctx context.Context, table string, opts ScanOptions) (*sql.Rows, error) {
	cols := "*"
	if len(opts.Columns) > 0 {
		cols = strings.Join(opts.Columns, ", ")
	}

	where, args := buildWhere(opts.Filter)

	query := fmt.Sprintf("SELECT %s FROM %s%s", cols, table, where)
	if opts.OrderBy != "" {
		query += " ORDER BY " + opts.OrderBy
	}
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", opts.Offset)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyQueryError("scan", table, err)
	}
	return rows, nil
}

// Count returns a filtered row count.
func (s *Store) Count(ctx context.Context, table string, filter *Filter) (int64, error) {
	where, args := buildWhere(filter)
	query := fmt.Sprintf("SELECT count(*) FROM %s%s", table, where)

	var n int64
	if err := s.conn.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, classifyQueryError("count", table, err)
	}
	return n, nil
}

// NearestOptions parameterizes an ANN search. Limit <= 0 means unbounded:
// every row with a non-null vector comes back in distance order.
type NearestOptions struct {
	Limit       int
	MaxDistance *float64
	Filter      *Filter
}

// Nearest performs an approximate (if an HNSW index exists) or brute-force
// nearest-neighbor search on column, ordered by ascending cosine distance.
// The returned rows carry every requested column plus a synthetic
// `_distance` column. Whether an index backed the search is reported
// separately via HasIndex(..., IndexVector) so the query engine can choose the correct
// path label without this method needing to know about path semantics.
func (s *Store) Nearest(ctx context.Context, table, column string, query model.Vector, opts NearestOptions, projCols []string) (*sql.Rows, error) {
	if len(query) != model.VectorDim {
		return nil, newError("nearest", table, KindInternal, fmt.Errorf("query vector has dimension %d, want %d", len(query), model.VectorDim))
	}

	cols := "*"
	if len(projCols) > 0 {
		cols = strings.Join(projCols, ", ")
	}

	qLiteral := model.EncodeVectorLiteral(query)
	distExpr := fmt.Sprintf("array_cosine_distance(%s, %s)", column, qLiteral)

	// Conditions and args are accumulated together so placeholder order in
	// the rendered SQL always matches the positional argument order.
	conditions := []string{fmt.Sprintf("%s IS NOT NULL", column)}
	var args []any
	if opts.MaxDistance != nil {
		conditions = append(conditions, fmt.Sprintf("%s <= ?", distExpr))
		args = append(args, *opts.MaxDistance)
	}
	if where, filterArgs := buildWhere(opts.Filter); where != "" {
		conditions = append(conditions, strings.TrimPrefix(where, " WHERE "))
		args = append(args, filterArgs...)
	}
	whereClause := " WHERE " + strings.Join(conditions, " AND ")

	sqlQuery := fmt.Sprintf(
		"SELECT %s, %s AS _distance FROM %s%s ORDER BY _distance ASC",
		cols, distExpr, table, whereClause,
	)
	if opts.Limit > 0 {
		sqlQuery += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}

	rows, err := s.conn.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, classifyQueryError("nearest", table, err)
	}
	return rows, nil
}

// Append inserts rows without deduplication.
func (s *Store) Append(ctx context.Context, table string, columns []string, valueRows [][]any) error {
	if len(valueRows) == 0 {
		return nil
	}
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = "?"
	}
	rowPlaceholder := "(" + strings.Join(placeholders, ", ") + ")"

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return classifyQueryError("append", table, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES %s", table, strings.Join(columns, ", "), rowPlaceholder,
	))
	if err != nil {
		return classifyQueryError("append", table, err)
	}
	defer closeQuietly(stmt)

	for _, row := range valueRows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return classifyQueryError("append", table, err)
		}
	}
	return tx.Commit()
}

// MergeInsert upserts a single row keyed on keyCols: update-all on match,
// insert-all on miss, via DuckDB's ON CONFLICT DO UPDATE.
func (s *Store) MergeInsert(ctx context.Context, table string, keyCols []string, columns []string, values []any) error {
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = "?"
	}

	var updateAssignments []string
	for _, c := range columns {
		isKey := false
		for _, k := range keyCols {
			if c == k {
				isKey = true
				break
			}
		}
		if !isKey {
			updateAssignments = append(updateAssignments, fmt.Sprintf("%s = excluded.%s", c, c))
		}
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "),
		strings.Join(keyCols, ", "), strings.Join(updateAssignments, ", "),
	)

	if _, err := s.conn.ExecContext(ctx, query, values...); err != nil {
		return classifyQueryError("merge_insert", table, err)
	}
	return nil
}

// classifyQueryError maps a low-level driver error onto a structured *Error.
// DuckDB's own error text is the only signal available through
// database/sql, so this matches on stable substrings the driver is known
// to emit rather than introspecting driver-internal types.
func classifyQueryError(op, table string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "does not exist") && strings.Contains(msg, "Table"):
		return newError(op, table, KindTableMissing, err)
	case strings.Contains(msg, "Binder Error") || strings.Contains(msg, "column"):
		return newError(op, table, KindSchemaMismatch, err)
	case strings.Contains(msg, "out of range") || strings.Contains(msg, "overflow"):
		return newError(op, table, KindOffsetOverflow, err)
	case strings.Contains(msg, "index") && strings.Contains(msg, "not"):
		return newError(op, table, KindIndexUnavailable, err)
	default:
		return newError(op, table, KindIO, err)
	}
}
