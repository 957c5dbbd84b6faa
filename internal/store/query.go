// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sonarhost/sonar/internal/sonarerr"
)

// ScanFunc scans a single row into a result value. Catalog services supply
// one per entity instead of every call site hand-rolling rows.Scan.
type ScanFunc[T any] func(*sql.Rows) (T, error)

// QueryAndScan runs query against q and scans every row with scan,
// preserving result order (spec §4.2/§8: list operations never reorder or
// drop duplicates).
func QueryAndScan[T any](ctx context.Context, q querier, query string, args []any, scan ScanFunc[T]) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, sonarerr.WrapInternal(err, "query")
	}
	defer rows.Close()

	results := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, sonarerr.WrapInternal(err, "scan row")
		}
		results = append(results, item)
	}
	if err := rows.Err(); err != nil {
		return nil, sonarerr.WrapInternal(err, "iterate rows")
	}
	return results, nil
}

// List returns every row of table scanned with scan, in table order.
func List[T any](ctx context.Context, q querier, table string, scan ScanFunc[T]) ([]T, error) {
	query := fmt.Sprintf("SELECT * FROM %s ORDER BY id", table)
	return QueryAndScan(ctx, q, query, nil, scan)
}

// ListWhere returns every row of table matching the given SQL predicate
// (without the WHERE keyword), in table order.
func ListWhere(ctx context.Context, q querier, table, predicate string, args []any) *WhereQuery {
	return &WhereQuery{q: q, table: table, predicate: predicate, args: args}
}

// WhereQuery is the builder ListWhere returns; Scan executes it.
type WhereQuery struct {
	q         querier
	table     string
	predicate string
	args      []any
	orderBy   string
}

// OrderBy overrides the default "ORDER BY id" clause.
func (w *WhereQuery) OrderBy(clause string) *WhereQuery {
	w.orderBy = clause
	return w
}

// ScanTyped executes a WhereQuery built by ListWhere, scanning its rows
// with scan. A free function rather than a method because Go methods
// cannot carry their own type parameters.
func ScanTyped[T any](ctx context.Context, w *WhereQuery, scan ScanFunc[T]) ([]T, error) {
	return QueryAndScan(ctx, w.q, w.build(), w.args, scan)
}

func (w *WhereQuery) build() string {
	order := w.orderBy
	if order == "" {
		order = "ORDER BY id"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT * FROM %s WHERE %s %s", w.table, w.predicate, order)
	return b.String()
}

// Get fetches a single row by id, scanned with scan. Returns a NotFound
// *sonarerr.Error when no row matches.
func Get[T any](ctx context.Context, q querier, table string, id uint32, scan ScanFunc[T]) (T, error) {
	var zero T
	query := fmt.Sprintf("SELECT * FROM %s WHERE id = ?", table)
	rows, err := q.QueryContext(ctx, query, id)
	if err != nil {
		return zero, sonarerr.WrapInternal(err, "get from %s", table)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return zero, sonarerr.WrapInternal(err, "get from %s", table)
		}
		return zero, sonarerr.NotFoundf("no row in %s with id %d", table, id)
	}
	item, err := scan(rows)
	if err != nil {
		return zero, sonarerr.WrapInternal(err, "scan row from %s", table)
	}
	return item, nil
}

// GetBulk fetches the rows named by ids, preserving both the order and any
// duplicates in the input slice (spec §4.2, §8). Rows are fetched once via
// an IN query, then assembled locally so a repeated id produces a repeated
// result instead of a single fetch. idOf extracts the row's id from a
// scanned item so the result can be reassembled in request order.
func GetBulk[T any](ctx context.Context, q querier, table string, ids []uint32, scan ScanFunc[T], idOf func(T) uint32) ([]T, error) {
	if len(ids) == 0 {
		return []T{}, nil
	}

	unique := make(map[uint32]struct{}, len(ids))
	args := make([]any, 0, len(ids))
	placeholders := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := unique[id]; ok {
			continue
		}
		unique[id] = struct{}{}
		args = append(args, id)
		placeholders = append(placeholders, "?")
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE id IN (%s)", table, strings.Join(placeholders, ","))
	rows, err := QueryAndScan(ctx, q, query, args, scan)
	if err != nil {
		return nil, err
	}

	byID := make(map[uint32]T, len(rows))
	for _, item := range rows {
		byID[idOf(item)] = item
	}

	out := make([]T, 0, len(ids))
	for _, id := range ids {
		item, ok := byID[id]
		if !ok {
			return nil, sonarerr.NotFoundf("no row in %s with id %d", table, id)
		}
		out = append(out, item)
	}
	return out, nil
}
