package surrealdb

import (
	"context"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// queryRows runs a SELECT and unwraps the driver's nested result shape.
func queryRows[T any](ctx context.Context, db *surrealdb.DB, sql string, vars map[string]any) ([]*T, error) {
	results, err := surrealdb.Query[[]T](ctx, db, sql, vars)
	if err != nil {
		return nil, err
	}
	if results == nil || len(*results) == 0 {
		return nil, nil
	}
	var mapped []*T
	for i := range (*results)[0].Result {
		mapped = append(mapped, &(*results)[0].Result[i])
	}
	return mapped, nil
}

// queryOne runs a SELECT expected to yield at most one row.
func queryOne[T any](ctx context.Context, db *surrealdb.DB, sql string, vars map[string]any) (*T, error) {
	rows, err := queryRows[T](ctx, db, sql, vars)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// recordKey turns a natural key into a SurrealDB record id fragment.
func recordKey(naturalKey string) string {
	return strings.ReplaceAll(naturalKey, "|", "_")
}
