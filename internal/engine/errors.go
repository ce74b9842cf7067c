// Package engine holds the pure in-memory snapshot calculators: movement
// grouping, the scenario decision matrix, the temporal option matcher,
// and the broker/ticker calculators. Nothing in this package performs
// I/O except the batch loader, which only reads through the store
// interfaces.
package engine

import (
	"errors"
	"fmt"
)

// ErrNotFound is the sentinel wrapped by stores when a record does not
// exist. Callers test with errors.Is.
var ErrNotFound = errors.New("not found")

// ErrMalformedMovement is returned when a movement carries a zero
// timestamp. Malformed data is a hard failure, never silently dropped.
var ErrMalformedMovement = errors.New("movement has malformed timestamp")

// ConsistencyError reports a currency, account, or date mismatch between
// a previous and an existing snapshot. It is fatal: mid-calculation
// consistency violations are never silently repaired. Drift in values
// (not identity) is handled by the explicit repair scenario instead.
type ConsistencyError struct {
	Field    string
	Previous string
	Existing string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("snapshot consistency violation: %s mismatch (previous %q, existing %q)",
		e.Field, e.Previous, e.Existing)
}

// NotFoundError reports an expected baseline or operation that is
// missing. Where cumulative math can proceed it degrades to "absent";
// where it cannot, it is fatal.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// PersistenceError wraps an I/O failure for one cell. Persistence
// errors are collected per cell and do not abort the whole batch.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// CalculationError wraps an unexpected arithmetic or logic fault in one
// cell. It is caught, logged, added to the batch error list, and
// processing continues for other cells.
type CalculationError struct {
	Cell string
	Err  error
}

func (e *CalculationError) Error() string {
	return fmt.Sprintf("calculation failure for cell %s: %v", e.Cell, e.Err)
}

func (e *CalculationError) Unwrap() error { return e.Err }

// IsNotFound returns true when err represents a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
