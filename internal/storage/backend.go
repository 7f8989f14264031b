// Package storage persists completed analyses. A Backend is the raw record
// store (SQLite, Redis or MinIO); History is the lazily opened facade the
// pipeline talks to.
package storage

import (
	"context"
	"errors"

	"github.com/kalambet/electroschematic/internal/schematic"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Backend stores HistoryItems keyed by ID.
type Backend interface {
	// Put inserts item or replaces the record with the same ID.
	Put(ctx context.Context, item schematic.HistoryItem) error
	// All returns every record, newest timestamp first.
	All(ctx context.Context) ([]schematic.HistoryItem, error)
	// Delete removes one record. Deleting a missing ID is not an error.
	Delete(ctx context.Context, id string) error
	// Clear removes every record.
	Clear(ctx context.Context) error
	Close() error
}
