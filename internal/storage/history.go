package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kalambet/electroschematic/internal/schematic"
)

// Opener connects to a Backend. History calls it on first use.
type Opener func(ctx context.Context) (Backend, error)

// History is the persistence facade used by the pipeline. The backend is
// opened on first use and reused afterwards; a failed open is retried on the
// next call.
type History struct {
	open     Opener
	maxItems int

	mu      sync.Mutex
	backend Backend
}

// HistoryOption configures a History.
type HistoryOption func(*History)

// WithMaxItems keeps at most n records, evicting the oldest after each
// save. n <= 0 means unbounded.
func WithMaxItems(n int) HistoryOption {
	return func(h *History) { h.maxItems = n }
}

// NewHistory creates a History that opens its backend with open.
func NewHistory(open Opener, opts ...HistoryOption) *History {
	h := &History{open: open}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewHistoryFromBackend wraps an already open backend.
func NewHistoryFromBackend(b Backend, opts ...HistoryOption) *History {
	h := NewHistory(func(context.Context) (Backend, error) { return b, nil }, opts...)
	h.backend = b
	return h
}

func (h *History) get(ctx context.Context) (Backend, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.backend != nil {
		return h.backend, nil
	}
	b, err := h.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening history store: %w", err)
	}
	h.backend = b
	return b, nil
}

// Save upserts item. Failures are returned wrapped in
// schematic.ErrPersistenceWrite and left to the caller to report.
func (h *History) Save(ctx context.Context, item schematic.HistoryItem) error {
	b, err := h.get(ctx)
	if err == nil {
		err = b.Put(ctx, item)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", schematic.ErrPersistenceWrite, err)
	}
	if h.maxItems > 0 {
		h.evict(ctx, b)
	}
	return nil
}

// evict drops everything past the newest maxItems records. Failures only
// leave extra records behind, so they are logged and otherwise ignored.
func (h *History) evict(ctx context.Context, b Backend) {
	items, err := b.All(ctx)
	if err != nil {
		slog.Warn("failed to list history for eviction", "error", err)
		return
	}
	for _, old := range items[min(h.maxItems, len(items)):] {
		if err := b.Delete(ctx, old.ID); err != nil {
			slog.Warn("failed to evict history item", "id", old.ID, "error", err)
			return
		}
		slog.Debug("evicted history item", "id", old.ID)
	}
}

// LoadAll returns every record, newest first. It never fails: on error the
// problem is logged as a schematic.ErrPersistenceRead and an empty slice is
// returned.
func (h *History) LoadAll(ctx context.Context) []schematic.HistoryItem {
	items, err := h.Items(ctx)
	if err != nil {
		slog.Warn("failed to load history", "error", err)
		return []schematic.HistoryItem{}
	}
	return items
}

// Items is LoadAll with the error surfaced, for callers that must tell an
// empty history from an unreadable one.
func (h *History) Items(ctx context.Context) ([]schematic.HistoryItem, error) {
	b, err := h.get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", schematic.ErrPersistenceRead, err)
	}
	items, err := b.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", schematic.ErrPersistenceRead, err)
	}
	return items, nil
}

// Get returns the record with id, or ErrNotFound.
func (h *History) Get(ctx context.Context, id string) (schematic.HistoryItem, error) {
	items, err := h.Items(ctx)
	if err != nil {
		return schematic.HistoryItem{}, err
	}
	for _, it := range items {
		if it.ID == id {
			return it, nil
		}
	}
	return schematic.HistoryItem{}, ErrNotFound
}

// ClearAll removes every record. Unlike Save and LoadAll, failures are
// returned to the caller.
func (h *History) ClearAll(ctx context.Context) error {
	b, err := h.get(ctx)
	if err != nil {
		return err
	}
	if err := b.Clear(ctx); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	return nil
}

// Close closes the backend if it was opened.
func (h *History) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.backend == nil {
		return nil
	}
	err := h.backend.Close()
	h.backend = nil
	return err
}
