package router

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// History is a source of locations. It reports location changes to its
// listeners, in the way a browser reports hash changes.
type History interface {
	// Location returns the current location.
	Location() string

	// Listen registers fn to be called with the new location after every
	// change. ctx is the context of the call that caused the change. The
	// returned function removes the listener.
	Listen(fn func(ctx context.Context, location string) error) (stop func())
}

// MemoryHistory is an in-memory History with a back/forward stack.
// Locations may be given with or without a leading "#".
type MemoryHistory struct {
	mu        sync.Mutex
	entries   []string
	index     int
	listeners map[int]func(context.Context, string) error
	nextID    int
}

// NewMemoryHistory creates a history whose only entry is initial.
func NewMemoryHistory(initial string) *MemoryHistory {
	return &MemoryHistory{
		entries:   []string{Fragment(initial)},
		listeners: make(map[int]func(context.Context, string) error),
	}
}

// Location returns the current entry.
func (h *MemoryHistory) Location() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[h.index]
}

// Len returns the number of entries.
func (h *MemoryHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Listen implements History.
func (h *MemoryHistory) Listen(fn func(ctx context.Context, location string) error) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

// Push adds a new entry after the current one, dropping any forward
// entries, and notifies listeners. Listener errors are joined.
func (h *MemoryHistory) Push(location string) error {
	return h.PushContext(context.Background(), location)
}

// PushContext is Push with the context handed to listeners.
func (h *MemoryHistory) PushContext(ctx context.Context, location string) error {
	location = Fragment(location)
	h.mu.Lock()
	h.entries = append(h.entries[:h.index+1], location)
	h.index++
	h.mu.Unlock()
	return h.emit(ctx, location)
}

// Replace overwrites the current entry and notifies listeners.
func (h *MemoryHistory) Replace(location string) error {
	location = Fragment(location)
	h.mu.Lock()
	h.entries[h.index] = location
	h.mu.Unlock()
	return h.emit(context.Background(), location)
}

// Back moves to the previous entry. It reports false, without notifying,
// when there is none.
func (h *MemoryHistory) Back() (bool, error) {
	return h.move(-1)
}

// Forward moves to the next entry.
func (h *MemoryHistory) Forward() (bool, error) {
	return h.move(1)
}

func (h *MemoryHistory) move(delta int) (bool, error) {
	h.mu.Lock()
	next := h.index + delta
	if next < 0 || next >= len(h.entries) {
		h.mu.Unlock()
		return false, nil
	}
	h.index = next
	location := h.entries[next]
	h.mu.Unlock()
	return true, h.emit(context.Background(), location)
}

// emit calls listeners in registration order, outside the lock.
func (h *MemoryHistory) emit(ctx context.Context, location string) error {
	h.mu.Lock()
	ids := make([]int, 0, len(h.listeners))
	for id := range h.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(context.Context, string) error, len(ids))
	for i, id := range ids {
		fns[i] = h.listeners[id]
	}
	h.mu.Unlock()

	var errs []error
	for _, fn := range fns {
		if err := fn(ctx, location); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
