package reactive

import (
	"context"
	"sync"

	"github.com/vango-dev/reactor/pkg/observability"
)

// Ref is a single typed reactive value.
// Reading it with Get registers the subscriber carried by the context;
// changing it with Set notifies every registered subscriber.
type Ref[T any] struct {
	dep *Dep

	// value is the current value.
	value T

	// mu protects the value.
	mu sync.RWMutex

	// equal overrides the identity check when set.
	equal func(T, T) bool

	opts options
}

// NewRef creates a Ref holding initial.
func NewRef[T any](initial T, opts ...Option) *Ref[T] {
	o := applyOptions(opts)
	return &Ref[T]{
		dep:   newKeyedDep(o.source, o.allowDuplicates),
		value: initial,
		opts:  o,
	}
}

// Get returns the current value and registers the subscriber in ctx.
func (r *Ref[T]) Get(ctx context.Context) T {
	r.mu.RLock()
	value := r.value
	r.mu.RUnlock()

	if sub := register(ctx, r.dep); sub != nil {
		emit(ctx, r.opts, EventTrack, observability.LevelVerbose, map[string]any{
			"ref":        r.dep.id,
			"subscriber": sub.ID(),
		})
	}
	return value
}

// Peek returns the current value without registering anybody.
func (r *Ref[T]) Peek() T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.value
}

// Set updates the value and notifies subscribers if it changed.
func (r *Ref[T]) Set(ctx context.Context, value T) error {
	r.mu.Lock()
	changed := !r.equals(r.value, value)
	if changed {
		r.value = value
	}
	r.mu.Unlock()

	return r.afterWrite(ctx, changed)
}

// Update atomically reads and replaces the value.
// The function receives the current value and returns the new value.
func (r *Ref[T]) Update(ctx context.Context, fn func(T) T) error {
	r.mu.Lock()
	newValue := fn(r.value)
	changed := !r.equals(r.value, newValue)
	if changed {
		r.value = newValue
	}
	r.mu.Unlock()

	return r.afterWrite(ctx, changed)
}

// WithEquals returns the ref configured with a typed equality function.
func (r *Ref[T]) WithEquals(fn func(T, T) bool) *Ref[T] {
	r.equal = fn
	return r
}

// Dep returns the ref's dependency registry.
func (r *Ref[T]) Dep() *Dep {
	return r.dep
}

// Unsubscribe removes s from the ref's registry.
func (r *Ref[T]) Unsubscribe(s Subscriber) bool {
	return r.dep.RemoveSub(s)
}

func (r *Ref[T]) equals(a, b T) bool {
	if r.equal != nil {
		return r.equal(a, b)
	}
	return r.opts.equal(any(a), any(b))
}

func (r *Ref[T]) afterWrite(ctx context.Context, changed bool) error {
	if !changed {
		emit(ctx, r.opts, EventSetSuppressed, observability.LevelVerbose, map[string]any{"ref": r.dep.id})
		return nil
	}

	emit(ctx, r.opts, EventSet, observability.LevelVerbose, map[string]any{"ref": r.dep.id})
	n, err := r.dep.notify()
	emit(ctx, r.opts, EventNotify, observability.LevelVerbose, map[string]any{
		"ref":                   r.dep.id,
		observability.FanoutKey: n,
	})
	for _, se := range SubscriberErrors(err) {
		emit(ctx, r.opts, EventNotifyError, observability.LevelError, map[string]any{
			"ref":                  r.dep.id,
			"subscriber":           se.SubscriberID,
			observability.ErrorKey: se,
		})
	}
	return err
}
