package reactive

import (
	"context"
	"sync"
	"time"

	"github.com/vango-dev/reactor/pkg/observability"
)

// Event types emitted by the engine.
const (
	EventObserve        observability.EventType = "reactive.observe"
	EventTrack          observability.EventType = "reactive.track"
	EventSet            observability.EventType = "reactive.set"
	EventSetSuppressed  observability.EventType = "reactive.set.suppressed"
	EventNotify         observability.EventType = "reactive.notify"
	EventNotifyError    observability.EventType = "reactive.notify.error"
	EventWatcherRun     observability.EventType = "reactive.watcher.run"
	EventWatcherDispose observability.EventType = "reactive.watcher.dispose"
)

// Property is one observed key of an object: an accessor pair over the
// backing storage plus the key's dependency registry. A Property keeps the
// same Dep for its whole life.
type Property struct {
	key string
	dep *Dep

	// load and store are the accessors over the backing storage.
	load  func() any
	store func(any) error

	// mu serializes access to the backing storage.
	mu sync.RWMutex

	opts options
}

// NewProperty creates a free-standing property holding initial.
func NewProperty(key string, initial any, opts ...Option) *Property {
	value := initial
	return newProperty(key,
		func() any { return value },
		func(v any) error { value = v; return nil },
		applyOptions(opts),
	)
}

func newProperty(key string, load func() any, store func(any) error, opts options) *Property {
	return &Property{
		key:   key,
		dep:   newKeyedDep(key, opts.allowDuplicates),
		load:  load,
		store: store,
		opts:  opts,
	}
}

// Key returns the property's name.
func (p *Property) Key() string {
	return p.key
}

// Dep returns the property's dependency registry.
func (p *Property) Dep() *Dep {
	return p.dep
}

// Get returns the current value. If ctx carries a subscriber, the subscriber
// is registered on this property first. Get never fails.
func (p *Property) Get(ctx context.Context) any {
	p.mu.RLock()
	value := p.load()
	p.mu.RUnlock()

	// Track after releasing the value lock so a subscriber may read freely.
	if sub := register(ctx, p.dep); sub != nil {
		p.emit(ctx, EventTrack, observability.LevelVerbose, map[string]any{
			"key":        p.key,
			"subscriber": sub.ID(),
		})
	}

	return value
}

// Peek returns the current value without registering anybody.
func (p *Property) Peek() any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.load()
}

// Set stores value and notifies every registered subscriber, synchronously.
// A value identical to the current one is ignored: nothing is stored and
// nobody is notified.
//
// The returned error is either a storage error (ErrTypeMismatch), in which
// case nothing changed, or the joined *SubscriberError values from the
// notification, in which case the value was stored and every subscriber was
// still called.
func (p *Property) Set(ctx context.Context, value any) error {
	p.mu.Lock()
	old := p.load()
	if p.opts.equal(old, value) {
		p.mu.Unlock()
		p.emit(ctx, EventSetSuppressed, observability.LevelVerbose, map[string]any{"key": p.key})
		return nil
	}
	if err := p.store(value); err != nil {
		p.mu.Unlock()
		return err
	}
	p.mu.Unlock()

	p.emit(ctx, EventSet, observability.LevelVerbose, map[string]any{"key": p.key})
	return p.notify(ctx)
}

// Update atomically replaces the value with fn(current) and notifies the
// subscribers if it changed. fn runs with the value lock held, so it must not
// read or write this property. An error from fn aborts the write and is
// returned as is. Otherwise the errors are those of Set.
func (p *Property) Update(ctx context.Context, fn func(current any) (any, error)) error {
	p.mu.Lock()
	old := p.load()
	value, err := fn(old)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	if p.opts.equal(old, value) {
		p.mu.Unlock()
		p.emit(ctx, EventSetSuppressed, observability.LevelVerbose, map[string]any{"key": p.key})
		return nil
	}
	if err := p.store(value); err != nil {
		p.mu.Unlock()
		return err
	}
	p.mu.Unlock()

	p.emit(ctx, EventSet, observability.LevelVerbose, map[string]any{"key": p.key})
	return p.notify(ctx)
}

// Unsubscribe removes s from this property's registry.
func (p *Property) Unsubscribe(s Subscriber) bool {
	return p.dep.RemoveSub(s)
}

func (p *Property) notify(ctx context.Context) error {
	n, err := p.dep.notify()
	p.emit(ctx, EventNotify, observability.LevelVerbose, map[string]any{
		"key":                   p.key,
		observability.FanoutKey: n,
	})
	for _, se := range SubscriberErrors(err) {
		p.emit(ctx, EventNotifyError, observability.LevelError, map[string]any{
			"key":                  p.key,
			"subscriber":           se.SubscriberID,
			"panicked":             se.Panicked(),
			observability.ErrorKey: se,
		})
	}
	return err
}

func (p *Property) emit(ctx context.Context, typ observability.EventType, level observability.Level, data map[string]any) {
	emit(ctx, p.opts, typ, level, data)
}

// emit sends an event unless telemetry is disabled.
func emit(ctx context.Context, o options, typ observability.EventType, level observability.Level, data map[string]any) {
	if observability.IsNoOp(o.telemetry) {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	o.telemetry.OnEvent(ctx, observability.Event{
		Type:      typ,
		Level:     level,
		Timestamp: time.Now(),
		Source:    o.source,
		Data:      data,
	})
}
