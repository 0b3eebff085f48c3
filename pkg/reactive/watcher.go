package reactive

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/vango-dev/reactor/pkg/observability"
)

// Watcher runs a function as an evaluation and runs it again, synchronously,
// whenever a value it read changes. Before each run it leaves every registry
// it joined during the previous run, so its dependencies always match the
// last run.
//
// Writes made by the function to values it depends on do not re-trigger it.
// A notification that arrives while a run is in progress is dropped, whichever
// goroutine made the write, since the two cannot be told apart. Callers with
// writers on other goroutines call Run after the writes to catch up.
type Watcher struct {
	id uint64

	// ctx is the parent of every evaluation context. Once it is done the
	// watcher disposes itself on the next notification.
	ctx context.Context

	fn func(ctx context.Context) error

	// sources are the registries joined during the last run.
	sources   []*Dep
	sourcesMu sync.Mutex

	running  atomic.Bool
	disposed atomic.Bool
	runs     atomic.Int64

	opts options
}

// Watch creates a Watcher and runs fn once. The error is the first run's.
// The watcher stays active even if the first run fails.
func Watch(ctx context.Context, fn func(ctx context.Context) error, opts ...Option) (*Watcher, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	w := &Watcher{
		id:   nextID(),
		ctx:  ctx,
		fn:   fn,
		opts: applyOptions(opts),
	}
	return w, w.run()
}

// ID returns the unique identifier for this watcher.
// Implements the Subscriber interface.
func (w *Watcher) ID() uint64 {
	return w.id
}

// Update re-runs the function. Implements the Subscriber interface.
func (w *Watcher) Update() error {
	if w.disposed.Load() {
		return nil
	}
	if w.ctx.Err() != nil {
		w.Dispose()
		return nil
	}
	return w.run()
}

// Run re-runs the function immediately.
func (w *Watcher) Run() error {
	if w.disposed.Load() {
		return ErrDisposed
	}
	return w.run()
}

// Runs returns how many times the function has run.
func (w *Watcher) Runs() int {
	return int(w.runs.Load())
}

// Sources returns the number of registries joined during the last run.
func (w *Watcher) Sources() int {
	w.sourcesMu.Lock()
	defer w.sourcesMu.Unlock()
	return len(w.sources)
}

// Dispose leaves every registry and stops future runs. Safe to call twice.
func (w *Watcher) Dispose() {
	if !w.disposed.CompareAndSwap(false, true) {
		return
	}
	w.leaveSources()
	emit(w.ctx, w.opts, EventWatcherDispose, observability.LevelVerbose, map[string]any{"watcher": w.id})
}

// Disposed reports whether Dispose has been called.
func (w *Watcher) Disposed() bool {
	return w.disposed.Load()
}

func (w *Watcher) run() error {
	// Notifications during a run are dropped. See Watcher.
	if !w.running.CompareAndSwap(false, true) {
		return nil
	}
	defer w.running.Store(false)

	w.leaveSources()
	w.runs.Add(1)

	err := w.fn(WithSubscriber(w.ctx, w))

	data := map[string]any{"watcher": w.id, "sources": w.Sources()}
	level := observability.LevelVerbose
	if err != nil {
		data[observability.ErrorKey] = err
		level = observability.LevelWarning
	}
	emit(w.ctx, w.opts, EventWatcherRun, level, data)
	return err
}

func (w *Watcher) addSource(d *Dep) {
	w.sourcesMu.Lock()
	defer w.sourcesMu.Unlock()
	for _, existing := range w.sources {
		if existing == d {
			return
		}
	}
	w.sources = append(w.sources, d)
}

func (w *Watcher) leaveSources() {
	w.sourcesMu.Lock()
	sources := w.sources
	w.sources = nil
	w.sourcesMu.Unlock()

	for _, d := range sources {
		d.RemoveSub(w)
	}
}
