package reactive

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestWatchRunsImmediatelyAndOnChange(t *testing.T) {
	ctx := context.Background()
	state := Observe(map[string]any{"count": 0})

	var seen []any
	w, err := Watch(ctx, func(ctx context.Context) error {
		v, _ := state.Get(ctx, "count")
		seen = append(seen, v)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Dispose()

	if w.Runs() != 1 {
		t.Fatalf("expected watcher to run once on creation, got %d", w.Runs())
	}

	_ = state.Set(ctx, "count", 1)
	_ = state.Set(ctx, "count", 1)
	_ = state.Set(ctx, "count", 2)

	if w.Runs() != 3 {
		t.Errorf("expected 3 runs, got %d", w.Runs())
	}
	if len(seen) != 3 || seen[2] != 2 {
		t.Errorf("unexpected values seen: %v", seen)
	}
}

func TestWatchDropsStaleDependencies(t *testing.T) {
	ctx := context.Background()
	state := Observe(map[string]any{"useA": true, "a": "a0", "b": "b0"})

	w, _ := Watch(ctx, func(ctx context.Context) error {
		useA, _ := state.Get(ctx, "useA")
		if useA.(bool) {
			state.Get(ctx, "a")
		} else {
			state.Get(ctx, "b")
		}
		return nil
	})
	defer w.Dispose()

	if w.Sources() != 2 {
		t.Fatalf("expected 2 sources, got %d", w.Sources())
	}

	_ = state.Set(ctx, "useA", false) // run 2: now depends on useA and b
	runs := w.Runs()

	_ = state.Set(ctx, "a", "a1")
	if w.Runs() != runs {
		t.Error("stale dependency a should no longer trigger the watcher")
	}

	_ = state.Set(ctx, "b", "b1")
	if w.Runs() != runs+1 {
		t.Errorf("b should trigger the watcher, runs=%d", w.Runs())
	}

	pa, _ := state.Property("a")
	if pa.Dep().Len() != 0 {
		t.Errorf("watcher should have left a's registry, %d left", pa.Dep().Len())
	}
}

func TestWatchOwnWritesDoNotRecurse(t *testing.T) {
	ctx := context.Background()
	state := Observe(map[string]any{"count": 0})

	w, err := Watch(ctx, func(ctx context.Context) error {
		v, _ := state.Get(ctx, "count")
		if n := v.(int); n < 100 {
			return state.Set(ctx, "count", n+1)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Dispose()

	if w.Runs() != 1 {
		t.Errorf("self-triggered notification must be ignored, got %d runs", w.Runs())
	}
	if v, _ := state.Peek("count"); v != 1 {
		t.Errorf("expected count 1, got %v", v)
	}
}

func TestWatchDropsWritesDuringRun(t *testing.T) {
	ctx := context.Background()
	state := Observe(map[string]any{"count": 0})

	var hold atomic.Bool
	entered := make(chan struct{})
	release := make(chan struct{})
	var seen atomic.Value

	w, err := Watch(ctx, func(ctx context.Context) error {
		v, _ := state.Get(ctx, "count")
		seen.Store(v)
		if hold.Load() {
			entered <- struct{}{}
			<-release
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Dispose()

	hold.Store(true)
	done := make(chan error, 1)
	go func() { done <- w.Run() }()
	<-entered
	hold.Store(false)

	// Another goroutine writes while the run is blocked.
	if err := state.Set(ctx, "count", 1); err != nil {
		t.Fatal(err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if w.Runs() != 2 || seen.Load() != 0 {
		t.Fatalf("write during a run must be dropped: runs=%d seen=%v", w.Runs(), seen.Load())
	}

	if err := w.Run(); err != nil {
		t.Fatal(err)
	}
	if seen.Load() != 1 {
		t.Errorf("Run after the write should see 1, got %v", seen.Load())
	}
}

func TestWatchDispose(t *testing.T) {
	ctx := context.Background()
	state := Observe(map[string]any{"count": 0})

	w, _ := Watch(ctx, func(ctx context.Context) error {
		state.Get(ctx, "count")
		return nil
	})
	w.Dispose()
	w.Dispose()

	if !w.Disposed() {
		t.Fatal("expected disposed")
	}
	_ = state.Set(ctx, "count", 1)
	if w.Runs() != 1 {
		t.Errorf("disposed watcher must not run, got %d runs", w.Runs())
	}
	if err := w.Run(); !errors.Is(err, ErrDisposed) {
		t.Errorf("expected ErrDisposed, got %v", err)
	}
}

func TestWatchCancelledContextDisposes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	state := Observe(map[string]any{"count": 0})

	w, _ := Watch(ctx, func(ctx context.Context) error {
		state.Get(ctx, "count")
		return nil
	})
	cancel()

	_ = state.Set(context.Background(), "count", 1)
	if !w.Disposed() {
		t.Error("watcher should dispose once its context is done")
	}
	if w.Runs() != 1 {
		t.Errorf("expected no re-run after cancel, got %d", w.Runs())
	}
}

func TestWatchErrorsReachWriter(t *testing.T) {
	ctx := context.Background()
	state := Observe(map[string]any{"count": 0})
	boom := errors.New("boom")

	w, err := Watch(ctx, func(ctx context.Context) error {
		v, _ := state.Get(ctx, "count")
		if v.(int) > 0 {
			return boom
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Dispose()

	if err := state.Set(ctx, "count", 1); !errors.Is(err, boom) {
		t.Errorf("expected watcher error to reach the writer, got %v", err)
	}
}

func TestNewSubscriber(t *testing.T) {
	calls := 0
	a := NewSubscriber(func() error { calls++; return nil })
	b := NewSubscriber(nil)

	if a.ID() == b.ID() {
		t.Error("each subscriber needs its own identity")
	}
	_ = a.Update()
	if err := b.Update(); err != nil {
		t.Errorf("nil func should be a no-op, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if NextID() >= NextID() {
		t.Error("IDs must increase")
	}
}
