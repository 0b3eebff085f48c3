package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/vango-dev/reactor/pkg/observability"
	"github.com/vango-dev/reactor/pkg/reactive"
)

// Mutation changes the state. It should only write through state.
type Mutation func(ctx context.Context, state *reactive.Observer, payload any) error

// Action performs work and commits mutations on s. Its result is returned
// from Dispatch.
type Action func(ctx context.Context, s *Store, payload any) (any, error)

// Getter derives a value from the state.
type Getter func(ctx context.Context, state *reactive.Observer) any

// Event types emitted by the store.
const (
	EventCommit   observability.EventType = "store.commit"
	EventDispatch observability.EventType = "store.dispatch"
	EventRestore  observability.EventType = "store.restore"
)

// Options configures a Store.
type Options struct {
	// State builds the initial state. Required.
	State func() map[string]any

	Mutations map[string]Mutation
	Actions   map[string]Action
	Getters   map[string]Getter

	// Logger receives commit and dispatch logs. Default: slog.Default().
	Logger *slog.Logger

	// Telemetry receives store and state events. Default: no-op.
	Telemetry observability.Observer

	// StateOptions are passed to reactive.Observe for the state.
	StateOptions []reactive.Option
}

// Store is a state container. It is safe for concurrent use as long as the
// registered mutations, actions and getters are.
type Store struct {
	state     *reactive.Observer
	mutations map[string]Mutation
	actions   map[string]Action
	getters   map[string]Getter
	logger    *slog.Logger
	telemetry observability.Observer
}

// New creates a Store, observing the object returned by opts.State.
func New(opts Options) (*Store, error) {
	if opts.State == nil {
		return nil, ErrNoState
	}

	telemetry := opts.Telemetry
	if telemetry == nil {
		telemetry = observability.NoOpObserver{}
	}

	stateOpts := append([]reactive.Option{
		reactive.WithTelemetry(telemetry),
		reactive.WithSource("store"),
	}, opts.StateOptions...)

	state := reactive.Observe(opts.State(), stateOpts...)
	if state == nil {
		return nil, ErrNoState
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		state:     state,
		mutations: copyMap(opts.Mutations),
		actions:   copyMap(opts.Actions),
		getters:   copyMap(opts.Getters),
		logger:    logger.With("component", "store"),
		telemetry: telemetry,
	}, nil
}

// State returns the observed state.
func (s *Store) State() *reactive.Observer {
	return s.state
}

// Commit runs the named mutation. Errors from subscribers notified by the
// mutation's writes are returned as well.
func (s *Store) Commit(ctx context.Context, mutation string, payload any) error {
	fn, ok := s.mutations[mutation]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMutation, mutation)
	}

	start := time.Now()
	err := fn(ctx, s.state, payload)
	s.record(ctx, EventCommit, mutation, start, err)
	return err
}

// Dispatch runs the named action and returns its result.
func (s *Store) Dispatch(ctx context.Context, action string, payload any) (any, error) {
	fn, ok := s.actions[action]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	start := time.Now()
	result, err := fn(ctx, s, payload)
	s.record(ctx, EventDispatch, action, start, err)
	return result, err
}

// Getter evaluates the named getter. Reads it makes are tracked against the
// subscriber in ctx.
func (s *Store) Getter(ctx context.Context, name string) (any, error) {
	fn, ok := s.getters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGetter, name)
	}
	return fn(ctx, s.state), nil
}

// Watch runs fn now and again whenever state it read changes.
// See reactive.Watch.
func (s *Store) Watch(ctx context.Context, fn func(ctx context.Context, state *reactive.Observer) error) (*reactive.Watcher, error) {
	return reactive.Watch(ctx, func(ctx context.Context) error {
		return fn(ctx, s.state)
	}, reactive.WithTelemetry(s.telemetry), reactive.WithSource("store"))
}

// Snapshot returns the current state values without tracking.
func (s *Store) Snapshot() map[string]any {
	return s.state.Snapshot()
}

// Restore writes every known key of values into the state. Keys the state
// does not have are reported with reactive.ErrUnknownKey but do not stop the
// remaining writes.
func (s *Store) Restore(ctx context.Context, values map[string]any) error {
	start := time.Now()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, k := range keys {
		v := values[k]
		if current, ok := s.state.Peek(k); ok {
			v = matchNumber(current, v)
		}
		if err := s.state.Set(ctx, k, v); err != nil {
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)
	s.record(ctx, EventRestore, "restore", start, err)
	return err
}

// Mutations lists the registered mutation names, sorted.
func (s *Store) Mutations() []string { return sortedKeys(s.mutations) }

// Actions lists the registered action names, sorted.
func (s *Store) Actions() []string { return sortedKeys(s.actions) }

// Getters lists the registered getter names, sorted.
func (s *Store) Getters() []string { return sortedKeys(s.getters) }

func (s *Store) record(ctx context.Context, typ observability.EventType, name string, start time.Time, err error) {
	duration := time.Since(start)
	if err != nil {
		s.logger.WarnContext(ctx, string(typ)+" failed", "name", name, "duration", duration, "error", err)
	} else {
		s.logger.DebugContext(ctx, string(typ), "name", name, "duration", duration)
	}

	if observability.IsNoOp(s.telemetry) {
		return
	}
	data := map[string]any{"name": name, "duration_ms": duration.Milliseconds()}
	level := observability.LevelInfo
	if err != nil {
		data[observability.ErrorKey] = err
		level = observability.LevelError
	}
	s.telemetry.OnEvent(ctx, observability.Event{
		Type:      typ,
		Level:     level,
		Timestamp: time.Now(),
		Source:    "store",
		Data:      data,
	})
}

func copyMap[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
