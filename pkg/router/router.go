package router

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vango-dev/reactor/pkg/observability"
	"github.com/vango-dev/reactor/pkg/reactive"
)

// Route is an entry of the route table.
type Route struct {
	// Name identifies the route. Optional, unique when set.
	Name string `json:"name"`

	// Path is the pattern, e.g. "/users/:id" or "/docs/*path".
	Path string `json:"path"`
}

// Match is the result of resolving a location.
type Match struct {
	Route  Route
	Path   string
	Query  string
	Params map[string]string
}

// Param returns the named parameter, or "".
func (m Match) Param(name string) string {
	return m.Params[name]
}

// Option configures a Router.
type Option func(*config)

type config struct {
	logger    *slog.Logger
	telemetry observability.Observer
}

// WithLogger sets the logger used to report rejected locations.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithTelemetry sets the observer receiving events of the location value.
func WithTelemetry(obs observability.Observer) Option {
	return func(c *config) {
		c.telemetry = obs
	}
}

// Router holds the current location as reactive state.
type Router struct {
	history History
	routes  []Route
	root    *routeNode
	current *reactive.Ref[string]
	logger  *slog.Logger

	stop      func()
	closeOnce sync.Once
	closed    bool
	mu        sync.RWMutex
}

// New builds the route table and starts following history. An invalid
// initial location is replaced by "/".
func New(history History, routes []Route, opts ...Option) (*Router, error) {
	cfg := config{logger: slog.Default(), telemetry: observability.NoOpObserver{}}
	for _, opt := range opts {
		opt(&cfg)
	}

	root := newRouteNode("")
	names := make(map[string]bool, len(routes))
	table := make([]Route, len(routes))
	for i, rt := range routes {
		if err := validatePattern(rt.Path); err != nil {
			return nil, err
		}
		if rt.Name != "" {
			if names[rt.Name] {
				return nil, fmt.Errorf("%w: name %q", ErrDuplicateRoute, rt.Name)
			}
			names[rt.Name] = true
		}
		table[i] = rt
		if err := root.insert(&table[i]); err != nil {
			return nil, err
		}
	}

	r := &Router{
		history: history,
		routes:  table,
		root:    root,
		logger:  cfg.logger.With("component", "router"),
	}

	initial := "/"
	if c, err := Canonicalize(history.Location()); err == nil {
		initial = c.String()
	} else {
		r.logger.Warn("invalid initial location", "location", history.Location(), "error", err)
	}
	r.current = reactive.NewRef(initial,
		reactive.WithTelemetry(cfg.telemetry),
		reactive.WithSource("router"),
	)

	r.stop = history.Listen(r.setLocation)
	return r, nil
}

// Current returns the reactive location value.
func (r *Router) Current() *reactive.Ref[string] {
	return r.current
}

// Location returns the canonical current location, registering the
// subscriber in ctx.
func (r *Router) Location(ctx context.Context) string {
	return r.current.Get(ctx)
}

// Match resolves the current location. The read is tracked like Location.
func (r *Router) Match(ctx context.Context) (Match, bool) {
	m, err := r.Resolve(r.Location(ctx))
	return m, err == nil && m.Route.Path != ""
}

// Resolve matches location against the route table without touching the
// current location. A location matching no route yields an empty Match and
// a nil error.
func (r *Router) Resolve(location string) (Match, error) {
	c, err := Canonicalize(location)
	if err != nil {
		return Match{}, err
	}

	params := make(map[string]string)
	node, err := r.root.match(splitPath(c.Path), params)
	if err != nil || node == nil {
		return Match{}, err
	}
	return Match{
		Route:  *node.route,
		Path:   c.Path,
		Query:  c.Query,
		Params: params,
	}, nil
}

// Push navigates to location. The location is checked before it reaches
// history; when history is a MemoryHistory it gets a new entry, otherwise
// only the current location changes.
func (r *Router) Push(ctx context.Context, location string) error {
	c, err := Canonicalize(location)
	if err != nil {
		return err
	}
	if r.isClosed() {
		return ErrClosed
	}
	if mh, ok := r.history.(*MemoryHistory); ok {
		return mh.PushContext(ctx, c.String())
	}
	return r.current.Set(ctx, c.String())
}

// Routes returns the route table in registration order.
func (r *Router) Routes() []Route {
	out := make([]Route, len(r.routes))
	copy(out, r.routes)
	return out
}

// Close stops following history. The current location keeps its value.
func (r *Router) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		r.stop()
	})
}

func (r *Router) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// setLocation is the history listener. Rejected locations leave the current
// location unchanged.
func (r *Router) setLocation(ctx context.Context, location string) error {
	c, err := Canonicalize(location)
	if err != nil {
		r.logger.WarnContext(ctx, "rejected location", "location", location, "error", err)
		return fmt.Errorf("location %q: %w", location, err)
	}
	return r.current.Set(ctx, c.String())
}
