package reactive

import "github.com/vango-dev/reactor/pkg/observability"

// Option is a functional option for configuring observed values.
type Option func(*options)

// options holds configuration shared by Observer, Property and Ref.
type options struct {
	// allowDuplicates keeps every registration instead of one per subscriber.
	allowDuplicates bool

	// equal replaces the default identity check used to suppress writes.
	equal func(a, b any) bool

	// telemetry receives engine events.
	telemetry observability.Observer

	// source names the emitter in telemetry events.
	source string
}

// WithDuplicateRegistrations makes registries keep one entry per read instead
// of one per subscriber. A subscriber that read a value N times is then
// updated N times per change.
func WithDuplicateRegistrations() Option {
	return func(o *options) {
		o.allowDuplicates = true
	}
}

// WithEquals sets the function used to decide whether a write changes the
// value. Writes for which fn(old, new) is true are suppressed.
func WithEquals(fn func(a, b any) bool) Option {
	return func(o *options) {
		o.equal = fn
	}
}

// WithTelemetry sends engine events (observe, track, set, notify) to obs.
func WithTelemetry(obs observability.Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.telemetry = obs
		}
	}
}

// WithSource names the emitter in telemetry events (default "reactive").
func WithSource(source string) Option {
	return func(o *options) {
		o.source = source
	}
}

// applyOptions applies the given options over the defaults.
func applyOptions(opts []Option) options {
	o := options{
		telemetry: observability.NoOpObserver{},
		source:    "reactive",
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.equal == nil {
		o.equal = Identical
	}
	return o
}
