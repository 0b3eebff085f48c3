package reactive

import "context"

// subscriberKey carries the active subscriber in a context.
type subscriberKey struct{}

// trackingFrame is the context value. A frame with a nil subscriber marks an
// untracked region that shadows any outer subscriber.
type trackingFrame struct {
	sub Subscriber
}

// WithSubscriber returns a context in which reads of reactive values register
// s as interested. The parent context is unchanged, so leaving the evaluation
// is simply going back to using the parent.
func WithSubscriber(ctx context.Context, s Subscriber) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, subscriberKey{}, trackingFrame{sub: s})
}

// Untracked returns a context in which reads register nobody, even if ctx
// carries a subscriber.
func Untracked(ctx context.Context) context.Context {
	return WithSubscriber(ctx, nil)
}

// SubscriberFrom returns the subscriber active in ctx, or nil if no
// evaluation is active.
func SubscriberFrom(ctx context.Context) Subscriber {
	if ctx == nil {
		return nil
	}
	frame, _ := ctx.Value(subscriberKey{}).(trackingFrame)
	return frame.sub
}

// IsTracking reports whether reads made with ctx register a subscriber.
func IsTracking(ctx context.Context) bool {
	return SubscriberFrom(ctx) != nil
}

// Track runs fn as an evaluation of s: every reactive read fn makes through
// the context it receives registers s.
//
// Example:
//
//	err := reactive.Track(ctx, view, func(ctx context.Context) error {
//	    title, _ := state.Get(ctx, "title")
//	    return view.Render(title)
//	})
func Track(ctx context.Context, s Subscriber, fn func(ctx context.Context) error) error {
	return fn(WithSubscriber(ctx, s))
}

// register adds the subscriber active in ctx to d and tells it about d if it
// keeps track of its sources. Returns the registered subscriber or nil.
func register(ctx context.Context, d *Dep) Subscriber {
	sub := SubscriberFrom(ctx)
	if sub == nil {
		return nil
	}
	d.AddSub(sub)
	if t, ok := sub.(sourceTracker); ok {
		t.addSource(d)
	}
	return sub
}
