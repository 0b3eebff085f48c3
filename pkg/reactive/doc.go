// Package reactive provides fine-grained reactive state.
//
// Plain data is turned into observed data: reads made inside an evaluation
// register interest, and writes notify every interested party. There is no
// manual subscription wiring.
//
// # Core Types
//
// Observe wraps a map or struct. Each top-level key becomes a Property backed
// by its own Dep (dependency registry):
//
//	state := reactive.Observe(map[string]any{"count": 0})
//
//	ctx := reactive.WithSubscriber(context.Background(), view)
//	n, _ := state.Get(ctx, "count")  // view is now registered on "count"
//
//	_ = state.Set(context.Background(), "count", 1)  // view.Update() runs
//
// Values that are not maps or structs are not observable; Observe returns nil
// for them.
//
// Ref[T] is a single typed reactive value:
//
//	location := reactive.NewRef("/")
//	location.Get(ctx)
//	location.Set(ctx, "/about")
//
// Watch runs a function under its own evaluation and re-runs it whenever a
// value it read changes:
//
//	w, err := reactive.Watch(ctx, func(ctx context.Context) error {
//	    v, _ := state.Get(ctx, "count")
//	    fmt.Println("count is", v)
//	    return nil
//	})
//	defer w.Dispose()
//
// # Evaluation Context
//
// The currently active subscriber travels in a context.Context
// (WithSubscriber, SubscriberFrom). Nested and concurrent evaluations each
// carry their own subscriber, so reads are never attributed to the wrong party.
//
// # Notification
//
// Writes notify synchronously, in registration order. A write of an identical
// value is suppressed. A failing subscriber does not stop delivery to the
// others; all failures are joined and returned from Set.
//
// Observation is shallow: values nested inside a property are stored as-is.
package reactive
