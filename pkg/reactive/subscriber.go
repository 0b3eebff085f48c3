package reactive

// Subscriber is anything that can be notified when a property it read changes.
type Subscriber interface {
	// Update reacts to a change. It runs synchronously on the writer's stack.
	// A returned error is reported back to the writer; it does not stop
	// delivery to other subscribers.
	Update() error

	// ID returns a unique identifier for this subscriber.
	// Registries use it to deduplicate registrations and to remove a subscriber.
	ID() uint64
}

// subscriberFunc adapts a plain function to Subscriber.
type subscriberFunc struct {
	id uint64
	fn func() error
}

// NewSubscriber returns a Subscriber that calls fn on every update.
// Each call allocates a fresh identity.
func NewSubscriber(fn func() error) Subscriber {
	return &subscriberFunc{id: nextID(), fn: fn}
}

func (s *subscriberFunc) Update() error {
	if s.fn == nil {
		return nil
	}
	return s.fn()
}

func (s *subscriberFunc) ID() uint64 {
	return s.id
}

// sourceTracker is implemented by subscribers that want to know which
// registries they joined, so they can leave them later (see Watcher).
type sourceTracker interface {
	addSource(d *Dep)
}
