package reactive

import "sync/atomic"

// globalIDCounter is the source of unique IDs for registries and subscribers.
var globalIDCounter uint64

// nextID returns the next unique ID.
// IDs are monotonically increasing and never reused.
func nextID() uint64 {
	return atomic.AddUint64(&globalIDCounter, 1)
}

// NextID returns a fresh process-wide identifier. Subscriber implementations
// outside this package use it to satisfy Subscriber.ID.
func NextID() uint64 {
	return nextID()
}
