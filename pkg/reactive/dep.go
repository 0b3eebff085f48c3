package reactive

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
)

// Dep is the dependency registry of a single reactive value. It holds the
// subscribers that read the value, in registration order, and notifies all
// of them when the value changes. A Dep does not own its subscribers.
type Dep struct {
	id uint64

	// key names the value this registry belongs to, for error reporting.
	key string

	// allowDuplicates keeps repeated registrations of the same subscriber.
	allowDuplicates bool

	// subs are the registered subscribers, oldest first.
	subs []Subscriber

	// mu protects subs.
	mu sync.RWMutex
}

// NewDep creates an empty registry.
func NewDep() *Dep {
	return &Dep{id: nextID()}
}

func newKeyedDep(key string, allowDuplicates bool) *Dep {
	return &Dep{id: nextID(), key: key, allowDuplicates: allowDuplicates}
}

// ID returns the unique identifier for this registry.
func (d *Dep) ID() uint64 {
	return d.id
}

// AddSub registers s. Registration is idempotent per subscriber ID unless the
// registry was created with duplicate registrations enabled.
// Reports whether the registry grew.
func (d *Dep) AddSub(s Subscriber) bool {
	if s == nil {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.allowDuplicates {
		sid := s.ID()
		for _, existing := range d.subs {
			if existing.ID() == sid {
				return false
			}
		}
	}

	d.subs = append(d.subs, s)
	return true
}

// RemoveSub removes every registration of s, keeping the order of the rest.
// Reports whether anything was removed.
func (d *Dep) RemoveSub(s Subscriber) bool {
	if s == nil {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	sid := s.ID()
	kept := d.subs[:0]
	for _, existing := range d.subs {
		if existing.ID() != sid {
			kept = append(kept, existing)
		}
	}
	removed := len(kept) != len(d.subs)
	for i := len(kept); i < len(d.subs); i++ {
		d.subs[i] = nil
	}
	d.subs = kept
	return removed
}

// Len returns the number of registrations.
func (d *Dep) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs)
}

// Subscribers returns a copy of the registrations, oldest first.
func (d *Dep) Subscribers() []Subscriber {
	d.mu.RLock()
	defer d.mu.RUnlock()
	subs := make([]Subscriber, len(d.subs))
	copy(subs, d.subs)
	return subs
}

// Notify calls Update on every registered subscriber, in registration order,
// on the calling goroutine. Every subscriber is called even if an earlier one
// fails or panics; the failures are returned joined, each as a
// *SubscriberError.
//
// The subscriber list is copied before the fan-out, so subscribers may
// register or unregister themselves while being notified.
func (d *Dep) Notify() error {
	_, err := d.notify()
	return err
}

// notify is Notify that also reports the fan-out size.
func (d *Dep) notify() (int, error) {
	d.mu.RLock()
	subs := make([]Subscriber, len(d.subs))
	copy(subs, d.subs)
	d.mu.RUnlock()

	var errs []error
	for _, sub := range subs {
		if err := d.invoke(sub); err != nil {
			errs = append(errs, err)
		}
	}
	return len(subs), errors.Join(errs...)
}

// invoke runs one subscriber, converting a panic into an error.
func (d *Dep) invoke(sub Subscriber) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &SubscriberError{
				SubscriberID: sub.ID(),
				Key:          d.key,
				Err:          fmt.Errorf("panic: %v", r),
				Panic:        r,
				Stack:        debug.Stack(),
			}
		}
	}()

	if uerr := sub.Update(); uerr != nil {
		return &SubscriberError{SubscriberID: sub.ID(), Key: d.key, Err: uerr}
	}
	return nil
}
