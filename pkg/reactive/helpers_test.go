package reactive

import (
	"context"
	"sync"

	"github.com/vango-dev/reactor/pkg/observability"
)

// testSubscriber counts updates and optionally records them in a shared log.
type testSubscriber struct {
	id   uint64
	name string
	log  *callLog
	err  error
	mu   sync.Mutex
	hits int
}

func newTestSubscriber(name string, log *callLog) *testSubscriber {
	return &testSubscriber{id: nextID(), name: name, log: log}
}

func (s *testSubscriber) Update() error {
	s.mu.Lock()
	s.hits++
	s.mu.Unlock()
	if s.log != nil {
		s.log.add(s.name)
	}
	return s.err
}

func (s *testSubscriber) ID() uint64 {
	return s.id
}

func (s *testSubscriber) getHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits
}

// panicSubscriber panics on every update.
type panicSubscriber struct {
	id uint64
}

func (s *panicSubscriber) Update() error { panic("subscriber exploded") }
func (s *panicSubscriber) ID() uint64    { return s.id }

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	l.calls = append(l.calls, name)
	l.mu.Unlock()
}

func (l *callLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.calls))
	copy(out, l.calls)
	return out
}

// readAs reads key from o inside an evaluation of s.
func readAs(o *Observer, s Subscriber, key string) any {
	v, _ := o.Get(WithSubscriber(context.Background(), s), key)
	return v
}

type captureObserver struct {
	mu     sync.Mutex
	events []observability.Event
}

func (c *captureObserver) OnEvent(_ context.Context, e observability.Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

func (c *captureObserver) count(typ observability.EventType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func eventType(s string) observability.EventType {
	return observability.EventType(s)
}
