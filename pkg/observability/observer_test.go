package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vango-dev/reactor/pkg/observability"
)

type captureObserver struct {
	mu     sync.Mutex
	events []observability.Event
}

func (o *captureObserver) OnEvent(ctx context.Context, event observability.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
}

func (o *captureObserver) getEvents() []observability.Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.events
}

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level observability.Level
		want  string
	}{
		{observability.LevelVerbose, "DEBUG"},
		{observability.LevelInfo, "INFO"},
		{observability.LevelWarning, "WARN"},
		{observability.LevelError, "ERROR"},
		{3, "TRACE"},
		{21, "FATAL"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestLevel_SlogLevel(t *testing.T) {
	tests := []struct {
		level observability.Level
		want  slog.Level
	}{
		{observability.LevelVerbose, slog.LevelDebug},
		{observability.LevelInfo, slog.LevelInfo},
		{observability.LevelWarning, slog.LevelWarn},
		{observability.LevelError, slog.LevelError},
	}

	for _, tt := range tests {
		if got := tt.level.SlogLevel(); got != tt.want {
			t.Errorf("Level(%d).SlogLevel() = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestSlogObserver_OnEvent_LogsEventFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	observer := observability.NewSlogObserver(logger)

	observer.OnEvent(context.Background(), observability.Event{
		Type:      "reactive.set",
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "reactive",
		Data: map[string]any{
			"key":         "count",
			"subscribers": 2,
		},
	})

	output := buf.String()
	for _, want := range []string{"reactive.set", "source=reactive", "key=count", "subscribers=2"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected log output to contain %q, got %q", want, output)
		}
	}
}

func TestSlogObserver_OnEvent_RespectsHandlerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	observer := observability.NewSlogObserver(logger)

	observer.OnEvent(context.Background(), observability.Event{
		Type:  "reactive.track",
		Level: observability.LevelVerbose,
	})

	if buf.Len() != 0 {
		t.Errorf("verbose event should be filtered at info level, got %q", buf.String())
	}
}

func TestMultiObserver_BroadcastsToAllObservers(t *testing.T) {
	obs1 := &captureObserver{}
	obs2 := &captureObserver{}

	multi := observability.NewMultiObserver(obs1, nil, observability.NoOpObserver{}, obs2)
	if multi.Len() != 2 {
		t.Fatalf("expected nil and noop observers to be filtered, got %d", multi.Len())
	}

	multi.OnEvent(context.Background(), observability.Event{Type: "reactive.notify"})

	for i, obs := range []*captureObserver{obs1, obs2} {
		events := obs.getEvents()
		if len(events) != 1 || events[0].Type != "reactive.notify" {
			t.Errorf("observer %d: expected one reactive.notify event, got %v", i, events)
		}
	}
}

func TestIsNoOp(t *testing.T) {
	if !observability.IsNoOp(nil) {
		t.Error("nil observer should be treated as noop")
	}
	if !observability.IsNoOp(observability.NoOpObserver{}) {
		t.Error("NoOpObserver should be noop")
	}
	if observability.IsNoOp(&captureObserver{}) {
		t.Error("capture observer is not noop")
	}
}

func TestRegistry_GetAndRegister(t *testing.T) {
	if _, err := observability.GetObserver("noop"); err != nil {
		t.Fatalf("noop should be pre-registered: %v", err)
	}
	if _, err := observability.GetObserver("slog"); err != nil {
		t.Fatalf("slog should be pre-registered: %v", err)
	}
	if _, err := observability.GetObserver("missing"); err == nil {
		t.Fatal("expected error for unknown observer")
	}

	capture := &captureObserver{}
	observability.RegisterObserver("capture-test", capture)

	got, err := observability.GetObserver("capture-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != capture {
		t.Error("expected registered observer to be returned")
	}

	found := false
	for _, name := range observability.ObserverNames() {
		if name == "capture-test" {
			found = true
		}
	}
	if !found {
		t.Error("ObserverNames should list registered observer")
	}
}
