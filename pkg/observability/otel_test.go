package observability_test

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vango-dev/reactor/pkg/observability"
)

// recordingSpan captures span calls on top of the noop implementation.
type recordingSpan struct {
	noop.Span
	events []string
	errs   []error
	status codes.Code
}

func (s *recordingSpan) IsRecording() bool { return true }

func (s *recordingSpan) AddEvent(name string, _ ...trace.EventOption) {
	s.events = append(s.events, name)
}

func (s *recordingSpan) RecordError(err error, _ ...trace.EventOption) {
	s.errs = append(s.errs, err)
}

func (s *recordingSpan) SetStatus(code codes.Code, _ string) {
	s.status = code
}

func TestTraceObserver_AddsSpanEvents(t *testing.T) {
	span := &recordingSpan{}
	ctx := trace.ContextWithSpan(context.Background(), span)

	obs := observability.NewTraceObserver("")
	obs.OnEvent(ctx, observability.Event{
		Type:   "reactive.set",
		Level:  observability.LevelVerbose,
		Source: "reactive",
		Data:   map[string]any{"key": "count", "subscribers": 2},
	})

	if len(span.events) != 1 || span.events[0] != "reactive.set" {
		t.Fatalf("expected one reactive.set span event, got %v", span.events)
	}
	if span.status != codes.Unset {
		t.Errorf("verbose event must not change status, got %v", span.status)
	}
}

func TestTraceObserver_RecordsErrors(t *testing.T) {
	span := &recordingSpan{}
	ctx := trace.ContextWithSpan(context.Background(), span)
	boom := errors.New("boom")

	observability.NewTraceObserver("test").OnEvent(ctx, observability.Event{
		Type:  "reactive.notify.error",
		Level: observability.LevelError,
		Data:  map[string]any{observability.ErrorKey: boom},
	})

	if len(span.errs) != 1 || !errors.Is(span.errs[0], boom) {
		t.Fatalf("expected boom to be recorded, got %v", span.errs)
	}
	if span.status != codes.Error {
		t.Errorf("expected error status, got %v", span.status)
	}
}

func TestTraceObserver_IgnoresNonRecordingSpan(t *testing.T) {
	// No span in context: SpanFromContext returns a non-recording span.
	observability.NewTraceObserver("").OnEvent(context.Background(), observability.Event{
		Type:  "reactive.notify.error",
		Level: observability.LevelError,
	})
}
