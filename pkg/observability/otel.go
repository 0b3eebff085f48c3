package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrorKey is the Data key under which emitters place an error value.
const ErrorKey = "error"

// TraceObserver records events on the OpenTelemetry span carried by the
// event's context. Events outside a recording span are dropped.
type TraceObserver struct {
	prefix string
}

// NewTraceObserver creates a TraceObserver. Attribute keys are prefixed with
// prefix (default "reactor").
func NewTraceObserver(prefix string) *TraceObserver {
	if prefix == "" {
		prefix = "reactor"
	}
	return &TraceObserver{prefix: prefix}
}

func (o *TraceObserver) OnEvent(ctx context.Context, event Event) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	attrs := make([]attribute.KeyValue, 0, len(event.Data)+2)
	attrs = append(attrs,
		attribute.String(o.prefix+".source", event.Source),
		attribute.String(o.prefix+".level", event.Level.String()),
	)
	for k, v := range event.Data {
		attrs = append(attrs, toAttribute(o.prefix+"."+k, v))
	}

	span.AddEvent(string(event.Type),
		trace.WithAttributes(attrs...),
		trace.WithTimestamp(event.Timestamp),
	)

	if event.Level >= LevelError {
		if err, ok := event.Data[ErrorKey].(error); ok {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Error, string(event.Type))
		}
	}
}

func toAttribute(key string, v any) attribute.KeyValue {
	switch val := v.(type) {
	case string:
		return attribute.String(key, val)
	case bool:
		return attribute.Bool(key, val)
	case int:
		return attribute.Int(key, val)
	case int64:
		return attribute.Int64(key, val)
	case uint64:
		return attribute.Int64(key, int64(val))
	case float64:
		return attribute.Float64(key, val)
	case error:
		return attribute.String(key, val.Error())
	default:
		return attribute.String(key, fmt.Sprintf("%v", val))
	}
}
