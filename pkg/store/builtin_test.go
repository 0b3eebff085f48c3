package store

import (
	"context"
	"errors"
	"testing"

	"github.com/vango-dev/reactor/pkg/reactive"
)

func TestSetMutationPayloads(t *testing.T) {
	ctx := context.Background()
	state := reactive.Observe(map[string]any{"title": ""})

	payloads := []any{
		SetPayload{Key: "title", Value: "a"},
		&SetPayload{Key: "title", Value: "b"},
		map[string]any{"key": "title", "value": "c"},
	}
	want := []string{"a", "b", "c"}
	for i, p := range payloads {
		if err := SetMutation(ctx, state, p); err != nil {
			t.Fatalf("payload %d: %v", i, err)
		}
		if v, _ := state.Peek("title"); v != want[i] {
			t.Fatalf("payload %d: expected %q, got %v", i, want[i], v)
		}
	}

	for _, bad := range []any{nil, "title", (*SetPayload)(nil), map[string]any{"value": 1}} {
		if err := SetMutation(ctx, state, bad); !errors.Is(err, ErrInvalidPayload) {
			t.Errorf("payload %#v: expected ErrInvalidPayload, got %v", bad, err)
		}
	}
}

func TestIncrementMutation(t *testing.T) {
	ctx := context.Background()
	state := reactive.Observe(map[string]any{
		"i":   1,
		"i64": int64(10),
		"f":   0.5,
		"s":   "x",
	})

	tests := []struct {
		payload any
		key     string
		want    any
	}{
		{"i", "i", 2},
		{IncrementPayload{Key: "i", By: 3}, "i", 5},
		{IncrementPayload{Key: "i", By: 0}, "i", 5},
		{IncrementPayload{Key: "i", By: -1}, "i", 4},
		{map[string]any{"key": "i", "by": 0}, "i", 4},
		{map[string]any{"key": "i"}, "i", 5},
		{map[string]any{"key": "i64", "by": float64(-2)}, "i64", int64(8)},
		{map[string]any{"key": "f", "by": 0.25}, "f", 0.75},
	}
	for _, tt := range tests {
		if err := IncrementMutation(ctx, state, tt.payload); err != nil {
			t.Fatalf("%#v: %v", tt.payload, err)
		}
		if v, _ := state.Peek(tt.key); v != tt.want {
			t.Fatalf("%#v: expected %#v, got %#v", tt.payload, tt.want, v)
		}
	}

	if err := IncrementMutation(ctx, state, map[string]any{"key": "i", "by": 0.5}); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("fractional step on int: expected ErrInvalidPayload, got %v", err)
	}
	if err := IncrementMutation(ctx, state, "s"); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("string value: expected ErrInvalidPayload, got %v", err)
	}
	if v, _ := state.Peek("s"); v != "x" {
		t.Errorf("failed increment changed the value to %#v", v)
	}
	if err := IncrementMutation(ctx, state, "missing"); !errors.Is(err, reactive.ErrUnknownKey) {
		t.Errorf("missing key: expected ErrUnknownKey, got %v", err)
	}
}
