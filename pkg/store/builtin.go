package store

import (
	"context"
	"fmt"

	"github.com/vango-dev/reactor/pkg/reactive"
)

// Names under which Builtins registers the generic mutations.
const (
	MutationSet       = "set"
	MutationIncrement = "increment"
)

// SetPayload is the payload of SetMutation. A map with "key" and "value"
// entries is accepted too.
type SetPayload struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// IncrementPayload is the payload of IncrementMutation. By is used as given,
// zero included. A bare key string or a map with "key" and optional "by"
// entries is accepted too; those forms default By to 1.
type IncrementPayload struct {
	Key string  `json:"key"`
	By  float64 `json:"by"`
}

// SetMutation writes payload.Value to payload.Key.
func SetMutation(ctx context.Context, state *reactive.Observer, payload any) error {
	p, err := toSetPayload(payload)
	if err != nil {
		return err
	}
	return state.Set(ctx, p.Key, p.Value)
}

// IncrementMutation adds payload.By to the numeric value at payload.Key.
// Integer values stay integers when By is whole.
func IncrementMutation(ctx context.Context, state *reactive.Observer, payload any) error {
	p, err := toIncrementPayload(payload)
	if err != nil {
		return err
	}

	return state.Update(ctx, p.Key, func(current any) (any, error) {
		return increment(p, current)
	})
}

func increment(p IncrementPayload, current any) (any, error) {
	switch v := current.(type) {
	case int:
		if p.By != float64(int(p.By)) {
			return nil, fmt.Errorf("%w: cannot add %v to int %q", ErrInvalidPayload, p.By, p.Key)
		}
		return v + int(p.By), nil
	case int64:
		if p.By != float64(int64(p.By)) {
			return nil, fmt.Errorf("%w: cannot add %v to int64 %q", ErrInvalidPayload, p.By, p.Key)
		}
		return v + int64(p.By), nil
	case float64:
		return v + p.By, nil
	}
	return nil, fmt.Errorf("%w: %q holds %T, not a number", ErrInvalidPayload, p.Key, current)
}

// Builtins returns the generic mutations, keyed by name, for hosts that have
// no domain-specific ones.
func Builtins() map[string]Mutation {
	return map[string]Mutation{
		MutationSet:       SetMutation,
		MutationIncrement: IncrementMutation,
	}
}

func toSetPayload(payload any) (SetPayload, error) {
	switch p := payload.(type) {
	case SetPayload:
		return p, nil
	case *SetPayload:
		if p != nil {
			return *p, nil
		}
	case map[string]any:
		key, ok := p["key"].(string)
		if ok {
			return SetPayload{Key: key, Value: p["value"]}, nil
		}
	}
	return SetPayload{}, fmt.Errorf("%w: set expects {key, value}, got %T", ErrInvalidPayload, payload)
}

func toIncrementPayload(payload any) (IncrementPayload, error) {
	switch p := payload.(type) {
	case IncrementPayload:
		return p, nil
	case string:
		return IncrementPayload{Key: p, By: 1}, nil
	case map[string]any:
		key, ok := p["key"].(string)
		if !ok {
			break
		}
		out := IncrementPayload{Key: key, By: 1}
		if by, present := p["by"]; present {
			switch n := by.(type) {
			case float64:
				out.By = n
			case int:
				out.By = float64(n)
			default:
				return IncrementPayload{}, fmt.Errorf("%w: by must be a number, got %T", ErrInvalidPayload, by)
			}
		}
		return out, nil
	}
	return IncrementPayload{}, fmt.Errorf("%w: increment expects {key, by}, got %T", ErrInvalidPayload, payload)
}
