package store

import (
	"context"
	"fmt"
	"math"
	"reflect"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// EncodeSnapshot encodes state values as a protobuf google.protobuf.Struct.
// Slices and string-keyed maps of any element type are accepted; numbers
// are stored as doubles.
func EncodeSnapshot(values map[string]any) ([]byte, error) {
	normalized, err := normalizeMap(values)
	if err != nil {
		return nil, err
	}
	st, err := structpb.NewStruct(normalized)
	if err != nil {
		return nil, fmt.Errorf("store: encode snapshot: %w", err)
	}
	return proto.Marshal(st)
}

// DecodeSnapshot decodes a snapshot produced by EncodeSnapshot. Numbers come
// back as float64, lists as []any and objects as map[string]any.
func DecodeSnapshot(data []byte) (map[string]any, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("store: decode snapshot: %w", err)
	}
	return st.AsMap(), nil
}

// Persister stores encoded snapshots by name.
type Persister interface {
	Save(ctx context.Context, name string, data []byte) error

	// Load returns ErrSnapshotNotFound (possibly wrapped) for unknown names.
	Load(ctx context.Context, name string) ([]byte, error)
}

// Save encodes the current state and stores it under name.
func (s *Store) Save(ctx context.Context, p Persister, name string) error {
	data, err := EncodeSnapshot(s.Snapshot())
	if err != nil {
		return err
	}
	if err := p.Save(ctx, name, data); err != nil {
		return fmt.Errorf("store: save snapshot %q: %w", name, err)
	}
	s.logger.InfoContext(ctx, "snapshot saved", "name", name, "bytes", len(data))
	return nil
}

// Load reads the snapshot stored under name and restores it into the state.
func (s *Store) Load(ctx context.Context, p Persister, name string) error {
	data, err := p.Load(ctx, name)
	if err != nil {
		return fmt.Errorf("store: load snapshot %q: %w", name, err)
	}
	values, err := DecodeSnapshot(data)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "snapshot loaded", "name", name, "keys", len(values))
	return s.Restore(ctx, values)
}

func normalizeMap(in map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(in))
	for k, v := range in {
		nv, err := normalize(v)
		if err != nil {
			return nil, fmt.Errorf("store: encode snapshot: key %q: %w", k, err)
		}
		out[k] = nv
	}
	return out, nil
}

// normalize rewrites v into the shapes structpb.NewValue understands.
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch v.(type) {
	case bool, string, []byte,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return normalize(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil, nil
		}
		list := make([]any, rv.Len())
		for i := range list {
			nv, err := normalize(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			list[i] = nv
		}
		return list, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("map key type %s is not string", rv.Type().Key())
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			nv, err := normalize(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			m[iter.Key().String()] = nv
		}
		return m, nil
	}
	return nil, fmt.Errorf("unsupported type %T", v)
}

// matchNumber converts a decoded float64 back to the numeric type of
// current when that loses nothing, so restoring does not turn ints into
// floats. float64(math.MaxInt) rounds up to 2^63, which is out of range.
func matchNumber(current, v any) any {
	f, ok := v.(float64)
	if !ok || current == nil {
		return v
	}
	switch current.(type) {
	case int:
		if f == math.Trunc(f) && f >= math.MinInt && f < math.MaxInt {
			return int(f)
		}
	case int64:
		if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
			return int64(f)
		}
	case float32:
		return float32(f)
	}
	return v
}
