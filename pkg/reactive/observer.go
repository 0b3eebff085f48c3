package reactive

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/vango-dev/reactor/pkg/observability"
)

// Observer is an object whose top-level keys have been turned into
// Properties. Reads and writes go through Get and Set and are written
// through to the original map or struct.
//
// Observation is shallow. A key whose value is itself a map or struct is one
// property; changes made inside that value are not seen.
type Observer struct {
	// value is the observed object: a map, or an addressable struct.
	value reflect.Value

	// keys lists property names in walk order.
	keys []string

	props map[string]*Property

	// mapMu guards the backing map, which all properties share.
	mapMu sync.RWMutex

	opts options
}

// Observe turns value into an Observer.
//
// Observable values are maps with string keys, structs, and non-nil pointers
// to either. Struct properties are the exported fields in declaration order;
// the `reactive:"name"` tag renames a field and `reactive:"-"` skips it. Map
// properties are the keys present now, sorted.
//
// Any other value, including nil, is not observable and Observe returns nil.
// Observing an *Observer returns it unchanged.
//
// A struct passed by value is copied; use a pointer to keep the caller's
// struct in sync.
func Observe(value any, opts ...Option) *Observer {
	if value == nil {
		return nil
	}
	if o, ok := value.(*Observer); ok {
		return o
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.IsNil() || rv.Type().Key().Kind() != reflect.String {
			return nil
		}
	case reflect.Struct:
		if !rv.CanAddr() {
			copied := reflect.New(rv.Type()).Elem()
			copied.Set(rv)
			rv = copied
		}
	default:
		return nil
	}

	o := &Observer{
		value: rv,
		props: make(map[string]*Property),
		opts:  applyOptions(opts),
	}
	o.walk()

	emit(context.Background(), o.opts, EventObserve, observability.LevelInfo, map[string]any{
		"kind": rv.Kind().String(),
		"type": rv.Type().String(),
		"keys": len(o.keys),
	})
	return o
}

// walk installs a property for every top-level key of the object.
func (o *Observer) walk() {
	switch o.value.Kind() {
	case reflect.Map:
		mapKeys := o.value.MapKeys()
		sort.Slice(mapKeys, func(i, j int) bool {
			return mapKeys[i].String() < mapKeys[j].String()
		})
		for _, k := range mapKeys {
			o.defineMapKey(k)
		}

	case reflect.Struct:
		t := o.value.Type()
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			name := field.Name
			if tag, ok := field.Tag.Lookup("reactive"); ok {
				if tag == "-" {
					continue
				}
				if tag != "" {
					name = tag
				}
			}
			o.defineField(name, o.value.Field(i))
		}
	}
}

func (o *Observer) defineMapKey(k reflect.Value) {
	m := o.value
	elem := m.Type().Elem()

	o.defineReactive(k.String(),
		func() any {
			o.mapMu.RLock()
			defer o.mapMu.RUnlock()
			v := m.MapIndex(k)
			if !v.IsValid() {
				return nil
			}
			return v.Interface()
		},
		func(v any) error {
			rv, err := coerce(v, elem)
			if err != nil {
				return fmt.Errorf("%w: key %q: %v", ErrTypeMismatch, k.String(), err)
			}
			o.mapMu.Lock()
			m.SetMapIndex(k, rv)
			o.mapMu.Unlock()
			return nil
		},
	)
}

func (o *Observer) defineField(name string, fv reflect.Value) {
	o.defineReactive(name,
		func() any {
			return fv.Interface()
		},
		func(v any) error {
			rv, err := coerce(v, fv.Type())
			if err != nil {
				return fmt.Errorf("%w: field %q: %v", ErrTypeMismatch, name, err)
			}
			fv.Set(rv)
			return nil
		},
	)
}

// defineReactive creates the property for key with a fresh registry.
func (o *Observer) defineReactive(key string, load func() any, store func(any) error) {
	if _, exists := o.props[key]; exists {
		// Two fields renamed to the same key: the first one wins.
		return
	}
	o.props[key] = newProperty(key, load, store, o.opts)
	o.keys = append(o.keys, key)
}

// Get returns the value of key, registering the subscriber in ctx on it.
// The boolean is false if the object had no such key.
func (o *Observer) Get(ctx context.Context, key string) (any, bool) {
	p, ok := o.props[key]
	if !ok {
		return nil, false
	}
	return p.Get(ctx), true
}

// Peek returns the value of key without registering anybody.
func (o *Observer) Peek(key string) (any, bool) {
	p, ok := o.props[key]
	if !ok {
		return nil, false
	}
	return p.Peek(), true
}

// Set writes value to key and notifies the subscribers of key. See
// Property.Set for the returned errors. Unknown keys yield ErrUnknownKey.
func (o *Observer) Set(ctx context.Context, key string, value any) error {
	p, ok := o.props[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return p.Set(ctx, value)
}

// Update atomically replaces the value of key with fn(current). See
// Property.Update. Unknown keys yield ErrUnknownKey.
func (o *Observer) Update(ctx context.Context, key string, fn func(current any) (any, error)) error {
	p, ok := o.props[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return p.Update(ctx, fn)
}

// Property returns the property for key.
func (o *Observer) Property(key string) (*Property, bool) {
	p, ok := o.props[key]
	return p, ok
}

// Keys returns the observed keys in walk order.
func (o *Observer) Keys() []string {
	keys := make([]string, len(o.keys))
	copy(keys, o.keys)
	return keys
}

// Len returns the number of observed keys.
func (o *Observer) Len() int {
	return len(o.keys)
}

// Has reports whether key is observed.
func (o *Observer) Has(key string) bool {
	_, ok := o.props[key]
	return ok
}

// Value returns the observed object: the map, or a pointer to the struct.
func (o *Observer) Value() any {
	if o.value.Kind() == reflect.Struct {
		return o.value.Addr().Interface()
	}
	return o.value.Interface()
}

// Snapshot returns the current values of all keys without registering anybody.
func (o *Observer) Snapshot() map[string]any {
	out := make(map[string]any, len(o.keys))
	for _, key := range o.keys {
		out[key] = o.props[key].Peek()
	}
	return out
}

// Unsubscribe removes s from the registry of every key.
// Returns the number of keys s was removed from.
func (o *Observer) Unsubscribe(s Subscriber) int {
	n := 0
	for _, key := range o.keys {
		if o.props[key].Unsubscribe(s) {
			n++
		}
	}
	return n
}
