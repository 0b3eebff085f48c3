package reactive

import (
	"fmt"
	"reflect"
)

// coerce converts v into a value that can be stored in a slot of type t.
// Assignable values pass through. Numbers convert between numeric kinds when
// no precision is lost, so decoded JSON numbers fit integer fields.
func coerce(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		switch t.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("nil is not a valid %s", t)
	}

	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}

	if isNumeric(rv.Kind()) && isNumeric(t.Kind()) {
		converted := rv.Convert(t)
		if converted.Convert(rv.Type()).Interface() == rv.Interface() {
			return converted, nil
		}
		return reflect.Value{}, fmt.Errorf("%v does not fit in %s", v, t)
	}

	return reflect.Value{}, fmt.Errorf("%T is not assignable to %s", v, t)
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
