package reactive

import "reflect"

// Identical reports whether b is the same value as a, the rule a write uses
// to decide that nothing changed.
//
// Values of different dynamic types are never identical. Maps, pointers,
// channels and slices compare by reference (slices also by length). Funcs are
// identical only when both are nil. Other comparable values compare with ==.
// Structs and arrays that are not comparable are never identical.
func Identical(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	va := reflect.ValueOf(a)
	vb := reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}

	switch va.Kind() {
	case reflect.Map, reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	case reflect.Func:
		return va.IsNil() && vb.IsNil()
	}

	if !va.Type().Comparable() {
		return false
	}
	return comparableEqual(a, b)
}

// comparableEqual is a == b, treating a runtime comparison panic (an
// interface field holding an uncomparable value) as "not equal".
func comparableEqual(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}
