package reactive

import (
	"math"
	"reflect"
)

// Equals is the strict equality policy.
//
// Scalars compare with ==, so NaN never equals itself. Other comparable
// values compare with ==; slices, maps and other non-comparable values fall
// back to reflect.DeepEqual.
func Equals[T any](a, b T) bool {
	switch av := any(a).(type) {
	case int:
		bv, ok := any(b).(int)
		return ok && av == bv
	case int64:
		bv, ok := any(b).(int64)
		return ok && av == bv
	case uint64:
		bv, ok := any(b).(uint64)
		return ok && av == bv
	case float64:
		bv, ok := any(b).(float64)
		return ok && av == bv
	case string:
		bv, ok := any(b).(string)
		return ok && av == bv
	case bool:
		bv, ok := any(b).(bool)
		return ok && av == bv
	}

	aa, bb := any(a), any(b)
	if aa == nil || bb == nil {
		return aa == nil && bb == nil
	}

	va, vb := reflect.ValueOf(aa), reflect.ValueOf(bb)
	if va.Type() != vb.Type() {
		return false
	}
	if va.Comparable() && vb.Comparable() {
		return va.Equal(vb)
	}
	return reflect.DeepEqual(aa, bb)
}

// SafeEquals is the equality policy for values whose identity says nothing
// about their contents. NaN equals NaN, and pointers, maps, slices, funcs
// and channels always count as changed. Everything else compares as Equals.
func SafeEquals[T any](a, b T) bool {
	aa, bb := any(a), any(b)
	if isNaN(aa) && isNaN(bb) {
		return true
	}
	if aa != nil {
		switch reflect.TypeOf(aa).Kind() {
		case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func,
			reflect.Chan, reflect.UnsafePointer:
			return false
		}
	}
	return Equals(a, b)
}

func isNaN(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return math.IsNaN(rv.Float())
	}
	return false
}
