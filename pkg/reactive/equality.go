package reactive

import "reflect"

// Equality decides whether two values are the same observable result.
// It controls both write no-op suppression on atoms and change suppression
// on derivation outputs: an equal result means no version bump and no
// propagation to dependents.
type Equality[T any] func(a, b T) bool

// EqualsDefault is the default equality policy: Go == for the basic
// comparable kinds and reflect.DeepEqual for everything else. For pointer
// types == compares identity, which keeps the default conservative for
// reference-like values.
func EqualsDefault[T any](a, b T) bool {
	switch av := any(a).(type) {
	case int:
		return av == any(b).(int)
	case int8:
		return av == any(b).(int8)
	case int16:
		return av == any(b).(int16)
	case int32:
		return av == any(b).(int32)
	case int64:
		return av == any(b).(int64)
	case uint:
		return av == any(b).(uint)
	case uint8:
		return av == any(b).(uint8)
	case uint16:
		return av == any(b).(uint16)
	case uint32:
		return av == any(b).(uint32)
	case uint64:
		return av == any(b).(uint64)
	case float32:
		return av == any(b).(float32)
	case float64:
		return av == any(b).(float64)
	case string:
		return av == any(b).(string)
	case bool:
		return av == any(b).(bool)
	default:
		// Fall back to reflect.DeepEqual for slices, maps, structs, etc.
		return reflect.DeepEqual(a, b)
	}
}

// Identity returns the strict identity policy for comparable types:
// plain ==, so pointers compare by reference and structs field-by-field.
// Use it when DeepEqual semantics are too loose or too expensive.
func Identity[T comparable]() Equality[T] {
	return func(a, b T) bool {
		return a == b
	}
}

// DeepEqual is reflect.DeepEqual as an equality policy, for callers that
// want structural comparison even on comparable types.
func DeepEqual[T any](a, b T) bool {
	return reflect.DeepEqual(a, b)
}
