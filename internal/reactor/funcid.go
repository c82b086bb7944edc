package reactor

import "reflect"

// funcPtr recovers an identity for a Fn value good enough to answer
// "is this the same registered callback". Go has no == for func
// values; reflect's code-pointer is the idiomatic escape hatch the
// standard library itself uses (e.g. testing/quick, runtime-internal
// callback registries) for this exact comparison.
func funcPtr(fn Fn) uintptr {
	if fn == nil {
		return 0
	}
	return reflect.ValueOf(fn).Pointer()
}
