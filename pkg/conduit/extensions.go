package conduit

import "reflect"

// Extensions is a per-request bag of typed values. Each Go type has at most
// one slot; middleware typically defines an unexported key type per value.
// The zero value is ready to use.
type Extensions struct {
	m map[reflect.Type]any
}

// ExtensionView is read-only access to an Extensions bag.
type ExtensionView interface {
	Lookup(t reflect.Type) (any, bool)
	Len() int
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Lookup returns the value stored under t.
func (e *Extensions) Lookup(t reflect.Type) (any, bool) {
	if e == nil || e.m == nil {
		return nil, false
	}
	v, ok := e.m[t]
	return v, ok
}

// Len reports the number of stored values.
func (e *Extensions) Len() int {
	if e == nil {
		return 0
	}
	return len(e.m)
}

// Insert stores v under its type, returning the previous value if any.
func Insert[T any](e *Extensions, v T) (T, bool) {
	if e.m == nil {
		e.m = make(map[reflect.Type]any)
	}
	t := typeOf[T]()
	prev, ok := e.m[t]
	e.m[t] = v
	if !ok {
		var zero T
		return zero, false
	}
	pv, _ := prev.(T)
	return pv, true
}

// Get fetches the value stored under type T.
func Get[T any](e ExtensionView) (T, bool) {
	var zero T
	if e == nil {
		return zero, false
	}
	v, ok := e.Lookup(typeOf[T]())
	if !ok {
		return zero, false
	}
	tv, ok := v.(T)
	return tv, ok
}

// Remove deletes and returns the value stored under type T.
func Remove[T any](e *Extensions) (T, bool) {
	var zero T
	if e == nil || e.m == nil {
		return zero, false
	}
	t := typeOf[T]()
	v, ok := e.m[t]
	if !ok {
		return zero, false
	}
	delete(e.m, t)
	tv, _ := v.(T)
	return tv, true
}
