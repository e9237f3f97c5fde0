// Package field provides a tri-state optional for PATCH payloads: a field can
// be omitted (leave unchanged), explicitly null (clear), or carry a value.
package field

import (
	"bytes"
	"encoding/json"
)

// Opt distinguishes an omitted JSON field from an explicit null and from a
// present value. The zero Opt means "omitted".
type Opt[T any] struct {
	set  bool
	null bool
	val  T
}

// Set returns an Opt carrying v.
func Set[T any](v T) Opt[T] {
	return Opt[T]{set: true, val: v}
}

// Null returns an Opt carrying an explicit null.
func Null[T any]() Opt[T] {
	return Opt[T]{set: true, null: true}
}

// IsSet reports whether the field was present in the payload at all.
func (o Opt[T]) IsSet() bool { return o.set }

// IsNull reports whether the field was an explicit null.
func (o Opt[T]) IsNull() bool { return o.set && o.null }

// Value returns the carried value and whether one is present.
func (o Opt[T]) Value() (T, bool) {
	if !o.set || o.null {
		var zero T
		return zero, false
	}
	return o.val, true
}

// Ptr returns the carried value as a pointer, or nil for null/omitted.
func (o Opt[T]) Ptr() *T {
	if v, ok := o.Value(); ok {
		return &v
	}
	return nil
}

// Apply overwrites *dst when the field was present: null clears it to nil, a
// value replaces it. Omitted fields leave *dst untouched.
func (o Opt[T]) Apply(dst **T) {
	if !o.set {
		return
	}
	if o.null {
		*dst = nil
		return
	}
	v := o.val
	*dst = &v
}

// UnmarshalJSON is only invoked for present fields, so any call marks the Opt
// as set; a JSON null marks it null.
func (o *Opt[T]) UnmarshalJSON(data []byte) error {
	o.set = true
	if bytes.Equal(data, []byte("null")) {
		o.null = true
		return nil
	}
	return json.Unmarshal(data, &o.val)
}

// MarshalJSON renders null for omitted/null Opts so the type round-trips.
func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if !o.set || o.null {
		return []byte("null"), nil
	}
	return json.Marshal(o.val)
}
