package model

import (
	"bytes"
	"encoding/json"
)

// Optional distinguishes an absent field from an explicit null.
// The zero value is absent. Decoding JSON null yields a set, null Optional.
type Optional[T any] struct {
	set   bool
	valid bool
	value T
}

// Some returns a present, non-null Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{set: true, valid: true, value: v}
}

// Null returns a present Optional holding null.
func Null[T any]() Optional[T] {
	return Optional[T]{set: true}
}

// IsSet reports whether the field was supplied at all.
func (o Optional[T]) IsSet() bool { return o.set }

// IsNull reports whether the field was supplied as null.
func (o Optional[T]) IsNull() bool { return o.set && !o.valid }

// IsZero lets encoding/json omitzero drop absent fields.
func (o Optional[T]) IsZero() bool { return !o.set }

// Get returns the value and true when the field is present and non-null.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.set && o.valid
}

// Ptr returns a pointer to the value, or nil when absent or null.
func (o Optional[T]) Ptr() *T {
	if !o.set || !o.valid {
		return nil
	}
	v := o.value
	return &v
}

// UnmarshalJSON is only called for keys present in the document.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		o.valid = false
		o.value = zero
		return nil
	}
	if err := json.Unmarshal(data, &o.value); err != nil {
		return err
	}
	o.valid = true
	return nil
}

// MarshalJSON writes the value, or null when absent or null.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.set || !o.valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}
