// Package optional distinguishes "field absent" from "field set" in JSON
// request bodies, so partial updates never clear data by accident.
package optional

import (
	"bytes"
	"encoding/json"
)

// Field records whether a JSON key was present and, if so, its value.
// An explicit null sets Present and Null and leaves Value at its zero value.
type Field[T any] struct {
	Present bool
	Null    bool
	Value   T
}

// Of returns a present, non-null field holding v.
func Of[T any](v T) Field[T] {
	return Field[T]{Present: true, Value: v}
}

// Null returns a present field that was explicitly set to null.
func Null[T any]() Field[T] {
	return Field[T]{Present: true, Null: true}
}

// UnmarshalJSON is only invoked when the key exists in the document.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Present = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.Null = true
		var zero T
		f.Value = zero
		return nil
	}
	f.Null = false
	return json.Unmarshal(data, &f.Value)
}

// MarshalJSON writes null for absent or null fields.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.Present || f.Null {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// IsSet reports whether the field carries a non-null value.
func (f Field[T]) IsSet() bool {
	return f.Present && !f.Null
}
