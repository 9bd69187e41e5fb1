package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
)

// Optional is a field of a partial update: either unset, or set to a value.
//
// WHY NOT A POINTER?
// A *string cannot tell "absent" from "explicitly null". For a snippet's
// projectId those mean different things: absent leaves the snippet where it
// is, null moves it out of its project. Optional[*string] expresses both.
//
// JSON decoding only calls UnmarshalJSON for keys that are present in the
// document, so an absent key leaves Set == false automatically.
type Optional[T any] struct {
	Set   bool
	Value T
}

// Some returns an Optional set to v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// ErrNullValue is returned when a JSON null is sent for a field whose type
// has no null, such as a title or isFavorite. Only pointer, slice, map and
// interface fields accept null.
var ErrNullValue = errors.New("null is not allowed for this field")

// UnmarshalJSON marks the field as set and decodes the value.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) && !nullable[T]() {
		return ErrNullValue
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Set = true
	o.Value = v
	return nil
}

// MarshalJSON writes the value, or null when unset.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

func nullable[T any]() bool {
	switch reflect.TypeFor[T]().Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
		return true
	}
	return false
}
