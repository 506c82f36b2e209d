package shared

import "encoding/json"

// Optional wraps a patch field so that "absent from the payload" and "present
// with a value" are distinguishable. A nullable field is expressed as
// Optional[*T]: present-with-nil means an explicit set-to-null.
type Optional[T any] struct {
	Value T
	Valid bool
}

// Some returns a present Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Valid: true}
}

// Get returns the value and whether it was present.
func (o Optional[T]) Get() (T, bool) {
	return o.Value, o.Valid
}

// UnmarshalJSON marks the field present whenever the key appears in the payload.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Valid = true
	return json.Unmarshal(data, &o.Value)
}

// MarshalJSON encodes the wrapped value; absent fields encode as null.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}
