package stashdb

import (
	"fmt"

	"github.com/S0me0neR0man/jobstash/internal/btree"
	"github.com/S0me0neR0man/jobstash/internal/codec"
)

// Map is a durable sorted map from uint64 keys to values of type T.
//
// IMPORTANT: Map does not provide thread safety
type Map[T any] struct {
	tree  *btree.Tree
	codec codec.Codec[T]
}

// Get returns the value stored at key.
func (m *Map[T]) Get(key uint64) (T, bool, error) {
	var zero T
	b, ok, err := m.tree.Get(key)
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := m.codec.Decode(b)
	if err != nil {
		return zero, false, fmt.Errorf("map get %d: %w", key, err)
	}
	return v, true, nil
}

// Insert stores v at key and returns the value it replaced. The encoding is
// checked against the codec bound and the previous value is decoded before
// anything is written, so a failed insert leaves the map unchanged.
func (m *Map[T]) Insert(key uint64, v T) (T, bool, error) {
	var zero T
	b, err := codec.EncodeChecked(m.codec, v)
	if err != nil {
		return zero, false, fmt.Errorf("map insert %d: %w", key, err)
	}
	old, replaced, err := m.previous(key)
	if err != nil {
		return zero, false, fmt.Errorf("map insert %d: %w", key, err)
	}
	if _, _, err := m.tree.Insert(key, b); err != nil {
		return zero, false, err
	}
	return old, replaced, nil
}

// Remove deletes key and returns the value it held. A value that does not
// decode is left in place.
func (m *Map[T]) Remove(key uint64) (T, bool, error) {
	var zero T
	old, ok, err := m.previous(key)
	if err != nil || !ok {
		if err != nil {
			err = fmt.Errorf("map remove %d: %w", key, err)
		}
		return zero, false, err
	}
	if _, _, err := m.tree.Remove(key); err != nil {
		return zero, false, err
	}
	return old, true, nil
}

// previous reads and decodes the value at key ahead of a mutation.
func (m *Map[T]) previous(key uint64) (T, bool, error) {
	var zero T
	b, ok, err := m.tree.Get(key)
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := m.codec.Decode(b)
	if err != nil {
		return zero, false, fmt.Errorf("previous value: %w", err)
	}
	return v, true, nil
}

// Len returns the number of keys.
func (m *Map[T]) Len() uint64 {
	return m.tree.Len()
}

// Range calls fn for every key >= from in ascending order until fn returns
// false. A value that fails to decode stops the walk with an error.
func (m *Map[T]) Range(from uint64, fn func(key uint64, v T) bool) error {
	var decodeErr error
	err := m.tree.Range(from, func(key uint64, b []byte) bool {
		v, err := m.codec.Decode(b)
		if err != nil {
			decodeErr = fmt.Errorf("map range %d: %w", key, err)
			return false
		}
		return fn(key, v)
	})
	if err != nil {
		return err
	}
	return decodeErr
}
