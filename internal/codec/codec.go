// Package codec defines how typed values are turned into bytes for the store
// and the size policy every stored encoding must obey.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrSizeExceeded    = errors.New("codec: encoding exceeds the maximum size")
	ErrSizeMismatch    = errors.New("codec: fixed-size encoding has the wrong length")
	ErrCorruptEncoding = errors.New("codec: corrupt encoding")
)

// Bound is the size policy of an encoding. The zero value is Unbounded.
type Bound struct {
	MaxSize     uint32
	IsFixedSize bool
}

var Unbounded = Bound{}

func (b Bound) IsBounded() bool {
	return b.MaxSize > 0
}

// Check validates an encoding of n bytes against the bound.
func (b Bound) Check(n int) error {
	if !b.IsBounded() {
		return nil
	}
	if b.IsFixedSize {
		if n != int(b.MaxSize) {
			return fmt.Errorf("%w: expected %d bytes, found %d", ErrSizeMismatch, b.MaxSize, n)
		}
		return nil
	}
	if n > int(b.MaxSize) {
		return fmt.Errorf("%w: expected <= %d bytes, found %d", ErrSizeExceeded, b.MaxSize, n)
	}
	return nil
}

// Codec converts values of type T to and from bytes.
//
// Decode(Encode(v)) must equal v, and Encode must be deterministic.
type Codec[T any] interface {
	Encode(T) ([]byte, error)
	Decode([]byte) (T, error)
	Bound() Bound
}

// EncodeChecked encodes v and enforces the codec's bound. Every write path
// goes through it.
func EncodeChecked[T any](c Codec[T], v T) ([]byte, error) {
	b, err := c.Encode(v)
	if err != nil {
		return nil, err
	}
	if err := c.Bound().Check(len(b)); err != nil {
		return nil, err
	}
	return b, nil
}

// Uint64 is the fixed-size little endian encoding of uint64.
type Uint64 struct{}

func (Uint64) Encode(v uint64) ([]byte, error) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b, nil
}

func (Uint64) Decode(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("%w: uint64 needs 8 bytes, found %d", ErrCorruptEncoding, len(b))
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (Uint64) Bound() Bound {
	return Bound{MaxSize: 8, IsFixedSize: true}
}
