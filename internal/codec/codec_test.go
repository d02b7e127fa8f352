package codec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// raw stores byte slices as they are, under a configurable bound.
type raw struct {
	bound Bound
}

func (raw) Encode(v []byte) ([]byte, error) { return v, nil }
func (raw) Decode(b []byte) ([]byte, error) { return b, nil }
func (r raw) Bound() Bound                  { return r.bound }

func TestEncodeChecked_bounded(t *testing.T) {
	c := raw{bound: Bound{MaxSize: 4}}

	b, err := EncodeChecked[[]byte](c, []byte("abcd"))
	require.NoError(t, err)
	require.Equal(t, "abcd", string(b))

	_, err = EncodeChecked[[]byte](c, []byte("abcde"))
	require.ErrorIs(t, err, ErrSizeExceeded)
}

func TestEncodeChecked_fixed(t *testing.T) {
	c := raw{bound: Bound{MaxSize: 4, IsFixedSize: true}}

	_, err := EncodeChecked[[]byte](c, []byte("abcd"))
	require.NoError(t, err)

	_, err = EncodeChecked[[]byte](c, []byte("abc"))
	require.ErrorIs(t, err, ErrSizeMismatch)
	_, err = EncodeChecked[[]byte](c, []byte("abcde"))
	require.ErrorIs(t, err, ErrSizeMismatch)
}

func TestEncodeChecked_unbounded(t *testing.T) {
	_, err := EncodeChecked[[]byte](raw{}, make([]byte, 1<<20))
	require.NoError(t, err)
	require.False(t, Unbounded.IsBounded())
}

func TestUint64(t *testing.T) {
	var c Uint64
	for _, v := range []uint64{0, 1, 42, math.MaxUint64} {
		b, err := EncodeChecked[uint64](c, v)
		require.NoError(t, err)
		require.Len(t, b, 8)
		got, err := c.Decode(b)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}

	_, err := c.Decode([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrCorruptEncoding)
}
