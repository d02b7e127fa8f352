package cell

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/S0me0neR0man/jobstash/internal/codec"
	"github.com/S0me0neR0man/jobstash/internal/memory"
	"github.com/S0me0neR0man/jobstash/internal/region"
)

func openRegion(t *testing.T, mem memory.Memory) *region.Region {
	t.Helper()
	m, err := region.NewManager(mem, zap.NewNop(), region.WithPageSize(region.MinPageSize))
	require.NoError(t, err)
	r, err := m.Get(0)
	require.NoError(t, err)
	return r
}

func TestInit_fresh(t *testing.T) {
	r := openRegion(t, memory.NewVector())
	c, err := Init[uint64](r, codec.Uint64{}, 7)
	require.NoError(t, err)
	require.EqualValues(t, 7, c.Get())
	require.EqualValues(t, 1, r.Size())
}

func TestCell_restart(t *testing.T) {
	mem := memory.NewVector()
	c, err := Init[uint64](openRegion(t, mem), codec.Uint64{}, 0)
	require.NoError(t, err)

	old, err := c.Set(41)
	require.NoError(t, err)
	require.EqualValues(t, 0, old)
	old, err = c.Set(42)
	require.NoError(t, err)
	require.EqualValues(t, 41, old)

	// the initial value is ignored once the cell holds data
	c2, err := Init[uint64](openRegion(t, mem.Reopen()), codec.Uint64{}, 100)
	require.NoError(t, err)
	require.EqualValues(t, 42, c2.Get())
}

func TestCell_zeroedRegion(t *testing.T) {
	r := openRegion(t, memory.NewVector())
	_, err := r.Grow(1)
	require.NoError(t, err)

	c, err := Init[uint64](r, codec.Uint64{}, 5)
	require.NoError(t, err)
	require.EqualValues(t, 5, c.Get())
}

func TestCell_corrupt(t *testing.T) {
	mem := memory.NewVector()
	r := openRegion(t, mem)
	_, err := Init[uint64](r, codec.Uint64{}, 1)
	require.NoError(t, err)
	require.NoError(t, r.WriteAt([]byte("BAD"), 0))

	_, err = Init[uint64](openRegion(t, mem.Reopen()), codec.Uint64{}, 1)
	require.ErrorIs(t, err, codec.ErrCorruptEncoding)
}

// text is a variable-size codec used to check growth and size policy.
type text struct {
	max uint32
}

func (text) Encode(s string) ([]byte, error) { return []byte(s), nil }
func (text) Decode(b []byte) (string, error) { return string(b), nil }
func (t text) Bound() codec.Bound            { return codec.Bound{MaxSize: t.max} }

func TestCell_growsAndBounds(t *testing.T) {
	mem := memory.NewVector()
	r := openRegion(t, mem)
	c, err := Init[string](r, text{max: 2000}, "")
	require.NoError(t, err)

	long := string(make([]byte, 1500))
	_, err = c.Set(long)
	require.NoError(t, err)
	require.EqualValues(t, 3, r.Size())

	old, err := c.Set(string(make([]byte, 2001)))
	require.ErrorIs(t, err, codec.ErrSizeExceeded)
	require.Equal(t, long, old)
	require.Equal(t, long, c.Get())

	c2, err := Init[string](openRegion(t, mem.Reopen()), text{max: 2000}, "")
	require.NoError(t, err)
	require.Equal(t, long, c2.Get())
}
