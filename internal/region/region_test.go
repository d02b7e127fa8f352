package region

import (
	"encoding/binary"
	"log"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/S0me0neR0man/jobstash/internal/memory"
)

const testPageSize = 1024

var (
	once   sync.Once
	logger *zap.Logger
)

func getTestLogger() *zap.Logger {
	once.Do(func() {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			log.Fatal(err)
		}
	})
	return logger
}

func newTestManager(t *testing.T, mem memory.Memory) *Manager {
	t.Helper()
	m, err := NewManager(mem, getTestLogger(), WithPageSize(testPageSize))
	require.NoError(t, err)
	return m
}

func TestManager_init(t *testing.T) {
	mem := memory.NewVector()
	m := newTestManager(t, mem)

	require.EqualValues(t, testPageSize, m.PageSize())
	require.EqualValues(t, 0, m.PageCount())
	require.Empty(t, m.Layout())
	require.EqualValues(t, alignUp(headerBytes, testPageSize), mem.Size())

	r, err := m.Get(3)
	require.NoError(t, err)
	require.EqualValues(t, 0, r.Size())
	require.EqualValues(t, 3, r.ID())

	same, err := m.Get(3)
	require.NoError(t, err)
	require.True(t, r == same)
}

func TestManager_Get_invalid(t *testing.T) {
	m := newTestManager(t, memory.NewVector())
	_, err := m.Get(MaxRegions)
	require.ErrorIs(t, err, ErrInvalidRegionID)

	_, err = m.Get(MaxRegions - 1)
	require.NoError(t, err)
}

func TestRegion_Grow(t *testing.T) {
	m := newTestManager(t, memory.NewVector())
	r, err := m.Get(0)
	require.NoError(t, err)

	old, err := r.Grow(2)
	require.NoError(t, err)
	require.EqualValues(t, 0, old)

	old, err = r.Grow(1)
	require.NoError(t, err)
	require.EqualValues(t, 2, old)
	require.EqualValues(t, 3, r.Size())

	old, err = r.Grow(0)
	require.NoError(t, err)
	require.EqualValues(t, 3, old)
	require.EqualValues(t, 3, m.PageCount())
}

func TestRegion_bounds(t *testing.T) {
	m := newTestManager(t, memory.NewVector())
	r, err := m.Get(1)
	require.NoError(t, err)

	require.ErrorIs(t, r.WriteAt([]byte{1}, 0), ErrOutOfBounds)
	require.ErrorIs(t, r.ReadAt(make([]byte, 1), 0), ErrOutOfBounds)

	_, err = r.Grow(1)
	require.NoError(t, err)
	require.NoError(t, r.WriteAt(make([]byte, testPageSize), 0))
	require.ErrorIs(t, r.WriteAt([]byte{1}, testPageSize), ErrOutOfBounds)
	require.ErrorIs(t, r.ReadAt(make([]byte, 2), testPageSize-1), ErrOutOfBounds)
}

func TestRegion_interleaved(t *testing.T) {
	mem := memory.NewVector()
	m := newTestManager(t, mem)
	a, err := m.Get(0)
	require.NoError(t, err)
	b, err := m.Get(1)
	require.NoError(t, err)

	// a: pages 0, 2, 3   b: pages 1, 4
	_, err = a.Grow(1)
	require.NoError(t, err)
	_, err = b.Grow(1)
	require.NoError(t, err)
	_, err = a.Grow(2)
	require.NoError(t, err)
	_, err = b.Grow(1)
	require.NoError(t, err)

	fill := func(r *Region, c byte) []byte {
		buf := make([]byte, r.Size()*testPageSize)
		for i := range buf {
			buf[i] = c + byte(i/testPageSize)
		}
		require.NoError(t, r.WriteAt(buf, 0))
		return buf
	}
	wantA := fill(a, 'a')
	wantB := fill(b, 'A')

	// a write across the a page 0 / page 2 boundary must not touch b
	span := []byte("0123456789")
	require.NoError(t, a.WriteAt(span, testPageSize-5))
	copy(wantA[testPageSize-5:], span)

	gotA := make([]byte, len(wantA))
	require.NoError(t, a.ReadAt(gotA, 0))
	require.Equal(t, wantA, gotA)
	gotB := make([]byte, len(wantB))
	require.NoError(t, b.ReadAt(gotB, 0))
	require.Equal(t, wantB, gotB)

	require.Equal(t, []Extent{
		{ID: 0, FirstPage: 0, Pages: 3},
		{ID: 1, FirstPage: 1, Pages: 2},
	}, m.Layout())

	// a restart reconstructs the same boundaries
	m2 := newTestManager(t, mem.Reopen())
	require.Equal(t, m.Layout(), m2.Layout())
	a2, err := m2.Get(0)
	require.NoError(t, err)
	require.NoError(t, a2.ReadAt(gotA, 0))
	require.Equal(t, wantA, gotA)
}

func TestManager_storedPageSizeWins(t *testing.T) {
	mem := memory.NewVector()
	newTestManager(t, mem)

	m, err := NewManager(mem.Reopen(), getTestLogger(), WithPageSize(4096))
	require.NoError(t, err)
	require.EqualValues(t, testPageSize, m.PageSize())
}

func TestManager_exhausted(t *testing.T) {
	m := newTestManager(t, memory.NewVector())
	r, err := m.Get(0)
	require.NoError(t, err)

	_, err = r.Grow(MaxPages + 1)
	require.ErrorIs(t, err, ErrExhausted)
	require.EqualValues(t, 0, r.Size())

	_, err = r.Grow(2)
	require.NoError(t, err)
	for _, n := range []uint64{math.MaxUint64, math.MaxUint64 - 1, math.MaxUint32 + 1, MaxPages - 1} {
		old, err := r.Grow(n)
		require.ErrorIs(t, err, ErrExhausted, n)
		require.EqualValues(t, 2, old)
	}
	require.EqualValues(t, 2, r.Size())
	require.EqualValues(t, 2, m.PageCount())
}

func TestManager_uncommittedGrowIgnored(t *testing.T) {
	mem := memory.NewVector()
	m := newTestManager(t, mem)
	r, err := m.Get(2)
	require.NoError(t, err)
	_, err = r.Grow(1)
	require.NoError(t, err)

	// simulate a crash after the ownership entry of a second grow was written
	// but before the page count was updated
	_, err = mem.Grow(testPageSize)
	require.NoError(t, err)
	require.NoError(t, mem.WriteAt([]byte{2}, ownerTableOff+1))

	m2 := newTestManager(t, mem.Reopen())
	r2, err := m2.Get(2)
	require.NoError(t, err)
	require.EqualValues(t, 1, r2.Size())
	require.EqualValues(t, 1, m2.PageCount())
}

func TestManager_corruptHeader(t *testing.T) {
	mem := memory.NewVector()
	newTestManager(t, mem)
	require.NoError(t, mem.WriteAt([]byte("XXX"), 0))
	_, err := NewManager(mem.Reopen(), getTestLogger())
	require.ErrorIs(t, err, ErrCorruptHeader)

	mem = memory.NewVector()
	newTestManager(t, mem)
	var count [4]byte
	binary.LittleEndian.PutUint32(count[:], 5)
	require.NoError(t, mem.WriteAt(count[:], pageCountOff))
	_, err = NewManager(mem.Reopen(), getTestLogger())
	require.ErrorIs(t, err, ErrCorruptHeader)

	small := memory.NewVector()
	_, err = small.Grow(10)
	require.NoError(t, err)
	_, err = NewManager(small, getTestLogger())
	require.ErrorIs(t, err, ErrCorruptHeader)
}
