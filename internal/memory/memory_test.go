package memory

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testMemory(t *testing.T, m Memory) {
	t.Helper()
	require.EqualValues(t, 0, m.Size())

	old, err := m.Grow(100)
	require.NoError(t, err)
	require.EqualValues(t, 0, old)
	require.EqualValues(t, 100, m.Size())

	buf := make([]byte, 10)
	require.NoError(t, m.ReadAt(buf, 90))
	require.Equal(t, make([]byte, 10), buf, "grown bytes must be zero")

	require.NoError(t, m.WriteAt([]byte("hello"), 10))
	got := make([]byte, 5)
	require.NoError(t, m.ReadAt(got, 10))
	require.Equal(t, "hello", string(got))

	require.ErrorIs(t, m.WriteAt([]byte("xx"), 99), ErrOutOfRange)
	require.ErrorIs(t, m.ReadAt(make([]byte, 1), 100), ErrOutOfRange)
	require.NoError(t, m.Sync())
}

func TestVector(t *testing.T) {
	v := NewVector()
	testMemory(t, v)
	require.NoError(t, v.Close())
	require.ErrorIs(t, v.WriteAt([]byte("x"), 0), ErrClosed)

	r := v.Reopen()
	got := make([]byte, 5)
	require.NoError(t, r.ReadAt(got, 10))
	require.Equal(t, "hello", string(got))
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "jobs.data")
	f, err := OpenFile(path)
	require.NoError(t, err)
	testMemory(t, f)

	_, err = OpenFile(path)
	require.ErrorIs(t, err, ErrLocked)
	require.NoError(t, f.Close())

	f, err = OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	require.EqualValues(t, 100, f.Size())
	got := make([]byte, 5)
	require.NoError(t, f.ReadAt(got, 10))
	require.Equal(t, "hello", string(got))
}

func TestBadger(t *testing.T) {
	dir := t.TempDir()
	b, err := OpenBadger(dir)
	require.NoError(t, err)
	testMemory(t, b)

	// a write straddling two chunks
	_, err = b.Grow(2 * ChunkSize)
	require.NoError(t, err)
	span := []byte("straddle")
	off := uint64(ChunkSize - 3)
	require.NoError(t, b.WriteAt(span, off))
	require.NoError(t, b.Close())

	b, err = OpenBadger(dir)
	require.NoError(t, err)
	defer b.Close()
	require.EqualValues(t, 100+2*ChunkSize, b.Size())
	got := make([]byte, len(span))
	require.NoError(t, b.ReadAt(got, off))
	require.Equal(t, span, got)
}

func TestBadgerInMemory(t *testing.T) {
	b, err := OpenBadger("")
	require.NoError(t, err)
	defer b.Close()
	testMemory(t, b)
}

func TestOpen(t *testing.T) {
	m, err := Open(VectorKind, "")
	require.NoError(t, err)
	require.IsType(t, &Vector{}, m)

	_, err = Open("tape", "")
	require.Error(t, err)
}
