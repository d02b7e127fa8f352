package btree

import (
	"fmt"
	"log"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/S0me0neR0man/jobstash/internal/memory"
	"github.com/S0me0neR0man/jobstash/internal/ordered"
	"github.com/S0me0neR0man/jobstash/internal/region"
)

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

func openRegion(t *testing.T, mem memory.Memory) *region.Region {
	t.Helper()
	m, err := region.NewManager(mem, getTestLogger(), region.WithPageSize(region.MinPageSize))
	require.NoError(t, err)
	r, err := m.Get(1)
	require.NoError(t, err)
	return r
}

func openTree(t *testing.T, mem memory.Memory, opts ...Option) *Tree {
	t.Helper()
	tree, err := Open(openRegion(t, mem), getTestLogger(), opts...)
	require.NoError(t, err)
	t.Cleanup(tree.Close)
	return tree
}

func value(k uint64) []byte {
	return []byte(fmt.Sprintf("value-%d", k))
}

func TestTree_empty(t *testing.T) {
	tree := openTree(t, memory.NewVector())
	require.EqualValues(t, 0, tree.Len())

	_, ok, err := tree.Get(1)
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = tree.Remove(1)
	require.NoError(t, err)
	require.False(t, ok)

	it := tree.Iterator()
	require.False(t, it.Next())
	require.NoError(t, it.Err())
}

func TestTree_InsertGetRemove(t *testing.T) {
	tree := openTree(t, memory.NewVector())

	old, replaced, err := tree.Insert(7, []byte("seven"))
	require.NoError(t, err)
	require.False(t, replaced)
	require.Nil(t, old)

	old, replaced, err = tree.Insert(7, []byte("SEVEN"))
	require.NoError(t, err)
	require.True(t, replaced)
	require.Equal(t, "seven", string(old))
	require.EqualValues(t, 1, tree.Len())

	_, _, err = tree.Insert(3, nil)
	require.NoError(t, err)
	v, ok, err := tree.Get(3)
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, v)

	old, removed, err := tree.Remove(7)
	require.NoError(t, err)
	require.True(t, removed)
	require.Equal(t, "SEVEN", string(old))

	_, ok, err = tree.Get(7)
	require.NoError(t, err)
	require.False(t, ok)
	require.EqualValues(t, 1, tree.Len())
}

// TestTree_model runs random operations against the tree and a red-black
// tree and compares them, reopening the tree from time to time.
func TestTree_model(t *testing.T) {
	for _, degree := range []int{2, 3, DefaultDegree} {
		t.Run(fmt.Sprintf("degree %d", degree), func(t *testing.T) {
			rnd := rand.New(rand.NewSource(int64(degree)))
			mem := memory.NewVector()
			tree := openTree(t, mem, WithDegree(degree))
			model := ordered.New[string]()

			for i := 0; i < 3000; i++ {
				k := uint64(rnd.Intn(400))
				if rnd.Intn(3) == 0 {
					want, inModel := model.Get(k)
					old, removed, err := tree.Remove(k)
					require.NoError(t, err)
					require.Equal(t, inModel, removed, "remove %d", k)
					if inModel {
						require.Equal(t, want, string(old))
					}
					model.Remove(k)
				} else {
					v := fmt.Sprintf("%d/%d", k, i)
					want, inModel := model.Get(k)
					old, replaced, err := tree.Insert(k, []byte(v))
					require.NoError(t, err)
					require.Equal(t, inModel, replaced, "insert %d", k)
					if inModel {
						require.Equal(t, want, string(old))
					}
					model.Put(k, v)
				}

				if i%500 == 499 {
					tree.Close()
					mem = mem.Reopen()
					tree = openTree(t, mem)
					require.Equal(t, degree, tree.Degree())
				}
			}

			requireSameContents(t, model, tree)
		})
	}
}

func requireSameContents(t *testing.T, model *ordered.Tree[string], tree *Tree) {
	t.Helper()
	require.EqualValues(t, model.Len(), tree.Len())

	var keys []uint64
	err := tree.Range(0, func(k uint64, v []byte) bool {
		want, ok := model.Get(k)
		require.True(t, ok, "unexpected key %d", k)
		require.Equal(t, want, string(v))
		keys = append(keys, k)
		return true
	})
	require.NoError(t, err)
	require.Equal(t, model.Keys(), keys)

	for _, k := range model.Keys() {
		v, ok, err := tree.Get(k)
		require.NoError(t, err)
		require.True(t, ok)
		want, _ := model.Get(k)
		require.Equal(t, want, string(v))
	}
}

func TestTree_removeAll(t *testing.T) {
	mem := memory.NewVector()
	tree := openTree(t, mem, WithDegree(2))
	for k := uint64(0); k < 100; k++ {
		_, _, err := tree.Insert(k, value(k))
		require.NoError(t, err)
	}
	for k := uint64(0); k < 100; k++ {
		old, removed, err := tree.Remove(k)
		require.NoError(t, err)
		require.True(t, removed)
		require.Equal(t, value(k), old)
	}
	require.EqualValues(t, 0, tree.Len())
	require.EqualValues(t, 0, tree.state.root)

	_, _, err := tree.Insert(5, value(5))
	require.NoError(t, err)

	tree = openTree(t, mem.Reopen())
	require.EqualValues(t, 1, tree.Len())
	v, ok, err := tree.Get(5)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, value(5), v)
}

func TestIterator_Seek(t *testing.T) {
	tree := openTree(t, memory.NewVector(), WithDegree(2))
	for k := uint64(10); k <= 200; k += 10 {
		_, _, err := tree.Insert(k, value(k))
		require.NoError(t, err)
	}

	collect := func(from uint64) []uint64 {
		var res []uint64
		require.NoError(t, tree.Range(from, func(k uint64, v []byte) bool {
			require.Equal(t, value(k), v)
			res = append(res, k)
			return len(res) < 3
		}))
		return res
	}
	require.Equal(t, []uint64{10, 20, 30}, collect(0))
	require.Equal(t, []uint64{50, 60, 70}, collect(50))
	require.Equal(t, []uint64{60, 70, 80}, collect(51))
	require.Equal(t, []uint64{190, 200}, collect(185))
	require.Empty(t, collect(201))
}

func TestIterator_snapshot(t *testing.T) {
	tree := openTree(t, memory.NewVector(), WithDegree(2))
	for k := uint64(1); k <= 20; k++ {
		_, _, err := tree.Insert(k, value(k))
		require.NoError(t, err)
	}

	it := tree.Iterator()
	require.True(t, it.Next())
	require.EqualValues(t, 1, it.Key())

	for k := uint64(1); k <= 20; k += 2 {
		_, _, err := tree.Remove(k)
		require.NoError(t, err)
	}
	_, _, err := tree.Insert(100, value(100))
	require.NoError(t, err)

	n := 1
	for it.Next() {
		require.Equal(t, value(it.Key()), it.Value())
		n++
	}
	require.NoError(t, it.Err())
	require.Equal(t, 20, n)
}

func TestTree_tornCommit(t *testing.T) {
	mem := memory.NewVector()
	tree := openTree(t, mem, WithDegree(2))
	for k := uint64(1); k <= 10; k++ {
		_, _, err := tree.Insert(k, value(k))
		require.NoError(t, err)
	}
	_, _, err := tree.Insert(11, value(11))
	require.NoError(t, err)

	// a crash in the middle of writing the last commit slot
	mem = mem.Reopen()
	r := openRegion(t, mem)
	require.NoError(t, r.WriteAt([]byte{0xde, 0xad}, commitSlot(tree.state.seq)+3))

	tree, err = Open(r, getTestLogger())
	require.NoError(t, err)
	require.EqualValues(t, 10, tree.Len())
	_, ok, err := tree.Get(11)
	require.NoError(t, err)
	require.False(t, ok)

	_, _, err = tree.Insert(12, value(12))
	require.NoError(t, err)

	tree = openTree(t, mem.Reopen())
	require.EqualValues(t, 11, tree.Len())
	_, ok, err = tree.Get(12)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestTree_uncommittedTail(t *testing.T) {
	mem := memory.NewVector()
	tree := openTree(t, mem)
	_, _, err := tree.Insert(1, value(1))
	require.NoError(t, err)
	tail := tree.state.tail

	// nodes written past the tail without a commit are not part of the tree
	mem = mem.Reopen()
	r := openRegion(t, mem)
	require.NoError(t, r.WriteAt([]byte("garbage"), tail))

	tree = openTree(t, mem.Reopen())
	require.EqualValues(t, tail, tree.state.tail)
	requireSameContents(t, func() *ordered.Tree[string] {
		m := ordered.New[string]()
		m.Put(1, string(value(1)))
		return m
	}(), tree)
}

func TestTree_storedDegreeWins(t *testing.T) {
	mem := memory.NewVector()
	openTree(t, mem, WithDegree(3))
	tree := openTree(t, mem.Reopen(), WithDegree(8))
	require.Equal(t, 3, tree.Degree())

	_, err := Open(openRegion(t, memory.NewVector()), getTestLogger(), WithDegree(1))
	require.Error(t, err)
}

func TestTree_corrupt(t *testing.T) {
	mem := memory.NewVector()
	tree := openTree(t, mem)
	_, _, err := tree.Insert(1, value(1))
	require.NoError(t, err)

	r := openRegion(t, mem)
	require.NoError(t, r.WriteAt([]byte("XXX"), 0))
	_, err = Open(r, getTestLogger())
	require.ErrorIs(t, err, ErrCorrupt)

	// a root node with an unknown kind
	mem = memory.NewVector()
	tree = openTree(t, mem, WithCacheSize(0))
	_, _, err = tree.Insert(1, value(1))
	require.NoError(t, err)
	mem = mem.Reopen()
	r = openRegion(t, mem)
	require.NoError(t, r.WriteAt([]byte{9}, tree.state.root))
	tree = openTree(t, mem.Reopen())
	_, _, err = tree.Get(1)
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestTree_growsRegion(t *testing.T) {
	mem := memory.NewVector()
	r := openRegion(t, mem)
	tree, err := Open(r, getTestLogger())
	require.NoError(t, err)
	require.EqualValues(t, 1, r.Size())

	big := make([]byte, 3*region.MinPageSize)
	_, _, err = tree.Insert(1, big)
	require.NoError(t, err)
	require.GreaterOrEqual(t, r.Size(), uint64(4))
	require.LessOrEqual(t, tree.state.tail, r.Size()*r.PageSize())
}
