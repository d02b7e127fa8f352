package ordered

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTree_Put(t *testing.T) {
	tree := New[string]()
	require.EqualValues(t, 0, tree.Len(), "not empty")

	require.True(t, tree.Put(1, "a"))
	require.True(t, tree.Put(2, "b"))
	require.False(t, tree.Put(1, "A"))
	for k := uint64(3); k <= 6; k++ {
		require.True(t, tree.Put(k, "x"))
	}

	t.Log(tree)

	// Tree
	// │           ┌── R 0000000000000006
	// │       ┌── B 0000000000000005
	// │   ┌── R 0000000000000004
	// │   │   └── B 0000000000000003
	// └── B 0000000000000002
	//     └── B 0000000000000001

	require.EqualValues(t, 6, tree.Len(), "wrong size")
	require.EqualValues(t, 2, tree.root.key)
	require.EqualValues(t, 4, tree.root.right.key)
	require.Equal(t, red, tree.root.right.color)

	v, ok := tree.Get(1)
	require.True(t, ok)
	require.Equal(t, "A", v)
	_, ok = tree.Get(8)
	require.False(t, ok)
}

func TestTree_Remove(t *testing.T) {
	tree := New[int]()
	for _, k := range []uint64{10, 9, 8, 7, 1, 2, 3, 1, 7, 4, 5, 6} {
		tree.Put(k, int(k))
	}
	require.EqualValues(t, 10, tree.Len(), "wrong size")

	for _, k := range []uint64{10, 9, 8, 7} {
		require.True(t, tree.Remove(k))
	}
	require.False(t, tree.Remove(9))
	require.False(t, tree.Remove(8))

	require.EqualValues(t, 6, tree.Len(), "wrong size")
	require.Equal(t, []uint64{1, 2, 3, 4, 5, 6}, tree.Keys())
}

func TestTree_random(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	tree := New[uint64]()
	model := map[uint64]uint64{}

	for i := 0; i < 5000; i++ {
		k := uint64(rnd.Intn(500))
		if rnd.Intn(3) == 0 {
			_, inModel := model[k]
			require.Equal(t, inModel, tree.Remove(k))
			delete(model, k)
			continue
		}
		tree.Put(k, k*2)
		model[k] = k * 2
	}

	keys := make([]uint64, 0, len(model))
	for k := range model {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	require.Equal(t, keys, tree.Keys())
	checkBlackHeight(t, tree.root)
	require.Equal(t, black, nodeColor(tree.root))
}

func checkBlackHeight[V any](t *testing.T, n *node[V]) int {
	if n == nil {
		return 1
	}
	if n.color == red {
		require.Equal(t, black, nodeColor(n.left), "red node %v with red child", n)
		require.Equal(t, black, nodeColor(n.right), "red node %v with red child", n)
	}
	l := checkBlackHeight(t, n.left)
	r := checkBlackHeight(t, n.right)
	require.Equal(t, l, r, "black height differs under %v", n)
	if n.color == black {
		return l + 1
	}
	return l
}

func TestIterator(t *testing.T) {
	tree := New[string]()
	it := tree.Iterator()
	require.False(t, it.Next())

	tree.Put(1, "one")
	it = tree.Iterator()
	require.EqualValues(t, begin, it.pos)
	require.True(t, it.node == nil)

	require.True(t, it.Next())
	require.EqualValues(t, onmyway, it.pos)
	require.EqualValues(t, 1, it.Key())
	require.Equal(t, "one", it.Value())

	require.False(t, it.Next())
	require.EqualValues(t, end, it.pos)
	require.True(t, it.node == nil)

	it.Begin()
	require.True(t, it.Next())
	require.False(t, it.Prev())
	require.EqualValues(t, begin, it.pos)

	tree.Put(3, "three")
	tree.Put(2, "two")
	it.End()
	var back []uint64
	for it.Prev() {
		back = append(back, it.Key())
	}
	require.Equal(t, []uint64{3, 2, 1}, back)
}
