package ordered

// Iterator holding the iterators state
type Iterator[V any] struct {
	tree *Tree[V]
	node *node[V]
	pos  position
}

type position byte

const (
	begin, onmyway, end position = 0, 1, 2
)

// Iterator returns an iterator positioned before the first key
//
// IMPORTANT: iterator does not provide thread safety
func (t *Tree[V]) Iterator() *Iterator[V] {
	return &Iterator[V]{tree: t, node: nil, pos: begin}
}

// Key returns the key at the current position
func (it *Iterator[V]) Key() uint64 {
	return it.node.key
}

// Value returns the value at the current position
func (it *Iterator[V]) Value() V {
	return it.node.value
}

// Next moves the iterator to the next element
func (it *Iterator[V]) Next() bool {
	if it.pos == end {
		it.node = nil
		return false
	}

	if it.pos == begin {
		minNode := it.min()
		if minNode == nil {
			it.node = nil
			it.pos = end
			return false
		}
		it.node = minNode
		it.pos = onmyway
		return true
	}

	if it.node.right != nil {
		it.node = it.node.right
		for it.node.left != nil {
			it.node = it.node.left
		}
		return true
	}

	for it.node.parent != nil {
		cur := it.node
		it.node = it.node.parent
		if cur == it.node.left {
			return true
		}
	}

	it.pos = end
	it.node = nil
	return false
}

// Prev moves the iterator to the previous element
func (it *Iterator[V]) Prev() bool {
	if it.pos == begin {
		it.node = nil
		return false
	}

	if it.pos == end {
		maxNode := it.max()
		if maxNode == nil {
			it.node = nil
			it.pos = begin
			return false
		}
		it.node = maxNode
		it.pos = onmyway
		return true
	}

	if it.node.left != nil {
		it.node = it.node.left
		for it.node.right != nil {
			it.node = it.node.right
		}
		return true
	}

	for it.node.parent != nil {
		cur := it.node
		it.node = it.node.parent
		if cur == it.node.right {
			return true
		}
	}

	it.node = nil
	it.pos = begin
	return false
}

// Begin resets the iterator to one-before-first
func (it *Iterator[V]) Begin() {
	it.node = nil
	it.pos = begin
}

// End moves the iterator to one-past-the-end
func (it *Iterator[V]) End() {
	it.node = nil
	it.pos = end
}

func (it *Iterator[V]) min() *node[V] {
	var minNode *node[V]
	for cur := it.tree.root; cur != nil; cur = cur.left {
		minNode = cur
	}
	return minNode
}

func (it *Iterator[V]) max() *node[V] {
	var maxNode *node[V]
	for cur := it.tree.root; cur != nil; cur = cur.right {
		maxNode = cur
	}
	return maxNode
}
