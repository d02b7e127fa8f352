package btree

import "fmt"

type position byte

const (
	begin, onmyway, end position = 0, 1, 2
)

type frame struct {
	n   *node
	idx int
}

// Iterator walks the keys in ascending order. It reads the tree as it was
// committed when the iterator was created; later mutations are not seen.
//
// IMPORTANT: iterator does not provide thread safety
type Iterator struct {
	t     *Tree
	root  uint64
	stack []frame
	pos   position
	key   uint64
	val   valRef
	err   error
}

// Iterator returns an iterator positioned before the first key
func (t *Tree) Iterator() *Iterator {
	return &Iterator{t: t, root: t.state.root, pos: begin}
}

// Seek positions the iterator so that Next moves to the first key >= from.
func (it *Iterator) Seek(from uint64) {
	it.stack = it.stack[:0]
	it.err = nil
	it.pos = end
	if it.root == 0 {
		return
	}

	off := it.root
	for {
		n, err := it.t.readNode(off)
		if err != nil {
			it.fail(err)
			return
		}
		if n.leaf {
			i, _ := n.find(from)
			it.stack = append(it.stack, frame{n: n, idx: i - 1})
			break
		}
		idx := n.childIndex(from)
		it.stack = append(it.stack, frame{n: n, idx: idx})
		off = n.children[idx]
	}
	it.pos = onmyway
}

// Next moves the iterator to the next key
func (it *Iterator) Next() bool {
	if it.pos == end || it.err != nil {
		return false
	}
	if it.pos == begin {
		if it.root == 0 {
			it.pos = end
			return false
		}
		n, err := it.t.readNode(it.root)
		if err != nil {
			it.fail(err)
			return false
		}
		it.stack = append(it.stack[:0], frame{n: n, idx: -1})
		it.pos = onmyway
	}

	for len(it.stack) > 0 {
		f := &it.stack[len(it.stack)-1]
		f.idx++
		if f.n.leaf {
			if f.idx < len(f.n.keys) {
				it.key = f.n.keys[f.idx]
				it.val = f.n.vals[f.idx]
				return true
			}
		} else if f.idx < len(f.n.children) {
			child, err := it.t.readNode(f.n.children[f.idx])
			if err != nil {
				it.fail(err)
				return false
			}
			it.stack = append(it.stack, frame{n: child, idx: -1})
			continue
		}
		it.stack = it.stack[:len(it.stack)-1]
	}

	it.pos = end
	return false
}

// Key returns the key at the current position
func (it *Iterator) Key() uint64 {
	return it.key
}

// Value reads the value at the current position. A failed read is reported
// by Err and stops the iteration.
func (it *Iterator) Value() []byte {
	v, err := it.t.readValue(it.val)
	if err != nil {
		it.fail(err)
		return nil
	}
	return v
}

// Err returns the error that stopped the iteration, if any
func (it *Iterator) Err() error {
	return it.err
}

func (it *Iterator) fail(err error) {
	it.err = fmt.Errorf("btree iterator: %w", err)
	it.stack = it.stack[:0]
	it.pos = end
}

// Range calls fn for every key >= from in ascending order until fn returns false.
func (t *Tree) Range(from uint64, fn func(key uint64, val []byte) bool) error {
	it := t.Iterator()
	it.Seek(from)
	for it.Next() {
		v := it.Value()
		if it.Err() != nil {
			break
		}
		if !fn(it.Key(), v) {
			break
		}
	}
	return it.Err()
}
