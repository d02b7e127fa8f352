package btree

import (
	"encoding/binary"
	"fmt"
	"sort"
)

const (
	kindLeaf     = 1
	kindInternal = 2

	nodeHeaderSize = 4
	leafEntrySize  = 8 + 8 + 4
)

// valRef locates a value blob in the region.
type valRef struct {
	off  uint64
	size uint32
}

// node is the decoded form of a tree node. Nodes read from the region are
// shared through the cache and must never be modified; mutations work on a
// clone.
//
// Encoding:
//
//	[0]   kind
//	[1]   unused
//	[2:4] key count, little endian
//	leaf:     count * (key u64, value offset u64, value length u32)
//	internal: count * key u64, then count+1 * child offset u64
type node struct {
	leaf     bool
	keys     []uint64
	vals     []valRef
	children []uint64
}

func (n *node) clone() *node {
	c := &node{leaf: n.leaf}
	c.keys = append(make([]uint64, 0, len(n.keys)+1), n.keys...)
	if n.leaf {
		c.vals = append(make([]valRef, 0, len(n.vals)+1), n.vals...)
	} else {
		c.children = append(make([]uint64, 0, len(n.children)+1), n.children...)
	}
	return c
}

// find returns the position of the first key >= key and whether it is key.
func (n *node) find(key uint64) (int, bool) {
	i := sort.Search(len(n.keys), func(i int) bool { return n.keys[i] >= key })
	return i, i < len(n.keys) && n.keys[i] == key
}

// childIndex returns the number of keys <= key, which is the index of the
// child that covers key.
func (n *node) childIndex(key uint64) int {
	return sort.Search(len(n.keys), func(i int) bool { return n.keys[i] > key })
}

// split halves an overfull node. For leaves the separator is the first key
// of the right half, for internal nodes the middle key moves up.
func (n *node) split() (*node, *node, uint64) {
	mid := len(n.keys) / 2
	if n.leaf {
		left := &node{leaf: true, keys: n.keys[:mid], vals: n.vals[:mid]}
		right := &node{leaf: true, keys: n.keys[mid:], vals: n.vals[mid:]}
		return left, right, right.keys[0]
	}
	left := &node{keys: n.keys[:mid], children: n.children[:mid+1]}
	right := &node{keys: n.keys[mid+1:], children: n.children[mid+1:]}
	return left, right, n.keys[mid]
}

func (n *node) appendTo(b []byte) []byte {
	var head [nodeHeaderSize]byte
	head[0] = kindInternal
	if n.leaf {
		head[0] = kindLeaf
	}
	binary.LittleEndian.PutUint16(head[2:], uint16(len(n.keys)))
	b = append(b, head[:]...)

	if n.leaf {
		for i, k := range n.keys {
			b = binary.LittleEndian.AppendUint64(b, k)
			b = binary.LittleEndian.AppendUint64(b, n.vals[i].off)
			b = binary.LittleEndian.AppendUint32(b, n.vals[i].size)
		}
		return b
	}
	for _, k := range n.keys {
		b = binary.LittleEndian.AppendUint64(b, k)
	}
	for _, c := range n.children {
		b = binary.LittleEndian.AppendUint64(b, c)
	}
	return b
}

// bodySize returns the encoded size following the node header.
func bodySize(kind byte, count int) (int, error) {
	switch kind {
	case kindLeaf:
		if count == 0 {
			return 0, fmt.Errorf("%w: empty leaf", ErrCorrupt)
		}
		return count * leafEntrySize, nil
	case kindInternal:
		return count*8 + (count+1)*8, nil
	}
	return 0, fmt.Errorf("%w: unknown node kind %d", ErrCorrupt, kind)
}

func decodeNode(kind byte, count int, body []byte) *node {
	n := &node{leaf: kind == kindLeaf, keys: make([]uint64, count)}
	if n.leaf {
		n.vals = make([]valRef, count)
		for i := 0; i < count; i++ {
			e := body[i*leafEntrySize:]
			n.keys[i] = binary.LittleEndian.Uint64(e[0:8])
			n.vals[i] = valRef{
				off:  binary.LittleEndian.Uint64(e[8:16]),
				size: binary.LittleEndian.Uint32(e[16:20]),
			}
		}
		return n
	}
	for i := 0; i < count; i++ {
		n.keys[i] = binary.LittleEndian.Uint64(body[i*8:])
	}
	body = body[count*8:]
	n.children = make([]uint64, count+1)
	for i := range n.children {
		n.children[i] = binary.LittleEndian.Uint64(body[i*8:])
	}
	return n
}

// validate checks that everything the node points at lies in [lo, hi) and
// that its keys are strictly ascending.
func (n *node) validate(lo, hi uint64) error {
	for i := 1; i < len(n.keys); i++ {
		if n.keys[i-1] >= n.keys[i] {
			return fmt.Errorf("%w: keys out of order", ErrCorrupt)
		}
	}
	for _, v := range n.vals {
		if v.off < lo || v.off+uint64(v.size) > hi {
			return fmt.Errorf("%w: value [%d, +%d) outside [%d, %d)", ErrCorrupt, v.off, v.size, lo, hi)
		}
	}
	for _, c := range n.children {
		if c < lo || c >= hi {
			return fmt.Errorf("%w: child %d outside [%d, %d)", ErrCorrupt, c, lo, hi)
		}
	}
	return nil
}

func insertAt[T any](s []T, i int, v T) []T {
	s = append(s, v)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func removeAt[T any](s []T, i int) []T {
	return append(s[:i], s[i+1:]...)
}

// batch collects the bytes appended by one mutation. Offsets handed out are
// final region offsets.
type batch struct {
	base  uint64
	buf   []byte
	nodes map[uint64]*node
}

func newBatch(base uint64) *batch {
	return &batch{base: base, nodes: make(map[uint64]*node)}
}

func (b *batch) end() uint64 {
	return b.base + uint64(len(b.buf))
}

func (b *batch) putNode(n *node) uint64 {
	off := b.end()
	b.buf = n.appendTo(b.buf)
	b.nodes[off] = n
	return off
}

func (b *batch) putValue(v []byte) valRef {
	ref := valRef{off: b.end(), size: uint32(len(v))}
	b.buf = append(b.buf, v...)
	return ref
}
