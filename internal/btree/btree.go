// Package btree is a durable sorted map from uint64 keys to byte values kept
// inside one region.
//
// The tree is copy-on-write: a mutation never touches committed bytes. It
// appends the new value and the rewritten root-to-leaf path at the tail of
// the region, syncs, and then publishes the new root in a commit slot.
//
// Region layout:
//
//	[0:3]    magic "JBT"
//	[3]      layout version
//	[4:6]    degree, little endian
//	[8:48]   commit slot 0
//	[48:88]  commit slot 1
//	[128:]   nodes and values
//
// A commit slot holds seq, root, length and tail (u64 each) followed by the
// xxhash of those 32 bytes. Commit seq goes to slot seq%2, so the previous
// commit survives a torn slot write. Open picks the valid slot with the
// highest seq.
package btree

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

const (
	DefaultDegree    = 16
	MinDegree        = 2
	MaxDegree        = 4096
	DefaultCacheSize = 4096

	layoutVersion = 1
	slotOff       = 8
	slotSize      = 40
	dataStart     = 128
)

var magic = []byte("JBT")

var ErrCorrupt = errors.New("btree: corrupt tree")

// Region is the storage a tree lives in.
type Region interface {
	Size() uint64
	PageSize() uint64
	Grow(pages uint64) (uint64, error)
	ReadAt(p []byte, off uint64) error
	WriteAt(p []byte, off uint64) error
	Sync() error
}

type Option func(*Tree)

// WithDegree sets the degree of a fresh tree. Nodes hold at most 2*degree-1
// keys. An existing tree keeps the degree recorded in its header.
func WithDegree(degree int) Option {
	return func(t *Tree) {
		t.degree = degree
	}
}

// WithCacheSize sets how many decoded nodes are cached. Zero disables the cache.
func WithCacheSize(nodes int64) Option {
	return func(t *Tree) {
		t.cacheSize = nodes
	}
}

type commit struct {
	seq    uint64
	root   uint64
	length uint64
	tail   uint64
}

func (c commit) encode() []byte {
	b := make([]byte, slotSize)
	binary.LittleEndian.PutUint64(b[0:], c.seq)
	binary.LittleEndian.PutUint64(b[8:], c.root)
	binary.LittleEndian.PutUint64(b[16:], c.length)
	binary.LittleEndian.PutUint64(b[24:], c.tail)
	binary.LittleEndian.PutUint64(b[32:], xxhash.Sum64(b[:32]))
	return b
}

func decodeCommit(b []byte) (commit, bool) {
	if binary.LittleEndian.Uint64(b[32:]) != xxhash.Sum64(b[:32]) {
		return commit{}, false
	}
	c := commit{
		seq:    binary.LittleEndian.Uint64(b[0:]),
		root:   binary.LittleEndian.Uint64(b[8:]),
		length: binary.LittleEndian.Uint64(b[16:]),
		tail:   binary.LittleEndian.Uint64(b[24:]),
	}
	return c, c.seq > 0
}

func commitSlot(seq uint64) uint64 {
	return slotOff + (seq%2)*slotSize
}

// Tree is a copy-on-write B+tree.
//
// IMPORTANT: Tree does not provide thread safety
type Tree struct {
	r         Region
	degree    int
	cacheSize int64
	state     commit
	cache     *ristretto.Cache

	sugar *zap.SugaredLogger
}

// Open binds a tree to r. An empty region gets a fresh tree, otherwise the
// last committed state is loaded.
func Open(r Region, logger *zap.Logger, opts ...Option) (*Tree, error) {
	const msg = "btree open:"
	t := &Tree{
		r:         r,
		degree:    DefaultDegree,
		cacheSize: DefaultCacheSize,
		sugar:     logger.Sugar(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.degree < MinDegree || t.degree > MaxDegree {
		return nil, fmt.Errorf("%s degree %d outside [%d, %d]", msg, t.degree, MinDegree, MaxDegree)
	}

	if err := t.load(); err != nil {
		return nil, err
	}

	if t.cacheSize > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters:        t.cacheSize * 10,
			MaxCost:            t.cacheSize,
			BufferItems:        64,
			IgnoreInternalCost: true,
		})
		if err != nil {
			return nil, fmt.Errorf("%s %w", msg, err)
		}
		t.cache = cache
	}
	return t, nil
}

func (t *Tree) load() error {
	const msg = "btree load:"
	if t.r.Size() == 0 {
		return t.init()
	}

	header := make([]byte, dataStart)
	if err := t.r.ReadAt(header, 0); err != nil {
		return fmt.Errorf("%s %w", msg, err)
	}
	if bytes.Equal(header, make([]byte, dataStart)) {
		return t.init()
	}
	if !bytes.Equal(header[:3], magic) || header[3] != layoutVersion {
		return fmt.Errorf("%w: bad header %x", ErrCorrupt, header[:4])
	}

	stored := int(binary.LittleEndian.Uint16(header[4:6]))
	if stored < MinDegree || stored > MaxDegree {
		return fmt.Errorf("%w: degree %d", ErrCorrupt, stored)
	}
	if stored != t.degree {
		t.sugar.Warnw("degree differs from the stored one, using stored",
			"requested", t.degree, "stored", stored)
	}
	t.degree = stored

	t.state = commit{tail: dataStart}
	for i := uint64(0); i < 2; i++ {
		raw := header[slotOff+i*slotSize : slotOff+(i+1)*slotSize]
		c, ok := decodeCommit(raw)
		if !ok {
			if !bytes.Equal(raw, make([]byte, slotSize)) {
				t.sugar.Warnw("ignoring torn commit slot", "slot", i)
			}
			continue
		}
		if c.seq > t.state.seq {
			t.state = c
		}
	}

	capacity := t.r.Size() * t.r.PageSize()
	if t.state.tail < dataStart || t.state.tail > capacity {
		return fmt.Errorf("%w: tail %d outside [%d, %d]", ErrCorrupt, t.state.tail, dataStart, capacity)
	}
	if (t.state.root == 0) != (t.state.length == 0) {
		return fmt.Errorf("%w: root %d with length %d", ErrCorrupt, t.state.root, t.state.length)
	}
	if t.state.root != 0 && (t.state.root < dataStart || t.state.root >= t.state.tail) {
		return fmt.Errorf("%w: root %d outside data", ErrCorrupt, t.state.root)
	}

	t.sugar.Debugw("btree loaded",
		"seq", t.state.seq,
		"len", t.state.length,
		"tail", t.state.tail)
	return nil
}

func (t *Tree) init() error {
	const msg = "btree init:"
	if err := t.ensure(dataStart); err != nil {
		return fmt.Errorf("%s %w", msg, err)
	}
	header := make([]byte, dataStart)
	copy(header, magic)
	header[3] = layoutVersion
	binary.LittleEndian.PutUint16(header[4:6], uint16(t.degree))
	if err := t.r.WriteAt(header, 0); err != nil {
		return fmt.Errorf("%s %w", msg, err)
	}
	if err := t.r.Sync(); err != nil {
		return fmt.Errorf("%s %w", msg, err)
	}
	t.state = commit{tail: dataStart}
	return nil
}

// Close releases the node cache. The region stays open.
func (t *Tree) Close() {
	if t.cache != nil {
		t.cache.Close()
		t.cache = nil
	}
}

// Len returns the number of keys.
func (t *Tree) Len() uint64 {
	return t.state.length
}

// Degree returns the degree the tree was created with.
func (t *Tree) Degree() int {
	return t.degree
}

func (t *Tree) maxKeys() int {
	return 2*t.degree - 1
}

// Get returns the value stored at key.
func (t *Tree) Get(key uint64) ([]byte, bool, error) {
	const msg = "btree get:"
	off := t.state.root
	if off == 0 {
		return nil, false, nil
	}
	for {
		n, err := t.readNode(off)
		if err != nil {
			return nil, false, fmt.Errorf("%s %w", msg, err)
		}
		if !n.leaf {
			off = n.children[n.childIndex(key)]
			continue
		}
		i, found := n.find(key)
		if !found {
			return nil, false, nil
		}
		v, err := t.readValue(n.vals[i])
		if err != nil {
			return nil, false, fmt.Errorf("%s %w", msg, err)
		}
		return v, true, nil
	}
}

type insertResult struct {
	left, right, sep uint64
	split            bool
	old              valRef
	replaced         bool
}

// Insert stores val at key and returns the value it replaced, if any.
// The new state is durable when Insert returns.
func (t *Tree) Insert(key uint64, val []byte) ([]byte, bool, error) {
	const msg = "btree insert:"
	if uint64(len(val)) > math.MaxUint32 {
		return nil, false, fmt.Errorf("%s value of %d bytes is too large", msg, len(val))
	}

	b := newBatch(t.state.tail)
	ref := b.putValue(val)

	if t.state.root == 0 {
		root := b.putNode(&node{leaf: true, keys: []uint64{key}, vals: []valRef{ref}})
		if err := t.commit(b, root, 1); err != nil {
			return nil, false, fmt.Errorf("%s %w", msg, err)
		}
		return nil, false, nil
	}

	res, err := t.insert(b, t.state.root, key, ref)
	if err != nil {
		return nil, false, fmt.Errorf("%s %w", msg, err)
	}
	root := res.left
	if res.split {
		root = b.putNode(&node{keys: []uint64{res.sep}, children: []uint64{res.left, res.right}})
	}

	length := t.state.length
	var old []byte
	if res.replaced {
		if old, err = t.readValue(res.old); err != nil {
			return nil, false, fmt.Errorf("%s %w", msg, err)
		}
	} else {
		length++
	}

	if err := t.commit(b, root, length); err != nil {
		return nil, false, fmt.Errorf("%s %w", msg, err)
	}
	return old, res.replaced, nil
}

func (t *Tree) insert(b *batch, off, key uint64, ref valRef) (insertResult, error) {
	n, err := t.readNode(off)
	if err != nil {
		return insertResult{}, err
	}

	var res insertResult
	c := n.clone()
	if n.leaf {
		i, found := n.find(key)
		if found {
			res.old, res.replaced = c.vals[i], true
			c.vals[i] = ref
		} else {
			c.keys = insertAt(c.keys, i, key)
			c.vals = insertAt(c.vals, i, ref)
		}
		t.place(b, c, &res)
		return res, nil
	}

	idx := n.childIndex(key)
	sub, err := t.insert(b, n.children[idx], key, ref)
	if err != nil {
		return insertResult{}, err
	}
	c.children[idx] = sub.left
	if sub.split {
		c.keys = insertAt(c.keys, idx, sub.sep)
		c.children = insertAt(c.children, idx+1, sub.right)
	}
	res.old, res.replaced = sub.old, sub.replaced
	t.place(b, c, &res)
	return res, nil
}

// place appends n to the batch, split in two when it holds too many keys.
func (t *Tree) place(b *batch, n *node, res *insertResult) {
	if len(n.keys) <= t.maxKeys() {
		res.left = b.putNode(n)
		return
	}
	left, right, sep := n.split()
	res.left = b.putNode(left)
	res.right = b.putNode(right)
	res.sep = sep
	res.split = true
}

type removeResult struct {
	off     uint64
	empty   bool
	old     valRef
	removed bool
}

// Remove deletes key and returns the value it held, if any. The new state is
// durable when Remove returns.
func (t *Tree) Remove(key uint64) ([]byte, bool, error) {
	const msg = "btree remove:"
	if t.state.root == 0 {
		return nil, false, nil
	}

	b := newBatch(t.state.tail)
	res, err := t.remove(b, t.state.root, key)
	if err != nil {
		return nil, false, fmt.Errorf("%s %w", msg, err)
	}
	if !res.removed {
		return nil, false, nil
	}

	old, err := t.readValue(res.old)
	if err != nil {
		return nil, false, fmt.Errorf("%s %w", msg, err)
	}

	var root uint64
	if !res.empty {
		root = res.off
		// an internal root left with a single child hands the root over
		for {
			n, ok := b.nodes[root]
			if !ok {
				if n, err = t.readNode(root); err != nil {
					return nil, false, fmt.Errorf("%s %w", msg, err)
				}
			}
			if n.leaf || len(n.children) > 1 {
				break
			}
			root = n.children[0]
		}
	}

	if err := t.commit(b, root, t.state.length-1); err != nil {
		return nil, false, fmt.Errorf("%s %w", msg, err)
	}
	return old, true, nil
}

// remove deletes key below off. Empty nodes are dropped from their parent,
// underfull nodes are left as they are.
func (t *Tree) remove(b *batch, off, key uint64) (removeResult, error) {
	n, err := t.readNode(off)
	if err != nil {
		return removeResult{}, err
	}

	if n.leaf {
		i, found := n.find(key)
		if !found {
			return removeResult{off: off}, nil
		}
		res := removeResult{old: n.vals[i], removed: true}
		if len(n.keys) == 1 {
			res.empty = true
			return res, nil
		}
		c := n.clone()
		c.keys = removeAt(c.keys, i)
		c.vals = removeAt(c.vals, i)
		res.off = b.putNode(c)
		return res, nil
	}

	idx := n.childIndex(key)
	sub, err := t.remove(b, n.children[idx], key)
	if err != nil {
		return removeResult{}, err
	}
	if !sub.removed {
		return removeResult{off: off}, nil
	}

	res := removeResult{old: sub.old, removed: true}
	c := n.clone()
	if sub.empty {
		if len(c.children) == 1 {
			res.empty = true
			return res, nil
		}
		c.children = removeAt(c.children, idx)
		if idx > 0 {
			c.keys = removeAt(c.keys, idx-1)
		} else {
			c.keys = removeAt(c.keys, 0)
		}
	} else {
		c.children[idx] = sub.off
	}
	res.off = b.putNode(c)
	return res, nil
}

// commit makes the batch durable and then publishes the new root.
func (t *Tree) commit(b *batch, root, length uint64) error {
	if err := t.ensure(b.end()); err != nil {
		return err
	}
	if len(b.buf) > 0 {
		if err := t.r.WriteAt(b.buf, b.base); err != nil {
			return err
		}
		if err := t.r.Sync(); err != nil {
			return err
		}
	}

	next := commit{seq: t.state.seq + 1, root: root, length: length, tail: b.end()}
	if err := t.r.WriteAt(next.encode(), commitSlot(next.seq)); err != nil {
		return err
	}
	if err := t.r.Sync(); err != nil {
		return err
	}
	t.state = next
	return nil
}

// ensure grows the region so that it holds at least size bytes.
func (t *Tree) ensure(size uint64) error {
	pageSize := t.r.PageSize()
	capacity := t.r.Size() * pageSize
	if size <= capacity {
		return nil
	}
	missing := (size - capacity + pageSize - 1) / pageSize
	_, err := t.r.Grow(missing)
	return err
}

func (t *Tree) readNode(off uint64) (*node, error) {
	if t.cache != nil {
		if v, ok := t.cache.Get(off); ok {
			return v.(*node), nil
		}
	}

	tail := t.state.tail
	if off < dataStart || off+nodeHeaderSize > tail {
		return nil, fmt.Errorf("%w: node offset %d outside [%d, %d)", ErrCorrupt, off, dataStart, tail)
	}
	var head [nodeHeaderSize]byte
	if err := t.r.ReadAt(head[:], off); err != nil {
		return nil, err
	}
	count := int(binary.LittleEndian.Uint16(head[2:4]))
	size, err := bodySize(head[0], count)
	if err != nil {
		return nil, err
	}
	if off+nodeHeaderSize+uint64(size) > tail {
		return nil, fmt.Errorf("%w: node at %d overruns tail %d", ErrCorrupt, off, tail)
	}
	body := make([]byte, size)
	if err := t.r.ReadAt(body, off+nodeHeaderSize); err != nil {
		return nil, err
	}

	n := decodeNode(head[0], count, body)
	if err := n.validate(dataStart, tail); err != nil {
		return nil, err
	}
	if t.cache != nil {
		t.cache.Set(off, n, 1)
	}
	return n, nil
}

func (t *Tree) readValue(ref valRef) ([]byte, error) {
	v := make([]byte, ref.size)
	if err := t.r.ReadAt(v, ref.off); err != nil {
		return nil, err
	}
	return v, nil
}
