// Package ordered is an in-memory ordered map from uint64 keys to values,
// kept as a red-black tree.
package ordered

import (
	"fmt"
)

type color bool

const (
	black, red color = true, false
)

// Tree is an ordered map.
//
// IMPORTANT: Tree does not provide thread safety
type Tree[V any] struct {
	root *node[V]
	size int
}

// node is a tree element
type node[V any] struct {
	key    uint64
	value  V
	color  color
	left   *node[V]
	right  *node[V]
	parent *node[V]
}

func New[V any]() *Tree[V] {
	return &Tree[V]{}
}

// Put inserts or replaces the value at key. It reports whether the key was new.
func (t *Tree[V]) Put(key uint64, value V) bool {
	if t.root == nil {
		t.root = &node[V]{key: key, value: value, color: black}
		t.size++
		return true
	}

	cur := t.root
	for {
		switch {
		case key == cur.key:
			cur.value = value
			return false
		case key < cur.key:
			if cur.left == nil {
				cur.left = &node[V]{key: key, value: value, color: red, parent: cur}
				t.insertCase1(cur.left)
				t.size++
				return true
			}
			cur = cur.left
		default:
			if cur.right == nil {
				cur.right = &node[V]{key: key, value: value, color: red, parent: cur}
				t.insertCase1(cur.right)
				t.size++
				return true
			}
			cur = cur.right
		}
	}
}

// Get returns the value at key.
func (t *Tree[V]) Get(key uint64) (V, bool) {
	if n := t.lookup(key); n != nil {
		return n.value, true
	}
	var zero V
	return zero, false
}

// Remove deletes key and reports whether it was present.
func (t *Tree[V]) Remove(key uint64) bool {
	del := t.lookup(key)
	if del == nil {
		return false
	}

	if del.left != nil && del.right != nil {
		repl := del.left.maximumNode()
		del.key = repl.key
		del.value = repl.value
		del = repl
	}

	var child *node[V]
	if del.right == nil {
		child = del.left
	} else {
		child = del.right
	}
	if del.color == black {
		del.color = nodeColor(child)
		t.deleteCase1(del)
	}
	t.replaceNode(del, child)
	if del.parent == nil && child != nil {
		child.color = black
	}

	t.size--
	return true
}

// Len returns the number of keys.
func (t *Tree[V]) Len() int {
	return t.size
}

// Keys returns all keys in order
func (t *Tree[V]) Keys() []uint64 {
	keys := make([]uint64, 0, t.size)
	it := t.Iterator()
	for it.Next() {
		keys = append(keys, it.Key())
	}
	return keys
}

// String implements Stringer interface
func (t *Tree[V]) String() string {
	str := "Tree\n"
	if t.root != nil {
		output(t.root, "", true, &str)
	}
	return str
}

func (n *node[V]) String() string {
	c := "R"
	if n.color == black {
		c = "B"
	}
	return fmt.Sprintf("%s %016x", c, n.key)
}

func output[V any](n *node[V], prefix string, isTail bool, str *string) {
	if n.right != nil {
		newPrefix := prefix
		if isTail {
			newPrefix += "│   "
		} else {
			newPrefix += "    "
		}
		output(n.right, newPrefix, false, str)
	}

	*str += prefix
	if isTail {
		*str += "└── "
	} else {
		*str += "┌── "
	}

	*str += n.String() + "\n"
	if n.left != nil {
		newPrefix := prefix
		if isTail {
			newPrefix += "    "
		} else {
			newPrefix += "│   "
		}
		output(n.left, newPrefix, true, str)
	}
}

func (t *Tree[V]) lookup(key uint64) *node[V] {
	cur := t.root
	for cur != nil {
		switch {
		case key == cur.key:
			return cur
		case key < cur.key:
			cur = cur.left
		default:
			cur = cur.right
		}
	}
	return nil
}

func (n *node[V]) grandparent() *node[V] {
	if n != nil && n.parent != nil {
		return n.parent.parent
	}
	return nil
}

func (n *node[V]) uncle() *node[V] {
	if n == nil || n.parent == nil || n.parent.parent == nil {
		return nil
	}
	return n.parent.sibling()
}

func (n *node[V]) sibling() *node[V] {
	if n == nil || n.parent == nil {
		return nil
	}
	if n == n.parent.left {
		return n.parent.right
	}
	return n.parent.left
}

func (n *node[V]) maximumNode() *node[V] {
	cur := n
	for cur.right != nil {
		cur = cur.right
	}
	return cur
}

func (t *Tree[V]) rotateLeft(n *node[V]) {
	right := n.right
	t.replaceNode(n, right)
	n.right = right.left
	if right.left != nil {
		right.left.parent = n
	}
	right.left = n
	n.parent = right
}

func (t *Tree[V]) rotateRight(n *node[V]) {
	left := n.left
	t.replaceNode(n, left)
	n.left = left.right
	if left.right != nil {
		left.right.parent = n
	}
	left.right = n
	n.parent = left
}

func (t *Tree[V]) replaceNode(old *node[V], new *node[V]) {
	if old.parent == nil {
		t.root = new
	} else if old == old.parent.left {
		old.parent.left = new
	} else {
		old.parent.right = new
	}
	if new != nil {
		new.parent = old.parent
	}
}

func (t *Tree[V]) insertCase1(n *node[V]) {
	if n.parent == nil {
		n.color = black
		return
	}
	if nodeColor(n.parent) == black {
		return
	}

	uncle := n.uncle()
	if nodeColor(uncle) == red {
		n.parent.color = black
		uncle.color = black
		n.grandparent().color = red
		t.insertCase1(n.grandparent())
		return
	}

	gp := n.grandparent()
	if n == n.parent.right && n.parent == gp.left {
		t.rotateLeft(n.parent)
		n = n.left
	} else if n == n.parent.left && n.parent == gp.right {
		t.rotateRight(n.parent)
		n = n.right
	}

	n.parent.color = black
	gp = n.grandparent()
	gp.color = red
	if n == n.parent.left && n.parent == gp.left {
		t.rotateRight(gp)
	} else if n == n.parent.right && n.parent == gp.right {
		t.rotateLeft(gp)
	}
}

func (t *Tree[V]) deleteCase1(n *node[V]) {
	if n.parent == nil {
		return
	}

	sibling := n.sibling()
	if nodeColor(sibling) == red {
		n.parent.color = red
		sibling.color = black
		if n == n.parent.left {
			t.rotateLeft(n.parent)
		} else {
			t.rotateRight(n.parent)
		}
	}

	sibling = n.sibling()
	if nodeColor(n.parent) == black &&
		nodeColor(sibling) == black &&
		nodeColor(sibling.left) == black &&
		nodeColor(sibling.right) == black {
		sibling.color = red
		t.deleteCase1(n.parent)
		return
	}

	if nodeColor(n.parent) == red &&
		nodeColor(sibling) == black &&
		nodeColor(sibling.left) == black &&
		nodeColor(sibling.right) == black {
		sibling.color = red
		n.parent.color = black
		return
	}

	if n == n.parent.left &&
		nodeColor(sibling) == black &&
		nodeColor(sibling.left) == red &&
		nodeColor(sibling.right) == black {
		sibling.color = red
		sibling.left.color = black
		t.rotateRight(sibling)
	} else if n == n.parent.right &&
		nodeColor(sibling) == black &&
		nodeColor(sibling.right) == red &&
		nodeColor(sibling.left) == black {
		sibling.color = red
		sibling.right.color = black
		t.rotateLeft(sibling)
	}

	sibling = n.sibling()
	sibling.color = nodeColor(n.parent)
	n.parent.color = black
	if n == n.parent.left && nodeColor(sibling.right) == red {
		sibling.right.color = black
		t.rotateLeft(n.parent)
	} else if nodeColor(sibling.left) == red {
		sibling.left.color = black
		t.rotateRight(n.parent)
	}
}

func nodeColor[V any](n *node[V]) color {
	if n == nil {
		return black
	}
	return n.color
}
