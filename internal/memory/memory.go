// Package memory provides the linear, byte-addressable backing media the
// region allocator is built on.
package memory

import (
	"errors"
	"fmt"
)

const (
	VectorKind = "memory"
	FileKind   = "file"
	BadgerKind = "badger"
)

var (
	ErrOutOfRange = errors.New("memory: access out of range")
	ErrClosed     = errors.New("memory: closed")
	ErrLocked     = errors.New("memory: already in use by another process")
)

// Memory is a growable flat byte space. Sizes and offsets are in bytes.
//
// Implementations are not required to be safe for concurrent use.
type Memory interface {
	// Size returns the current size in bytes.
	Size() uint64
	// Grow extends the memory by delta zeroed bytes and returns the previous size.
	Grow(delta uint64) (uint64, error)
	// ReadAt fills p from off. The whole range must be inside Size.
	ReadAt(p []byte, off uint64) error
	// WriteAt writes p at off. The whole range must be inside Size.
	WriteAt(p []byte, off uint64) error
	// Sync makes every preceding write durable.
	Sync() error
	Close() error
}

// Open opens the memory of the given kind. The path is ignored for VectorKind.
func Open(kind, path string) (Memory, error) {
	switch kind {
	case VectorKind:
		return NewVector(), nil
	case FileKind:
		return OpenFile(path)
	case BadgerKind:
		return OpenBadger(path)
	}
	return nil, fmt.Errorf("memory: unknown kind %q", kind)
}

func checkRange(size uint64, n int, off uint64) error {
	end := off + uint64(n)
	if end < off || end > size {
		return fmt.Errorf("%w: [%d, %d) size %d", ErrOutOfRange, off, end, size)
	}
	return nil
}
