// Package cell keeps a single value durable in a region.
//
// Layout of the region:
//
//	[0:3] magic "JCL"
//	[3]   layout version
//	[4:8] value length, little endian
//	[8:]  value
package cell

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/S0me0neR0man/jobstash/internal/codec"
)

const (
	layoutVersion = 1
	headerSize    = 8
)

var magic = []byte("JCL")

// Region is the storage a cell lives in.
type Region interface {
	Size() uint64
	PageSize() uint64
	Grow(pages uint64) (uint64, error)
	ReadAt(p []byte, off uint64) error
	WriteAt(p []byte, off uint64) error
	Sync() error
}

// Cell is a persistent value of type T.
//
// IMPORTANT: Cell does not provide thread safety
type Cell[T any] struct {
	r     Region
	codec codec.Codec[T]
	value T
}

// Init binds a cell to r. An empty region is initialized with initial, a
// region written before keeps its stored value.
func Init[T any](r Region, c codec.Codec[T], initial T) (*Cell[T], error) {
	cl := &Cell[T]{r: r, codec: c}
	if r.Size() > 0 {
		loaded, err := cl.load()
		if err != nil {
			return nil, err
		}
		if loaded {
			return cl, nil
		}
	}
	if _, err := cl.Set(initial); err != nil {
		return nil, err
	}
	return cl, nil
}

// load reads the stored value. It reports false for a region whose header
// was never written.
func (cl *Cell[T]) load() (bool, error) {
	const msg = "cell load:"
	header := make([]byte, headerSize)
	if err := cl.r.ReadAt(header, 0); err != nil {
		return false, fmt.Errorf("%s %w", msg, err)
	}
	if bytes.Equal(header, make([]byte, headerSize)) {
		return false, nil
	}
	if !bytes.Equal(header[:3], magic) || header[3] != layoutVersion {
		return false, fmt.Errorf("%s %w: bad header %x", msg, codec.ErrCorruptEncoding, header)
	}

	n := uint64(binary.LittleEndian.Uint32(header[4:8]))
	if headerSize+n > cl.r.Size()*cl.r.PageSize() {
		return false, fmt.Errorf("%s %w: value length %d beyond region", msg, codec.ErrCorruptEncoding, n)
	}
	b := make([]byte, n)
	if err := cl.r.ReadAt(b, headerSize); err != nil {
		return false, fmt.Errorf("%s %w", msg, err)
	}
	v, err := cl.codec.Decode(b)
	if err != nil {
		return false, fmt.Errorf("%s %w", msg, err)
	}
	cl.value = v
	return true, nil
}

// Get returns the current value.
func (cl *Cell[T]) Get() T {
	return cl.value
}

// Set stores v and returns the previous value. The new value is durable
// when Set returns.
func (cl *Cell[T]) Set(v T) (T, error) {
	const msg = "cell set:"
	old := cl.value

	b, err := codec.EncodeChecked(cl.codec, v)
	if err != nil {
		return old, err
	}

	buf := make([]byte, headerSize+len(b))
	copy(buf, magic)
	buf[3] = layoutVersion
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(b)))
	copy(buf[headerSize:], b)

	if capacity := cl.r.Size() * cl.r.PageSize(); uint64(len(buf)) > capacity {
		missing := (uint64(len(buf)) - capacity + cl.r.PageSize() - 1) / cl.r.PageSize()
		if _, err := cl.r.Grow(missing); err != nil {
			return old, fmt.Errorf("%s %w", msg, err)
		}
	}
	if err := cl.r.WriteAt(buf, 0); err != nil {
		return old, fmt.Errorf("%s %w", msg, err)
	}
	if err := cl.r.Sync(); err != nil {
		return old, fmt.Errorf("%s %w", msg, err)
	}

	cl.value = v
	return old, nil
}
