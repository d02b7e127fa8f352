package memory

// Vector is a memory held in a byte slice. It survives as long as the value
// does, which makes it the medium of choice for tests that reopen a store.
type Vector struct {
	buf    []byte
	closed bool
}

func NewVector() *Vector {
	return &Vector{}
}

func (v *Vector) Size() uint64 {
	return uint64(len(v.buf))
}

func (v *Vector) Grow(delta uint64) (uint64, error) {
	if v.closed {
		return 0, ErrClosed
	}
	old := uint64(len(v.buf))
	v.buf = append(v.buf, make([]byte, delta)...)
	return old, nil
}

func (v *Vector) ReadAt(p []byte, off uint64) error {
	if v.closed {
		return ErrClosed
	}
	if err := checkRange(v.Size(), len(p), off); err != nil {
		return err
	}
	copy(p, v.buf[off:])
	return nil
}

func (v *Vector) WriteAt(p []byte, off uint64) error {
	if v.closed {
		return ErrClosed
	}
	if err := checkRange(v.Size(), len(p), off); err != nil {
		return err
	}
	copy(v.buf[off:], p)
	return nil
}

func (v *Vector) Sync() error {
	if v.closed {
		return ErrClosed
	}
	return nil
}

// Close marks the handle closed. The bytes are kept so that a Reopen
// observes exactly what was written.
func (v *Vector) Close() error {
	v.closed = true
	return nil
}

// Reopen returns a fresh handle over the same bytes, as a process restart
// would see them.
func (v *Vector) Reopen() *Vector {
	return &Vector{buf: v.buf}
}
