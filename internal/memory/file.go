package memory

import (
	"fmt"
	"os"
	"path/filepath"
)

// File is a memory backed by a single regular file. The file is locked
// exclusively for the lifetime of the handle.
type File struct {
	f      *os.File
	size   uint64
	closed bool
}

// OpenFile opens or creates the file at path.
func OpenFile(path string) (*File, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("memory: mkdir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("memory: open: %w", err)
	}
	if err := lockFile(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		unlockFile(f)
		_ = f.Close()
		return nil, fmt.Errorf("memory: stat: %w", err)
	}
	return &File{f: f, size: uint64(info.Size())}, nil
}

func (m *File) Size() uint64 {
	return m.size
}

func (m *File) Grow(delta uint64) (uint64, error) {
	if m.closed {
		return 0, ErrClosed
	}
	old := m.size
	if err := m.f.Truncate(int64(old + delta)); err != nil {
		return old, fmt.Errorf("memory: grow: %w", err)
	}
	m.size = old + delta
	return old, nil
}

func (m *File) ReadAt(p []byte, off uint64) error {
	if m.closed {
		return ErrClosed
	}
	if err := checkRange(m.size, len(p), off); err != nil {
		return err
	}
	if _, err := m.f.ReadAt(p, int64(off)); err != nil {
		return fmt.Errorf("memory: read: %w", err)
	}
	return nil
}

func (m *File) WriteAt(p []byte, off uint64) error {
	if m.closed {
		return ErrClosed
	}
	if err := checkRange(m.size, len(p), off); err != nil {
		return err
	}
	if _, err := m.f.WriteAt(p, int64(off)); err != nil {
		return fmt.Errorf("memory: write: %w", err)
	}
	return nil
}

func (m *File) Sync() error {
	if m.closed {
		return ErrClosed
	}
	return m.f.Sync()
}

func (m *File) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	unlockFile(m.f)
	return m.f.Close()
}
