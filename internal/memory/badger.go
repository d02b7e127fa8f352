package memory

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// ChunkSize is the size of one badger value in a Badger memory.
const ChunkSize = 64 << 10

var sizeKey = []byte("meta:size")

// Badger is a memory stored as fixed-size chunks in a badger database.
// Chunks that were never written read as zeros. Every WriteAt is a single
// synchronous transaction, so a write spanning chunks is all-or-nothing.
type Badger struct {
	db     *badger.DB
	size   uint64
	closed bool
}

// OpenBadger opens the badger database at path. An empty path opens an
// in-memory database.
func OpenBadger(path string) (*Badger, error) {
	opts := badger.DefaultOptions(path).
		WithSyncWrites(true).
		WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("memory: open badger: %w", err)
	}

	m := &Badger{db: db}
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sizeKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("memory: bad size record of %d bytes", len(val))
			}
			m.size = binary.BigEndian.Uint64(val)
			return nil
		})
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("memory: load size: %w", err)
	}
	return m, nil
}

func (m *Badger) Size() uint64 {
	return m.size
}

func (m *Badger) Grow(delta uint64) (uint64, error) {
	if m.closed {
		return 0, ErrClosed
	}
	old := m.size
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, old+delta)
	err := m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(sizeKey, buf)
	})
	if err != nil {
		return old, fmt.Errorf("memory: grow: %w", err)
	}
	m.size = old + delta
	return old, nil
}

func (m *Badger) ReadAt(p []byte, off uint64) error {
	if m.closed {
		return ErrClosed
	}
	if err := checkRange(m.size, len(p), off); err != nil {
		return err
	}
	return m.db.View(func(txn *badger.Txn) error {
		for done := 0; done < len(p); {
			pos := off + uint64(done)
			idx, inner := pos/ChunkSize, int(pos%ChunkSize)
			n := ChunkSize - inner
			if n > len(p)-done {
				n = len(p) - done
			}
			chunk, err := readChunk(txn, idx)
			if err != nil {
				return err
			}
			copy(p[done:done+n], chunk[inner:inner+n])
			done += n
		}
		return nil
	})
}

func (m *Badger) WriteAt(p []byte, off uint64) error {
	if m.closed {
		return ErrClosed
	}
	if err := checkRange(m.size, len(p), off); err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		for done := 0; done < len(p); {
			pos := off + uint64(done)
			idx, inner := pos/ChunkSize, int(pos%ChunkSize)
			n := ChunkSize - inner
			if n > len(p)-done {
				n = len(p) - done
			}
			chunk, err := readChunk(txn, idx)
			if err != nil {
				return err
			}
			copy(chunk[inner:inner+n], p[done:done+n])
			if err := txn.Set(chunkKey(idx), chunk); err != nil {
				return err
			}
			done += n
		}
		return nil
	})
}

func (m *Badger) Sync() error {
	if m.closed {
		return ErrClosed
	}
	return m.db.Sync()
}

func (m *Badger) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	return m.db.Close()
}

func readChunk(txn *badger.Txn, idx uint64) ([]byte, error) {
	chunk := make([]byte, ChunkSize)
	item, err := txn.Get(chunkKey(idx))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return chunk, nil
	}
	if err != nil {
		return nil, err
	}
	err = item.Value(func(val []byte) error {
		copy(chunk, val)
		return nil
	})
	return chunk, err
}

func chunkKey(idx uint64) []byte {
	key := make([]byte, 9)
	key[0] = 'c'
	binary.BigEndian.PutUint64(key[1:], idx)
	return key
}
