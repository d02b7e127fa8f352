package region

import "fmt"

// Region is a growable virtual address space. Offsets start at zero and run
// up to Size()*PageSize() bytes.
type Region struct {
	m  *Manager
	id ID
}

func (r *Region) ID() ID {
	return r.id
}

// Size returns the number of pages owned by the region.
func (r *Region) Size() uint64 {
	return uint64(len(r.m.pages[r.id]))
}

func (r *Region) PageSize() uint64 {
	return r.m.pageSize
}

// Grow extends the region by pages and returns the previous size in pages.
func (r *Region) Grow(pages uint64) (uint64, error) {
	return r.m.grow(r.id, pages)
}

func (r *Region) ReadAt(p []byte, off uint64) error {
	return r.access(p, off, r.m.mem.ReadAt)
}

func (r *Region) WriteAt(p []byte, off uint64) error {
	return r.access(p, off, r.m.mem.WriteAt)
}

// Sync makes all previous writes to the backing memory durable.
func (r *Region) Sync() error {
	return r.m.mem.Sync()
}

// access splits [off, off+len(p)) into runs of physically contiguous pages
// and calls fn once per run.
func (r *Region) access(p []byte, off uint64, fn func([]byte, uint64) error) error {
	pageSize := r.m.pageSize
	end := off + uint64(len(p))
	if end < off || end > r.Size()*pageSize {
		return fmt.Errorf("%w: region %d [%d, %d) size %d", ErrOutOfBounds, r.id, off, end, r.Size()*pageSize)
	}

	pages := r.m.pages[r.id]
	for done := uint64(0); done < uint64(len(p)); {
		pos := off + done
		idx, inner := pos/pageSize, pos%pageSize
		phys := r.m.physical(pages[idx]) + inner
		n := pageSize - inner
		for idx+1 < uint64(len(pages)) && pages[idx+1] == pages[idx]+1 && done+n < uint64(len(p)) {
			idx++
			n += pageSize
		}
		if n > uint64(len(p))-done {
			n = uint64(len(p)) - done
		}
		if err := fn(p[done:done+n], phys); err != nil {
			return fmt.Errorf("region %d: %w", r.id, err)
		}
		done += n
	}
	return nil
}
