// Package region multiplexes one backing memory into independent, growable
// regions made of fixed-size pages.
//
// The memory starts with a header area:
//
//	[0:3]   magic "JRM"
//	[3]     layout version
//	[4:8]   page size, little endian
//	[8:12]  committed page count, little endian
//	[12:16] reserved
//	[16:]   page ownership table, one byte per physical page (0xFF = free)
//
// The header area is padded to a whole number of pages; physical page i lives
// right after it at i*pageSize. Pages are handed out strictly from the end, so
// a region's pages are the table entries that carry its id, in table order.
package region

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/S0me0neR0man/jobstash/internal/memory"
)

// ID identifies a region.
type ID uint8

const (
	// MaxRegions is the number of usable region ids, 0 ... MaxRegions-1.
	MaxRegions = 255
	// MaxPages bounds the physical pages one memory can hold.
	MaxPages = 1 << 15

	DefaultPageSize = 64 << 10
	MinPageSize     = 512

	layoutVersion   = 1
	freePage        = 0xFF
	fixedHeaderSize = 16
	ownerTableOff   = fixedHeaderSize
	headerBytes     = fixedHeaderSize + MaxPages
	pageCountOff    = 8
)

var magic = []byte("JRM")

var (
	ErrInvalidRegionID = errors.New("region: invalid region id")
	ErrOutOfBounds     = errors.New("region: access out of bounds")
	ErrExhausted       = errors.New("region: backing memory exhausted")
	ErrCorruptHeader   = errors.New("region: corrupt header")
)

type Option func(*Manager)

// WithPageSize sets the page size of a freshly initialized memory. An existing
// memory keeps the page size recorded in its header.
func WithPageSize(size uint32) Option {
	return func(m *Manager) {
		m.pageSize = uint64(size)
	}
}

// Extent describes the pages owned by one region.
type Extent struct {
	ID        ID
	FirstPage uint32
	Pages     uint32
}

// Manager owns the header of a memory and hands out regions.
//
// IMPORTANT: Manager does not provide thread safety
type Manager struct {
	mem        memory.Memory
	pageSize   uint64
	headerSize uint64
	pageCount  uint32
	pages      [MaxRegions][]uint32
	regions    [MaxRegions]*Region

	sugar *zap.SugaredLogger
}

// NewManager initializes the header of an empty memory, or loads the layout
// recorded by a previous process.
func NewManager(mem memory.Memory, logger *zap.Logger, opts ...Option) (*Manager, error) {
	m := &Manager{
		mem:      mem,
		pageSize: DefaultPageSize,
		sugar:    logger.Sugar(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if mem.Size() == 0 {
		if err := m.init(); err != nil {
			return nil, err
		}
		return m, nil
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) init() error {
	const msg = "region init:"
	if m.pageSize < MinPageSize {
		return fmt.Errorf("%s page size %d below %d", msg, m.pageSize, MinPageSize)
	}
	m.headerSize = alignUp(headerBytes, m.pageSize)
	if _, err := m.mem.Grow(m.headerSize); err != nil {
		return fmt.Errorf("%s %w", msg, err)
	}

	header := make([]byte, headerBytes)
	copy(header, magic)
	header[3] = layoutVersion
	binary.LittleEndian.PutUint32(header[4:8], uint32(m.pageSize))
	for i := ownerTableOff; i < headerBytes; i++ {
		header[i] = freePage
	}
	if err := m.mem.WriteAt(header, 0); err != nil {
		return fmt.Errorf("%s %w", msg, err)
	}
	if err := m.mem.Sync(); err != nil {
		return fmt.Errorf("%s %w", msg, err)
	}

	m.sugar.Debugw("region header initialized",
		"pageSize", humanize.IBytes(m.pageSize),
		"headerSize", humanize.IBytes(m.headerSize))
	return nil
}

func (m *Manager) load() error {
	const msg = "region load:"
	if m.mem.Size() < headerBytes {
		return fmt.Errorf("%w: memory of %d bytes is smaller than the header", ErrCorruptHeader, m.mem.Size())
	}
	header := make([]byte, headerBytes)
	if err := m.mem.ReadAt(header, 0); err != nil {
		return fmt.Errorf("%s %w", msg, err)
	}
	if !bytes.Equal(header[:3], magic) {
		return fmt.Errorf("%w: bad magic %q", ErrCorruptHeader, header[:3])
	}
	if header[3] != layoutVersion {
		return fmt.Errorf("%w: unsupported layout version %d", ErrCorruptHeader, header[3])
	}

	stored := uint64(binary.LittleEndian.Uint32(header[4:8]))
	if stored < MinPageSize {
		return fmt.Errorf("%w: page size %d", ErrCorruptHeader, stored)
	}
	if stored != m.pageSize {
		m.sugar.Warnw("page size differs from the stored one, using stored",
			"requested", m.pageSize, "stored", stored)
	}
	m.pageSize = stored
	m.headerSize = alignUp(headerBytes, m.pageSize)

	count := binary.LittleEndian.Uint32(header[pageCountOff : pageCountOff+4])
	if count > MaxPages {
		return fmt.Errorf("%w: page count %d", ErrCorruptHeader, count)
	}
	if need := m.physical(count); m.mem.Size() < need {
		return fmt.Errorf("%w: %d pages need %d bytes, memory has %d", ErrCorruptHeader, count, need, m.mem.Size())
	}

	for page := uint32(0); page < count; page++ {
		owner := header[ownerTableOff+int(page)]
		if owner == freePage {
			return fmt.Errorf("%w: committed page %d has no owner", ErrCorruptHeader, page)
		}
		m.pages[owner] = append(m.pages[owner], page)
	}
	m.pageCount = count

	m.sugar.Debugw("region header loaded",
		"pageSize", humanize.IBytes(m.pageSize),
		"pages", count,
		"regions", len(m.Layout()))
	return nil
}

// Get returns the region with the given id. Regions start empty.
func (m *Manager) Get(id ID) (*Region, error) {
	if id >= MaxRegions {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRegionID, id)
	}
	if m.regions[id] == nil {
		m.regions[id] = &Region{m: m, id: id}
	}
	return m.regions[id], nil
}

// PageSize returns the page size in bytes.
func (m *Manager) PageSize() uint64 {
	return m.pageSize
}

// PageCount returns the number of allocated physical pages.
func (m *Manager) PageCount() uint32 {
	return m.pageCount
}

// Layout returns the extents of every region that owns pages, by id.
func (m *Manager) Layout() []Extent {
	var res []Extent
	for id, pages := range m.pages {
		if len(pages) == 0 {
			continue
		}
		res = append(res, Extent{ID: ID(id), FirstPage: pages[0], Pages: uint32(len(pages))})
	}
	return res
}

// Sync flushes the backing memory.
func (m *Manager) Sync() error {
	return m.mem.Sync()
}

// grow appends n pages at the end of the memory and assigns them to id.
// The ownership entries are written before the page count, so a crash in
// between leaves the previous layout.
func (m *Manager) grow(id ID, n uint64) (uint64, error) {
	const msg = "region grow:"
	old := uint64(len(m.pages[id]))
	if n == 0 {
		return old, nil
	}
	if n > MaxPages-uint64(m.pageCount) {
		return old, fmt.Errorf("%w: %d pages in use, %d requested, max %d", ErrExhausted, m.pageCount, n, MaxPages)
	}

	next := m.pageCount + uint32(n)
	if need := m.physical(next); m.mem.Size() < need {
		if _, err := m.mem.Grow(need - m.mem.Size()); err != nil {
			return old, fmt.Errorf("%w: %v", ErrExhausted, err)
		}
	}

	owners := bytes.Repeat([]byte{byte(id)}, int(n))
	if err := m.mem.WriteAt(owners, ownerTableOff+uint64(m.pageCount)); err != nil {
		return old, fmt.Errorf("%s %w", msg, err)
	}
	var count [4]byte
	binary.LittleEndian.PutUint32(count[:], next)
	if err := m.mem.WriteAt(count[:], pageCountOff); err != nil {
		return old, fmt.Errorf("%s %w", msg, err)
	}
	if err := m.mem.Sync(); err != nil {
		return old, fmt.Errorf("%s %w", msg, err)
	}

	for page := m.pageCount; page < next; page++ {
		m.pages[id] = append(m.pages[id], page)
	}
	m.pageCount = next

	m.sugar.Debugw("region grown",
		"id", id,
		"pages", len(m.pages[id]),
		"size", humanize.IBytes(uint64(len(m.pages[id]))*m.pageSize),
		"total", humanize.IBytes(m.mem.Size()))
	return old, nil
}

// physical returns the memory offset of physical page n.
func (m *Manager) physical(page uint32) uint64 {
	return m.headerSize + uint64(page)*m.pageSize
}

func alignUp(n, to uint64) uint64 {
	return (n + to - 1) / to * to
}
