// Package stashdb is the durable store: one backing memory split into
// regions, each holding a typed cell or a typed sorted map.
package stashdb

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/S0me0neR0man/jobstash/internal/btree"
	"github.com/S0me0neR0man/jobstash/internal/cell"
	"github.com/S0me0neR0man/jobstash/internal/codec"
	"github.com/S0me0neR0man/jobstash/internal/memory"
	"github.com/S0me0neR0man/jobstash/internal/region"
)

var (
	ErrRegionInUse = errors.New("stashdb: region already bound")
	ErrClosed      = errors.New("stashdb: closed")
)

type Option func(*Stash)

// WithPageSize sets the page size of a fresh backing memory.
func WithPageSize(size uint32) Option {
	return func(s *Stash) {
		s.regionOpts = append(s.regionOpts, region.WithPageSize(size))
	}
}

// WithDegree sets the degree of freshly created maps.
func WithDegree(degree int) Option {
	return func(s *Stash) {
		s.treeOpts = append(s.treeOpts, btree.WithDegree(degree))
	}
}

// WithCacheSize sets the node cache size of every map.
func WithCacheSize(nodes int64) Option {
	return func(s *Stash) {
		s.treeOpts = append(s.treeOpts, btree.WithCacheSize(nodes))
	}
}

// Stash owns the backing memory and binds typed structures to its regions.
// It is built once at startup and handed to the code that needs it.
//
// IMPORTANT: Stash does not provide thread safety
type Stash struct {
	id      uuid.UUID
	mem     memory.Memory
	regions *region.Manager
	bound   map[region.ID]string
	trees   []*btree.Tree
	closed  bool

	regionOpts []region.Option
	treeOpts   []btree.Option

	logger *zap.Logger
	sugar  *zap.SugaredLogger
}

// Open loads the region layout of mem, initializing it when mem is empty.
func Open(mem memory.Memory, logger *zap.Logger, opts ...Option) (*Stash, error) {
	const msg = "stashdb open:"
	s := &Stash{
		id:     uuid.New(),
		mem:    mem,
		bound:  make(map[region.ID]string),
		logger: logger,
		sugar:  logger.Sugar(),
	}
	for _, opt := range opts {
		opt(s)
	}

	regions, err := region.NewManager(mem, logger, s.regionOpts...)
	if err != nil {
		return nil, fmt.Errorf("%s %w", msg, err)
	}
	s.regions = regions

	s.sugar.Infow("stash opened",
		"instance", s.id,
		"size", humanize.IBytes(mem.Size()),
		"pageSize", humanize.IBytes(regions.PageSize()),
		"pages", regions.PageCount())
	return s, nil
}

// ID identifies this stash instance in logs.
func (s *Stash) ID() uuid.UUID {
	return s.id
}

// Layout returns the page extents of every region in use.
func (s *Stash) Layout() []region.Extent {
	return s.regions.Layout()
}

func (s *Stash) PageSize() uint64 {
	return s.regions.PageSize()
}

// bind reserves region id for one structure.
func (s *Stash) bind(id region.ID, kind string) (*region.Region, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if prev, ok := s.bound[id]; ok {
		return nil, fmt.Errorf("%w: region %d holds a %s", ErrRegionInUse, id, prev)
	}
	r, err := s.regions.Get(id)
	if err != nil {
		return nil, err
	}
	s.bound[id] = kind
	return r, nil
}

// OpenCell binds a cell of type T to region id. A fresh region starts with
// initial.
func OpenCell[T any](s *Stash, id region.ID, c codec.Codec[T], initial T) (*cell.Cell[T], error) {
	const msg = "stashdb open cell:"
	r, err := s.bind(id, "cell")
	if err != nil {
		return nil, fmt.Errorf("%s %w", msg, err)
	}
	cl, err := cell.Init(r, c, initial)
	if err != nil {
		delete(s.bound, id)
		return nil, fmt.Errorf("%s region %d: %w", msg, id, err)
	}
	s.sugar.Debugw("cell opened", "region", id, "pages", r.Size())
	return cl, nil
}

// OpenMap binds a sorted map of T values to region id.
func OpenMap[T any](s *Stash, id region.ID, c codec.Codec[T]) (*Map[T], error) {
	const msg = "stashdb open map:"
	r, err := s.bind(id, "map")
	if err != nil {
		return nil, fmt.Errorf("%s %w", msg, err)
	}
	tree, err := btree.Open(r, s.logger, s.treeOpts...)
	if err != nil {
		delete(s.bound, id)
		return nil, fmt.Errorf("%s region %d: %w", msg, id, err)
	}
	s.trees = append(s.trees, tree)
	s.sugar.Debugw("map opened", "region", id, "pages", r.Size(), "len", tree.Len())
	return &Map[T]{tree: tree, codec: c}, nil
}

// Close syncs and closes the backing memory. Cells and maps opened from the
// stash must not be used afterwards.
func (s *Stash) Close() error {
	const msg = "stashdb close:"
	if s.closed {
		return nil
	}
	s.closed = true
	for _, tree := range s.trees {
		tree.Close()
	}

	syncErr := s.regions.Sync()
	closeErr := s.mem.Close()
	if err := errors.Join(syncErr, closeErr); err != nil {
		return fmt.Errorf("%s %w", msg, err)
	}
	s.sugar.Infow("stash closed", "instance", s.id)
	return nil
}
