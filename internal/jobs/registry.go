package jobs

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/S0me0neR0man/jobstash/internal/cell"
	"github.com/S0me0neR0man/jobstash/internal/codec"
	"github.com/S0me0neR0man/jobstash/internal/region"
	"github.com/S0me0neR0man/jobstash/internal/stashdb"
)

// Regions used by the registry.
const (
	CounterRegion region.ID = 0
	JobsRegion    region.ID = 1
)

type Option func(*Registry)

// WithClock replaces the clock used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// Registry implements create, read, update and delete of jobs.
//
// IMPORTANT: Registry does not provide thread safety
type Registry struct {
	counter *cell.Cell[uint64]
	jobs    *stashdb.Map[Job]
	now     func() time.Time

	sugar *zap.SugaredLogger
}

// NewRegistry binds the id counter and the job map in s.
func NewRegistry(s *stashdb.Stash, logger *zap.Logger, opts ...Option) (*Registry, error) {
	const msg = "jobs registry:"
	counter, err := stashdb.OpenCell[uint64](s, CounterRegion, codec.Uint64{}, 0)
	if err != nil {
		return nil, fmt.Errorf("%s %w", msg, err)
	}
	jobs, err := stashdb.OpenMap[Job](s, JobsRegion, Codec{})
	if err != nil {
		return nil, fmt.Errorf("%s %w", msg, err)
	}

	r := &Registry{
		counter: counter,
		jobs:    jobs,
		now:     time.Now,
		sugar:   logger.Sugar(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.sugar.Infow("registry ready", "jobs", jobs.Len(), "nextID", counter.Get())
	return r, nil
}

// newID hands out the counter value and advances it.
func (r *Registry) newID() (uint64, error) {
	id := r.counter.Get()
	if id == math.MaxUint64 {
		return 0, ErrIDSpaceExhausted
	}
	if _, err := r.counter.Set(id + 1); err != nil {
		return 0, err
	}
	return id, nil
}

// Create stores a new job and returns it with its id and creation time.
func (r *Registry) Create(p JobPayload) (Job, error) {
	const msg = "create job:"
	job := Job{
		Title:       p.Title,
		Description: p.Description,
		CreatedAt:   uint64(r.now().UnixNano()),
	}
	if len(p.SkillsRequired) > 0 {
		job.SkillsRequired = append([]string(nil), p.SkillsRequired...)
	}

	// reject oversized jobs before an id is spent on them
	if _, err := codec.EncodeChecked[Job](Codec{}, job); err != nil {
		return Job{}, fmt.Errorf("%s %w", msg, err)
	}

	id, err := r.newID()
	if err != nil {
		return Job{}, fmt.Errorf("%s %w", msg, err)
	}
	job.ID = id
	if _, _, err := r.jobs.Insert(id, job); err != nil {
		return Job{}, fmt.Errorf("%s %w", msg, err)
	}

	r.sugar.Debugw("job created", "id", id, "title", job.Title)
	return job, nil
}

// Get returns the job with the given id.
func (r *Registry) Get(id uint64) (Job, error) {
	job, ok, err := r.jobs.Get(id)
	if err != nil {
		return Job{}, fmt.Errorf("get job: %w", err)
	}
	if !ok {
		return Job{}, &NotFoundError{ID: id}
	}
	return job, nil
}

// Update changes the fields set in u. ID and CreatedAt are kept. An update
// whose result does not fit the size bound fails and the stored job stays
// as it was.
func (r *Registry) Update(id uint64, u JobUpdate) (Job, error) {
	const msg = "update job:"
	job, ok, err := r.jobs.Get(id)
	if err != nil {
		return Job{}, fmt.Errorf("%s %w", msg, err)
	}
	if !ok {
		return Job{}, &NotFoundError{Op: "update", ID: id}
	}

	job = u.apply(job)
	if _, _, err := r.jobs.Insert(id, job); err != nil {
		return Job{}, fmt.Errorf("%s %w", msg, err)
	}

	r.sugar.Debugw("job updated", "id", id)
	return job, nil
}

// Delete removes the job and returns it.
func (r *Registry) Delete(id uint64) (Job, error) {
	const msg = "delete job:"
	job, ok, err := r.jobs.Remove(id)
	if err != nil {
		return Job{}, fmt.Errorf("%s %w", msg, err)
	}
	if !ok {
		return Job{}, &NotFoundError{Op: "delete", ID: id}
	}

	r.sugar.Debugw("job deleted", "id", id)
	return job, nil
}

// List returns up to limit jobs with id >= from in ascending id order.
// A zero limit means no limit.
func (r *Registry) List(from uint64, limit int) ([]Job, error) {
	var res []Job
	err := r.jobs.Range(from, func(_ uint64, job Job) bool {
		res = append(res, job)
		return limit <= 0 || len(res) < limit
	})
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return res, nil
}

// Count returns the number of stored jobs.
func (r *Registry) Count() uint64 {
	return r.jobs.Len()
}

// NextID returns the id the next created job will get.
func (r *Registry) NextID() uint64 {
	return r.counter.Get()
}
