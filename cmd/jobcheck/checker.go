package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"reflect"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/S0me0neR0man/jobstash/internal/client"
	"github.com/S0me0neR0man/jobstash/internal/config"
	"github.com/S0me0neR0man/jobstash/internal/jobs"
	"github.com/S0me0neR0man/jobstash/internal/ordered"
)

const (
	displayCounter = 100
	verifyTimeout  = time.Minute
)

type simpleRecord struct {
	job     jobs.Job
	deleted bool
	updated bool
}

func (s simpleRecord) String() string {
	return fmt.Sprintf("id=%d deleted=%v updated=%v title=%q", s.job.ID, s.deleted, s.updated, s.job.Title)
}

func newPayload() jobs.JobPayload {
	i := rand.Intn(100)
	skills := make([]string, rand.Intn(4))
	for k := range skills {
		skills[k] = "skill" + strconv.Itoa(rand.Intn(20))
	}
	return jobs.JobPayload{
		Title:          "title " + strconv.Itoa(i),
		Description:    "sample text " + strconv.Itoa(i),
		SkillsRequired: skills,
	}
}

// Checker drives the registry through create, get, update and delete
// pipelines and checks every answer against a local model of the jobs it
// created.
type Checker struct {
	toDisplay chan string

	toGet      chan simpleRecord
	toUpdate   chan simpleRecord
	toRemove   chan simpleRecord
	toGetAfter chan simpleRecord

	modelMu sync.Mutex
	model   *ordered.Tree[jobs.Job]
	deleted int

	// jobs whose last operation was cut short by shutdown
	uncertain int

	wg       sync.WaitGroup
	failures chan error

	client *client.GRPCClient
	sugar  *zap.SugaredLogger
}

func NewChecker(conf *config.Config, logger *zap.Logger) (*Checker, error) {
	c, err := client.NewGRPClient(conf.Listen, conf.Token)
	if err != nil {
		return nil, err
	}

	return &Checker{
		client:     c,
		sugar:      logger.Sugar(),
		model:      ordered.New[jobs.Job](),
		failures:   make(chan error, 1),
		toDisplay:  make(chan string),
		toGet:      make(chan simpleRecord),
		toUpdate:   make(chan simpleRecord),
		toRemove:   make(chan simpleRecord),
		toGetAfter: make(chan simpleRecord),
	}, nil
}

func (c *Checker) Go(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.wg.Add(12)

	go c.display(ctx)

	go c.insert(ctx)
	go c.insert(ctx)
	go c.get(ctx)
	go c.get(ctx)
	go c.getAfter(ctx)
	go c.getAfter(ctx)
	go c.update(ctx)
	go c.update(ctx)
	go c.remove(ctx)
	go c.remove(ctx)

	go func() {
		defer c.wg.Done()
		defer cancel()
		select {
		case <-ctx.Done():
		case err := <-c.failures:
			// keep the error for Wait
			select {
			case c.failures <- err:
			default:
			}
		}
	}()
}

// Wait stops when every pipeline is done and verifies the model against
// the server.
func (c *Checker) Wait() error {
	c.wg.Wait()
	defer c.client.Close()

	select {
	case err := <-c.failures:
		return err
	default:
	}

	ctx, cancel := context.WithTimeout(context.Background(), verifyTimeout)
	defer cancel()
	return c.verify(ctx)
}

func (c *Checker) fail(err error) {
	c.sugar.Errorw("check failed", "error", err)
	select {
	case c.failures <- err:
	default:
	}
}

// send hands rec to the next stage unless the checker is stopping.
func send(ctx context.Context, ch chan<- simpleRecord, rec simpleRecord) bool {
	select {
	case ch <- rec:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Checker) tick(ctx context.Context, count *int, mark string) {
	*count++
	if *count < displayCounter {
		return
	}
	*count = 0
	select {
	case c.toDisplay <- mark:
	case <-ctx.Done():
	}
}

func (c *Checker) display(ctx context.Context) {
	defer c.wg.Done()
	c.sugar.Infow("display start")

	for {
		select {
		case <-ctx.Done():
			c.sugar.Infow("display done")
			return
		case s := <-c.toDisplay:
			if _, err := fmt.Fprint(os.Stdout, s); err != nil {
				c.sugar.Errorw("fprint stdout", "error", err)
			}
		}
	}
}

func (c *Checker) insert(ctx context.Context) {
	defer c.wg.Done()
	c.sugar.Infow("insert start")
	count := 0

	for ctx.Err() == nil {
		p := newPayload()
		job, err := c.client.Create(ctx, p)
		if err != nil {
			if ctx.Err() == nil {
				c.fail(fmt.Errorf("create: %w", err))
			}
			break
		}
		if job.Title != p.Title || job.Description != p.Description || !sameSkills(job.SkillsRequired, p.SkillsRequired) {
			c.fail(fmt.Errorf("create returned %+v for %+v", job, p))
			break
		}

		c.modelMu.Lock()
		c.model.Put(job.ID, job)
		c.modelMu.Unlock()

		rec := simpleRecord{job: job}
		c.sugar.Debugw("insert ok", "rec", rec)
		c.tick(ctx, &count, "I")
		if !send(ctx, c.toGet, rec) {
			break
		}
	}
	c.sugar.Infow("insert done")
}

func (c *Checker) get(ctx context.Context) {
	defer c.wg.Done()
	c.sugar.Infow("get start")
	count := 0

	for {
		select {
		case <-ctx.Done():
			c.sugar.Infow("get done")
			return

		case rec := <-c.toGet:
			got, err := c.client.Get(ctx, rec.job.ID)
			if err != nil {
				if ctx.Err() == nil {
					c.fail(fmt.Errorf("get %d: %w", rec.job.ID, err))
				}
				continue
			}
			c.compare(rec.job, got)
			c.tick(ctx, &count, "G")

			next := c.toUpdate
			if rand.Intn(2) == 0 {
				next = c.toRemove
			}
			send(ctx, next, rec)
		}
	}
}

func (c *Checker) update(ctx context.Context) {
	defer c.wg.Done()
	c.sugar.Infow("update start")
	count := 0

	for {
		select {
		case <-ctx.Done():
			c.sugar.Infow("update done")
			return
		case rec := <-c.toUpdate:
			title := rec.job.Title + " (updated)"
			u := jobs.JobUpdate{Title: &title}
			if rand.Intn(2) == 0 {
				u.SkillsRequired = []string{"updated"}
			}
			job, err := c.client.Update(ctx, rec.job.ID, u)
			if err != nil {
				if ctx.Err() == nil {
					c.fail(fmt.Errorf("update %d: %w", rec.job.ID, err))
				} else {
					c.forget(rec.job.ID)
				}
				continue
			}
			if job.CreatedAt != rec.job.CreatedAt || job.Title != title {
				c.fail(fmt.Errorf("update %d returned %+v", rec.job.ID, job))
				continue
			}

			c.modelMu.Lock()
			c.model.Put(job.ID, job)
			c.modelMu.Unlock()

			rec.job = job
			rec.updated = true
			c.tick(ctx, &count, "U")
			send(ctx, c.toGetAfter, rec)
		}
	}
}

func (c *Checker) remove(ctx context.Context) {
	defer c.wg.Done()
	c.sugar.Infow("remove start")
	count := 0

	for {
		select {
		case <-ctx.Done():
			c.sugar.Infow("remove done")
			return
		case rec := <-c.toRemove:
			job, err := c.client.Delete(ctx, rec.job.ID)
			if err != nil {
				if ctx.Err() == nil {
					c.fail(fmt.Errorf("delete %d: %w", rec.job.ID, err))
				} else {
					c.forget(rec.job.ID)
				}
				continue
			}
			c.compare(rec.job, job)

			c.modelMu.Lock()
			c.model.Remove(job.ID)
			c.deleted++
			c.modelMu.Unlock()

			rec.deleted = true
			c.tick(ctx, &count, "R")
			send(ctx, c.toGetAfter, rec)
		}
	}
}

func (c *Checker) getAfter(ctx context.Context) {
	defer c.wg.Done()
	c.sugar.Infow("getAfter start")
	count := 0

	for {
		select {
		case <-ctx.Done():
			c.sugar.Infow("getAfter done")
			return

		case rec := <-c.toGetAfter:
			got, err := c.client.Get(ctx, rec.job.ID)
			switch {
			case ctx.Err() != nil:
				continue
			case rec.deleted && !errors.Is(err, jobs.ErrNotFound):
				c.fail(fmt.Errorf("deleted job %d: got %+v, error %v", rec.job.ID, got, err))
				continue
			case !rec.deleted && err != nil:
				c.fail(fmt.Errorf("get after %d: %w", rec.job.ID, err))
				continue
			case !rec.deleted:
				c.compare(rec.job, got)
			}
			c.tick(ctx, &count, "A")
		}
	}
}

// forget drops a job whose state on the server is unknown.
func (c *Checker) forget(id uint64) {
	c.modelMu.Lock()
	defer c.modelMu.Unlock()
	if c.model.Remove(id) {
		c.uncertain++
	}
}

func (c *Checker) compare(want, got jobs.Job) {
	if !reflect.DeepEqual(want, got) {
		c.fail(fmt.Errorf("job %d: want %+v, got %+v", want.ID, want, got))
	}
}

// verify reads back every job the model holds.
func (c *Checker) verify(ctx context.Context) error {
	c.modelMu.Lock()
	defer c.modelMu.Unlock()

	c.sugar.Infow("verify", "live", c.model.Len(), "deleted", c.deleted, "uncertain", c.uncertain)
	it := c.model.Iterator()
	for it.Next() {
		got, err := c.client.Get(ctx, it.Key())
		if err != nil {
			return fmt.Errorf("verify %d: %w", it.Key(), err)
		}
		if !reflect.DeepEqual(it.Value(), got) {
			return fmt.Errorf("verify %d: want %+v, got %+v", it.Key(), it.Value(), got)
		}
	}
	c.sugar.Infow("verify ok")
	return nil
}

func sameSkills(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
