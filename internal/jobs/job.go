// Package jobs is the job posting registry built on the stash.
package jobs

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound         = errors.New("job not found")
	ErrIDSpaceExhausted = errors.New("job id space exhausted")
)

// NotFoundError reports an operation on an id that holds no job.
type NotFoundError struct {
	Op string
	ID uint64
}

func (e *NotFoundError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("a job with id=%d not found", e.ID)
	}
	if e.Op == "delete" {
		return fmt.Sprintf("couldn't delete a job with id=%d. job not found.", e.ID)
	}
	return fmt.Sprintf("couldn't %s a job with id=%d. job not found", e.Op, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Job is a stored job posting. ID and CreatedAt never change after creation.
type Job struct {
	ID             uint64
	Title          string
	Description    string
	SkillsRequired []string
	// CreatedAt is the creation time in unix nanoseconds.
	CreatedAt uint64
}

func (j Job) Created() time.Time {
	return time.Unix(0, int64(j.CreatedAt)).UTC()
}

// JobPayload carries the caller supplied fields of a new job.
type JobPayload struct {
	Title          string
	Description    string
	SkillsRequired []string
}

// JobUpdate lists the fields to change. Nil fields are left as they are.
type JobUpdate struct {
	Title          *string
	Description    *string
	SkillsRequired []string
}

// Replace builds an update that overwrites every field with p.
func Replace(p JobPayload) JobUpdate {
	skills := p.SkillsRequired
	if skills == nil {
		skills = []string{}
	}
	return JobUpdate{Title: &p.Title, Description: &p.Description, SkillsRequired: skills}
}

func (u JobUpdate) apply(j Job) Job {
	if u.Title != nil {
		j.Title = *u.Title
	}
	if u.Description != nil {
		j.Description = *u.Description
	}
	if u.SkillsRequired != nil {
		j.SkillsRequired = append([]string(nil), u.SkillsRequired...)
	}
	return j
}
