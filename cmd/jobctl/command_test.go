package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/S0me0neR0man/jobstash/internal/jobs"
)

func TestParse(t *testing.T) {
	cmd, err := parse(`create "Go developer" 'backend, remote' go grpc`)
	require.NoError(t, err)
	require.Equal(t, "create", cmd.name)
	require.Equal(t, jobs.JobPayload{
		Title:          "Go developer",
		Description:    "backend, remote",
		SkillsRequired: []string{"go", "grpc"},
	}, cmd.payload)

	cmd, err = parse(`update 7 title="Senior Go developer" skills=`)
	require.NoError(t, err)
	require.EqualValues(t, 7, cmd.id)
	require.Equal(t, "Senior Go developer", *cmd.update.Title)
	require.Nil(t, cmd.update.Description)
	require.NotNil(t, cmd.update.SkillsRequired)
	require.Empty(t, cmd.update.SkillsRequired)

	cmd, err = parse("list 10")
	require.NoError(t, err)
	require.EqualValues(t, 10, cmd.from)
	require.Equal(t, defaultListLimit, cmd.limit)

	cmd, err = parse("   ")
	require.NoError(t, err)
	require.Empty(t, cmd.name)
}

func TestParse_errors(t *testing.T) {
	for _, line := range []string{
		"create onlytitle",
		"get",
		"get -1",
		"delete 1 2",
		"update 1",
		"update 1 salary=100",
		"list 0 0",
		"help me",
	} {
		_, err := parse(line)
		require.ErrorIs(t, err, errUsage, line)
	}

	_, err := parse("fly 1")
	require.Error(t, err)
	_, err = parse(`create "unterminated`)
	require.Error(t, err)
}

type fakeRegistry struct {
	jobs map[uint64]jobs.Job
	next uint64
}

func (f *fakeRegistry) Create(_ context.Context, p jobs.JobPayload) (jobs.Job, error) {
	j := jobs.Job{ID: f.next, Title: p.Title, Description: p.Description, SkillsRequired: p.SkillsRequired}
	f.jobs[j.ID] = j
	f.next++
	return j, nil
}

func (f *fakeRegistry) Get(_ context.Context, id uint64) (jobs.Job, error) {
	j, ok := f.jobs[id]
	if !ok {
		return jobs.Job{}, &jobs.NotFoundError{ID: id}
	}
	return j, nil
}

func (f *fakeRegistry) Update(_ context.Context, id uint64, u jobs.JobUpdate) (jobs.Job, error) {
	j, ok := f.jobs[id]
	if !ok {
		return jobs.Job{}, &jobs.NotFoundError{Op: "update", ID: id}
	}
	if u.Title != nil {
		j.Title = *u.Title
	}
	f.jobs[id] = j
	return j, nil
}

func (f *fakeRegistry) Delete(_ context.Context, id uint64) (jobs.Job, error) {
	j, ok := f.jobs[id]
	if !ok {
		return jobs.Job{}, &jobs.NotFoundError{Op: "delete", ID: id}
	}
	delete(f.jobs, id)
	return j, nil
}

func (f *fakeRegistry) List(_ context.Context, from uint64, limit int) ([]jobs.Job, uint64, error) {
	var res []jobs.Job
	for id := from; id < f.next && len(res) < limit; id++ {
		if j, ok := f.jobs[id]; ok {
			res = append(res, j)
		}
	}
	return res, uint64(len(f.jobs)), nil
}

func run(t *testing.T, r registry, line string) (string, error) {
	t.Helper()
	cmd, err := parse(line)
	require.NoError(t, err)
	var out bytes.Buffer
	err = execute(context.Background(), r, cmd, &out)
	return out.String(), err
}

func TestExecute(t *testing.T) {
	r := &fakeRegistry{jobs: map[uint64]jobs.Job{}}

	out, err := run(t, r, `create "Go developer" "remote" go`)
	require.NoError(t, err)
	require.Contains(t, out, `#0 "Go developer"`)
	require.Contains(t, out, "skills: go")

	_, err = run(t, r, `create "Tester" ""`)
	require.NoError(t, err)

	out, err = run(t, r, `update 1 title=QA`)
	require.NoError(t, err)
	require.Contains(t, out, `#1 "QA"`)

	out, err = run(t, r, "list")
	require.NoError(t, err)
	require.Contains(t, out, "2 shown, 2 total")

	_, err = run(t, r, "delete 0")
	require.NoError(t, err)

	_, err = run(t, r, "get 0")
	require.ErrorIs(t, err, jobs.ErrNotFound)
	require.EqualError(t, err, "a job with id=0 not found")

	out, err = run(t, r, "help")
	require.NoError(t, err)
	require.Contains(t, out, "commands:")
}
