package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/kballard/go-shellquote"

	"github.com/S0me0neR0man/jobstash/internal/jobs"
)

const defaultListLimit = 20

var errUsage = errors.New("usage")

const usage = `commands:
  create <title> <description> [skill ...]
  get <id>
  update <id> [title=<title>] [description=<text>] [skills=<a,b,...>]
  delete <id>
  list [from] [limit]
  help
  exit`

// registry is the part of the client the shell drives.
type registry interface {
	Create(ctx context.Context, p jobs.JobPayload) (jobs.Job, error)
	Get(ctx context.Context, id uint64) (jobs.Job, error)
	Update(ctx context.Context, id uint64, u jobs.JobUpdate) (jobs.Job, error)
	Delete(ctx context.Context, id uint64) (jobs.Job, error)
	List(ctx context.Context, from uint64, limit int) ([]jobs.Job, uint64, error)
}

type command struct {
	name    string
	id      uint64
	payload jobs.JobPayload
	update  jobs.JobUpdate
	from    uint64
	limit   int
}

// parse splits a shell line, honoring quotes, into a command.
func parse(line string) (command, error) {
	args, err := shellquote.Split(line)
	if err != nil {
		return command{}, err
	}
	if len(args) == 0 {
		return command{}, nil
	}

	cmd := command{name: strings.ToLower(args[0])}
	args = args[1:]
	switch cmd.name {
	case "create":
		if len(args) < 2 {
			return cmd, fmt.Errorf("%w: create <title> <description> [skill ...]", errUsage)
		}
		cmd.payload = jobs.JobPayload{Title: args[0], Description: args[1]}
		if len(args) > 2 {
			cmd.payload.SkillsRequired = args[2:]
		}
	case "get", "delete":
		if len(args) != 1 {
			return cmd, fmt.Errorf("%w: %s <id>", errUsage, cmd.name)
		}
		if cmd.id, err = parseID(args[0]); err != nil {
			return cmd, err
		}
	case "update":
		if len(args) < 2 {
			return cmd, fmt.Errorf("%w: update <id> field=value ...", errUsage)
		}
		if cmd.id, err = parseID(args[0]); err != nil {
			return cmd, err
		}
		for _, arg := range args[1:] {
			field, value, ok := strings.Cut(arg, "=")
			if !ok {
				return cmd, fmt.Errorf("%w: %q is not field=value", errUsage, arg)
			}
			switch field {
			case "title":
				cmd.update.Title = &value
			case "description":
				cmd.update.Description = &value
			case "skills":
				cmd.update.SkillsRequired = splitSkills(value)
			default:
				return cmd, fmt.Errorf("%w: unknown field %q", errUsage, field)
			}
		}
	case "list":
		cmd.limit = defaultListLimit
		if len(args) > 2 {
			return cmd, fmt.Errorf("%w: list [from] [limit]", errUsage)
		}
		if len(args) > 0 {
			if cmd.from, err = parseID(args[0]); err != nil {
				return cmd, err
			}
		}
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				return cmd, fmt.Errorf("%w: bad limit %q", errUsage, args[1])
			}
			cmd.limit = n
		}
	case "help", "exit", "quit":
		if len(args) != 0 {
			return cmd, fmt.Errorf("%w: %s takes no arguments", errUsage, cmd.name)
		}
	default:
		return cmd, fmt.Errorf("unknown command %q, try help", cmd.name)
	}
	return cmd, nil
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad id %q", errUsage, s)
	}
	return id, nil
}

// splitSkills turns "a,b" into a list. An empty value clears the skills.
func splitSkills(s string) []string {
	res := []string{}
	for _, skill := range strings.Split(s, ",") {
		if skill = strings.TrimSpace(skill); skill != "" {
			res = append(res, skill)
		}
	}
	return res
}

// execute runs cmd against r and prints the result to w.
func execute(ctx context.Context, r registry, cmd command, w io.Writer) error {
	var (
		job jobs.Job
		err error
	)
	switch cmd.name {
	case "":
		return nil
	case "help":
		_, err = fmt.Fprintln(w, usage)
		return err
	case "create":
		job, err = r.Create(ctx, cmd.payload)
	case "get":
		job, err = r.Get(ctx, cmd.id)
	case "update":
		job, err = r.Update(ctx, cmd.id, cmd.update)
	case "delete":
		job, err = r.Delete(ctx, cmd.id)
	case "list":
		list, total, err := r.List(ctx, cmd.from, cmd.limit)
		if err != nil {
			return err
		}
		for _, j := range list {
			printJob(w, j)
		}
		fmt.Fprintf(w, "%d shown, %d total\n", len(list), total)
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd.name)
	}
	if err != nil {
		return err
	}
	printJob(w, job)
	return nil
}

func printJob(w io.Writer, j jobs.Job) {
	fmt.Fprintf(w, "#%d %q\n", j.ID, j.Title)
	if j.Description != "" {
		fmt.Fprintf(w, "  %s\n", j.Description)
	}
	if len(j.SkillsRequired) > 0 {
		fmt.Fprintf(w, "  skills: %s\n", strings.Join(j.SkillsRequired, ", "))
	}
	fmt.Fprintf(w, "  created %s (%s)\n", j.Created().Format("2006-01-02 15:04:05"), humanize.Time(j.Created()))
}
