package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/S0me0neR0man/jobstash/internal/config"
	"github.com/S0me0neR0man/jobstash/internal/jobs"
	"github.com/S0me0neR0man/jobstash/internal/memory"
	"github.com/S0me0neR0man/jobstash/internal/server"
	"github.com/S0me0neR0man/jobstash/internal/stashdb"
)

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	conf, err := config.NewConfig()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := newLogger(conf.Debug)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()
	sugar := logger.Sugar()

	mem, err := memory.Open(conf.Backend, conf.StorePath)
	if err != nil {
		sugar.Fatalw("open backing memory", "backend", conf.Backend, "path", conf.StorePath, "error", err)
	}
	stash, err := stashdb.Open(mem, logger, stashdb.WithPageSize(conf.PageSize))
	if err != nil {
		_ = mem.Close()
		sugar.Fatalw("open stash", "error", err)
	}
	defer func() {
		if err := stash.Close(); err != nil {
			sugar.Errorw("close stash", "error", err)
		}
	}()

	registry, err := jobs.NewRegistry(stash, logger)
	if err != nil {
		sugar.Errorw("open registry", "error", err)
		return
	}
	s := server.NewJobServer(registry, conf, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Start(ctx)
	})
	if err := g.Wait(); err != nil {
		sugar.Errorw("server", "error", err)
	}
	s.Wait()
}
