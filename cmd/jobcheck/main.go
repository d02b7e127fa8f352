package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/S0me0neR0man/jobstash/internal/config"
)

func main() {
	conf, err := config.NewConfig()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatal(err)
	}
	if !conf.Debug {
		logger = logger.WithOptions(zap.IncreaseLevel(zap.InfoLevel))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	c, err := NewChecker(conf, logger)
	if err != nil {
		log.Fatal(err)
	}
	c.Go(ctx)
	if err := c.Wait(); err != nil {
		log.Fatal(err)
	}
}
