// Command scrape imports the campus event feed once, or on a cron
// schedule with -schedule.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"example.com/campusevents/internal/app"
	"example.com/campusevents/internal/config"
	"example.com/campusevents/internal/ingest"
)

func main() {
	cfg := config.Load()
	pageSize := flag.Int("page-size", cfg.FeedPageSize, "records to request from the feed, 0 for the feed default")
	schedule := flag.String("schedule", "", "cron spec; run repeatedly until interrupted")
	flag.Parse()
	cfg.FeedPageSize = *pageSize

	logger, err := app.NewLogger(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	defer a.Close()

	if *schedule != "" {
		if err := ingest.Schedule(ctx, *schedule, a.Runner, logger.Named("cron")); err != nil {
			logger.Error("scheduler", zap.Error(err))
			a.Close()
			os.Exit(1)
		}
		return
	}

	sum, err := a.Runner.Run(ctx)
	if err != nil {
		logger.Error("scrape failed", zap.Error(err))
		a.Close()
		os.Exit(1)
	}
	if sum.Errored > 0 {
		logger.Warn("some records failed", zap.Int("errored", sum.Errored))
	}
}
