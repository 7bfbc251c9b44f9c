package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"example.com/campusevents/internal/app"
	"example.com/campusevents/internal/config"
	"example.com/campusevents/internal/ingest"
	transport "example.com/campusevents/internal/transport/http"
)

func main() {
	cfg := config.Load()
	logger, err := app.NewLogger(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("config loaded", zap.String("port", cfg.Port), zap.String("environment", cfg.Environment))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	defer a.Close()

	scheduled := make(chan struct{})
	if cfg.ScrapeSchedule == "" {
		close(scheduled)
	} else {
		go func() {
			defer close(scheduled)
			if err := ingest.Schedule(ctx, cfg.ScrapeSchedule, a.Runner, logger.Named("cron")); err != nil {
				logger.Error("scheduler stopped", zap.Error(err))
			}
		}()
	}

	deps := &transport.ServerDeps{
		Cfg:    cfg,
		Store:  a.DB,
		Chain:  a.Chain,
		Tags:   a.Tags,
		Claims: a.Claims,
		Runner: a.Runner,
		Logger: logger.Named("http"),
		Now:    func() time.Time { return time.Now().UTC() },
	}
	h := deps.Router()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	_ = srv.Shutdown(shutdownCtx)
	// a scheduled run finishes its current record before the pool closes
	<-scheduled
	logger.Info("shut down")
}
