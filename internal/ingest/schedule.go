package ingest

import (
	"context"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Schedule runs r on the cron spec until ctx is done. A run that fails is
// logged and left for the next tick; overlapping ticks are skipped.
func Schedule(ctx context.Context, spec string, r *Runner, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	_, err := c.AddFunc(spec, func() {
		sum, err := r.Run(ctx)
		if err != nil {
			logger.Error("scheduled ingest failed", zap.Error(err))
			return
		}
		logger.Info("scheduled ingest done", zap.Int("inserted", sum.Inserted), zap.Int("errored", sum.Errored))
	})
	if err != nil {
		return errors.Wrapf(err, "invalid schedule %q", spec)
	}

	logger.Info("ingest scheduled", zap.String("spec", spec))
	c.Start()
	<-ctx.Done()
	// wait for a run in progress
	<-c.Stop().Done()
	return nil
}
