/**
 * @description
 * Cron job that republishes customer changes the broker never confirmed.
 */
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const resyncRunTimeout = 30 * time.Second

// ResyncJob periodically calls RepublishPending.
type ResyncJob struct {
	cron      *cron.Cron
	service   *CustomerService
	schedule  string
	batchSize int
	logger    *slog.Logger
}

// NewResyncJob creates a job; call Start to schedule it.
func NewResyncJob(service *CustomerService, schedule string, batchSize int, logger *slog.Logger) *ResyncJob {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	return &ResyncJob{
		cron:      c,
		service:   service,
		schedule:  schedule,
		batchSize: batchSize,
		logger:    logger.With("component", "resync_job"),
	}
}

// Start registers the job and starts the scheduler.
func (j *ResyncJob) Start() error {
	if _, err := j.cron.AddFunc(j.schedule, j.run); err != nil {
		j.logger.Error("failed to schedule resync job", "schedule", j.schedule, "error", err)
		return err
	}
	j.logger.Info("scheduled resync job", "schedule", j.schedule, "batch_size", j.batchSize)
	j.cron.Start()
	return nil
}

// Stop stops the scheduler; the returned context is done when a running job finishes.
func (j *ResyncJob) Stop() context.Context {
	return j.cron.Stop()
}

func (j *ResyncJob) run() {
	ctx, cancel := context.WithTimeout(context.Background(), resyncRunTimeout)
	defer cancel()
	j.RunOnce(ctx)
}

// RunOnce performs a single resync pass.
func (j *ResyncJob) RunOnce(ctx context.Context) int {
	published, err := j.service.RepublishPending(ctx, j.batchSize)
	if err != nil {
		j.logger.Warn("resync pass incomplete", "published", published, "error", err)
		return published
	}
	if published > 0 {
		j.logger.Info("republished pending customer changes", "published", published)
	}
	return published
}
