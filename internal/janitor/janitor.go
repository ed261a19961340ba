// Package janitor expires stale job workspaces on a cron schedule.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"slidecast-api/internal/job"
	"slidecast-api/internal/storage"
)

// Janitor periodically removes job workspaces whose files have not been
// touched within the TTL. Workspaces of jobs that are still queued or
// processing are skipped regardless of age.
type Janitor struct {
	repo   job.Repository
	store  storage.Storage
	ttl    time.Duration
	logger *slog.Logger
	cron   *cron.Cron
}

// New creates a Janitor.
// If logger is nil, slog.Default() is used.
func New(repo job.Repository, store storage.Storage, ttl time.Duration, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		repo:   repo,
		store:  store,
		ttl:    ttl,
		logger: logger,
		cron:   cron.New(),
	}
}

// Start registers the cleanup schedule and starts the scheduler. One sweep
// runs immediately; after that the schedule takes over.
func (j *Janitor) Start(schedule string) error {
	if _, err := j.cron.AddFunc(schedule, func() {
		j.Sweep(context.Background())
	}); err != nil {
		return fmt.Errorf("add cleanup schedule %q: %w", schedule, err)
	}

	go j.Sweep(context.Background())

	j.cron.Start()
	j.logger.Info("workspace janitor started",
		slog.String("schedule", schedule),
		slog.Duration("ttl", j.ttl),
	)
	return nil
}

// Stop halts the scheduler. A sweep already in flight finishes on its own.
func (j *Janitor) Stop() {
	j.cron.Stop()
}

// Sweep removes expired workspaces and returns the IDs of the removed ones.
func (j *Janitor) Sweep(ctx context.Context) []string {
	removed, err := j.store.CleanupExpired(ctx, j.ttl, j.activeJobIDs(ctx))
	if err != nil {
		j.logger.Error("workspace cleanup failed",
			slog.String("error", err.Error()),
		)
	}
	if len(removed) > 0 {
		j.logger.Info("expired workspaces removed",
			slog.Int("count", len(removed)),
			slog.Any("job_ids", removed),
		)
	}
	return removed
}

// activeJobIDs lists the jobs whose workspaces must survive a sweep.
func (j *Janitor) activeJobIDs(ctx context.Context) []string {
	jobs, err := j.repo.List(ctx)
	if err != nil {
		j.logger.Warn("failed to list jobs for cleanup",
			slog.String("error", err.Error()),
		)
		return nil
	}

	var ids []string
	for _, jb := range jobs {
		if !jb.IsTerminal() {
			ids = append(ids, jb.ID)
		}
	}
	return ids
}
