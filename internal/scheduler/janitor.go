// Package scheduler runs background maintenance for scenevault.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/scenevault/scenevault/internal/models"
	"github.com/scenevault/scenevault/internal/repository"
)

// planStore is the subset of the segment plan cache the janitor needs.
// *hls.PlanCache implements it.
type planStore interface {
	Keys() []models.ULID
	Delete(id models.ULID)
}

// Janitor periodically drops cached segment plans whose media items
// have been deleted. The cache lives for the whole process, so without
// the sweep a deleted item's plan would linger until restart.
type Janitor struct {
	plans    planStore
	repo     repository.MediaItemRepository
	cronSpec string
	logger   *slog.Logger

	cron *cron.Cron
}

// NewJanitor creates a janitor sweeping on the given cron schedule.
// The spec uses six fields (seconds first).
func NewJanitor(plans planStore, repo repository.MediaItemRepository, cronSpec string) *Janitor {
	return &Janitor{
		plans:    plans,
		repo:     repo,
		cronSpec: cronSpec,
		logger:   slog.Default(),
	}
}

// WithLogger sets a custom logger.
func (j *Janitor) WithLogger(logger *slog.Logger) *Janitor {
	j.logger = logger
	return j
}

// Start begins the scheduled sweeps.
func (j *Janitor) Start() error {
	j.cron = cron.New(cron.WithSeconds())
	_, err := j.cron.AddFunc(j.cronSpec, func() {
		if _, err := j.Sweep(context.Background()); err != nil {
			j.logger.Error("plan cache sweep failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling plan cache sweep: %w", err)
	}

	j.cron.Start()
	j.logger.Info("plan cache janitor started", slog.String("cron", j.cronSpec))
	return nil
}

// Stop stops the scheduled sweeps, waiting for a running sweep to
// finish.
func (j *Janitor) Stop() {
	if j.cron != nil {
		<-j.cron.Stop().Done()
	}
}

// Sweep removes cached plans for media items that no longer exist and
// returns how many were dropped.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	ids := j.plans.Keys()
	if len(ids) == 0 {
		return 0, nil
	}

	existing, err := j.repo.ExistingIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("checking cached plan owners: %w", err)
	}

	removed := 0
	for _, id := range ids {
		if !existing[id] {
			j.plans.Delete(id)
			removed++
		}
	}

	if removed > 0 {
		j.logger.Info("swept orphaned segment plans", slog.Int("removed", removed))
	}
	return removed, nil
}
