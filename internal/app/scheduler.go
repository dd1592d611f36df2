/**
 * @description
 * Cron wrapper that runs the reminder sweep in commit mode on a schedule, for
 * deployments that don't drive the HTTP trigger from an external scheduler.
 */
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler manages the in-process reminder cron job.
type Scheduler struct {
	cron     *cron.Cron
	sweeper  *Sweeper
	schedule string
	logger   *slog.Logger
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(sweeper *Sweeper, schedule string, logger *slog.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:     c,
		sweeper:  sweeper,
		schedule: schedule,
		logger:   logger,
	}
}

// Start registers the sweep job and starts the cron scheduler.
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc(s.schedule, s.runSweep); err != nil {
		s.logger.Error("failed to schedule reminder sweep", "schedule", s.schedule, "error", err)
		return
	}
	s.logger.Info("scheduled reminder sweep", "schedule", s.schedule)
	s.cron.Start()
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runSweep() {
	s.logger.Info("starting scheduled reminder sweep")
	ctx := context.Background()

	result, err := s.sweeper.Run(ctx, time.Now(), false)
	if err != nil {
		s.logger.Error("scheduled reminder sweep failed", "error", err)
		return
	}
	s.logger.Info("scheduled reminder sweep finished", "written", result.Written)
}
