// Package scheduler runs the periodic maintenance work: dedup merge passes,
// bad-location cleanup, and the running-job timeout sweep.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/camphubhq/pipeline/internal/dedup"
	"github.com/camphubhq/pipeline/internal/logger"
)

// maxDedupPasses caps continuation re-invocations within one cron firing so
// a pathological backlog cannot pin the scheduler.
const maxDedupPasses = 50

// JobSweeper times out stuck running jobs.
type JobSweeper interface {
	SweepTimeouts(ctx context.Context, timeout time.Duration) (int, error)
}

// Scheduler wires the dedup engine and the timeout sweep onto cron.
type Scheduler struct {
	engine  *dedup.Engine
	sweeper JobSweeper
	logger  logger.Logger
	cron    *cron.Cron

	jobTimeout    time.Duration
	sweepInterval time.Duration
	dedupSchedule string

	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(
	engine *dedup.Engine,
	sweeper JobSweeper,
	log logger.Logger,
	jobTimeout time.Duration,
	sweepInterval time.Duration,
	dedupSchedule string,
) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	// Standard 5-field cron parser (minute hour day month weekday)
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))

	return &Scheduler{
		engine:        engine,
		sweeper:       sweeper,
		logger:        log,
		cron:          c,
		jobTimeout:    jobTimeout,
		sweepInterval: sweepInterval,
		dedupSchedule: dedupSchedule,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start registers the cron entries and the sweep ticker.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.dedupSchedule, s.runDedup); err != nil {
		return err
	}
	s.cron.Start()

	go s.sweepLoop()

	s.logger.Info("Scheduler started",
		logger.String("dedup_schedule", s.dedupSchedule),
		logger.Duration("sweep_interval", s.sweepInterval),
		logger.Duration("job_timeout", s.jobTimeout),
	)

	return nil
}

// Stop halts cron and the sweep loop, waiting for in-flight cron entries.
func (s *Scheduler) Stop() {
	s.cancel()
	cronCtx := s.cron.Stop()
	<-cronCtx.Done()
	s.logger.Info("Scheduler stopped")
}

// sweepLoop fails running jobs older than the timeout on a fixed interval.
func (s *Scheduler) sweepLoop() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			swept, err := s.sweeper.SweepTimeouts(s.ctx, s.jobTimeout)
			if err != nil {
				s.logger.Error("Timeout sweep failed",
					logger.Error(err),
				)
				continue
			}
			if swept > 0 {
				s.logger.Info("Timed out stuck jobs",
					logger.Int("swept", swept),
				)
			}
		}
	}
}

// runDedup executes merge passes for both kinds, re-invoking while a full
// batch signals more work, then cleans up bad locations.
func (s *Scheduler) runDedup() {
	for _, kind := range []dedup.Kind{dedup.KindOrganizations, dedup.KindLocations} {
		for pass := 0; pass < maxDedupPasses; pass++ {
			result, err := s.engine.RunBatch(s.ctx, kind, 0)
			if err != nil {
				s.logger.Error("Scheduled dedup pass failed",
					logger.String("kind", string(kind)),
					logger.Error(err),
				)
				break
			}
			if !result.Continue {
				break
			}
		}
	}

	for pass := 0; pass < maxDedupPasses; pass++ {
		result, err := s.engine.CleanupBadLocations(s.ctx, 0)
		if err != nil {
			s.logger.Error("Scheduled location cleanup failed",
				logger.Error(err),
			)
			return
		}
		if !result.Continue {
			return
		}
	}
}
