package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler invokes the orchestrator on a fixed daily schedule in the
// exchange's timezone, after market close plus the settle buffer.
type Scheduler struct {
	cron         *cron.Cron
	orchestrator *Orchestrator
	logger       *zap.Logger
	baseCtx      context.Context
}

// NewScheduler creates a scheduler. The cron expression uses a seconds field
// and is evaluated in the given exchange location.
func NewScheduler(orchestrator *Orchestrator, location *time.Location, logger *zap.Logger, baseCtx context.Context) *Scheduler {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Scheduler{
		cron:         cron.New(cron.WithSeconds(), cron.WithLocation(location)),
		orchestrator: orchestrator,
		logger:       logger,
		baseCtx:      baseCtx,
	}
}

// Schedule registers the daily batch job.
func (s *Scheduler) Schedule(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		if _, err := s.orchestrator.Run(s.baseCtx); err != nil {
			s.logger.Error("scheduled batch run failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule batch run: %w", err)
	}
	return nil
}

// Start begins the cron loop.
func (s *Scheduler) Start() {
	s.logger.Info("batch scheduler started")
	s.cron.Start()
}

// Stop halts the cron loop and waits for any in-flight run to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("batch scheduler stopped")
}
