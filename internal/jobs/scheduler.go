package jobs

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler drives the sweeper on a cron schedule. Panics in a run
// are recovered and logged so one bad sweep cannot kill the process.
type Scheduler struct {
	cron     *cron.Cron
	sweeper  *Sweeper
	schedule string
	logger   *slog.Logger
}

func NewScheduler(sweeper *Sweeper, logger *slog.Logger, schedule string) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		sweeper:  sweeper,
		schedule: schedule,
		logger:   logger,
	}
}

func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		s.sweeper.RunOnce(context.Background())
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("sweep scheduler started", "schedule", s.schedule)
	return nil
}

// Stop halts scheduling and returns a context that is done once any
// in-flight sweep has finished.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("sweep scheduler stopping")
	return s.cron.Stop()
}
