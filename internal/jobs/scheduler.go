package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const sweepRunTimeout = 15 * time.Minute

// Scheduler runs the expiry sweep on its cron schedule, independent of the
// request path. It shares nothing with request handling but the database.
type Scheduler struct {
	cron     *cron.Cron
	sweep    *ExpirySweep
	schedule string
	log      zerolog.Logger
}

func NewScheduler(sweep *ExpirySweep, schedule string, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		sweep:    sweep,
		schedule: schedule,
		log:      log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.runSweep); err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info().Str("schedule", s.schedule).Msg("expiry sweep scheduled")
	return nil
}

// Stop waits for a running sweep to finish, up to a short grace period.
func (s *Scheduler) Stop() {
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepRunTimeout)
	defer cancel()
	s.sweep.Run(ctx)
}
