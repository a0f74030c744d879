package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"authgrid/api/internal/service"
)

// Scheduler runs the periodic maintenance work: expired sessions are swept
// hourly, expired unredeemed reset requests are purged daily.
type Scheduler struct {
	cron *cron.Cron
	auth *service.AuthService
	log  zerolog.Logger
}

func NewScheduler(auth *service.AuthService, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron: c,
		auth: auth,
		log:  log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 0 */1 * * *", s.sweepSessions); err != nil { // hourly
		return err
	}
	if _, err := s.cron.AddFunc("0 30 3 * * *", s.purgeResets); err != nil { // daily, off-peak
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for in-flight jobs.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) sweepSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := s.auth.SweepExpiredSessions(ctx); err != nil {
		s.log.Error().Err(err).Msg("session sweep failed")
	}
}

func (s *Scheduler) purgeResets() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := s.auth.PurgeExpiredResets(ctx); err != nil {
		s.log.Error().Err(err).Msg("reset purge failed")
	}
}
