package fanout

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/cuemby/remindsync/pkg/log"
)

// DefaultSweepSchedule runs the stale device sweep daily at 03:00
const DefaultSweepSchedule = "0 0 3 * * *"

// Sweeper runs SweepStale on a cron schedule
type Sweeper struct {
	cron   *cron.Cron
	fanout *Fanout
	logger zerolog.Logger
}

// NewSweeper creates a sweeper. schedule uses the six-field cron format with
// seconds.
func NewSweeper(f *Fanout, schedule string) (*Sweeper, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}

	s := &Sweeper{
		cron:   cron.New(cron.WithSeconds()),
		fanout: f,
		logger: log.WithComponent("sweeper"),
	}
	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if _, err := s.fanout.SweepStale(ctx, time.Now()); err != nil {
		s.logger.Error().Err(err).Msg("Stale device sweep failed")
	}
}

// Start starts the schedule
func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info().Msg("Sweeper started")
}

// Stop stops the schedule and waits for a running sweep to finish
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Next returns the next scheduled sweep
func (s *Sweeper) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
