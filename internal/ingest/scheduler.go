package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jobbridge/ingest/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const DefaultInterval = 30 * time.Minute

type Schedule struct {
	Source       models.Source
	Interval     time.Duration
	InitialDelay time.Duration
}

// Runner is the part of the orchestrator the scheduler drives.
type Runner interface {
	RunOnce(ctx context.Context, source models.Source) (models.RunReport, error)
}

type Scheduler struct {
	runner    Runner
	schedules []Schedule
	logger    zerolog.Logger
}

func NewScheduler(runner Runner, schedules []Schedule, logger zerolog.Logger) *Scheduler {
	return &Scheduler{runner: runner, schedules: schedules, logger: logger}
}

// Run starts one loop per schedule and blocks until ctx is done. Failed
// ticks are logged and the loop goes on.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.schedules) == 0 {
		return errors.New("nothing to schedule")
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, sched := range s.schedules {
		if sched.Interval <= 0 {
			sched.Interval = DefaultInterval
		}
		g.Go(func() error {
			s.loop(ctx, sched)
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, sched Schedule) {
	logger := s.logger.With().Str("source", sched.Source.String()).Logger()
	logger.Info().Dur("interval", sched.Interval).Dur("initial_delay", sched.InitialDelay).Msg("scheduled")

	if sched.InitialDelay > 0 {
		timer := time.NewTimer(sched.InitialDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	ticker := time.NewTicker(sched.Interval)
	defer ticker.Stop()

	for {
		s.tick(ctx, sched.Source, logger)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, source models.Source, logger zerolog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Str("panic", fmt.Sprint(r)).Msg("tick panicked")
		}
	}()
	if ctx.Err() != nil {
		return
	}

	_, err := s.runner.RunOnce(ctx, source)
	switch {
	case err == nil:
	case errors.Is(err, ErrRunInProgress):
		logger.Warn().Msg("previous run still in progress, skipping tick")
	default:
		logger.Error().Err(err).Msg("tick failed")
	}
}
