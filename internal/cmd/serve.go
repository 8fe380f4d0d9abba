package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jobbridge/ingest/internal/connector"
	"github.com/jobbridge/ingest/internal/ingest"
	"github.com/jobbridge/ingest/internal/models"
)

type ServeCmd struct {
	Sources []string `arg:"" optional:"" help:"Sources to schedule (default: all enabled)."`
}

func (s *ServeCmd) Run(ctx *Context) error {
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := newPipeline(runCtx, ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	sources, err := connector.NormalizeSources(s.Sources, p.connectors)
	if err != nil {
		return err
	}

	scheduler := ingest.NewScheduler(p.orchestrator, schedules(ctx, sources), ctx.Logger)
	ctx.Logger.Info().Int("sources", len(sources)).Msg("serving")
	err = scheduler.Run(runCtx)
	ctx.Logger.Info().Msg("stopped")
	return err
}

func schedules(ctx *Context, sources []models.Source) []ingest.Schedule {
	out := make([]ingest.Schedule, 0, len(sources))
	for _, source := range sources {
		sched := ingest.Schedule{Source: source, InitialDelay: ctx.Config.InitialDelay()}
		switch source {
		case models.SourceSaramin:
			sched.Interval = ctx.Config.SaraminInterval()
		case models.SourceJobKorea:
			sched.Interval = ctx.Config.JobKoreaInterval()
		}
		out = append(out, sched)
	}
	return out
}
