package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/jobbridge/ingest/internal/connector"
	"github.com/jobbridge/ingest/internal/models"
)

type RunCmd struct {
	Sources []string `arg:"" optional:"" help:"Sources to ingest: saramin, jobkorea."`
}

func (r *RunCmd) Run(ctx *Context) error {
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := newPipeline(runCtx, ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	sources, err := connector.NormalizeSources(r.Sources, p.connectors)
	if err != nil {
		return err
	}

	reports := make([]models.RunReport, 0, len(sources))
	var failed []error
	for _, source := range sources {
		if runCtx.Err() != nil {
			break
		}
		report, err := p.orchestrator.RunOnce(runCtx, source)
		if err != nil {
			failed = append(failed, errors.Wrapf(err, "%s", source))
		}
		if report.FinishedAt.IsZero() {
			continue
		}
		if !ctx.JSONOutput {
			ctx.UI.Report(report)
		}
		reports = append(reports, report)
	}

	if ctx.JSONOutput {
		if err := writeJSON(ctx.Out, reports); err != nil {
			return err
		}
	}
	return joinFailures(failed)
}

func joinFailures(failed []error) error {
	switch len(failed) {
	case 0:
		return nil
	case 1:
		return failed[0]
	}
	messages := make([]string, 0, len(failed))
	for _, err := range failed {
		messages = append(messages, err.Error())
	}
	return errors.Newf("%d sources failed: %s", len(failed), strings.Join(messages, "; "))
}
