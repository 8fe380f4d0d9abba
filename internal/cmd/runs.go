package cmd

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/jobbridge/ingest/internal/export"
	"github.com/jobbridge/ingest/internal/models"
)

type RunsCmd struct {
	Source string `help:"Only runs of this source."`
	Limit  int    `help:"Maximum runs, newest first." default:"20"`
}

func (r *RunsCmd) Run(ctx *Context) error {
	var source models.Source
	if strings.TrimSpace(r.Source) != "" {
		parsed, ok := models.ParseSource(r.Source)
		if !ok {
			return errors.Newf("unknown source %q", r.Source)
		}
		source = parsed
	}

	runCtx := context.Background()
	st, err := openStore(runCtx, ctx.Config)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.RecentRuns(runCtx, source, r.Limit)
	if err != nil {
		return err
	}

	format := export.FormatTable
	switch {
	case ctx.JSONOutput:
		format = export.FormatJSON
	case ctx.PlainText:
		format = export.FormatTSV
	}
	return export.WriteRuns(ctx.Out, runs, format)
}
