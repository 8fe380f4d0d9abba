package cmd

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/jobbridge/ingest/internal/export"
	"github.com/jobbridge/ingest/internal/models"
)

type PostingsCmd struct {
	Source string `help:"Source to list: saramin, jobkorea." required:""`
	Limit  int    `help:"Maximum postings, newest first (0 = all)." default:"50"`
	Format string `help:"Output format: table, csv, tsv, json, md." enum:",table,csv,tsv,json,md" default:""`
	Links  string `help:"Table link display: short or full." enum:"short,full" default:"full"`
}

func (p *PostingsCmd) Run(ctx *Context) error {
	source, ok := models.ParseSource(p.Source)
	if !ok {
		return errors.Newf("unknown source %q", p.Source)
	}

	runCtx := context.Background()
	st, err := openStore(runCtx, ctx.Config)
	if err != nil {
		return err
	}
	defer st.Close()

	var postings []models.Posting
	if p.Limit > 0 {
		postings, err = st.FindRecentBySource(runCtx, source, p.Limit)
	} else {
		postings, err = st.FindBySource(runCtx, source)
	}
	if err != nil {
		return err
	}

	format, err := resolveFormat(ctx, p.Format)
	if err != nil {
		return err
	}
	linkStyle := export.LinkStyleShort
	if strings.EqualFold(p.Links, string(export.LinkStyleFull)) {
		linkStyle = export.LinkStyleFull
	}
	return export.WritePostings(ctx.Out, postings, format, export.WriteOptions{
		ColorEnabled: ctx.UI.ColorEnabled,
		Hyperlinks:   ctx.UI.ColorEnabled,
		LinkStyle:    linkStyle,
	})
}

// resolveFormat lets --json and --plain win over --format. Without either,
// a terminal gets a table and a pipe gets CSV.
func resolveFormat(ctx *Context, value string) (export.Format, error) {
	if ctx.JSONOutput {
		return export.FormatJSON, nil
	}
	if ctx.PlainText {
		return export.FormatTSV, nil
	}
	if value != "" {
		return export.ParseFormat(value)
	}
	if isTTY(ctx.Out) {
		return export.FormatTable, nil
	}
	return export.FormatCSV, nil
}
