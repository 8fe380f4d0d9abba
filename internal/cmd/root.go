package cmd

import (
	"fmt"

	"github.com/alecthomas/kong"
)

type CLI struct {
	Color     string `help:"Color output: auto, always, never." enum:"auto,always,never" default:"auto"`
	JSON      bool   `help:"JSON output to stdout; disables colors."`
	Plain     bool   `help:"TSV output to stdout; disables colors."`
	Verbose   bool   `help:"Enable debug logging."`
	LogFormat string `help:"Log format: json or console." enum:"json,console" default:"json"`
	Config    string `help:"Config file path." type:"path" placeholder:"FILE"`

	VersionFlag kong.VersionFlag `name:"version" help:"Print version."`

	Run      RunCmd      `cmd:"" help:"Ingest once from the given sources (default: all enabled)."`
	Serve    ServeCmd    `cmd:"" help:"Ingest on a schedule until interrupted."`
	Postings PostingsCmd `cmd:"" help:"List ingested postings."`
	Runs     RunsCmd     `cmd:"" help:"List recent ingestion runs."`
	Settings ConfigCmd   `cmd:"" name:"config" help:"Manage configuration."`
	Secret   SecretCmd   `cmd:"" help:"Manage API keys in the OS keychain."`
	Proxies  ProxiesCmd  `cmd:"" help:"Proxy utilities."`
	Version  VersionCmd  `cmd:"" help:"Print version."`
}

func NewCLI() *CLI {
	return &CLI{}
}

type VersionCmd struct{}

func (v *VersionCmd) Run(ctx *Context) error {
	if ctx.JSONOutput {
		return writeJSON(ctx.Out, map[string]string{"version": ctx.Version})
	}
	_, err := fmt.Fprintln(ctx.Out, ctx.Version)
	return err
}
