package cmd

import (
	"context"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/jobbridge/ingest/internal/config"
	"github.com/jobbridge/ingest/internal/connector"
	"github.com/jobbridge/ingest/internal/ingest"
	"github.com/jobbridge/ingest/internal/models"
	"github.com/jobbridge/ingest/internal/network"
	"github.com/jobbridge/ingest/internal/secrets"
	"github.com/jobbridge/ingest/internal/store"
)

func openStore(ctx context.Context, cfg config.Config) (*store.Store, error) {
	st, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// connectorSettings maps the file config onto connector settings. Without
// a Saramin key the connector fails on first contact.
func connectorSettings(ctx *Context, last func(models.Source) string) (connector.Settings, error) {
	cfg := ctx.Config
	loc, err := cfg.Location()
	if err != nil {
		return connector.Settings{}, err
	}

	settings := connector.Settings{
		SaraminEnabled: cfg.Saramin.Enabled,
		Saramin: connector.SaraminConfig{
			Endpoint: cfg.Saramin.Endpoint,
			Keywords: cfg.Saramin.Keywords,
			Count:    cfg.Saramin.Count,
			Pages:    cfg.Saramin.Pages,
			Fields:   cfg.Saramin.Fields,
			Location: loc,
		},
		JobKoreaEnabled: cfg.JobKorea.Enabled,
		JobKorea: connector.JobKoreaConfig{
			DetailURL:            cfg.JobKorea.DetailURL,
			DescriptionURL:       cfg.JobKorea.DescriptionURL,
			DescriptionSelectors: cfg.JobKorea.DescriptionSelectors,
			ProbeURL:             cfg.JobKorea.ProbeURL,
			StartID:              cfg.JobKorea.StartID,
			EndID:                cfg.JobKorea.EndID,
			Delay:                cfg.JobKoreaDelay(),
			SkipDescription:      cfg.JobKorea.SkipDescription,
			Location:             loc,
		},
	}

	if cfg.Saramin.Enabled {
		key, origin, err := secrets.SaraminKey(cfg.Saramin.APIKey)
		switch {
		case err == nil:
			settings.Saramin.APIKey = key
			ctx.Logger.Debug().Str("origin", string(origin)).Msg("saramin key resolved")
		case errors.Is(err, secrets.ErrNotFound):
			ctx.Logger.Warn().Msg("no saramin api key configured")
		default:
			return settings, err
		}
	}

	if cfg.JobKorea.Enabled && cfg.JobKorea.Resume && last != nil {
		settings.JobKorea.StartID = resumeFrom(cfg.JobKorea.StartID, cfg.JobKorea.EndID, last(models.SourceJobKorea))
	}
	return settings, nil
}

// resumeFrom returns the ID after position when it lies inside the range,
// and start otherwise. A finished range starts over.
func resumeFrom(start, end int64, position string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(position), 10, 64)
	if err != nil {
		return start
	}
	if id < start || id >= end {
		return start
	}
	return id + 1
}

func clientFactory(ctx *Context) (func() (network.Getter, error), error) {
	proxies, err := config.LoadProxies("")
	if err != nil {
		return nil, err
	}
	var rotator *network.Rotator
	if len(proxies) > 0 {
		rotator, err = network.NewRotator(proxies, network.DefaultBanDuration)
		if err != nil {
			return nil, err
		}
		ctx.Logger.Debug().Int("proxies", rotator.Len()).Msg("proxy rotation enabled")
	}
	timeout := ctx.Config.RequestTimeout()
	return func() (network.Getter, error) {
		return network.NewClient(network.Options{Timeout: timeout, Rotator: rotator})
	}, nil
}

// pipeline is an open store plus an orchestrator over the enabled sources.
type pipeline struct {
	store        *store.Store
	orchestrator *ingest.Orchestrator
	connectors   map[models.Source]connector.Connector
}

func newPipeline(runCtx context.Context, ctx *Context) (*pipeline, error) {
	st, err := openStore(runCtx, ctx.Config)
	if err != nil {
		return nil, err
	}

	last := func(source models.Source) string {
		position, err := st.LastPosition(runCtx, source)
		if err != nil {
			ctx.Logger.Warn().Err(err).Str("source", source.String()).Msg("read last position")
		}
		return position
	}
	settings, err := connectorSettings(ctx, last)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	newClient, err := clientFactory(ctx)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	connectors, err := connector.Registry(settings, newClient, ctx.Logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if len(connectors) == 0 {
		_ = st.Close()
		return nil, errors.WithHint(errors.New("no sources enabled"), "enable saramin or jobkorea in config.json")
	}

	orch := ingest.NewOrchestrator(st, connectors, ingest.Options{
		Logger:     ctx.Logger,
		LockDir:    ctx.Config.LockDir,
		RunTimeout: ctx.Config.RunTimeout(),
	})
	return &pipeline{store: st, orchestrator: orch, connectors: connectors}, nil
}

func (p *pipeline) Close() error {
	return p.store.Close()
}
