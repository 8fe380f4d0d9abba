package connector

import (
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/jobbridge/ingest/internal/models"
	"github.com/jobbridge/ingest/internal/network"
	"github.com/rs/zerolog"
)

type Settings struct {
	SaraminEnabled  bool
	Saramin         SaraminConfig
	JobKoreaEnabled bool
	JobKorea        JobKoreaConfig
}

// Registry builds the enabled connectors, each with its own client so
// cookies and proxy state are not shared between sources.
func Registry(settings Settings, newClient func() (network.Getter, error), logger zerolog.Logger) (map[models.Source]Connector, error) {
	out := map[models.Source]Connector{}

	if settings.SaraminEnabled {
		client, err := newClient()
		if err != nil {
			return nil, errors.Wrap(err, "saramin client")
		}
		out[models.SourceSaramin] = NewSaramin(settings.Saramin, client, logger)
	}
	if settings.JobKoreaEnabled {
		client, err := newClient()
		if err != nil {
			return nil, errors.Wrap(err, "jobkorea client")
		}
		out[models.SourceJobKorea] = NewJobKorea(settings.JobKorea, client, logger)
	}
	return out, nil
}

// NormalizeSources parses source names. An empty list selects every
// registered source, in a stable order.
func NormalizeSources(names []string, registered map[models.Source]Connector) ([]models.Source, error) {
	var out []models.Source
	seen := map[models.Source]struct{}{}
	for _, name := range names {
		for _, part := range strings.Split(name, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			source, ok := models.ParseSource(part)
			if !ok || !source.External() {
				return nil, errors.Newf("unknown source %q", strings.TrimSpace(part))
			}
			if _, ok := registered[source]; !ok {
				return nil, errors.WithHint(errors.Newf("source %s is disabled", source), "enable it in config.json")
			}
			if _, dup := seen[source]; dup {
				continue
			}
			seen[source] = struct{}{}
			out = append(out, source)
		}
	}
	if len(out) > 0 {
		return out, nil
	}

	for source := range registered {
		out = append(out, source)
	}
	sort.Slice(out, func(i, k int) bool { return out[i] < out[k] })
	return out, nil
}
