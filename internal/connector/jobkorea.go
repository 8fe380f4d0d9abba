package connector

import (
	"bytes"
	"context"
	"iter"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cockroachdb/errors"
	"github.com/jobbridge/ingest/internal/jsonld"
	"github.com/jobbridge/ingest/internal/models"
	"github.com/jobbridge/ingest/internal/network"
	"github.com/jobbridge/ingest/internal/seen"
	"github.com/jobbridge/ingest/internal/textutil"
	"github.com/rs/zerolog"
)

const (
	DefaultJobKoreaDetailURL      = "https://www.jobkorea.co.kr/Recruit/GI_Read/{id}"
	DefaultJobKoreaDescriptionURL = "https://www.jobkorea.co.kr/Recruit/GI_Read_Comt_Ifrm?Gno={id}"
	DefaultJobKoreaProbeURL       = "https://www.jobkorea.co.kr/"
	DefaultJobKoreaDelay          = time.Second

	idPlaceholder = "{id}"
)

var errHTTPStatus = errors.New("unexpected http status")

type JobKoreaConfig struct {
	// DetailURL and DescriptionURL are templates where {id} is replaced by
	// the listing ID. An empty DescriptionURL reads the detail page again.
	DetailURL            string
	DescriptionURL       string
	DescriptionSelectors []string
	ProbeURL             string
	StartID              int64
	EndID                int64
	Delay                time.Duration
	SkipDescription      bool
	Location             *time.Location
}

func (c JobKoreaConfig) withDefaults() JobKoreaConfig {
	if strings.TrimSpace(c.DetailURL) == "" {
		c.DetailURL = DefaultJobKoreaDetailURL
	}
	if strings.TrimSpace(c.ProbeURL) == "" {
		c.ProbeURL = DefaultJobKoreaProbeURL
	}
	if c.Delay < 0 {
		c.Delay = 0
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	return c
}

// JobKorea walks a contiguous range of listing IDs and reads the JobPosting
// structured data of each detail page.
type JobKorea struct {
	cfg    JobKoreaConfig
	client network.Getter
	pacer  *network.Pacer
	logger zerolog.Logger
}

func NewJobKorea(cfg JobKoreaConfig, client network.Getter, logger zerolog.Logger) *JobKorea {
	cfg = cfg.withDefaults()
	return &JobKorea{
		cfg:    cfg,
		client: client,
		pacer:  network.NewPacer(cfg.Delay),
		logger: logger.With().Str("connector", string(models.SourceJobKorea)).Logger(),
	}
}

func (j *JobKorea) Source() models.Source {
	return models.SourceJobKorea
}

func (j *JobKorea) Fetch(ctx context.Context, known KnownURLs) iter.Seq2[RawRecord, error] {
	return j.FetchRange(ctx, j.cfg.StartID, j.cfg.EndID, known)
}

// DetailURL is the canonical detail page URL for id.
func (j *JobKorea) DetailURL(id int64) string {
	return seen.CanonicalURL(expandID(j.cfg.DetailURL, id))
}

func (j *JobKorea) descriptionURL(id int64) string {
	if strings.TrimSpace(j.cfg.DescriptionURL) == "" {
		return expandID(j.cfg.DetailURL, id)
	}
	return expandID(j.cfg.DescriptionURL, id)
}

func expandID(template string, id int64) string {
	return strings.ReplaceAll(template, idPlaceholder, strconv.FormatInt(id, 10))
}

// FetchRange visits IDs start..end inclusive. Known URLs are skipped
// without a request, 404s and pages without a JobPosting block are skipped
// silently, and every outbound request waits on the pacer.
func (j *JobKorea) FetchRange(ctx context.Context, start, end int64, known KnownURLs) iter.Seq2[RawRecord, error] {
	known = knownOrEmpty(known)
	return func(yield func(RawRecord, error) bool) {
		if start <= 0 || end < start {
			yield(RawRecord{}, errors.Mark(
				errors.Wrapf(ErrNotConfigured, "invalid jobkorea id range %d..%d", start, end),
				ErrInitialContact))
			return
		}
		if err := j.probe(ctx); err != nil {
			if ctx.Err() == nil {
				yield(RawRecord{}, initialContact(err, "jobkorea probe %s", j.cfg.ProbeURL))
			}
			return
		}

		for id := start; id <= end; id++ {
			if ctx.Err() != nil {
				return
			}
			ref := strconv.FormatInt(id, 10)
			target := j.DetailURL(id)
			if known.Contains(target) {
				j.logger.Debug().Str("ref", ref).Msg("already ingested, skipping")
				continue
			}

			rec, found, err := j.fetchPosting(ctx, id, target)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				if !yield(RawRecord{}, itemError(ref, target, err)) {
					return
				}
				continue
			}
			if !found {
				continue
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

func (j *JobKorea) probe(ctx context.Context) error {
	if err := j.pacer.Wait(ctx); err != nil {
		return err
	}
	resp, err := j.client.Get(ctx, j.cfg.ProbeURL, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return errors.Mark(errors.Newf("http %d", resp.StatusCode), errHTTPStatus)
	}
	return nil
}

func (j *JobKorea) fetchPosting(ctx context.Context, id int64, target string) (RawRecord, bool, error) {
	ref := strconv.FormatInt(id, 10)
	if err := j.pacer.Wait(ctx); err != nil {
		return RawRecord{}, false, err
	}
	resp, err := j.client.Get(ctx, target, nil)
	if err != nil {
		return RawRecord{}, false, err
	}
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		j.logger.Debug().Str("ref", ref).Int("status", resp.StatusCode).Msg("no listing")
		return RawRecord{}, false, nil
	}
	if resp.StatusCode >= 400 {
		return RawRecord{}, false, errors.Mark(errors.Newf("http %d", resp.StatusCode), errHTTPStatus)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return RawRecord{}, false, errors.Wrap(err, "parse detail page")
	}
	payload, found, err := jsonld.FindJobPostingRaw(doc)
	if err != nil {
		return RawRecord{}, false, err
	}
	if !found {
		j.logger.Debug().Str("ref", ref).Msg("page carries no JobPosting block")
		return RawRecord{}, false, nil
	}

	rec := RawRecord{
		Source:  models.SourceJobKorea,
		Ref:     ref,
		URL:     target,
		Payload: payload,
	}
	if j.cfg.SkipDescription {
		return rec, true, nil
	}

	description, err := j.FetchDescription(ctx, j.descriptionURL(id))
	if err != nil {
		if ctx.Err() != nil {
			return RawRecord{}, false, ctx.Err()
		}
		// the structured-data description stands in
		j.logger.Warn().Err(err).Str("ref", ref).Str("url", target).Msg("description fetch failed")
	}
	rec.Description = description
	return rec, true, nil
}

// FetchDescription reads the long-form description at target: every
// fragment matching the configured selectors, or the whole body, cleaned
// of markup and separated by blank lines.
func (j *JobKorea) FetchDescription(ctx context.Context, target string) (string, error) {
	if err := j.pacer.Wait(ctx); err != nil {
		return "", err
	}
	resp, err := j.client.Get(ctx, target, nil)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", errors.Mark(errors.Newf("description http %d", resp.StatusCode), errHTTPStatus)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return "", errors.Wrap(err, "parse description")
	}
	doc.Find("script, style, noscript").Remove()

	selectors := j.cfg.DescriptionSelectors
	if len(selectors) == 0 {
		selectors = []string{"body"}
	}
	var parts []string
	for _, selector := range selectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			fragment, err := s.Html()
			if err != nil {
				return
			}
			if text := textutil.StripMarkup(fragment); text != "" {
				parts = append(parts, text)
			}
		})
	}
	return strings.Join(parts, "\n\n"), nil
}

// Normalize maps a JobPosting block. Title is the organization followed
// by the position.
func (j *JobKorea) Normalize(rec RawRecord) (models.Posting, error) {
	posting, err := jsonld.ParseJobPosting(rec.Payload)
	if err != nil {
		return models.Posting{}, err
	}

	organization := textutil.CollapseSpace(textutil.StripMarkup(posting.HiringOrganization.Name))
	position := textutil.CollapseSpace(textutil.StripMarkup(posting.Title))

	description := strings.TrimSpace(rec.Description)
	if description == "" {
		description = textutil.StripMarkup(posting.Description)
	}

	externalURL := rec.URL
	if externalURL == "" {
		externalURL = posting.URL
	}

	title := strings.TrimSpace(organization + " " + position)

	out := models.Posting{
		ExternalURL:     seen.CanonicalURL(externalURL),
		Source:          models.SourceJobKorea,
		Title:           title,
		Position:        position,
		Description:     description,
		RequiredSkills:  posting.OccupationalCategory.Join(jsonld.ListSeparator),
		ExperienceLevel: posting.ExperienceRequirements.Join(jsonld.ListSeparator),
		Location:        posting.JobLocation.Label(),
		Salary:          jsonld.FormatSalary(posting.BaseSalary),
	}
	if ts, ok := textutil.ParseFlexibleDateTimeIn(posting.ValidThrough,
		[]string{time.RFC3339, textutil.LocalDateTime}, textutil.ISODate, j.cfg.Location); ok {
		out.Deadline = &ts
	}
	return out, nil
}
