package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"iter"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jobbridge/ingest/internal/models"
	"github.com/jobbridge/ingest/internal/network"
	"github.com/jobbridge/ingest/internal/seen"
	"github.com/jobbridge/ingest/internal/textutil"
	"github.com/rs/zerolog"
)

const (
	DefaultSaraminEndpoint = "https://oapi.saramin.co.kr/job-search"
	DefaultSaraminKeywords = "개발자"
	DefaultSaraminFields   = "posting-date,expiration-date"
	// SaraminMaxCount is the largest page the API serves.
	SaraminMaxCount = 110

	// SaraminDescription stands in for the body the API does not carry.
	SaraminDescription = "사람인에서 수집된 채용 공고입니다."
)

type SaraminConfig struct {
	Endpoint string
	APIKey   string
	Keywords string
	Count    int
	Pages    int
	Fields   string
	Location *time.Location
}

func (c SaraminConfig) withDefaults() SaraminConfig {
	if strings.TrimSpace(c.Endpoint) == "" {
		c.Endpoint = DefaultSaraminEndpoint
	}
	if strings.TrimSpace(c.Keywords) == "" {
		c.Keywords = DefaultSaraminKeywords
	}
	if c.Count <= 0 || c.Count > SaraminMaxCount {
		c.Count = SaraminMaxCount
	}
	if c.Pages <= 0 {
		c.Pages = 1
	}
	if strings.TrimSpace(c.Fields) == "" {
		c.Fields = DefaultSaraminFields
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	return c
}

// Saramin reads the Saramin open API job search.
type Saramin struct {
	cfg    SaraminConfig
	client network.Getter
	logger zerolog.Logger
}

func NewSaramin(cfg SaraminConfig, client network.Getter, logger zerolog.Logger) *Saramin {
	return &Saramin{
		cfg:    cfg.withDefaults(),
		client: client,
		logger: logger.With().Str("connector", string(models.SourceSaramin)).Logger(),
	}
}

func (s *Saramin) Source() models.Source {
	return models.SourceSaramin
}

// Fetch runs the configured query. The API returns whole pages, so known
// URLs are filtered later by the orchestrator.
func (s *Saramin) Fetch(ctx context.Context, _ KnownURLs) iter.Seq2[RawRecord, error] {
	return s.FetchQuery(ctx, s.cfg.APIKey, s.cfg.Keywords)
}

type saraminPage struct {
	Jobs *struct {
		Count flexText          `json:"count"`
		Start flexText          `json:"start"`
		Total flexText          `json:"total"`
		Job   []json.RawMessage `json:"job"`
	} `json:"jobs"`
	Code    flexText `json:"code"`
	Message string   `json:"message"`
}

// FetchQuery pages through search results for query. A failure on the
// first page is an initial-contact failure; later pages end the sequence
// with an item error.
func (s *Saramin) FetchQuery(ctx context.Context, apiKey, query string) iter.Seq2[RawRecord, error] {
	return func(yield func(RawRecord, error) bool) {
		if strings.TrimSpace(apiKey) == "" {
			yield(RawRecord{}, errors.Mark(errors.WithHint(
				errors.Wrap(ErrNotConfigured, "saramin api key is empty"),
				"set saramin.api_key, JOBBRIDGE_SARAMIN_API_KEY or run `jobingest secret set saramin`"),
				ErrInitialContact))
			return
		}

		for page := 0; page < s.cfg.Pages; page++ {
			if ctx.Err() != nil {
				return
			}
			target := s.pageURL(apiKey, query, page)
			jobs, total, err := s.fetchPage(ctx, target)
			if err != nil {
				err = scrubKey(err, apiKey)
				if ctx.Err() != nil {
					return
				}
				if page == 0 {
					yield(RawRecord{}, initialContact(err, "saramin search"))
				} else {
					yield(RawRecord{}, itemError("page:"+strconv.Itoa(page), network.RedactURL(target), err))
				}
				return
			}

			for i, raw := range jobs {
				rec, err := s.rawRecord(page, i, raw)
				if !yield(rec, err) {
					return
				}
			}

			if len(jobs) < s.cfg.Count || (total > 0 && (page+1)*s.cfg.Count >= total) {
				return
			}
		}
	}
}

func (s *Saramin) pageURL(apiKey, query string, page int) string {
	params := url.Values{}
	params.Set("access-key", apiKey)
	params.Set("keywords", query)
	params.Set("count", strconv.Itoa(s.cfg.Count))
	params.Set("fields", s.cfg.Fields)
	if page > 0 {
		params.Set("start", strconv.Itoa(page))
	}
	sep := "?"
	if strings.Contains(s.cfg.Endpoint, "?") {
		sep = "&"
	}
	return s.cfg.Endpoint + sep + params.Encode()
}

func (s *Saramin) fetchPage(ctx context.Context, target string) ([]json.RawMessage, int, error) {
	resp, err := s.client.Get(ctx, target, map[string]string{"accept": "application/json"})
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, 0, errors.Newf("http %d", resp.StatusCode)
	}

	var page saraminPage
	if err := json.Unmarshal(resp.Body, &page); err != nil {
		return nil, 0, errors.Wrap(err, "decode saramin response")
	}
	if page.Jobs == nil {
		if page.Message != "" {
			return nil, 0, errors.Newf("saramin error %s: %s", page.Code, page.Message)
		}
		s.logger.Debug().Msg("response carries no jobs.job array")
		return nil, 0, nil
	}

	total, _ := strconv.Atoi(string(page.Jobs.Total))
	return page.Jobs.Job, total, nil
}

func (s *Saramin) rawRecord(page, index int, raw json.RawMessage) (RawRecord, error) {
	ref := "page:" + strconv.Itoa(page) + "#" + strconv.Itoa(index)
	var head struct {
		ID  flexText `json:"id"`
		URL string   `json:"url"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return RawRecord{}, itemError(ref, "", errors.Wrap(err, "decode job"))
	}
	if id := string(head.ID); id != "" {
		ref = id
	}
	return RawRecord{
		Source:  models.SourceSaramin,
		Ref:     ref,
		URL:     strings.TrimSpace(head.URL),
		Payload: raw,
	}, nil
}

type saraminJob struct {
	ID      flexText `json:"id"`
	URL     string   `json:"url"`
	Company struct {
		Detail struct {
			Name string `json:"name"`
			Href string `json:"href"`
		} `json:"detail"`
	} `json:"company"`
	Position struct {
		Title           string   `json:"title"`
		Location        flexText `json:"location"`
		ExperienceLevel flexText `json:"experience-level"`
		JobType         flexText `json:"job-type"`
	} `json:"position"`
	Keyword             flexText `json:"keyword"`
	Salary              flexText `json:"salary"`
	ExpirationDate      string   `json:"expiration-date"`
	ExpirationTimestamp flexText `json:"expiration-timestamp"`
}

// Normalize maps one Saramin job. Company details are read but never
// linked: external postings have no internal company account.
func (s *Saramin) Normalize(rec RawRecord) (models.Posting, error) {
	var job saraminJob
	if err := json.Unmarshal(rec.Payload, &job); err != nil {
		return models.Posting{}, errors.Wrap(err, "decode saramin job")
	}

	title := textutil.CollapseSpace(textutil.StripMarkup(job.Position.Title))
	posting := models.Posting{
		ExternalURL:     seen.CanonicalURL(job.URL),
		Source:          models.SourceSaramin,
		Title:           title,
		Position:        title,
		Description:     SaraminDescription,
		RequiredSkills:  joinList(textutil.StripMarkup(string(job.Keyword))),
		ExperienceLevel: textutil.StripMarkup(string(job.Position.ExperienceLevel)),
		Location:        joinList(textutil.StripMarkup(string(job.Position.Location))),
		Salary:          textutil.StripMarkup(string(job.Salary)),
	}
	posting.Deadline = s.deadline(job)
	return posting, nil
}

func (s *Saramin) deadline(job saraminJob) *time.Time {
	if ts, ok := textutil.ParseFlexibleDateTimeIn(job.ExpirationDate, []string{textutil.OffsetDateTime}, textutil.ISODate, s.cfg.Location); ok {
		return &ts
	}
	if secs, err := strconv.ParseInt(string(job.ExpirationTimestamp), 10, 64); err == nil && secs > 0 {
		ts := time.Unix(secs, 0).In(s.cfg.Location)
		return &ts
	}
	return nil
}

// joinList normalizes a comma separated list to ", " separators.
func joinList(value string) string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return strings.Join(out, ", ")
}

// scrubKey removes apiKey from err's message. The marks callers branch on
// are carried over.
func scrubKey(err error, apiKey string) error {
	if err == nil || apiKey == "" || !strings.Contains(err.Error(), apiKey) {
		return err
	}
	scrubbed := errors.Newf("%s", strings.ReplaceAll(err.Error(), apiKey, "redacted"))
	if errors.Is(err, network.ErrRequestFailed) {
		scrubbed = errors.Mark(scrubbed, network.ErrRequestFailed)
	}
	return scrubbed
}

// flexText is a Saramin value sent as a string, a number or a {code, name}
// object. Objects contribute their name.
type flexText string

func (f *flexText) UnmarshalJSON(data []byte) error {
	*f = ""
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexText(strings.TrimSpace(s))
	case '{':
		var obj struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*f = flexText(strings.TrimSpace(obj.Name))
	default:
		*f = flexText(string(data))
	}
	return nil
}
