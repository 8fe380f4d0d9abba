package connector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jobbridge/ingest/internal/models"
	"github.com/jobbridge/ingest/internal/network"
	"github.com/rs/zerolog"
)

const saraminJobJSON = `{
  "url": "https://www.saramin.co.kr/zf_user/jobs/relay/view?view_type=search&rec_idx=%d&utm_source=job-search-api",
  "active": 1,
  "company": {"detail": {"href": "https://www.saramin.co.kr/company/1", "name": "(주)잡브릿지"}},
  "position": {
    "title": "Go 백엔드 개발자 &amp; SRE",
    "location": {"code": "101050", "name": "서울 &gt; 강남구,서울 &gt; 서초구"},
    "job-type": {"code": "1", "name": "정규직"},
    "experience-level": {"code": 2, "min": 3, "max": 0, "name": "경력 3년↑"}
  },
  "keyword": "백엔드/서버개발,Go",
  "salary": {"code": "99", "name": "면접후 결정"},
  "id": "%d",
  "expiration-date": "2025-04-16T19:20:00+0900"
}`

func saraminJobFixture(id int) string {
	return fmt.Sprintf(saraminJobJSON, id, id)
}

func saraminResponse(total int, ids ...int) string {
	jobs := make([]string, 0, len(ids))
	for _, id := range ids {
		jobs = append(jobs, saraminJobFixture(id))
	}
	return fmt.Sprintf(`{"jobs": {"count": %d, "start": 0, "total": "%d", "job": [%s]}}`,
		len(ids), total, strings.Join(jobs, ","))
}

func newTestSaramin(cfg SaraminConfig, fn getFunc) (*Saramin, *fakeGetter) {
	getter := &fakeGetter{fn: fn}
	if cfg.APIKey == "" {
		cfg.APIKey = "secret"
	}
	cfg.Endpoint = "https://api.test/job-search"
	return NewSaramin(cfg, getter, zerolog.Nop()), getter
}

func TestSaraminFetchAndNormalize(t *testing.T) {
	conn, getter := newTestSaramin(SaraminConfig{}, func(string) (*network.Response, error) {
		return ok(saraminResponse(1, 100))
	})

	got := collect(conn.Fetch(context.Background(), nil))
	if len(got.errs) != 0 {
		t.Fatalf("unexpected errors %v", got.errs)
	}
	if len(got.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got.records))
	}

	calls := getter.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected one request, got %d", len(calls))
	}
	for _, want := range []string{"access-key=secret", "count=110", "fields=posting-date%2Cexpiration-date", "keywords=%EA%B0%9C%EB%B0%9C%EC%9E%90"} {
		if !strings.Contains(calls[0], want) {
			t.Fatalf("request %q missing %q", calls[0], want)
		}
	}

	rec := got.records[0]
	if rec.Ref != "100" || rec.Source != models.SourceSaramin {
		t.Fatalf("unexpected record %+v", rec)
	}

	posting, err := conn.Normalize(rec)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if posting.Title != "Go 백엔드 개발자 & SRE" || posting.Position != posting.Title {
		t.Fatalf("Title/Position = %q/%q", posting.Title, posting.Position)
	}
	if posting.ExternalURL != "https://www.saramin.co.kr/zf_user/jobs/relay/view?rec_idx=100&view_type=search" {
		t.Fatalf("ExternalURL = %q", posting.ExternalURL)
	}
	if posting.Description != SaraminDescription {
		t.Fatalf("Description = %q", posting.Description)
	}
	if posting.RequiredSkills != "백엔드/서버개발, Go" {
		t.Fatalf("RequiredSkills = %q", posting.RequiredSkills)
	}
	if posting.ExperienceLevel != "경력 3년↑" {
		t.Fatalf("ExperienceLevel = %q", posting.ExperienceLevel)
	}
	if posting.Location != "서울 > 강남구, 서울 > 서초구" {
		t.Fatalf("Location = %q", posting.Location)
	}
	if posting.Salary != "면접후 결정" {
		t.Fatalf("Salary = %q", posting.Salary)
	}
	if posting.CompanyRef != nil {
		t.Fatalf("external posting must not link a company")
	}
	want := time.Date(2025, 4, 16, 10, 20, 0, 0, time.UTC)
	if posting.Deadline == nil || !posting.Deadline.Equal(want) {
		t.Fatalf("Deadline = %v, want %v", posting.Deadline, want)
	}
}

func TestSaraminNormalizeFallbacks(t *testing.T) {
	conn, _ := newTestSaramin(SaraminConfig{Location: time.UTC}, nil)
	cases := []struct {
		name     string
		payload  string
		salary   string
		deadline *time.Time
	}{
		{
			name:     "flat salary and bare date",
			payload:  `{"position": {"title": "QA"}, "salary": "연봉 4000만원", "expiration-date": "2025-04-16"}`,
			salary:   "연봉 4000만원",
			deadline: ptrTime(time.Date(2025, 4, 16, 0, 0, 0, 0, time.UTC)),
		},
		{
			name:    "unparseable deadline keeps record",
			payload: `{"position": {"title": "QA"}, "expiration-date": "상시채용"}`,
		},
		{
			name:     "timestamp fallback",
			payload:  `{"position": {"title": "QA"}, "expiration-timestamp": "1744798800"}`,
			deadline: ptrTime(time.Unix(1744798800, 0)),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			posting, err := conn.Normalize(RawRecord{Payload: []byte(tc.payload)})
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if posting.Salary != tc.salary {
				t.Fatalf("Salary = %q, want %q", posting.Salary, tc.salary)
			}
			switch {
			case tc.deadline == nil && posting.Deadline != nil:
				t.Fatalf("expected no deadline, got %v", posting.Deadline)
			case tc.deadline != nil && (posting.Deadline == nil || !posting.Deadline.Equal(*tc.deadline)):
				t.Fatalf("Deadline = %v, want %v", posting.Deadline, tc.deadline)
			}
			if posting.ExternalURL != "" {
				t.Fatalf("expected empty external url, got %q", posting.ExternalURL)
			}
		})
	}
}

func TestSaraminEmptyResults(t *testing.T) {
	for _, body := range []string{`{"jobs": {"count": 0, "start": 0, "total": "0", "job": []}}`, `{}`} {
		conn, _ := newTestSaramin(SaraminConfig{}, func(string) (*network.Response, error) {
			return ok(body)
		})
		got := collect(conn.Fetch(context.Background(), nil))
		if len(got.errs) != 0 || len(got.records) != 0 {
			t.Fatalf("body %s: expected empty result, got %d records %v", body, len(got.records), got.errs)
		}
	}
}

func TestSaraminInitialContactFailure(t *testing.T) {
	cases := map[string]getFunc{
		"transport": func(string) (*network.Response, error) { return nil, errors.New("connection refused") },
		"status":    func(string) (*network.Response, error) { return status(500) },
		"garbage":   func(string) (*network.Response, error) { return ok("<html>maintenance</html>") },
		"api error": func(string) (*network.Response, error) {
			return ok(`{"code": 3, "message": "invalid access key"}`)
		},
	}

	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			conn, _ := newTestSaramin(SaraminConfig{}, fn)
			got := collect(conn.Fetch(context.Background(), nil))
			if len(got.errs) != 1 || !errors.Is(got.errs[0], ErrInitialContact) {
				t.Fatalf("expected one initial contact error, got %v", got.errs)
			}
		})
	}
}

func TestSaraminMissingKey(t *testing.T) {
	getter := &fakeGetter{fn: func(string) (*network.Response, error) { return ok(`{}`) }}
	conn := NewSaramin(SaraminConfig{}, getter, zerolog.Nop())
	got := collect(conn.Fetch(context.Background(), nil))
	if len(got.errs) != 1 || !errors.Is(got.errs[0], ErrInitialContact) || !errors.Is(got.errs[0], ErrNotConfigured) {
		t.Fatalf("expected not configured initial contact error, got %v", got.errs)
	}
	if len(getter.Calls()) != 0 {
		t.Fatalf("expected no requests without a key")
	}
}

func TestSaraminPaging(t *testing.T) {
	conn, getter := newTestSaramin(SaraminConfig{Count: 2, Pages: 5}, func(target string) (*network.Response, error) {
		switch {
		case strings.Contains(target, "start=1"):
			return ok(saraminResponse(3, 3))
		default:
			return ok(saraminResponse(3, 1, 2))
		}
	})

	got := collect(conn.Fetch(context.Background(), nil))
	if len(got.errs) != 0 {
		t.Fatalf("unexpected errors %v", got.errs)
	}
	if len(got.records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got.records))
	}
	if calls := getter.Calls(); len(calls) != 2 {
		t.Fatalf("expected 2 page requests, got %d", len(calls))
	}
}

func TestSaraminLaterPageFailure(t *testing.T) {
	conn, _ := newTestSaramin(SaraminConfig{Count: 1, Pages: 3}, func(target string) (*network.Response, error) {
		if strings.Contains(target, "start=1") {
			return status(502)
		}
		return ok(saraminResponse(10, 1))
	})

	got := collect(conn.Fetch(context.Background(), nil))
	if len(got.records) != 1 {
		t.Fatalf("expected first page record, got %d", len(got.records))
	}
	if len(got.errs) != 1 || !IsItemError(got.errs[0]) || errors.Is(got.errs[0], ErrInitialContact) {
		t.Fatalf("expected one item error, got %v", got.errs)
	}
	if strings.Contains(got.errs[0].Error(), "secret") {
		t.Fatalf("api key leaked into error: %v", got.errs[0])
	}
}

func TestSaraminMalformedItem(t *testing.T) {
	conn, _ := newTestSaramin(SaraminConfig{}, func(string) (*network.Response, error) {
		return ok(`{"jobs": {"total": "2", "job": ["oops", ` + saraminJobFixture(7) + `]}}`)
	})
	got := collect(conn.Fetch(context.Background(), nil))
	if len(got.records) != 1 || len(got.errs) != 1 || !IsItemError(got.errs[0]) {
		t.Fatalf("expected 1 record and 1 item error, got %d/%v", len(got.records), got.errs)
	}
}

func ptrTime(t time.Time) *time.Time {
	return &t
}

func TestSaraminErrorsNeverCarryKey(t *testing.T) {
	const key = "TOPSECRETKEY"

	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL + "/job-search"
	server.Close()
	client, err := network.NewClient(network.Options{Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	closed := NewSaramin(SaraminConfig{APIKey: key, Endpoint: endpoint}, client, zerolog.Nop())

	leaky := NewSaramin(SaraminConfig{APIKey: key, Endpoint: "https://api.test/job-search", Count: 1, Pages: 2},
		&fakeGetter{fn: func(target string) (*network.Response, error) {
			if strings.Contains(target, "start=1") {
				return nil, errors.Mark(errors.Newf("get %s: reset", target), network.ErrRequestFailed)
			}
			return ok(saraminResponse(5, 1))
		}}, zerolog.Nop())

	for name, conn := range map[string]*Saramin{"closed port": closed, "later page": leaky} {
		t.Run(name, func(t *testing.T) {
			got := collect(conn.Fetch(context.Background(), nil))
			if len(got.errs) != 1 {
				t.Fatalf("expected one error, got %v", got.errs)
			}
			if msg := got.errs[0].Error(); strings.Contains(msg, key) {
				t.Fatalf("api key leaked in error: %s", msg)
			}
			var item *ItemError
			if errors.As(got.errs[0], &item) && strings.Contains(item.URL, key) {
				t.Fatalf("api key leaked in item url: %s", item.URL)
			}
		})
	}
}
