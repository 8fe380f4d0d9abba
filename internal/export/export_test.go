package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jobbridge/ingest/internal/models"
)

func samplePostings() []models.Posting {
	deadline := time.Date(2025, 5, 1, 23, 59, 0, 0, time.UTC)
	return []models.Posting{
		{
			ID:              1,
			Source:          models.SourceJobKorea,
			Title:           "잡브릿지 백엔드 개발자",
			Position:        "백엔드 개발자",
			ExperienceLevel: "신입, 경력",
			Salary:          "3000 만원",
			Deadline:        &deadline,
			ExternalURL:     "https://www.jobkorea.co.kr/Recruit/GI_Read/1",
			CreatedAt:       time.Date(2025, 4, 16, 9, 0, 0, 0, time.UTC),
		},
		{ID: 2, Source: models.SourceSaramin, Title: "QA"},
	}
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{"": FormatTable, "CSV": FormatCSV, "markdown": FormatMarkdown, "tsv": FormatTSV, "json": FormatJSON}
	for in, want := range cases {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatalf("expected unknown format error")
	}
}

func TestWritePostingsCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePostings(&buf, samplePostings(), FormatCSV, WriteOptions{}); err != nil {
		t.Fatalf("WritePostings() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and two rows, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "id,source,title") {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if !strings.Contains(lines[1], `"신입, 경력"`) || !strings.Contains(lines[1], "2025-05-01T23:59:00Z") {
		t.Fatalf("unexpected row %q", lines[1])
	}
}

func TestWritePostingsJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePostings(&buf, samplePostings(), FormatJSON, WriteOptions{}); err != nil {
		t.Fatalf("WritePostings() error = %v", err)
	}
	var decoded []models.Posting
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(decoded) != 2 || decoded[0].Deadline == nil || decoded[1].Deadline != nil {
		t.Fatalf("unexpected decoded postings %+v", decoded)
	}
}

func TestWritePostingsTableAndMarkdown(t *testing.T) {
	var table bytes.Buffer
	if err := WritePostings(&table, samplePostings(), FormatTable, WriteOptions{Hyperlinks: true, LinkStyle: LinkStyleShort}); err != nil {
		t.Fatalf("WritePostings() error = %v", err)
	}
	if !strings.Contains(table.String(), "jobkorea.co.kr/Recruit/GI_Read/1") || !strings.Contains(table.String(), "\x1b]8;;") {
		t.Fatalf("expected short hyperlink in table: %q", table.String())
	}
	if !strings.Contains(table.String(), "2025-05-01 23:59") {
		t.Fatalf("expected deadline in table: %q", table.String())
	}

	var md bytes.Buffer
	if err := WritePostings(&md, nil, FormatMarkdown, WriteOptions{}); err != nil {
		t.Fatalf("WritePostings() error = %v", err)
	}
	if strings.TrimSpace(md.String()) != "No results." {
		t.Fatalf("unexpected empty markdown %q", md.String())
	}
}

func TestWriteRuns(t *testing.T) {
	start := time.Date(2025, 4, 16, 9, 0, 0, 0, time.UTC)
	runs := []models.RunReport{
		{RunID: "a", Source: models.SourceSaramin, StartedAt: start, FinishedAt: start.Add(1500 * time.Millisecond), Saved: 3},
		{RunID: "b", Source: models.SourceJobKorea, StartedAt: start, FinishedAt: start, Error: "initial contact failed"},
		{RunID: "c", Source: models.SourceJobKorea, StartedAt: start, FinishedAt: start, Canceled: true},
	}
	var buf bytes.Buffer
	if err := WriteRuns(&buf, runs, FormatTSV); err != nil {
		t.Fatalf("WriteRuns() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"1.5s", "error: initial contact failed", "canceled", "\tok\n"} {
		if !strings.Contains(out, want) {
			t.Fatalf("runs output missing %q:\n%s", want, out)
		}
	}
}
