package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jobbridge/ingest/internal/models"
	"github.com/muesli/termenv"
)

type Format string

const (
	FormatTable    Format = "table"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "md"
	FormatTSV      Format = "tsv"
)

type WriteOptions struct {
	ColorEnabled bool
	Hyperlinks   bool
	LinkStyle    LinkStyle
}

type LinkStyle string

const (
	LinkStyleShort LinkStyle = "short"
	LinkStyleFull  LinkStyle = "full"
)

const deadlineLayout = "2006-01-02 15:04"

func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "tsv":
		return FormatTSV, nil
	case "table", "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unknown format: %s", value)
	}
}

func WritePostings(w io.Writer, postings []models.Posting, format Format, opts WriteOptions) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, postings)
	case FormatCSV:
		return writeRows(w, postingHeader(), postings, postingRow, ',')
	case FormatTSV:
		return writeRows(w, postingHeader(), postings, postingRow, '\t')
	case FormatMarkdown:
		return writeMarkdown(w, postings)
	default:
		return writeTable(w, postings, opts)
	}
}

func WriteRuns(w io.Writer, runs []models.RunReport, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, runs)
	case FormatCSV:
		return writeRows(w, runHeader(), runs, runRow, ',')
	case FormatTSV, FormatMarkdown:
		return writeRows(w, runHeader(), runs, runRow, '\t')
	default:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(runHeader(), "\t"))
		for _, run := range runs {
			fmt.Fprintln(tw, strings.Join(runRow(run), "\t"))
		}
		return tw.Flush()
	}
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func writeRows[T any](w io.Writer, header []string, items []T, row func(T) []string, delim rune) error {
	writer := csv.NewWriter(w)
	writer.Comma = delim
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, item := range items {
		if err := writer.Write(row(item)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeTable(w io.Writer, postings []models.Posting, opts WriteOptions) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(tableHeader(), "\t"))
	output := termenv.NewOutput(w)
	for _, posting := range postings {
		fmt.Fprintln(tw, strings.Join(tableRow(posting, output, opts), "\t"))
	}
	return tw.Flush()
}

func writeMarkdown(w io.Writer, postings []models.Posting) error {
	if len(postings) == 0 {
		_, err := fmt.Fprintln(w, "No results.")
		return err
	}
	for _, posting := range postings {
		urlLine := "  URL: -"
		if link := safe(posting.ExternalURL); link != "" {
			urlLine = fmt.Sprintf("  URL: [Open listing](<%s>)", link)
		}
		lines := []string{
			fmt.Sprintf("- **%s**", safe(posting.Title)),
			fmt.Sprintf("  Source: %s", posting.Source),
			urlLine,
		}
		if posting.Location != "" {
			lines = append(lines, fmt.Sprintf("  Location: %s", safe(posting.Location)))
		}
		if posting.ExperienceLevel != "" {
			lines = append(lines, fmt.Sprintf("  Experience: %s", safe(posting.ExperienceLevel)))
		}
		if posting.Salary != "" {
			lines = append(lines, fmt.Sprintf("  Salary: %s", safe(posting.Salary)))
		}
		if posting.Deadline != nil {
			lines = append(lines, fmt.Sprintf("  Deadline: %s", posting.Deadline.Format(time.RFC3339)))
		}
		for _, line := range lines {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	return nil
}

func postingHeader() []string {
	return []string{
		"id",
		"source",
		"title",
		"position",
		"required_skills",
		"experience_level",
		"location",
		"salary",
		"deadline",
		"external_url",
		"created_at",
	}
}

func postingRow(p models.Posting) []string {
	deadline := ""
	if p.Deadline != nil {
		deadline = p.Deadline.Format(time.RFC3339)
	}
	return []string{
		strconv.FormatInt(p.ID, 10),
		p.Source.String(),
		p.Title,
		p.Position,
		p.RequiredSkills,
		p.ExperienceLevel,
		p.Location,
		p.Salary,
		deadline,
		p.ExternalURL,
		p.CreatedAt.Format(time.RFC3339),
	}
}

func runHeader() []string {
	return []string{"run_id", "source", "started_at", "took", "fetched", "saved", "duplicates", "invalid", "failed", "status"}
}

func runRow(r models.RunReport) []string {
	status := "ok"
	switch {
	case r.Error != "":
		status = "error: " + r.Error
	case r.Canceled:
		status = "canceled"
	}
	return []string{
		r.RunID,
		r.Source.String(),
		r.StartedAt.Format(time.RFC3339),
		r.Duration().Round(time.Millisecond).String(),
		strconv.Itoa(r.Fetched),
		strconv.Itoa(r.Saved),
		strconv.Itoa(r.Duplicates),
		strconv.Itoa(r.Invalid),
		strconv.Itoa(r.Failed),
		status,
	}
}

func safe(value string) string {
	return strings.TrimSpace(value)
}

func tableHeader() []string {
	return []string{
		"source",
		"title",
		"deadline",
		"url",
	}
}

func tableRow(p models.Posting, output *termenv.Output, opts WriteOptions) []string {
	const linkColor = "#87CEEB"

	link := safe(p.ExternalURL)
	displayURL := "-"
	if link != "" {
		displayURL = link
		if opts.LinkStyle == LinkStyleShort && opts.Hyperlinks {
			displayURL = shortURLLabel(link)
		}
		if opts.ColorEnabled {
			displayURL = output.String(displayURL).Foreground(output.Color(linkColor)).String()
		}
		if opts.Hyperlinks {
			displayURL = hyperlink(link, displayURL)
		}
	}
	deadline := "-"
	if p.Deadline != nil {
		deadline = p.Deadline.Format(deadlineLayout)
	}
	return []string{
		p.Source.String(),
		safe(p.Title),
		deadline,
		displayURL,
	}
}

func hyperlink(url string, text string) string {
	const esc = "\x1b"
	return esc + "]8;;" + url + esc + "\\" + text + esc + "]8;;" + esc + "\\"
}

func shortURLLabel(raw string) string {
	const maxLen = 60
	label := strings.TrimSpace(raw)
	if parsed, err := url.Parse(raw); err == nil {
		host := strings.TrimPrefix(parsed.Host, "www.")
		if host != "" {
			label = host + parsed.Path
		}
	}
	label = strings.TrimSpace(label)
	if label == "" {
		label = raw
	}
	if len(label) > maxLen {
		label = label[:maxLen-3] + "..."
	}
	return label
}
