package models

import (
	"strings"
	"time"
)

// Source tags where a posting came from. It never changes after creation.
type Source string

const (
	SourceSaramin  Source = "SARAMIN"
	SourceJobKorea Source = "JOBKOREA"
	// SourceUser marks postings created by company accounts; never ingested.
	SourceUser Source = "USER"
)

// ExternalSources lists the sources the ingestion pipeline pulls from.
var ExternalSources = []Source{SourceSaramin, SourceJobKorea}

func ParseSource(value string) (Source, bool) {
	switch Source(strings.ToUpper(strings.TrimSpace(value))) {
	case SourceSaramin:
		return SourceSaramin, true
	case SourceJobKorea:
		return SourceJobKorea, true
	case SourceUser:
		return SourceUser, true
	default:
		return "", false
	}
}

func (s Source) External() bool {
	return s == SourceSaramin || s == SourceJobKorea
}

func (s Source) String() string {
	return string(s)
}

// Posting is the canonical record every connector normalizes into.
type Posting struct {
	ID              int64      `json:"id,omitempty"`
	ExternalURL     string     `json:"external_url,omitempty"`
	Source          Source     `json:"source"`
	Title           string     `json:"title"`
	Position        string     `json:"position"`
	Description     string     `json:"description"`
	RequiredSkills  string     `json:"required_skills"`
	ExperienceLevel string     `json:"experience_level"`
	Location        string     `json:"location"`
	Salary          string     `json:"salary"`
	Deadline        *time.Time `json:"deadline,omitempty"`
	CompanyRef      *int64     `json:"company_ref,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
