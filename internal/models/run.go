package models

import "time"

// RunReport summarizes one ingestion run for one source.
type RunReport struct {
	RunID        string    `json:"run_id"`
	Source       Source    `json:"source"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Fetched      int       `json:"fetched"`
	Saved        int       `json:"saved"`
	Duplicates   int       `json:"duplicates"`
	Invalid      int       `json:"invalid"`
	Failed       int       `json:"failed"`
	Canceled     bool      `json:"canceled,omitempty"`
	LastPosition string    `json:"last_position,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// Succeeded reports whether the run reached its source and was not aborted.
func (r RunReport) Succeeded() bool {
	return r.Error == ""
}

func (r RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
