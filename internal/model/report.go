package model

import "time"

// RunReport summarizes one batch run
type RunReport struct {
	RunID      string      `json:"run_id"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Found      int         `json:"found"`
	Failed     int         `json:"failed"`
	Skipped    int         `json:"skipped"`
	Documents  []DocResult `json:"documents"`
}

// DocResult is the outcome of processing a single document
type DocResult struct {
	DocID   string       `json:"doc_id"`
	Outcome Outcome      `json:"outcome"`
	Matches []MatchEntry `json:"matches,omitempty"`
	Error   string       `json:"error,omitempty"`

	Err error `json:"-"`
}

// MatchEntry records where one abstract was found
type MatchEntry struct {
	Page     int  `json:"page"`
	Span     Span `json:"span"`
	Tier     Tier `json:"tier"`
	Distance int  `json:"distance"`
}

// GetError returns the processing error, if any
func (r *DocResult) GetError() error {
	return r.Err
}

// Add tallies a document result into the report
func (r *RunReport) Add(res DocResult) {
	switch res.Outcome {
	case OutcomeFound:
		r.Found++
	case OutcomeFailed:
		r.Failed++
	case OutcomeSkipped:
		r.Skipped++
	}
	r.Documents = append(r.Documents, res)
}
