package model

// Span is an inclusive range of word indices into a page.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of words covered by the span
func (s Span) Len() int {
	return s.End - s.Start + 1
}

// Contains reports whether word index i falls inside the span
func (s Span) Contains(i int) bool {
	return i >= s.Start && i <= s.End
}

// Valid reports whether 0 <= Start <= End < n
func (s Span) Valid(n int) bool {
	return s.Start >= 0 && s.Start <= s.End && s.End < n
}

// Tier names the strategy that produced a match
type Tier string

const (
	TierExact       Tier = "exact"
	TierFuzzy       Tier = "fuzzy"
	TierApproximate Tier = "approximate"
)

// Outcome is the final state of a processed document
type Outcome string

const (
	OutcomeFound   Outcome = "found"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped" // not recorded in the ledger
)
