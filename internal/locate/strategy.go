package locate

import (
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/absredact/internal/model"
)

// Hit is a character-level match. Offsets are rune offsets into the text,
// End is exclusive.
type Hit struct {
	Start    int
	End      int
	Distance int
}

// Strategy is one tier of the abstract search
type Strategy interface {
	// Tier names the strategy for logging and reports
	Tier() model.Tier

	// Find returns the first match of pattern in text
	Find(text, pattern []rune) (Hit, bool)
}

// ExactStrategy finds the leftmost verbatim occurrence
type ExactStrategy struct{}

func (ExactStrategy) Tier() model.Tier { return model.TierExact }

func (ExactStrategy) Find(text, pattern []rune) (Hit, bool) {
	if len(pattern) == 0 || len(pattern) > len(text) {
		return Hit{}, false
	}

	s := string(text)
	idx := strings.Index(s, string(pattern))
	if idx < 0 {
		return Hit{}, false
	}

	start := utf8.RuneCountInString(s[:idx])
	return Hit{Start: start, End: start + len(pattern)}, true
}

// FuzzyStrategy finds near matches within MaxDistance Levenshtein edits.
// Overlapping candidates form a group; the leftmost group wins and its
// closest member is returned.
type FuzzyStrategy struct {
	MaxDistance int
}

func (FuzzyStrategy) Tier() model.Tier { return model.TierFuzzy }

func (s FuzzyStrategy) Find(text, pattern []rune) (Hit, bool) {
	k := budget(s.MaxDistance, len(pattern))
	if k < 0 {
		return Hit{}, false
	}

	var group []Hit
	groupEnd := 0
	scan(text, pattern, k, false, func(end, start, dist int) bool {
		if end == start {
			return true
		}
		if len(group) > 0 && start >= groupEnd {
			return false
		}
		group = append(group, Hit{Start: start, End: end, Distance: dist})
		if end > groupEnd {
			groupEnd = end
		}
		return true
	})

	if len(group) == 0 {
		return Hit{}, false
	}
	return closest(group), true
}

// ApproxStrategy behaves like the fuzzy regular expression
// (?:pattern){e<=MaxEdits}: the leftmost start admitting a match within the
// edit budget, extended to its closest end.
type ApproxStrategy struct {
	MaxEdits int
}

func (ApproxStrategy) Tier() model.Tier { return model.TierApproximate }

func (s ApproxStrategy) Find(text, pattern []rune) (Hit, bool) {
	k := budget(s.MaxEdits, len(pattern))
	if k < 0 {
		return Hit{}, false
	}

	// Ends found in the reversed text are starts in the original one
	start := -1
	scan(reverse(text), reverse(pattern), k, false, func(end, from, _ int) bool {
		if end == from {
			return true
		}
		if st := len(text) - end; start < 0 || st < start {
			start = st
		}
		return true
	})
	if start < 0 {
		return Hit{}, false
	}

	limit := start + len(pattern) + k
	if limit > len(text) {
		limit = len(text)
	}

	var candidates []Hit
	scan(text[start:limit], pattern, k, true, func(end, _, dist int) bool {
		if end > 0 {
			candidates = append(candidates, Hit{Start: start, End: start + end, Distance: dist})
		}
		return true
	})

	if len(candidates) == 0 {
		return Hit{}, false
	}
	return closest(candidates), true
}

// budget caps k so that an empty match can never satisfy it
func budget(k, patternLen int) int {
	if patternLen == 0 {
		return -1
	}
	if k >= patternLen {
		k = patternLen - 1
	}
	return k
}

// closest picks the lowest distance, then the longest, then the leftmost hit
func closest(hits []Hit) Hit {
	best := hits[0]
	for _, h := range hits[1:] {
		switch {
		case h.Distance < best.Distance:
			best = h
		case h.Distance == best.Distance && h.End-h.Start > best.End-best.Start:
			best = h
		}
	}
	return best
}

func reverse(rs []rune) []rune {
	out := make([]rune, len(rs))
	for i, r := range rs {
		out[len(rs)-1-i] = r
	}
	return out
}
