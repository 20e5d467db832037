package locate

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalizer prepares page text and abstracts before matching. Both sides
// must go through the same Normalizer.
type Normalizer struct {
	CaseSensitive bool
}

// Normalize composes the text to NFC, collapses whitespace runs and, unless
// CaseSensitive is set, lower-cases it
func (n Normalizer) Normalize(s string) string {
	s = norm.NFC.String(s)
	s = strings.Join(strings.Fields(s), " ")
	if !n.CaseSensitive {
		s = strings.ToLower(s)
	}
	return s
}
