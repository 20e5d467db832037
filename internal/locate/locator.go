package locate

import (
	"fmt"
	"unicode"

	"github.com/ppiankov/absredact/internal/model"
)

const (
	// DefaultMaxEdits is the fuzzy tier budget
	DefaultMaxEdits = 15

	// DefaultApproxEdits is the approximate tier budget
	DefaultApproxEdits = 5
)

// Match is a located abstract on a single page
type Match struct {
	Span     model.Span
	Tier     model.Tier
	Start    int // rune offset into the page text
	End      int // exclusive
	Distance int
}

// Locator runs its strategies in order; the first one that hits decides.
type Locator struct {
	strategies []Strategy
}

// NewLocator creates the exact, fuzzy, approximate chain
func NewLocator(maxEdits, approxEdits int) *Locator {
	return NewLocatorWithStrategies(
		ExactStrategy{},
		FuzzyStrategy{MaxDistance: maxEdits},
		ApproxStrategy{MaxEdits: approxEdits},
	)
}

// NewLocatorWithStrategies creates a locator with a custom chain
func NewLocatorWithStrategies(strategies ...Strategy) *Locator {
	return &Locator{strategies: strategies}
}

// Locate finds abstract in pageText with the default chain.
// Comparison is case-sensitive; callers normalize both sides.
func Locate(pageText string, pageWords []model.Word, abstract string, maxEdits int) (Match, error) {
	return NewLocator(maxEdits, DefaultApproxEdits).Locate(pageText, pageWords, abstract)
}

// Locate finds abstract in pageText and maps the hit onto whole words.
// pageText must tokenize on whitespace into exactly len(pageWords) tokens.
func (l *Locator) Locate(pageText string, pageWords []model.Word, abstract string) (Match, error) {
	text := []rune(pageText)
	pattern := []rune(abstract)

	if len(pageWords) == 0 {
		return Match{}, fmt.Errorf("%w: page has no words", model.ErrMalformedInput)
	}
	tokens := tokenize(text)
	if len(tokens) != len(pageWords) {
		return Match{}, fmt.Errorf("%w: page text has %d tokens for %d words",
			model.ErrMalformedInput, len(tokens), len(pageWords))
	}
	if len(pattern) == 0 {
		return Match{}, model.ErrNoMatch
	}

	for _, s := range l.strategies {
		hit, ok := s.Find(text, pattern)
		if !ok {
			continue
		}

		span, err := wordSpan(tokens, hit.Start, hit.End)
		if err != nil {
			return Match{}, err
		}
		return Match{
			Span:     span,
			Tier:     s.Tier(),
			Start:    hit.Start,
			End:      hit.End,
			Distance: hit.Distance,
		}, nil
	}

	return Match{}, model.ErrNoMatch
}

// token is the rune range of one whitespace-delimited word
type token struct {
	start, end int
}

func tokenize(text []rune) []token {
	var tokens []token
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				tokens = append(tokens, token{start, i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, token{start, len(text)})
	}
	return tokens
}

// wordSpan returns the words touched, even partially, by [start, end)
func wordSpan(tokens []token, start, end int) (model.Span, error) {
	first, last := -1, -1
	for i, t := range tokens {
		if t.start < end && t.end > start {
			if first < 0 {
				first = i
			}
			last = i
		} else if first >= 0 {
			break
		}
	}

	if first < 0 {
		return model.Span{}, model.ErrNoMatch
	}
	span := model.Span{Start: first, End: last}
	if span.Len() == len(tokens) {
		return model.Span{}, model.ErrDegenerateMatch
	}
	return span, nil
}
