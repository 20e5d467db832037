package locate

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ppiankov/absredact/internal/model"
)

// PageMatch is a match together with the page it was found on
type PageMatch struct {
	Page int
	Match
}

// CandidatePages returns the pages an abstract is expected on: the first
// two and the last two, ascending, without duplicates.
func CandidatePages(numPages int) []int {
	seen := make(map[int]bool)
	var pages []int
	for _, p := range []int{1, 2, numPages - 1, numPages} {
		if p < 1 || p > numPages || seen[p] {
			continue
		}
		seen[p] = true
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}

// PageScanner applies a Locator to the candidate pages of a document
type PageScanner struct {
	locator    *Locator
	normalizer Normalizer
}

// NewPageScanner creates a page scanner
func NewPageScanner(locator *Locator, normalizer Normalizer) *PageScanner {
	return &PageScanner{
		locator:    locator,
		normalizer: normalizer,
	}
}

// Scan returns the first candidate page holding a non-degenerate match.
// If no candidate matched and the last page was not a candidate, it is
// tried once more.
func (s *PageScanner) Scan(doc *model.Document, abstract string) (PageMatch, error) {
	return s.scan(doc, abstract, newPageTexts(doc, s.normalizer))
}

// ScanAll locates every abstract independently. All of them must be found;
// otherwise ErrPartialMultiAbstract (some found) or ErrNoMatch (none) is
// returned along with the matches that were found.
func (s *PageScanner) ScanAll(doc *model.Document, abstracts []string) ([]PageMatch, error) {
	if len(abstracts) == 0 {
		return nil, fmt.Errorf("%w: no abstracts for %s", model.ErrMalformedInput, doc.ID)
	}

	texts := newPageTexts(doc, s.normalizer)
	var found []PageMatch
	missing := 0
	for _, abstract := range abstracts {
		pm, err := s.scan(doc, abstract, texts)
		if err != nil {
			if errors.Is(err, model.ErrMalformedInput) {
				return found, err
			}
			missing++
			continue
		}
		found = append(found, pm)
	}

	switch {
	case missing == 0:
		return found, nil
	case len(found) == 0:
		return nil, fmt.Errorf("%s: %w", doc.ID, model.ErrNoMatch)
	default:
		return found, fmt.Errorf("%s: %d of %d abstracts: %w",
			doc.ID, len(found), len(abstracts), model.ErrPartialMultiAbstract)
	}
}

func (s *PageScanner) scan(doc *model.Document, abstract string, texts *pageTexts) (PageMatch, error) {
	pattern := s.normalizer.Normalize(abstract)
	if pattern == "" {
		return PageMatch{}, fmt.Errorf("%s: empty abstract: %w", doc.ID, model.ErrNoMatch)
	}

	tried := make(map[int]bool)
	try := func(number int) (PageMatch, bool, error) {
		tried[number] = true
		page := doc.Page(number)
		if page == nil {
			return PageMatch{}, false, nil
		}
		m, err := s.locator.Locate(texts.get(page), page.Words, pattern)
		if err != nil {
			if model.IsNotFound(err) {
				return PageMatch{}, false, nil
			}
			return PageMatch{}, false, fmt.Errorf("%s page %d: %w", doc.ID, number, err)
		}
		return PageMatch{Page: number, Match: m}, true, nil
	}

	for _, number := range CandidatePages(doc.NumPages()) {
		pm, ok, err := try(number)
		if err != nil {
			return PageMatch{}, err
		}
		if ok {
			return pm, nil
		}
	}

	if last := doc.NumPages(); last > 0 && !tried[last] {
		pm, ok, err := try(last)
		if err != nil {
			return PageMatch{}, err
		}
		if ok {
			return pm, nil
		}
	}

	return PageMatch{}, fmt.Errorf("%s: %w", doc.ID, model.ErrNoMatch)
}

// pageTexts memoizes normalized page texts across abstracts
type pageTexts struct {
	normalizer Normalizer
	texts      map[int]string
}

func newPageTexts(doc *model.Document, n Normalizer) *pageTexts {
	return &pageTexts{normalizer: n, texts: make(map[int]string, len(doc.Pages))}
}

func (t *pageTexts) get(page *model.Page) string {
	if text, ok := t.texts[page.Number]; ok {
		return text
	}
	text := t.normalizer.Normalize(page.Text())
	t.texts[page.Number] = text
	return text
}
