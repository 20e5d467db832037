package model

import (
	"fmt"
	"strings"
)

// Page is the ordered word stream of one rendered page.
type Page struct {
	Number int    `json:"number"` // 1-indexed
	Width  int    `json:"width"`  // PDF points
	Height int    `json:"height"` // PDF points
	Words  []Word `json:"words"`
}

// Text joins the page words with single spaces
func (p *Page) Text() string {
	parts := make([]string, len(p.Words))
	for i, w := range p.Words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}

// Document is the word transcript of one PDF, pages in ascending order.
type Document struct {
	ID    string `json:"id"`
	Pages []Page `json:"pages"`
}

// NumPages returns the number of the last page
func (d *Document) NumPages() int {
	if len(d.Pages) == 0 {
		return 0
	}
	return d.Pages[len(d.Pages)-1].Number
}

// Page returns the page with the given number, or nil
func (d *Document) Page(number int) *Page {
	for i := range d.Pages {
		if d.Pages[i].Number == number {
			return &d.Pages[i]
		}
	}
	return nil
}

// WordCount returns the number of words across all pages
func (d *Document) WordCount() int {
	n := 0
	for _, p := range d.Pages {
		n += len(p.Words)
	}
	return n
}

// Validate checks the document invariants
func (d *Document) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: document without id", ErrMalformedInput)
	}
	if len(d.Pages) == 0 {
		return fmt.Errorf("%w: document %s has no pages", ErrMalformedInput, d.ID)
	}

	prev := 0
	for _, p := range d.Pages {
		if p.Number <= prev {
			return fmt.Errorf("%w: document %s: page %d out of order", ErrMalformedInput, d.ID, p.Number)
		}
		if len(p.Words) == 0 {
			return fmt.Errorf("%w: document %s: page %d has no words", ErrMalformedInput, d.ID, p.Number)
		}
		prev = p.Number
	}
	return nil
}
