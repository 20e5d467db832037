package model

import (
	"fmt"
	"strings"
	"unicode"
)

// BBox is a word bounding box in PDF point space.
// XMin <= XMax and YMin <= YMax always hold for boxes built by NewWord.
type BBox struct {
	XMin int `json:"xmin"`
	YMin int `json:"ymin"`
	XMax int `json:"xmax"`
	YMax int `json:"ymax"`
}

// Word is a single token extracted from a page, in reading order.
type Word struct {
	Text       string `json:"text"`
	Box        BBox   `json:"bbox"`
	PageWidth  int    `json:"page_width"`
	PageHeight int    `json:"page_height"`
}

// NewWord cleans the text, clamps the box to the page and normalizes its
// corners. Words with no text left after cleaning, or sitting on a page with
// no area, are malformed.
func NewWord(text string, xmin, ymin, xmax, ymax, pageWidth, pageHeight int) (Word, error) {
	text = CleanText(text)
	if text == "" {
		return Word{}, ErrEmptyWord
	}
	if pageWidth <= 0 || pageHeight <= 0 {
		return Word{}, fmt.Errorf("%w: page size %dx%d", ErrMalformedInput, pageWidth, pageHeight)
	}

	xmin, xmax = clamp(xmin, 0, pageWidth), clamp(xmax, 0, pageWidth)
	ymin, ymax = clamp(ymin, 0, pageHeight), clamp(ymax, 0, pageHeight)
	if xmin > xmax {
		xmin, xmax = xmax, xmin
	}
	if ymin > ymax {
		ymin, ymax = ymax, ymin
	}

	return Word{
		Text:       text,
		Box:        BBox{XMin: xmin, YMin: ymin, XMax: xmax, YMax: ymax},
		PageWidth:  pageWidth,
		PageHeight: pageHeight,
	}, nil
}

// CleanText removes every whitespace rune from s
func CleanText(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
