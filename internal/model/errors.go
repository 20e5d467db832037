package model

import (
	"errors"
	"fmt"
)

// Failures are local to one document; none of them aborts a batch.
var (
	// ErrNoMatch means no strategy found the abstract on any candidate page
	ErrNoMatch = errors.New("abstract not found")

	// ErrDegenerateMatch means the match covered every word of the page
	ErrDegenerateMatch = errors.New("match covers the whole page")

	// ErrPartialMultiAbstract means some, but not all, abstracts were found
	ErrPartialMultiAbstract = errors.New("not every abstract was found")

	// ErrMalformedInput covers empty pages, missing abstracts and missing images
	ErrMalformedInput = errors.New("malformed input")

	// ErrEmptyWord means a word has no text left after cleaning. Readers
	// skip such words instead of failing the document.
	ErrEmptyWord = fmt.Errorf("%w: empty word", ErrMalformedInput)
)

// IsNotFound reports whether err is a soft matching failure
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNoMatch) || errors.Is(err, ErrDegenerateMatch)
}
