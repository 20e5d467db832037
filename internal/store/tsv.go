package store

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ppiankov/absredact/internal/model"
	"github.com/ppiankov/absredact/internal/redact"
)

// Column layout of the word interchange format:
// word, xmin, ymin, xmax, ymax, page_width, page_height[, page]
const (
	pageColumns     = 7
	documentColumns = 8
)

// line is one line of a word file, terminator included
type line struct {
	raw    string
	no     int
	fields []string // nil for blank lines
}

// ReadPage reads a single-page word file
func ReadPage(r io.Reader, number int) (model.Page, error) {
	page := model.Page{Number: number}
	err := readLines(r, func(l line) error {
		w, ok, err := wordLine(l, pageColumns)
		if err != nil || !ok {
			return err
		}
		if len(page.Words) == 0 {
			page.Width, page.Height = w.PageWidth, w.PageHeight
		}
		page.Words = append(page.Words, w)
		return nil
	})
	if err != nil {
		return model.Page{}, err
	}
	return page, nil
}

// ReadDocument reads a whole-document word file. A new page starts whenever
// the trailing page column changes.
func ReadDocument(r io.Reader, docID string) (*model.Document, error) {
	doc := &model.Document{ID: docID}
	var cur *model.Page

	err := readLines(r, func(l line) error {
		w, ok, err := wordLine(l, documentColumns)
		if err != nil || !ok {
			return err
		}
		number, err := pageColumn(l.fields)
		if err != nil {
			return fmt.Errorf("line %d: %w", l.no, err)
		}

		if cur == nil || cur.Number != number {
			doc.Pages = append(doc.Pages, model.Page{
				Number: number,
				Width:  w.PageWidth,
				Height: w.PageHeight,
			})
			cur = &doc.Pages[len(doc.Pages)-1]
		}
		cur.Words = append(cur.Words, w)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", docID, err)
	}
	return doc, nil
}

// WritePage writes words in the single-page format
func WritePage(w io.Writer, page model.Page) error {
	bw := bufio.NewWriter(w)
	for _, word := range page.Words {
		if _, err := bw.WriteString(formatWord(word) + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteDocument writes every page in the whole-document format
func WriteDocument(w io.Writer, doc *model.Document) error {
	bw := bufio.NewWriter(w)
	for _, page := range doc.Pages {
		for _, word := range page.Words {
			if _, err := fmt.Fprintf(bw, "%s\t%d\n", formatWord(word), page.Number); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// redactLines copies r to w, leaving out the word lines whose index on
// their page falls in spans. Spans are keyed by page number, sorted and
// disjoint. Every other line, blank or skipped ones included, is copied
// exactly as read.
func redactLines(r io.Reader, w io.Writer, columns int, pageOf func(fields []string) (int, error), spans map[int][]model.Span) error {
	var lines []string
	wordLines := make(map[int][]int) // page number -> indexes into lines
	err := readLines(r, func(l line) error {
		_, ok, err := wordLine(l, columns)
		if err != nil {
			return err
		}
		if ok {
			number, err := pageOf(l.fields)
			if err != nil {
				return fmt.Errorf("line %d: %w", l.no, err)
			}
			wordLines[number] = append(wordLines[number], len(lines))
		}
		lines = append(lines, l.raw)
		return nil
	})
	if err != nil {
		return err
	}

	drop := make(map[int]bool)
	for number, pageSpans := range spans {
		idx := wordLines[number]
		kept := idx
		for i := len(pageSpans) - 1; i >= 0; i-- {
			s := pageSpans[i]
			if !s.Valid(len(idx)) {
				return fmt.Errorf("%w: page %d: span %d-%d outside %d words",
					model.ErrMalformedInput, number, s.Start, s.End, len(idx))
			}
			kept = redact.Text(kept, s)
		}
		for _, i := range idx {
			drop[i] = true
		}
		for _, i := range kept {
			delete(drop, i)
		}
	}

	bw := bufio.NewWriter(w)
	for i, raw := range lines {
		if drop[i] {
			continue
		}
		if _, err := bw.WriteString(raw); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// readLines calls fn for every line of r, blank ones included
func readLines(r io.Reader, fn func(l line) error) error {
	br := bufio.NewReader(r)
	for no := 1; ; no++ {
		raw, err := br.ReadString('\n')
		if raw != "" {
			l := line{raw: raw, no: no}
			if text := strings.TrimRight(raw, "\r\n"); text != "" {
				l.fields = strings.Split(text, "\t")
			}
			if ferr := fn(l); ferr != nil {
				return ferr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// wordLine parses a word line. ok is false for blank lines and for words
// with no visible text: readers skip them, redactLines copies them.
func wordLine(l line, columns int) (model.Word, bool, error) {
	if l.fields == nil {
		return model.Word{}, false, nil
	}
	if len(l.fields) != columns {
		return model.Word{}, false, fmt.Errorf("%w: line %d: %d columns, want %d",
			model.ErrMalformedInput, l.no, len(l.fields), columns)
	}
	w, err := parseWord(l.fields[:pageColumns])
	if errors.Is(err, model.ErrEmptyWord) {
		log.Debug().Int("line", l.no).Msg("skipping word without text")
		return model.Word{}, false, nil
	}
	if err != nil {
		return model.Word{}, false, fmt.Errorf("line %d: %w", l.no, err)
	}
	return w, true, nil
}

func pageColumn(fields []string) (int, error) {
	n, err := parseInt(fields[pageColumns])
	if err != nil {
		return 0, fmt.Errorf("page: %w", err)
	}
	return n, nil
}

func parseWord(fields []string) (model.Word, error) {
	var nums [6]int
	for i := range nums {
		n, err := parseInt(fields[i+1])
		if err != nil {
			return model.Word{}, err
		}
		nums[i] = n
	}
	return model.NewWord(fields[0], nums[0], nums[1], nums[2], nums[3], nums[4], nums[5])
}

// parseInt accepts integers and rounds decimal values
func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad number %q", model.ErrMalformedInput, s)
	}
	return int(math.Round(f)), nil
}

func formatWord(w model.Word) string {
	return fmt.Sprintf("%s\t%d\t%d\t%d\t%d\t%d\t%d",
		w.Text, w.Box.XMin, w.Box.YMin, w.Box.XMax, w.Box.YMax, w.PageWidth, w.PageHeight)
}
