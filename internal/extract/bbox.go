package extract

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/ppiankov/absredact/internal/model"
)

// ParseBBoxHTML reads the XHTML written by `pdftotext -bbox` and returns the
// word stream of every page that has at least one word. Pages are numbered
// in order of appearance, blank pages included. The returned document has no
// id; callers set it.
func ParseBBoxHTML(r io.Reader) (*model.Document, error) {
	z := html.NewTokenizer(r)
	doc := &model.Document{}

	var (
		page    *model.Page
		number  int
		inWord  bool
		wordBox [4]int
		text    strings.Builder
	)

	flushPage := func() {
		if page != nil && len(page.Words) > 0 {
			doc.Pages = append(doc.Pages, *page)
		}
		page = nil
	}

	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("parse bbox html: %w", err)
			}
			flushPage()
			return doc, nil

		case html.StartTagToken:
			tok := z.Token()
			switch tok.Data {
			case "page":
				flushPage()
				number++
				w, h, err := pageSize(tok.Attr)
				if err != nil {
					return nil, fmt.Errorf("page %d: %w", number, err)
				}
				page = &model.Page{Number: number, Width: w, Height: h}
			case "word":
				box, err := wordCoords(tok.Attr)
				if err != nil {
					return nil, fmt.Errorf("page %d: %w", number, err)
				}
				inWord, wordBox = true, box
				text.Reset()
			}

		case html.TextToken:
			if inWord {
				text.Write(z.Text())
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) != "word" || !inWord {
				continue
			}
			inWord = false
			if page == nil || page.Width <= 0 || page.Height <= 0 {
				continue
			}
			w, err := model.NewWord(text.String(),
				wordBox[0], wordBox[1], wordBox[2], wordBox[3], page.Width, page.Height)
			if errors.Is(err, model.ErrEmptyWord) {
				continue
			}
			if err != nil {
				return nil, err
			}
			page.Words = append(page.Words, w)
		}
	}
}

func pageSize(attrs []html.Attribute) (int, int, error) {
	vals, err := attrInts(attrs, "width", "height")
	if err != nil {
		return 0, 0, err
	}
	return vals[0], vals[1], nil
}

func wordCoords(attrs []html.Attribute) ([4]int, error) {
	var box [4]int
	vals, err := attrInts(attrs, "xmin", "ymin", "xmax", "ymax")
	if err != nil {
		return box, err
	}
	copy(box[:], vals)
	return box, nil
}

// attrInts reads numeric attributes, rounded to the nearest integer.
// The tokenizer lower-cases attribute names.
func attrInts(attrs []html.Attribute, keys ...string) ([]int, error) {
	out := make([]int, len(keys))
	for i, key := range keys {
		found := false
		for _, a := range attrs {
			if a.Key != key {
				continue
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(a.Val), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: attribute %s=%q", model.ErrMalformedInput, key, a.Val)
			}
			out[i] = int(math.Round(f))
			found = true
			break
		}
		if !found {
			return nil, fmt.Errorf("%w: missing attribute %s", model.ErrMalformedInput, key)
		}
	}
	return out, nil
}
