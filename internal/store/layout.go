package store

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ppiankov/absredact/internal/model"
)

// Layout defines how a document's words are laid out on disk
type Layout interface {
	// Name returns the layout name
	Name() string

	// CanHandle checks if this layout owns the given file name
	CanHandle(name string) bool

	// DocID derives the document id from a file name
	DocID(name string) string

	// Load reads the document stored at path
	Load(path string) (*model.Document, error)

	// Save writes doc to path
	Save(doc *model.Document, path string) error

	// Rewrite copies the document at src to dst without the words in
	// spans, keyed by page number. Everything else is copied unchanged.
	Rewrite(src, dst string, spans map[int][]model.Span) error
}

// Registry picks the layout for an input file
type Registry struct {
	layouts []Layout
}

// NewRegistry creates a registry with the built-in layouts
func NewRegistry() *Registry {
	r := &Registry{}
	r.Register(NewPageTarLayout())
	r.Register(NewDocFileLayout())
	return r
}

// Register registers a new layout
func (r *Registry) Register(l Layout) {
	r.layouts = append(r.layouts, l)
}

// Find returns the first layout that can handle name, or nil
func (r *Registry) Find(name string) Layout {
	for _, l := range r.layouts {
		if l.CanHandle(name) {
			return l
		}
	}
	return nil
}

// DocFileLayout stores a document as {id}.txt with a page column
type DocFileLayout struct{}

func NewDocFileLayout() *DocFileLayout { return &DocFileLayout{} }

func (l *DocFileLayout) Name() string { return "doc-file" }

func (l *DocFileLayout) CanHandle(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".txt")
}

func (l *DocFileLayout) DocID(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (l *DocFileLayout) Load(filePath string) (*model.Document, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	doc, err := ReadDocument(f, l.DocID(filePath))
	if err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

func (l *DocFileLayout) Save(doc *model.Document, filePath string) (err error) {
	f, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return WriteDocument(f, doc)
}

func (l *DocFileLayout) Rewrite(src, dst string, spans map[int][]model.Span) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if err := redactLines(in, out, documentColumns, pageColumn, spans); err != nil {
		return fmt.Errorf("%s: %w", src, err)
	}
	return nil
}

// PageTarLayout stores one file per page, {id}/{id}-{page}.txt, bundled
// as {id}.tar.gz
type PageTarLayout struct{}

func NewPageTarLayout() *PageTarLayout { return &PageTarLayout{} }

func (l *PageTarLayout) Name() string { return "page-tar" }

func (l *PageTarLayout) CanHandle(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".tar.gz")
}

func (l *PageTarLayout) DocID(name string) string {
	base := filepath.Base(name)
	return base[:len(base)-len(".tar.gz")]
}

func (l *PageTarLayout) Load(filePath string) (*model.Document, error) {
	entries, err := ExtractTarGz(filePath)
	if err != nil {
		return nil, err
	}

	doc := &model.Document{ID: l.DocID(filePath)}
	for _, e := range entries {
		if !strings.HasSuffix(e.Name, ".txt") {
			continue
		}
		n, ok := PageNumber(e.Name)
		if !ok {
			return nil, fmt.Errorf("%w: %s: no page number in %s", model.ErrMalformedInput, filePath, e.Name)
		}
		page, err := ReadPage(bytes.NewReader(e.Data), n)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", filePath, e.Name, err)
		}
		if len(page.Words) == 0 {
			// blank page
			continue
		}
		doc.Pages = append(doc.Pages, page)
	}

	sort.Slice(doc.Pages, func(i, j int) bool {
		return doc.Pages[i].Number < doc.Pages[j].Number
	})
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

func (l *PageTarLayout) Save(doc *model.Document, filePath string) error {
	entries := make([]Entry, 0, len(doc.Pages))
	for _, page := range doc.Pages {
		var buf bytes.Buffer
		if err := WritePage(&buf, page); err != nil {
			return err
		}
		entries = append(entries, Entry{
			Name: path.Join(doc.ID, fmt.Sprintf("%s-%d.txt", doc.ID, page.Number)),
			Data: buf.Bytes(),
		})
	}
	return WriteTarGz(filePath, doc.ID, entries)
}

// Rewrite only touches the page entries named in spans. Blank pages and
// any other archive members are written back as they were.
func (l *PageTarLayout) Rewrite(src, dst string, spans map[int][]model.Span) error {
	entries, err := ExtractTarGz(src)
	if err != nil {
		return err
	}

	done := make(map[int]bool)
	for i, e := range entries {
		if !strings.HasSuffix(e.Name, ".txt") {
			continue
		}
		n, ok := PageNumber(e.Name)
		if !ok || len(spans[n]) == 0 {
			continue
		}
		pageOf := func([]string) (int, error) { return n, nil }
		var buf bytes.Buffer
		if err := redactLines(bytes.NewReader(e.Data), &buf, pageColumns, pageOf, map[int][]model.Span{n: spans[n]}); err != nil {
			return fmt.Errorf("%s: %s: %w", src, e.Name, err)
		}
		entries[i].Data = buf.Bytes()
		done[n] = true
	}

	for n, pageSpans := range spans {
		if len(pageSpans) > 0 && !done[n] {
			return fmt.Errorf("%w: %s: no entry for page %d", model.ErrMalformedInput, src, n)
		}
	}
	return WriteTarGz(dst, commonRoot(entries), entries)
}

// PageNumber parses the trailing page number of names like
// {id}-{page}.{ext}. Leading zeros are accepted.
func PageNumber(name string) (int, bool) {
	base := path.Base(filepath.ToSlash(name))
	base = strings.TrimSuffix(base, path.Ext(base))
	dash := strings.LastIndexByte(base, '-')
	if dash < 0 || dash == len(base)-1 {
		return 0, false
	}
	n, err := strconv.Atoi(base[dash+1:])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
