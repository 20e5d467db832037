package store

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/ppiankov/absredact/internal/model"
	"github.com/ppiankov/absredact/internal/redact"
)

// ImageStore finds rendered page images under a directory, either bundled
// as {id}.tar.gz or unpacked as {id}/
type ImageStore struct {
	Dir string
}

// NewImageStore creates an image store rooted at dir
func NewImageStore(dir string) *ImageStore {
	return &ImageStore{Dir: dir}
}

// Load collects the page images of a document
func (s *ImageStore) Load(docID string) (*ImageSet, error) {
	archive := filepath.Join(s.Dir, docID+".tar.gz")
	if _, err := os.Stat(archive); err == nil {
		entries, err := ExtractTarGz(archive)
		if err != nil {
			return nil, err
		}
		return newImageSet(docID, true, entries)
	}

	dir := filepath.Join(s.Dir, docID)
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()) {
		return nil, fmt.Errorf("%w: no page images for %s in %s", model.ErrMalformedInput, docID, s.Dir)
	}
	if err != nil {
		return nil, err
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for _, f := range files {
		if !f.Type().IsRegular() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, f.Name()))
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Name: path.Join(docID, f.Name()), Data: data})
	}
	return newImageSet(docID, false, entries)
}

// ImageSet holds the files of one document's image bundle. Only page
// images are indexed; every other file is carried through untouched.
type ImageSet struct {
	docID    string
	archived bool
	entries  []Entry
	pages    map[int]int // page number -> entry index
}

func newImageSet(docID string, archived bool, entries []Entry) (*ImageSet, error) {
	set := &ImageSet{
		docID:    docID,
		archived: archived,
		entries:  entries,
		pages:    make(map[int]int),
	}
	for i, e := range entries {
		if !redact.IsImage(e.Name) {
			continue
		}
		n, ok := PageNumber(e.Name)
		if !ok {
			continue
		}
		if _, dup := set.pages[n]; dup {
			return nil, fmt.Errorf("%w: %s: two images for page %d", model.ErrMalformedInput, docID, n)
		}
		set.pages[n] = i
	}
	return set, nil
}

// Pages returns the page numbers that have an image, ascending
func (s *ImageSet) Pages() []int {
	out := make([]int, 0, len(s.pages))
	for n := range s.pages {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// Page decodes the image of page n
func (s *ImageSet) Page(n int) (image.Image, error) {
	i, ok := s.pages[n]
	if !ok {
		return nil, fmt.Errorf("%w: %s: no image for page %d", model.ErrMalformedInput, s.docID, n)
	}
	e := s.entries[i]
	return redact.Decode(bytes.NewReader(e.Data), e.Name)
}

// Replace re-encodes page n in its original format
func (s *ImageSet) Replace(n int, img image.Image) error {
	i, ok := s.pages[n]
	if !ok {
		return fmt.Errorf("%w: %s: no image for page %d", model.ErrMalformedInput, s.docID, n)
	}
	var buf bytes.Buffer
	if err := redact.Encode(&buf, img, s.entries[i].Name); err != nil {
		return err
	}
	s.entries[i].Data = buf.Bytes()
	return nil
}

// Save writes the set under outDir in the layout it was loaded from and
// returns the written path
func (s *ImageSet) Save(outDir string) (string, error) {
	if s.archived {
		target := filepath.Join(outDir, s.docID+".tar.gz")
		return target, WriteTarGz(target, commonRoot(s.entries), s.entries)
	}

	target := filepath.Join(outDir, s.docID)
	if err := os.MkdirAll(target, 0755); err != nil {
		return "", err
	}
	for _, e := range s.entries {
		dst := filepath.Join(target, path.Base(e.Name))
		if err := os.WriteFile(dst, e.Data, 0644); err != nil {
			return "", err
		}
	}
	return target, nil
}
