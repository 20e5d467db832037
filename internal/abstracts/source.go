// Package abstracts looks up the abstract text of a document, from local
// files or from the HAL search API.
package abstracts

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ppiankov/absredact/internal/model"
)

// Source returns the abstracts to remove from a document. An empty result
// with a nil error means there is nothing to remove.
type Source interface {
	Abstracts(ctx context.Context, docID string) ([]string, error)
}

// FileSource reads one abstract per document from {dir}/{id}.txt
type FileSource struct {
	Dir string
}

// NewFileSource creates a file source rooted at dir
func NewFileSource(dir string) *FileSource {
	return &FileSource{Dir: dir}
}

// Abstracts returns the file's lines joined with single spaces
func (s *FileSource) Abstracts(_ context.Context, docID string) ([]string, error) {
	path := filepath.Join(s.Dir, docID+".txt")
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: no abstract file for %s", model.ErrMalformedInput, docID)
	}
	if err != nil {
		return nil, fmt.Errorf("read abstract: %w", err)
	}

	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: empty abstract file for %s", model.ErrMalformedInput, docID)
	}
	return []string{strings.Join(lines, " ")}, nil
}

// JSONLSource serves other-language abstracts from a JSON Lines export,
// one {"id": ..., "abstract": [...]} object per line. The file is read on
// first use.
type JSONLSource struct {
	Path string

	once    sync.Once
	loadErr error
	byID    map[string][]string
}

type jsonlRecord struct {
	ID       string   `json:"id"`
	Abstract []string `json:"abstract"`
}

// NewJSONLSource creates a source over the export at path
func NewJSONLSource(path string) *JSONLSource {
	return &JSONLSource{Path: path}
}

// Abstracts returns the recorded abstracts of docID with newlines removed
func (s *JSONLSource) Abstracts(_ context.Context, docID string) ([]string, error) {
	s.once.Do(func() { s.loadErr = s.load() })
	if s.loadErr != nil {
		return nil, s.loadErr
	}

	abstracts, ok := s.byID[docID]
	if !ok {
		return nil, fmt.Errorf("%w: %s not in %s", model.ErrMalformedInput, docID, s.Path)
	}
	return abstracts, nil
}

func (s *JSONLSource) load() error {
	f, err := os.Open(s.Path)
	if err != nil {
		return fmt.Errorf("open abstracts: %w", err)
	}
	defer func() { _ = f.Close() }()

	s.byID = make(map[string][]string)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16<<20)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var rec jsonlRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return fmt.Errorf("%w: %s line %d: %v", model.ErrMalformedInput, s.Path, lineNo, err)
		}
		s.byID[rec.ID] = append(s.byID[rec.ID], cleanAbstracts(rec.Abstract)...)
	}
	return sc.Err()
}

// cleanAbstracts removes newlines and drops empty entries
func cleanAbstracts(in []string) []string {
	out := make([]string, 0, len(in))
	for _, a := range in {
		a = strings.ReplaceAll(a, "\r", "")
		a = strings.ReplaceAll(a, "\n", "")
		if strings.TrimSpace(a) != "" {
			out = append(out, a)
		}
	}
	return out
}
