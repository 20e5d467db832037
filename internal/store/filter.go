package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// FilterResult summarizes a FilterByLength run
type FilterResult struct {
	Scanned int
	Copied  []string
	Skipped []string // unreadable or unknown layout
}

// FilterByLength copies documents from inDir to outDir whose word count
// lies in [lower, upper]. A negative upper bound is unbounded.
func FilterByLength(registry *Registry, inDir, outDir string, lower, upper int) (*FilterResult, error) {
	files, err := os.ReadDir(inDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		if !f.IsDir() {
			names = append(names, f.Name())
		}
	}
	sort.Strings(names)

	res := &FilterResult{}
	for _, name := range names {
		layout := registry.Find(name)
		if layout == nil {
			continue
		}
		res.Scanned++

		src := filepath.Join(inDir, name)
		doc, err := layout.Load(src)
		if err != nil {
			res.Skipped = append(res.Skipped, name)
			continue
		}

		n := doc.WordCount()
		if n < lower || (upper >= 0 && n > upper) {
			continue
		}
		if err := CopyFile(src, filepath.Join(outDir, name)); err != nil {
			return res, fmt.Errorf("copy %s: %w", name, err)
		}
		res.Copied = append(res.Copied, name)
	}
	return res, nil
}

// CopyFile copies src to dst, replacing dst
func CopyFile(src, dst string) (err error) {
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

	_, err = io.Copy(out, in)
	return err
}

