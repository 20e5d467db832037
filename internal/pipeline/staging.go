package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// staging holds a document's outputs until every one of them is written.
// Staging directories live inside the output directories so the final
// rename stays on one filesystem.
type staging struct {
	textDir, textOut   string
	imageDir, imageOut string
}

func newStaging(textOut, imageOut string) (*staging, error) {
	st := &staging{textOut: textOut, imageOut: imageOut}

	if err := os.MkdirAll(textOut, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	dir, err := os.MkdirTemp(textOut, ".staging-")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	st.textDir = dir

	if imageOut != "" {
		if err := os.MkdirAll(imageOut, 0755); err != nil {
			st.cleanup()
			return nil, fmt.Errorf("create output dir: %w", err)
		}
		dir, err := os.MkdirTemp(imageOut, ".staging-")
		if err != nil {
			st.cleanup()
			return nil, fmt.Errorf("create staging dir: %w", err)
		}
		st.imageDir = dir
	}
	return st, nil
}

// commit moves staged images first, then the text, into place. Images
// already moved are removed again when a later move fails.
func (s *staging) commit() error {
	var moved []string
	if s.imageDir != "" {
		var err error
		moved, err = moveAll(s.imageDir, s.imageOut)
		if err != nil {
			removeAll(moved)
			return err
		}
	}
	if _, err := moveAll(s.textDir, s.textOut); err != nil {
		removeAll(moved)
		return err
	}
	return nil
}

func (s *staging) cleanup() {
	for _, dir := range []string{s.textDir, s.imageDir} {
		if dir != "" {
			_ = os.RemoveAll(dir)
		}
	}
}

// moveAll renames every entry of src into dst, replacing what is there,
// and returns the targets it moved
func moveAll(src, dst string) ([]string, error) {
	entries, err := os.ReadDir(src)
	if err != nil {
		return nil, err
	}
	var moved []string
	for _, e := range entries {
		target := filepath.Join(dst, e.Name())
		if e.IsDir() {
			if err := os.RemoveAll(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return moved, fmt.Errorf("replace %s: %w", target, err)
			}
		}
		if err := os.Rename(filepath.Join(src, e.Name()), target); err != nil {
			return moved, fmt.Errorf("commit %s: %w", target, err)
		}
		moved = append(moved, target)
	}
	return moved, nil
}

func removeAll(paths []string) {
	for _, p := range paths {
		_ = os.RemoveAll(p)
	}
}
