package store

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/ppiankov/absredact/internal/model"
)

// Entry is a regular file held in memory from a .tar.gz archive
type Entry struct {
	Name    string // slash-separated, relative
	Mode    int64
	ModTime time.Time
	Data    []byte
}

// ExtractTarGz loads every regular file of a gzip-compressed tarball
func ExtractTarGz(filePath string) ([]Entry, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", model.ErrMalformedInput, filePath, err)
	}
	defer func() { _ = gz.Close() }()

	var entries []Entry
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", model.ErrMalformedInput, filePath, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		name, err := cleanEntryName(hdr.Name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filePath, err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("read %s in %s: %w", name, filePath, err)
		}
		entries = append(entries, Entry{
			Name:    name,
			Mode:    hdr.Mode,
			ModTime: hdr.ModTime,
			Data:    data,
		})
	}
	return entries, nil
}

// WriteTarGz writes entries under a single root directory entry, the way
// document directories are bundled
func WriteTarGz(filePath string, root string, entries []Entry) (err error) {
	f, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", filePath, closeErr)
		}
	}()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	now := time.Now()

	if root != "" {
		if err := tw.WriteHeader(&tar.Header{
			Name:     root + "/",
			Typeflag: tar.TypeDir,
			Mode:     0755,
			ModTime:  now,
		}); err != nil {
			return err
		}
	}

	for _, e := range entries {
		mode, mtime := e.Mode, e.ModTime
		if mode == 0 {
			mode = 0644
		}
		if mtime.IsZero() {
			mtime = now
		}
		if err := tw.WriteHeader(&tar.Header{
			Name:     e.Name,
			Typeflag: tar.TypeReg,
			Mode:     mode,
			Size:     int64(len(e.Data)),
			ModTime:  mtime,
		}); err != nil {
			return err
		}
		if _, err := tw.Write(e.Data); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return gz.Close()
}

// commonRoot returns the top-level directory shared by every entry, or ""
func commonRoot(entries []Entry) string {
	root := ""
	for i, e := range entries {
		dir, _, found := strings.Cut(e.Name, "/")
		if !found {
			return ""
		}
		if i == 0 {
			root = dir
		} else if dir != root {
			return ""
		}
	}
	return root
}

// cleanEntryName rejects names escaping the extraction root
func cleanEntryName(name string) (string, error) {
	clean := path.Clean(strings.TrimPrefix(name, "./"))
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: unsafe archive entry %q", model.ErrMalformedInput, name)
	}
	return clean, nil
}
