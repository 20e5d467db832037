package redact

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// JPEGQuality is used when re-encoding redacted JPEG pages
const JPEGQuality = 95

// Decode reads a page image; the format is taken from the file name
func Decode(r io.Reader, name string) (image.Image, error) {
	var (
		img image.Image
		err error
	)

	switch ext(name) {
	case "jpg", "jpeg":
		img, err = jpeg.Decode(r)
	case "png":
		img, err = png.Decode(r)
	case "tif", "tiff":
		img, err = tiff.Decode(r)
	case "bmp":
		img, err = bmp.Decode(r)
	case "webp":
		img, err = webp.Decode(r)
	default:
		return nil, fmt.Errorf("unsupported image format: %s", name)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return img, nil
}

// Encode writes a page image in the format named by the file extension
func Encode(w io.Writer, img image.Image, name string) error {
	var err error
	switch ext(name) {
	case "jpg", "jpeg":
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: JPEGQuality})
	case "png":
		err = png.Encode(w, img)
	case "tif", "tiff":
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case "bmp":
		err = bmp.Encode(w, img)
	default:
		return fmt.Errorf("unsupported output format: %s", name)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return nil
}

// IsImage reports whether name has a decodable image extension
func IsImage(name string) bool {
	switch ext(name) {
	case "jpg", "jpeg", "png", "tif", "tiff", "bmp", "webp":
		return true
	}
	return false
}

func ext(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}
