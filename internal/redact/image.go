package redact

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/ppiankov/absredact/internal/model"
)

// Rect is a rectangle in image pixel space, possibly fractional
type Rect struct {
	X0, Y0, X1, Y1 float64
}

// Scaler maps PDF point coordinates onto image pixels. The renderer may use
// any DPI, so the ratio is computed per page and per axis.
type Scaler struct {
	imgWidth, imgHeight int
	pdfWidth, pdfHeight int
}

// NewScaler computes the scale from a PDF page size to an image size
func NewScaler(imgWidth, imgHeight, pdfWidth, pdfHeight int) (Scaler, error) {
	if pdfWidth <= 0 || pdfHeight <= 0 {
		return Scaler{}, fmt.Errorf("%w: page size %dx%d", model.ErrMalformedInput, pdfWidth, pdfHeight)
	}
	return Scaler{
		imgWidth:  imgWidth,
		imgHeight: imgHeight,
		pdfWidth:  pdfWidth,
		pdfHeight: pdfHeight,
	}, nil
}

// ScaleX is the horizontal pixels-per-point ratio
func (s Scaler) ScaleX() float64 {
	return float64(s.imgWidth) / float64(s.pdfWidth)
}

// ScaleY is the vertical pixels-per-point ratio
func (s Scaler) ScaleY() float64 {
	return float64(s.imgHeight) / float64(s.pdfHeight)
}

// Box rescales a bounding box corner by corner. Products are taken before
// the division so that page corners land exactly on image corners.
func (s Scaler) Box(b model.BBox) Rect {
	return Rect{
		X0: float64(b.XMin*s.imgWidth) / float64(s.pdfWidth),
		Y0: float64(b.YMin*s.imgHeight) / float64(s.pdfHeight),
		X1: float64(b.XMax*s.imgWidth) / float64(s.pdfWidth),
		Y1: float64(b.YMax*s.imgHeight) / float64(s.pdfHeight),
	}
}

// Pixels returns the pixels touched by the rescaled box, clipped to bounds.
// Boxes with no area still cover one pixel row or column.
func (s Scaler) Pixels(b model.BBox, bounds image.Rectangle) image.Rectangle {
	r := s.Box(b)
	px := image.Rect(
		int(math.Floor(r.X0)), int(math.Floor(r.Y0)),
		int(math.Ceil(r.X1)), int(math.Ceil(r.Y1)),
	)
	if px.Dx() == 0 {
		px.Max.X++
	}
	if px.Dy() == 0 {
		px.Max.Y++
	}
	return px.Add(bounds.Min).Intersect(bounds)
}

// Image paints an opaque black block over every word of span. img is drawn
// on in place when it is mutable; otherwise a mutable copy is returned.
func Image(img image.Image, words []model.Word, span model.Span, pdfWidth, pdfHeight int) (draw.Image, error) {
	if !span.Valid(len(words)) {
		return nil, fmt.Errorf("%w: span %d-%d outside %d words", model.ErrMalformedInput, span.Start, span.End, len(words))
	}

	bounds := img.Bounds()
	scaler, err := NewScaler(bounds.Dx(), bounds.Dy(), pdfWidth, pdfHeight)
	if err != nil {
		return nil, err
	}

	dst := Mutable(img)
	black := image.NewUniform(color.Black)
	for i := span.Start; i <= span.End; i++ {
		r := scaler.Pixels(words[i].Box, dst.Bounds())
		draw.Draw(dst, r, black, image.Point{}, draw.Src)
	}
	return dst, nil
}

// Mutable returns img itself if it can be drawn on, or an RGBA copy
func Mutable(img image.Image) draw.Image {
	switch m := img.(type) {
	case *image.RGBA:
		return m
	case *image.NRGBA:
		return m
	case *image.Gray:
		return m
	case *image.RGBA64:
		return m
	case *image.NRGBA64:
		return m
	case *image.Gray16:
		return m
	case *image.CMYK:
		return m
	}

	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	return dst
}
