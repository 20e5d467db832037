package redact

import (
	"bytes"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/absredact/internal/model"
)

func makeWords(t *testing.T, text string) []model.Word {
	t.Helper()
	var words []model.Word
	for i, f := range strings.Fields(text) {
		// one word per 10pt column on a 100x50pt page
		w, err := model.NewWord(f, i*10, 10, i*10+8, 20, 100, 50)
		require.NoError(t, err)
		words = append(words, w)
	}
	return words
}

func joined(words []model.Word) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}

func TestText(t *testing.T) {
	words := makeWords(t, "Background this is the abstract text end of page")
	span := model.Span{Start: 1, End: 5}

	out := Text(words, span)

	assert.Equal(t, "Background end of page", joined(out))
	assert.Len(t, out, len(words)-span.Len())
	assert.Len(t, words, 9, "input must not be modified")
}

func TestText_Counts(t *testing.T) {
	words := makeWords(t, "a b c d e f g h")
	for start := 0; start < len(words); start++ {
		for end := start; end < len(words); end++ {
			span := model.Span{Start: start, End: end}
			out := Text(words, span)
			assert.Equal(t, len(words)-(end-start+1), len(out))
		}
	}
}

func TestText_LineOffsets(t *testing.T) {
	// offsets of word lines in a file, one blank line at 2
	offsets := []int{0, 1, 3, 4, 5}
	out := Text(offsets, model.Span{Start: 1, End: 2})

	assert.Equal(t, []int{0, 4, 5}, out)
	assert.Equal(t, []int{0, 1, 3, 4, 5}, offsets)
}

func TestScaler_CornerRoundTrip(t *testing.T) {
	sizes := [][4]int{
		{2550, 3300, 612, 792},
		{1240, 1754, 595, 842},
		{100, 50, 100, 50},
		{333, 777, 101, 203},
	}

	for _, sz := range sizes {
		s, err := NewScaler(sz[0], sz[1], sz[2], sz[3])
		require.NoError(t, err)

		r := s.Box(model.BBox{XMin: 0, YMin: 0, XMax: sz[2], YMax: sz[3]})
		assert.Equal(t, Rect{X0: 0, Y0: 0, X1: float64(sz[0]), Y1: float64(sz[1])}, r)
	}
}

func TestScaler_InvalidPageSize(t *testing.T) {
	_, err := NewScaler(100, 100, 0, 100)
	assert.ErrorIs(t, err, model.ErrMalformedInput)
}

func TestScaler_Pixels(t *testing.T) {
	s, err := NewScaler(200, 100, 100, 50)
	require.NoError(t, err)
	bounds := image.Rect(0, 0, 200, 100)

	assert.Equal(t, 2.0, s.ScaleX())
	assert.Equal(t, 2.0, s.ScaleY())
	assert.Equal(t, image.Rect(20, 20, 36, 40), s.Pixels(model.BBox{XMin: 10, YMin: 10, XMax: 18, YMax: 20}, bounds))
	assert.Equal(t, image.Rect(20, 20, 21, 40), s.Pixels(model.BBox{XMin: 10, YMin: 10, XMax: 10, YMax: 20}, bounds))
	assert.Equal(t, bounds, s.Pixels(model.BBox{XMin: 0, YMin: 0, XMax: 100, YMax: 50}, bounds))
}

func whiteImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	return img
}

func isBlack(c color.Color) bool {
	r, g, b, a := c.RGBA()
	return r == 0 && g == 0 && b == 0 && a == 0xffff
}

func TestImage_PaintsOnlySpannedBoxes(t *testing.T) {
	words := makeWords(t, "w0 w1 w2 w3 w4")
	span := model.Span{Start: 1, End: 2}
	src := whiteImage(300, 150) // 3x scale
	orig := whiteImage(300, 150)

	out, err := Image(src, words, span, 100, 50)
	require.NoError(t, err)

	s, _ := NewScaler(300, 150, 100, 50)
	var painted []image.Rectangle
	for i := span.Start; i <= span.End; i++ {
		painted = append(painted, s.Pixels(words[i].Box, out.Bounds()))
	}

	for y := 0; y < 150; y++ {
		for x := 0; x < 300; x++ {
			p := image.Pt(x, y)
			inside := false
			for _, r := range painted {
				if p.In(r) {
					inside = true
				}
			}
			if inside {
				assert.True(t, isBlack(out.At(x, y)), "pixel %v should be black", p)
			} else if out.At(x, y) != orig.At(x, y) {
				t.Fatalf("pixel %v outside boxes changed", p)
			}
		}
	}

	// w1 spans 10..18pt horizontally, 10..20pt vertically
	assert.True(t, isBlack(out.At(45, 45)))
	assert.False(t, isBlack(out.At(5, 45)))
}

func TestImage_ConvertsImmutableImages(t *testing.T) {
	words := makeWords(t, "w0 w1 w2")
	src := image.NewYCbCr(image.Rect(0, 0, 100, 50), image.YCbCrSubsampleRatio444)

	out, err := Image(src, words, model.Span{Start: 0, End: 0}, 100, 50)
	require.NoError(t, err)
	assert.IsType(t, &image.RGBA{}, out)
	assert.True(t, isBlack(out.At(2, 12)))
}

func TestImage_InvalidSpan(t *testing.T) {
	words := makeWords(t, "w0 w1")
	_, err := Image(whiteImage(10, 10), words, model.Span{Start: 1, End: 2}, 100, 50)
	assert.ErrorIs(t, err, model.ErrMalformedInput)
}

func TestCodec_RoundTrip(t *testing.T) {
	img := whiteImage(8, 4)
	img.Set(1, 1, color.Black)

	for _, name := range []string{"p-1.png", "p-1.tiff", "p-1.bmp"} {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, img, name))

			got, err := Decode(&buf, name)
			require.NoError(t, err)
			assert.Equal(t, img.Bounds(), got.Bounds())
			assert.True(t, isBlack(got.At(1, 1)))
		})
	}
}

func TestCodec_Unsupported(t *testing.T) {
	_, err := Decode(bytes.NewReader(nil), "page.gif")
	assert.Error(t, err)
	assert.Error(t, Encode(&bytes.Buffer{}, whiteImage(1, 1), "page.webp"))
	assert.True(t, IsImage("doc-1.JPG"))
	assert.False(t, IsImage("doc-1.txt"))
}
