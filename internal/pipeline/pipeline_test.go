package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/absredact/internal/abstracts"
	"github.com/ppiankov/absredact/internal/ledger"
	"github.com/ppiankov/absredact/internal/locate"
	"github.com/ppiankov/absredact/internal/model"
	"github.com/ppiankov/absredact/internal/store"
)

// Pages are 100x80pt with words on a 10pt grid; images render at 2x.
const (
	pageW, pageH = 100, 80
	imgScale     = 2
)

type fixture struct {
	cfg *model.Config
	led *ledger.FileLedger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	cfg := model.DefaultConfig()
	cfg.Paths = model.PathsConfig{
		TextDir:        filepath.Join(root, "text"),
		AbstractDir:    filepath.Join(root, "abstracts"),
		ImageDir:       filepath.Join(root, "img"),
		OutputTextDir:  filepath.Join(root, "out-text"),
		OutputImageDir: filepath.Join(root, "out-img"),
	}
	cfg.Ledger = model.LedgerConfig{
		FoundLog:  filepath.Join(root, "found.log"),
		FailedLog: filepath.Join(root, "failed.log"),
	}
	for _, d := range []string{cfg.Paths.TextDir, cfg.Paths.AbstractDir, cfg.Paths.ImageDir} {
		require.NoError(t, os.MkdirAll(d, 0755))
	}

	led, err := ledger.Open(cfg.Ledger.FoundLog, cfg.Ledger.FailedLog)
	require.NoError(t, err)
	return &fixture{cfg: cfg, led: led}
}

func buildPage(t *testing.T, number int, text string) model.Page {
	t.Helper()
	page := model.Page{Number: number, Width: pageW, Height: pageH}
	for i, f := range strings.Fields(text) {
		x, y := (i%10)*10, (i/10)*10
		w, err := model.NewWord(f, x, y, x+8, y+8, pageW, pageH)
		require.NoError(t, err)
		page.Words = append(page.Words, w)
	}
	return page
}

// addDoc writes a document, its abstract and its page images
func (f *fixture) addDoc(t *testing.T, id, abstract string, pages ...string) *model.Document {
	t.Helper()
	doc := &model.Document{ID: id}
	for i, text := range pages {
		doc.Pages = append(doc.Pages, buildPage(t, i+1, text))
	}
	require.NoError(t, store.NewDocFileLayout().Save(doc, filepath.Join(f.cfg.Paths.TextDir, id+".txt")))

	if abstract != "" {
		require.NoError(t, os.WriteFile(filepath.Join(f.cfg.Paths.AbstractDir, id+".txt"), []byte(abstract+"\n"), 0644))
	}

	if f.cfg.Paths.ImageDir == "" {
		return doc
	}
	var entries []store.Entry
	for _, p := range doc.Pages {
		entries = append(entries, store.Entry{
			Name: fmt.Sprintf("%s/%s-%d.png", id, id, p.Number),
			Data: whitePNG(t, pageW*imgScale, pageH*imgScale),
		})
	}
	require.NoError(t, store.WriteTarGz(filepath.Join(f.cfg.Paths.ImageDir, id+".tar.gz"), id, entries))
	return doc
}

func whitePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func (f *fixture) pipeline(src abstracts.Source) *Pipeline {
	if src == nil {
		src = abstracts.NewFileSource(f.cfg.Paths.AbstractDir)
	}
	return NewPipeline(f.cfg, src, f.led, zerolog.Nop())
}

func readOutput(t *testing.T, path, id string) *model.Document {
	t.Helper()
	doc, err := store.NewDocFileLayout().Load(filepath.Join(path, id+".txt"))
	require.NoError(t, err)
	return doc
}

func isBlack(c color.Color) bool {
	r, g, b, a := c.RGBA()
	return r == 0 && g == 0 && b == 0 && a == 0xffff
}

const abstractText = "We propose a new method for removing abstracts from scanned papers"

func TestProcessDocument_Found(t *testing.T) {
	f := newFixture(t)
	f.addDoc(t, "hal-1", abstractText,
		"Title of the paper. "+abstractText+" Keywords: redaction",
		"Introduction body text continues here",
		"References and closing remarks",
	)

	res := f.pipeline(nil).ProcessDocument(context.Background(), "hal-1.txt")
	require.NoError(t, res.GetError())
	assert.Equal(t, model.OutcomeFound, res.Outcome)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, 1, res.Matches[0].Page)
	assert.Equal(t, model.TierExact, res.Matches[0].Tier)
	assert.Equal(t, model.Span{Start: 4, End: 14}, res.Matches[0].Span)

	out := readOutput(t, f.cfg.Paths.OutputTextDir, "hal-1")
	assert.Equal(t, "Title of the paper. Keywords: redaction", out.Pages[0].Text())
	assert.Equal(t, "Introduction body text continues here", out.Pages[1].Text())

	set, err := store.NewImageStore(f.cfg.Paths.OutputImageDir).Load("hal-1")
	require.NoError(t, err)
	img, err := set.Page(1)
	require.NoError(t, err)
	// word 4 sits at (40,0)-(48,8)pt, word 0 is kept
	assert.True(t, isBlack(img.At(42*imgScale, 4*imgScale)))
	assert.False(t, isBlack(img.At(2*imgScale, 4*imgScale)))
	page2, err := set.Page(2)
	require.NoError(t, err)
	assert.False(t, isBlack(page2.At(2, 2)))

	assert.True(t, f.led.IsProcessed("hal-1"))
	found, err := os.ReadFile(f.cfg.Ledger.FoundLog)
	require.NoError(t, err)
	assert.Equal(t, "hal-1\n", string(found))

	leftovers, _ := filepath.Glob(filepath.Join(f.cfg.Paths.OutputTextDir, ".staging-*"))
	assert.Empty(t, leftovers)
}

func TestProcessDocument_NotFoundWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.addDoc(t, "hal-2", "zzzz qqqq xxxx jjjj kkkk vvvv wwww",
		"Title of the paper and an unrelated introduction",
		"Body text continues here",
	)
	src := filepath.Join(f.cfg.Paths.TextDir, "hal-2.txt")
	before, err := os.ReadFile(src)
	require.NoError(t, err)

	res := f.pipeline(nil).ProcessDocument(context.Background(), "hal-2.txt")
	assert.Equal(t, model.OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.GetError(), model.ErrNoMatch)

	assert.NoFileExists(t, filepath.Join(f.cfg.Paths.OutputTextDir, "hal-2.txt"))
	assert.NoFileExists(t, filepath.Join(f.cfg.Paths.OutputImageDir, "hal-2.tar.gz"))
	after, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	assert.True(t, f.led.IsProcessed("hal-2"))
	failed, err := os.ReadFile(f.cfg.Ledger.FailedLog)
	require.NoError(t, err)
	assert.Equal(t, "hal-2\n", string(failed))
}

func TestProcessDocument_MissingImagesFails(t *testing.T) {
	f := newFixture(t)
	f.addDoc(t, "hal-3", abstractText, abstractText+" and more text after it")
	require.NoError(t, os.Remove(filepath.Join(f.cfg.Paths.ImageDir, "hal-3.tar.gz")))

	res := f.pipeline(nil).ProcessDocument(context.Background(), "hal-3.txt")
	assert.Equal(t, model.OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.GetError(), model.ErrMalformedInput)
	assert.NoFileExists(t, filepath.Join(f.cfg.Paths.OutputTextDir, "hal-3.txt"))
}

func TestProcessDocument_TextOnly(t *testing.T) {
	f := newFixture(t)
	f.cfg.Paths.ImageDir = ""
	f.addDoc(t, "hal-4", "new method for removing", "A new method for removing abstracts is shown")

	res := f.pipeline(nil).ProcessDocument(context.Background(), "hal-4.txt")
	require.NoError(t, res.GetError())
	assert.Equal(t, "A abstracts is shown", readOutput(t, f.cfg.Paths.OutputTextDir, "hal-4").Pages[0].Text())
	assert.NoDirExists(t, f.cfg.Paths.OutputImageDir)
}

func TestProcessDocument_BelowThresholdSkipped(t *testing.T) {
	f := newFixture(t)
	f.cfg.Match.AbstractThresh = 20
	f.addDoc(t, "hal-5", abstractText, abstractText+" trailing words here")

	res := f.pipeline(nil).ProcessDocument(context.Background(), "hal-5.txt")
	assert.Equal(t, model.OutcomeSkipped, res.Outcome)
	assert.NoError(t, res.GetError())
	assert.False(t, f.led.IsProcessed("hal-5"))
	assert.NoFileExists(t, filepath.Join(f.cfg.Paths.OutputTextDir, "hal-5.txt"))
}

func TestProcessDocument_MissingAbstract(t *testing.T) {
	f := newFixture(t)
	f.addDoc(t, "hal-6", "", "Some page text without any abstract file")

	res := f.pipeline(nil).ProcessDocument(context.Background(), "hal-6.txt")
	assert.Equal(t, model.OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.GetError(), model.ErrMalformedInput)
}

type staticSource map[string][]string

func (s staticSource) Abstracts(_ context.Context, id string) ([]string, error) {
	abs, ok := s[id]
	if !ok {
		return nil, fmt.Errorf("lookup %s: %w", id, errors.New("connection refused"))
	}
	return abs, nil
}

func TestProcessDocument_MultiAbstract(t *testing.T) {
	f := newFixture(t)
	f.cfg.Match.OtherLanguages = true
	f.addDoc(t, "hal-7", "",
		"English abstract stays here. Nous proposons une nouvelle methode ici",
		"Body of the paper",
		"kwyjibo zyzzyva quixotic jukebox Fin",
	)
	src := staticSource{"hal-7": {
		"nous proposons une nouvelle methode",
		"kwyjibo zyzzyva quixotic jukebox",
	}}

	res := f.pipeline(src).ProcessDocument(context.Background(), "hal-7.txt")
	require.NoError(t, res.GetError())
	require.Len(t, res.Matches, 2)

	out := readOutput(t, f.cfg.Paths.OutputTextDir, "hal-7")
	assert.Equal(t, "English abstract stays here. ici", out.Pages[0].Text())
	assert.Equal(t, "Fin", out.Pages[2].Text())
}

func TestProcessDocument_MultiAbstractPartial(t *testing.T) {
	f := newFixture(t)
	f.cfg.Match.OtherLanguages = true
	f.addDoc(t, "hal-8", "", "Nous proposons une nouvelle methode ici", "Body")
	src := staticSource{"hal-8": {
		"nous proposons une nouvelle methode",
		"zzzz qqqq xxxx jjjj kkkk vvvv wwww",
	}}

	res := f.pipeline(src).ProcessDocument(context.Background(), "hal-8.txt")
	assert.Equal(t, model.OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.GetError(), model.ErrPartialMultiAbstract)
	assert.NoFileExists(t, filepath.Join(f.cfg.Paths.OutputTextDir, "hal-8.txt"))
}

func TestProcessDocument_MultiAbstractOnlyMainCopies(t *testing.T) {
	f := newFixture(t)
	f.cfg.Match.OtherLanguages = true
	f.addDoc(t, "hal-9", "", "Only the english abstract here", "Body")
	src := staticSource{"hal-9": nil}

	res := f.pipeline(src).ProcessDocument(context.Background(), "hal-9.txt")
	require.NoError(t, res.GetError())
	assert.Equal(t, model.OutcomeFound, res.Outcome)

	in, err := os.ReadFile(filepath.Join(f.cfg.Paths.TextDir, "hal-9.txt"))
	require.NoError(t, err)
	out, err := os.ReadFile(filepath.Join(f.cfg.Paths.OutputTextDir, "hal-9.txt"))
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.FileExists(t, filepath.Join(f.cfg.Paths.OutputImageDir, "hal-9.tar.gz"))
}

func TestProcessDocument_LookupErrorNotLedgered(t *testing.T) {
	f := newFixture(t)
	f.cfg.Match.OtherLanguages = true
	f.addDoc(t, "hal-10", "", "Some text", "Body")

	res := f.pipeline(staticSource{}).ProcessDocument(context.Background(), "hal-10.txt")
	assert.Equal(t, model.OutcomeSkipped, res.Outcome)
	assert.Error(t, res.GetError())
	assert.False(t, f.led.IsProcessed("hal-10"))
}

func TestRun_ResumeAndLimit(t *testing.T) {
	f := newFixture(t)
	f.cfg.Paths.ImageDir = ""
	for i := 1; i <= 4; i++ {
		id := fmt.Sprintf("doc-%d", i)
		f.addDoc(t, id, abstractText, "Heading "+abstractText+" tail")
	}
	require.NoError(t, f.led.MarkProcessed("doc-1", model.OutcomeFound))

	f.cfg.Output.Resume = true
	f.cfg.Output.Limit = 2
	f.cfg.Concurrency.Workers = 2
	p := f.pipeline(nil)

	planned, err := p.Plan(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-2.txt", "doc-3.txt"}, planned)

	report, err := p.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, p.RunID(), report.RunID)
	assert.Equal(t, 2, report.Found)
	require.Len(t, report.Documents, 2)
	assert.Equal(t, "doc-2", report.Documents[0].DocID)
	assert.Equal(t, "doc-3", report.Documents[1].DocID)
	assert.NoFileExists(t, filepath.Join(f.cfg.Paths.OutputTextDir, "doc-4.txt"))

	reportPath := filepath.Join(t.TempDir(), "reports", "run.json")
	require.NoError(t, WriteReport(report, reportPath))
	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run_id": "`+p.RunID()+`"`)
}

func TestRun_Cancelled(t *testing.T) {
	f := newFixture(t)
	f.addDoc(t, "doc-1", abstractText, abstractText+" tail")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := f.pipeline(nil).Run(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, report.Found)
	assert.False(t, f.led.IsProcessed("doc-1"))
}

func TestMergeSpans(t *testing.T) {
	got := mergeSpans([]model.Span{{Start: 10, End: 12}, {Start: 0, End: 3}, {Start: 4, End: 5}, {Start: 11, End: 20}})
	assert.Equal(t, []model.Span{{Start: 0, End: 5}, {Start: 10, End: 20}}, got)

	byPage := spansByPage([]locate.PageMatch{
		{Page: 3, Match: locate.Match{Span: model.Span{Start: 5, End: 6}}},
		{Page: 1, Match: locate.Match{Span: model.Span{Start: 0, End: 1}}},
		{Page: 3, Match: locate.Match{Span: model.Span{Start: 0, End: 1}}},
	})
	assert.Equal(t, []model.Span{{Start: 0, End: 1}, {Start: 5, End: 6}}, byPage[3])
	assert.Len(t, byPage[1], 1)
}

func TestProcessDocument_KeepsUntouchedLines(t *testing.T) {
	f := newFixture(t)
	f.cfg.Paths.ImageDir = ""
	f.addDoc(t, "hal-7", abstractText,
		"Title of the paper. "+abstractText+" Keywords: redaction",
		"Body text continues here",
	)
	src := filepath.Join(f.cfg.Paths.TextDir, "hal-7.txt")
	// lines a reader would normalize: clamped box, swapped corners,
	// decimals, a blank word
	extra := "Footer\t650\t70\t90.6\t75.4\t100\t80\t2\n" +
		" \t1\t1\t2\t2\t100\t80\t2\n"
	in, err := os.OpenFile(src, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = in.WriteString(extra)
	require.NoError(t, err)
	require.NoError(t, in.Close())
	before, err := os.ReadFile(src)
	require.NoError(t, err)

	res := f.pipeline(nil).ProcessDocument(context.Background(), "hal-7.txt")
	require.NoError(t, res.GetError())
	require.Equal(t, model.Span{Start: 4, End: 14}, res.Matches[0].Span)

	// page 1 is written first, one word per line
	lines := strings.SplitAfter(string(before), "\n")
	want := strings.Join(append(lines[:4:4], lines[15:]...), "")
	got, err := os.ReadFile(filepath.Join(f.cfg.Paths.OutputTextDir, "hal-7.txt"))
	require.NoError(t, err)
	assert.Equal(t, want, string(got))
	assert.True(t, strings.HasSuffix(string(got), extra))
}

func TestStagingCommit_RollsBackImages(t *testing.T) {
	root := t.TempDir()
	textOut, imageOut := filepath.Join(root, "text"), filepath.Join(root, "img")
	st, err := newStaging(textOut, imageOut)
	require.NoError(t, err)
	defer st.cleanup()

	require.NoError(t, os.WriteFile(filepath.Join(st.imageDir, "d.tar.gz"), []byte("img"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(st.textDir, "d.txt"), []byte("text"), 0644))
	// a non-empty directory where the text goes makes the last rename fail
	require.NoError(t, os.MkdirAll(filepath.Join(textOut, "d.txt", "x"), 0755))

	assert.Error(t, st.commit())
	assert.NoFileExists(t, filepath.Join(imageOut, "d.tar.gz"))
}
