package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ppiankov/absredact/internal/abstracts"
	"github.com/ppiankov/absredact/internal/ledger"
	"github.com/ppiankov/absredact/internal/locate"
	"github.com/ppiankov/absredact/internal/model"
	"github.com/ppiankov/absredact/internal/redact"
	"github.com/ppiankov/absredact/internal/store"
	"github.com/ppiankov/absredact/internal/worker"
)

// Pipeline removes abstracts from a corpus, one document at a time
type Pipeline struct {
	registry *store.Registry
	source   abstracts.Source
	scanner  *locate.PageScanner
	images   *store.ImageStore // nil when no images are redacted
	ledger   ledger.Ledger
	config   *model.Config
	runID    string
	log      zerolog.Logger
}

// NewPipeline wires a pipeline from cfg. source supplies the abstracts and
// led records finished documents.
func NewPipeline(cfg *model.Config, source abstracts.Source, led ledger.Ledger, log zerolog.Logger) *Pipeline {
	normalizer := locate.Normalizer{CaseSensitive: cfg.Match.CaseSensitive}
	locator := locate.NewLocator(cfg.Match.MaxEdits, cfg.Match.ApproxEdits)

	var images *store.ImageStore
	if cfg.Paths.ImageDir != "" {
		images = store.NewImageStore(cfg.Paths.ImageDir)
	}

	runID := uuid.NewString()
	return &Pipeline{
		registry: store.NewRegistry(),
		source:   source,
		scanner:  locate.NewPageScanner(locator, normalizer),
		images:   images,
		ledger:   led,
		config:   cfg,
		runID:    runID,
		log:      log.With().Str("run_id", runID).Logger(),
	}
}

// RunID identifies this pipeline's run in logs and reports
func (p *Pipeline) RunID() string {
	return p.runID
}

// ListDocuments returns the input files of dir that a layout can read,
// sorted by name
func ListDocuments(registry *store.Registry, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if registry.Find(e.Name()) != nil {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Plan lists the documents a run will process: every input (or names, when
// given), minus those in the ledger when resuming, truncated to the limit
func (p *Pipeline) Plan(names []string) ([]string, error) {
	if names == nil {
		var err error
		names, err = ListDocuments(p.registry, p.config.Paths.TextDir)
		if err != nil {
			return nil, err
		}
	}

	if p.config.Output.Resume {
		pending := names[:0:0]
		for _, name := range names {
			l := p.registry.Find(name)
			if l != nil && p.ledger.IsProcessed(l.DocID(name)) {
				continue
			}
			pending = append(pending, name)
		}
		p.log.Info().Int("done", len(names)-len(pending)).Int("pending", len(pending)).Msg("resuming")
		names = pending
	}

	if limit := p.config.Output.Limit; limit > 0 && len(names) > limit {
		names = names[:limit]
	}
	return names, nil
}

// Run plans and processes a batch on the configured number of workers
func (p *Pipeline) Run(ctx context.Context, names []string) (*model.RunReport, error) {
	report := &model.RunReport{
		RunID:     p.runID,
		StartedAt: time.Now().UTC(),
	}

	planned, err := p.Plan(names)
	if err != nil {
		return nil, err
	}
	p.log.Info().Int("documents", len(planned)).Int("workers", p.config.Concurrency.Workers).Msg("run started")

	batch := worker.NewBatchProcessor(p, p.config.Concurrency.Workers)
	for _, res := range batch.ProcessDocuments(ctx, planned) {
		report.Add(*res)
	}
	report.FinishedAt = time.Now().UTC()

	p.log.Info().
		Int("found", report.Found).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Dur("elapsed", report.FinishedAt.Sub(report.StartedAt)).
		Msg("run finished")

	return report, ctx.Err()
}

// ProcessDocument redacts one input file. Outputs appear only if the whole
// document succeeds; the input is never modified.
func (p *Pipeline) ProcessDocument(ctx context.Context, name string) *model.DocResult {
	layout := p.registry.Find(name)
	if layout == nil {
		err := fmt.Errorf("%w: no layout for %s", model.ErrMalformedInput, name)
		return p.finish(&model.DocResult{DocID: name}, model.OutcomeFailed, err)
	}
	res := &model.DocResult{DocID: layout.DocID(name)}

	if err := ctx.Err(); err != nil {
		return p.finish(res, model.OutcomeSkipped, err)
	}

	doc, err := layout.Load(filepath.Join(p.config.Paths.TextDir, name))
	if err != nil {
		return p.finish(res, model.OutcomeFailed, err)
	}

	abs, err := p.source.Abstracts(ctx, res.DocID)
	if err != nil {
		if errors.Is(err, model.ErrMalformedInput) {
			return p.finish(res, model.OutcomeFailed, err)
		}
		// transient lookup failure: left out of the ledger so a resumed run
		// tries again
		return p.finish(res, model.OutcomeSkipped, err)
	}

	var matches []locate.PageMatch
	switch {
	case p.config.Match.OtherLanguages:
		if len(abs) == 0 {
			if err := p.passThrough(layout, name, doc.ID); err != nil {
				return p.finish(res, model.OutcomeFailed, err)
			}
			return p.finish(res, model.OutcomeFound, nil)
		}
		matches, err = p.scanner.ScanAll(doc, abs)

	default:
		if len(abs) == 0 {
			err = fmt.Errorf("%w: no abstract for %s", model.ErrMalformedInput, doc.ID)
			break
		}
		if thresh := p.config.Match.AbstractThresh; thresh > 0 {
			if n := len(strings.Fields(abs[0])); n < thresh {
				p.log.Info().Str("doc_id", doc.ID).Int("abstract_words", n).Int("thresh", thresh).Msg("abstract below threshold")
				return p.finish(res, model.OutcomeSkipped, nil)
			}
		}
		var pm locate.PageMatch
		pm, err = p.scanner.Scan(doc, abs[0])
		matches = []locate.PageMatch{pm}
	}
	if err != nil {
		return p.finish(res, model.OutcomeFailed, err)
	}

	for _, m := range matches {
		res.Matches = append(res.Matches, model.MatchEntry{
			Page:     m.Page,
			Span:     m.Span,
			Tier:     m.Tier,
			Distance: m.Distance,
		})
	}

	if err := p.write(layout, name, doc, matches); err != nil {
		return p.finish(res, model.OutcomeFailed, err)
	}
	return p.finish(res, model.OutcomeFound, nil)
}

// write redacts doc into staging directories and commits the outputs. The
// text is rewritten from the input file so untouched lines keep their bytes.
func (p *Pipeline) write(layout store.Layout, name string, doc *model.Document, matches []locate.PageMatch) error {
	spans := spansByPage(matches)

	var imgSet *store.ImageSet
	if p.images != nil {
		set, err := p.images.Load(doc.ID)
		if err != nil {
			return err
		}
		for number, pageSpans := range spans {
			if err := redactImagePage(set, doc.Page(number), pageSpans); err != nil {
				return err
			}
		}
		imgSet = set
	}

	st, err := newStaging(p.config.Paths.OutputTextDir, p.outputImageDir())
	if err != nil {
		return err
	}
	defer st.cleanup()

	textName := filepath.Base(p.outputName(layout, doc.ID))
	src := filepath.Join(p.config.Paths.TextDir, name)
	if err := layout.Rewrite(src, filepath.Join(st.textDir, textName), spans); err != nil {
		return fmt.Errorf("write text: %w", err)
	}
	if imgSet != nil {
		if _, err := imgSet.Save(st.imageDir); err != nil {
			return fmt.Errorf("write images: %w", err)
		}
	}
	return st.commit()
}

// passThrough copies a document with nothing to remove
func (p *Pipeline) passThrough(layout store.Layout, name, docID string) error {
	st, err := newStaging(p.config.Paths.OutputTextDir, p.outputImageDir())
	if err != nil {
		return err
	}
	defer st.cleanup()

	src := filepath.Join(p.config.Paths.TextDir, name)
	if err := store.CopyFile(src, filepath.Join(st.textDir, filepath.Base(p.outputName(layout, docID)))); err != nil {
		return fmt.Errorf("copy text: %w", err)
	}
	if p.images != nil {
		set, err := p.images.Load(docID)
		if err != nil {
			return err
		}
		if _, err := set.Save(st.imageDir); err != nil {
			return fmt.Errorf("copy images: %w", err)
		}
	}
	return st.commit()
}

func (p *Pipeline) outputName(layout store.Layout, docID string) string {
	if _, ok := layout.(*store.PageTarLayout); ok {
		return docID + ".tar.gz"
	}
	return docID + ".txt"
}

func (p *Pipeline) outputImageDir() string {
	if p.images == nil {
		return ""
	}
	return p.config.Paths.OutputImageDir
}

// finish logs the outcome and records it in the ledger
func (p *Pipeline) finish(res *model.DocResult, outcome model.Outcome, err error) *model.DocResult {
	res.Outcome = outcome
	if err != nil {
		res.Err = err
		res.Error = err.Error()
	}

	if outcome != model.OutcomeSkipped {
		if lerr := p.ledger.MarkProcessed(res.DocID, outcome); lerr != nil {
			p.log.Error().Err(lerr).Str("doc_id", res.DocID).Msg("ledger write failed")
		}
	}

	event := p.log.Info()
	switch {
	case outcome == model.OutcomeFailed && !model.IsNotFound(err) && !errors.Is(err, model.ErrPartialMultiAbstract):
		event = p.log.Warn()
	case outcome == model.OutcomeSkipped && err != nil:
		event = p.log.Warn()
	}
	event = event.Str("doc_id", res.DocID).Str("outcome", string(outcome))
	if len(res.Matches) == 1 {
		m := res.Matches[0]
		event = event.Int("page", m.Page).Str("tier", string(m.Tier)).Int("distance", m.Distance)
	} else if len(res.Matches) > 1 {
		event = event.Int("abstracts", len(res.Matches))
	}
	if err != nil {
		event = event.Err(err)
	}
	event.Msg("document processed")
	return res
}

// redactImagePage blacks out every span of one page image
func redactImagePage(set *store.ImageSet, page *model.Page, spans []model.Span) error {
	if page == nil {
		return fmt.Errorf("%w: matched page missing", model.ErrMalformedInput)
	}
	img, err := set.Page(page.Number)
	if err != nil {
		return err
	}
	for _, span := range spans {
		out, err := redact.Image(img, page.Words, span, page.Width, page.Height)
		if err != nil {
			return err
		}
		img = out
	}
	return set.Replace(page.Number, img)
}
