package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/absredact/internal/abstracts"
	"github.com/ppiankov/absredact/internal/cache"
	"github.com/ppiankov/absredact/internal/ledger"
	"github.com/ppiankov/absredact/internal/model"
	"github.com/ppiankov/absredact/internal/pipeline"
	"github.com/ppiankov/absredact/internal/store"
	"github.com/ppiankov/absredact/internal/util"
	"github.com/ppiankov/absredact/internal/worker"
)

var idsFile string

// redactCmd represents the redact command
var redactCmd = &cobra.Command{
	Use:   "redact",
	Short: "Find and remove abstracts from a corpus",
	Long: `Redact processes every document of --text-dir:
- Look up its abstract(s) from --abstract-dir, a JSONL export or HAL
- Locate the abstract on the first two or last two pages
- Remove the matched words from the text
- Paint the matched word boxes black on the page images (--img-dir)
- Record the outcome in the found/failed logs

Example:
  absredact redact --text-dir txt --abstract-dir abs --output-text-dir out
  absredact redact --text-dir txt --img-dir img --output-text-dir out --output-img-dir out-img --resume
  absredact redact --text-dir txt --output-text-dir out --hal --other-abstracts --main-lang en`,
	Args: cobra.NoArgs,
	RunE: runRedact,
}

func init() {
	rootCmd.AddCommand(redactCmd)

	d := model.DefaultConfig()
	f := redactCmd.Flags()

	f.String("text-dir", "", "directory of word TSV documents (.txt or .tar.gz)")
	f.String("abstract-dir", "", "directory of {id}.txt abstract files")
	f.String("img-dir", "", "directory of page images ({id}.tar.gz or {id}/)")
	f.String("output-text-dir", "", "directory for redacted text")
	f.String("output-img-dir", "", "directory for redacted page images")
	f.String("abstracts-jsonl", "", "JSONL file of other-language abstracts")
	f.Bool("other-abstracts", false, "remove every non-main-language abstract instead of the main one")
	f.Bool("hal", false, "fetch abstracts from the HAL API")
	f.String("main-lang", d.HAL.MainLang, "main language code of the corpus (HAL mode)")
	f.Int("limit", 0, "process at most this many documents (0 = all)")
	f.Int("abstract-thresh", d.Match.AbstractThresh, "skip abstracts with fewer words (<=0 disables)")
	f.Int("max-edits", d.Match.MaxEdits, "edit budget of the fuzzy tier")
	f.Bool("case-sensitive", false, "match without lower-casing")
	f.String("found-log", d.Ledger.FoundLog, "log of documents whose abstract was found")
	f.String("failed-log", d.Ledger.FailedLog, "log of documents whose abstract was not found")
	f.Bool("resume", false, "skip documents already in the logs")
	f.Bool("overwrite", false, "start over, replacing outputs and logs")
	f.Int("workers", d.Concurrency.Workers, "documents processed concurrently")
	f.String("report", "", "write a JSON run report to this path")
	f.StringVar(&idsFile, "ids", "", "only process the document ids listed in this file")

	for flag, key := range map[string]string{
		"text-dir":        "paths.text_dir",
		"abstract-dir":    "paths.abstract_dir",
		"img-dir":         "paths.img_dir",
		"output-text-dir": "paths.output_text_dir",
		"output-img-dir":  "paths.output_img_dir",
		"abstracts-jsonl": "paths.other_abstracts",
		"other-abstracts": "match.other_languages",
		"hal":             "hal.enabled",
		"main-lang":       "hal.main_lang",
		"limit":           "output.limit",
		"abstract-thresh": "match.abstract_thresh",
		"max-edits":       "match.max_edits",
		"case-sensitive":  "match.case_sensitive",
		"found-log":       "ledger.found_log",
		"failed-log":      "ledger.failed_log",
		"resume":          "output.resume",
		"overwrite":       "output.overwrite",
		"workers":         "concurrency.workers",
		"report":          "output.report",
	} {
		_ = viper.BindPFlag(key, f.Lookup(flag))
	}
}

func runRedact(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := validateRedactConfig(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	led, err := ledger.Open(cfg.Ledger.FoundLog, cfg.Ledger.FailedLog)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	if cfg.Output.Overwrite {
		if err := led.Reset(); err != nil {
			return err
		}
	}

	source, sourceName, err := newAbstractSource(cfg, logger)
	if err != nil {
		return err
	}

	printBanner(os.Stderr, cfg, sourceName, led)

	p := pipeline.NewPipeline(cfg, source, led, logger)

	var names []string
	if idsFile != "" {
		ids, err := worker.ReadIDsFromFile(idsFile)
		if err != nil {
			return fmt.Errorf("read ids: %w", err)
		}
		names, err = namesForIDs(store.NewRegistry(), cfg.Paths.TextDir, ids)
		if err != nil {
			return err
		}
	}

	report, runErr := p.Run(ctx, names)
	if report == nil {
		return runErr
	}

	if cfg.Output.ReportPath != "" {
		if err := pipeline.WriteReport(report, cfg.Output.ReportPath); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	printSummary(os.Stderr, cfg, report)

	if errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("interrupted: rerun with --resume to continue")
	}
	return runErr
}

// validateRedactConfig refuses runs that would mix old and new outputs
func validateRedactConfig(cfg *model.Config) error {
	if cfg.Paths.TextDir == "" {
		return fmt.Errorf("--text-dir is required")
	}
	if cfg.Paths.OutputTextDir == "" {
		return fmt.Errorf("--output-text-dir is required")
	}
	if cfg.Paths.ImageDir != "" && cfg.Paths.OutputImageDir == "" {
		return fmt.Errorf("--output-img-dir is required with --img-dir")
	}
	if !cfg.HAL.Enabled && cfg.Paths.OtherAbstracts == "" && cfg.Paths.AbstractDir == "" {
		return fmt.Errorf("one of --abstract-dir, --abstracts-jsonl or --hal is required")
	}
	if cfg.HAL.Enabled && cfg.HAL.MainLang == "" {
		return fmt.Errorf("--main-lang is required with --hal")
	}
	if cfg.Output.Resume && cfg.Output.Overwrite {
		return fmt.Errorf("--resume and --overwrite are mutually exclusive")
	}
	if cfg.Output.Resume || cfg.Output.Overwrite {
		return nil
	}

	for _, dir := range []string{cfg.Paths.OutputTextDir, cfg.Paths.OutputImageDir} {
		if dir == "" {
			continue
		}
		empty, err := isEmptyDir(dir)
		if err != nil {
			return err
		}
		if !empty {
			return fmt.Errorf("output directory %s is not empty: use --resume or --overwrite", dir)
		}
	}
	return nil
}

// isEmptyDir reports whether dir is missing or has no entries
func isEmptyDir(dir string) (bool, error) {
	f, err := os.Open(dir)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	defer func() { _ = f.Close() }()

	_, err = f.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, err
}

// newAbstractSource picks HAL, a JSONL export or per-document files, in
// that order
func newAbstractSource(cfg *model.Config, log zerolog.Logger) (abstracts.Source, string, error) {
	switch {
	case cfg.HAL.Enabled:
		client := util.NewHTTPClient(cfg.HTTP.Timeout,
			util.NewProxyFunc(cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy))

		opts := abstracts.FetcherOptions{
			Client:    client,
			UserAgent: cfg.HTTP.UserAgent,
			Limiter:   worker.NewLimiter(cfg.HTTP.RatePerSec, cfg.HTTP.Burst),
			CacheTTL:  cfg.Cache.DiskTTL,
			Logger:    log,
		}
		if cfg.HTTP.Robots {
			opts.Robots = util.NewRobotsChecker(cfg.HTTP.UserAgent, client)
		}
		if cfg.Cache.Enabled {
			opts.Cache = cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
		}
		return abstracts.NewHALClient(abstracts.NewFetcher(opts), cfg.HAL.BaseURL, cfg.HAL.MainLang), "hal " + cfg.HAL.BaseURL, nil

	case cfg.Paths.OtherAbstracts != "":
		return abstracts.NewJSONLSource(cfg.Paths.OtherAbstracts), "jsonl " + cfg.Paths.OtherAbstracts, nil

	default:
		info, err := os.Stat(cfg.Paths.AbstractDir)
		if err != nil {
			return nil, "", fmt.Errorf("abstract dir: %w", err)
		}
		if !info.IsDir() {
			return nil, "", fmt.Errorf("abstract dir %s is not a directory", cfg.Paths.AbstractDir)
		}
		return abstracts.NewFileSource(cfg.Paths.AbstractDir), "files " + cfg.Paths.AbstractDir, nil
	}
}

// namesForIDs maps document ids to the input files that hold them
func namesForIDs(registry *store.Registry, dir string, ids []string) ([]string, error) {
	all, err := pipeline.ListDocuments(registry, dir)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]string, len(all))
	for _, name := range all {
		byID[registry.Find(name).DocID(name)] = name
	}

	names := make([]string, 0, len(ids))
	for _, id := range ids {
		name, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("document %s not found in %s", id, dir)
		}
		names = append(names, name)
	}
	return names, nil
}

func printBanner(w io.Writer, cfg *model.Config, sourceName string, led *ledger.FileLedger) {
	mode := "main abstract"
	if cfg.Match.OtherLanguages {
		mode = "other-language abstracts"
	}
	images := "none"
	if cfg.Paths.ImageDir != "" {
		images = cfg.Paths.ImageDir + " -> " + cfg.Paths.OutputImageDir
	}

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "  absredact\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Text:         %s -> %s\n", cfg.Paths.TextDir, cfg.Paths.OutputTextDir)
	fmt.Fprintf(w, "  Images:       %s\n", images)
	fmt.Fprintf(w, "  Abstracts:    %s\n", sourceName)
	fmt.Fprintf(w, "  Mode:         %s\n", mode)
	fmt.Fprintf(w, "  Max edits:    %d\n", cfg.Match.MaxEdits)
	fmt.Fprintf(w, "  Workers:      %d\n", cfg.Concurrency.Workers)
	if cfg.Output.Resume {
		found, failed := led.Counts()
		fmt.Fprintf(w, "  Resume:       %s, %s\n", filepath.Base(cfg.Ledger.FoundLog), filepath.Base(cfg.Ledger.FailedLog))
		fmt.Fprintf(w, "  Done before:  %d found, %d failed\n", found, failed)
	}
	fmt.Fprintf(w, "\n")
}

func printSummary(w io.Writer, cfg *model.Config, report *model.RunReport) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "  Run Complete\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Run:       %s\n", report.RunID)
	fmt.Fprintf(w, "  Total:     %d documents\n", len(report.Documents))
	fmt.Fprintf(w, "  Found:     %d\n", report.Found)
	fmt.Fprintf(w, "  Failed:    %d\n", report.Failed)
	fmt.Fprintf(w, "  Skipped:   %d\n", report.Skipped)
	fmt.Fprintf(w, "  Elapsed:   %v\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	if cfg.Output.ReportPath != "" {
		fmt.Fprintf(w, "  Report:    %s\n", cfg.Output.ReportPath)
	}
	fmt.Fprintf(w, "\n")
}
