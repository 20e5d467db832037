package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/absredact/internal/extract"
	"github.com/ppiankov/absredact/internal/model"
	"github.com/ppiankov/absredact/internal/store"
)

var convertLayout string

// convertCmd represents the convert command
var convertCmd = &cobra.Command{
	Use:   "convert <bbox-dir> <text-dir>",
	Short: "Convert pdftotext -bbox output to word TSV",
	Long: `Convert reads every {id}.html produced by "pdftotext -bbox" and writes
its word stream as TSV, either as a single {id}.txt (doc-file layout) or as
{id}.tar.gz with one file per page (page-tar layout).

Example:
  absredact convert bbox/ txt/
  absredact convert bbox/ txt/ --layout page-tar`,
	Args: cobra.ExactArgs(2),
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.Flags().StringVar(&convertLayout, "layout", "doc-file", "output layout (doc-file, page-tar)")
}

func runConvert(cmd *cobra.Command, args []string) error {
	inDir, outDir := args[0], args[1]

	var layout store.Layout
	switch convertLayout {
	case "doc-file":
		layout = store.NewDocFileLayout()
	case "page-tar":
		layout = store.NewPageTarLayout()
	default:
		return fmt.Errorf("unknown layout %q (want doc-file or page-tar)", convertLayout)
	}

	entries, err := os.ReadDir(inDir)
	if err != nil {
		return fmt.Errorf("read input dir: %w", err)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".html" || ext == ".htm" || ext == ".xhtml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	converted, failed := 0, 0
	for _, name := range names {
		id := strings.TrimSuffix(name, filepath.Ext(name))
		target := filepath.Join(outDir, id+layoutExt(layout))
		if err := convertOne(filepath.Join(inDir, name), id, target, layout); err != nil {
			failed++
			logger.Warn().Str("doc_id", id).Err(err).Msg("convert failed")
			continue
		}
		converted++
		logger.Debug().Str("doc_id", id).Str("path", target).Msg("converted")
	}

	fmt.Fprintf(os.Stderr, "✓ Converted %d documents (%d failed) into %s\n", converted, failed, outDir)
	return nil
}

func convertOne(src, id, target string, layout store.Layout) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	doc, err := extract.ParseBBoxHTML(f)
	if err != nil {
		return err
	}
	if len(doc.Pages) == 0 {
		return fmt.Errorf("%w: no words", model.ErrMalformedInput)
	}
	doc.ID = id
	return layout.Save(doc, target)
}

func layoutExt(layout store.Layout) string {
	if layout.Name() == "page-tar" {
		return ".tar.gz"
	}
	return ".txt"
}
