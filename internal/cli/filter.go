package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/absredact/internal/store"
)

var (
	filterLower int
	filterUpper int
)

// filterCmd represents the filter command
var filterCmd = &cobra.Command{
	Use:   "filter <in-dir> <out-dir>",
	Short: "Copy documents whose word count is within bounds",
	Long: `Filter copies the documents of <in-dir> whose total word count lies in
[--min-words, --max-words] into <out-dir>. A negative --max-words means no
upper bound.

Example:
  absredact filter txt/ txt-filtered/ --min-words 1000 --max-words 20000`,
	Args: cobra.ExactArgs(2),
	RunE: runFilter,
}

func init() {
	rootCmd.AddCommand(filterCmd)
	filterCmd.Flags().IntVar(&filterLower, "min-words", 0, "minimum word count")
	filterCmd.Flags().IntVar(&filterUpper, "max-words", -1, "maximum word count (negative = unbounded)")
}

func runFilter(cmd *cobra.Command, args []string) error {
	res, err := store.FilterByLength(store.NewRegistry(), args[0], args[1], filterLower, filterUpper)
	if err != nil {
		return fmt.Errorf("filter: %w", err)
	}
	for _, name := range res.Skipped {
		logger.Warn().Str("file", name).Msg("unreadable document skipped")
	}
	fmt.Fprintf(os.Stderr, "✓ Kept %d of %d documents in %s\n", len(res.Copied), res.Scanned, args[1])
	return nil
}
