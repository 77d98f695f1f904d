package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"finrag/internal/adapter/source"
	"finrag/internal/domain"
)

var collectTickers []string

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Fetch raw records into the raw data directory",
	Long: `Fetch one record per ticker from the configured source and write
<raw_dir>/<TICKER>_data.json plus all_stocks_data.json.

Examples:
  finrag collect
  finrag collect -t AAPL -t NVDA`,
	RunE: runCollect,
}

func init() {
	rootCmd.AddCommand(collectCmd)
	collectCmd.Flags().StringSliceVarP(&collectTickers, "ticker", "t", nil, "tickers to collect (default from config)")
}

func runCollect(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	dir := GetRootDir()

	tickers := collectTickers
	if len(tickers) == 0 {
		tickers = cfg.Data.Tickers
	}
	src := newSource(cfg, dir)
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Collecting %d tickers from %s source...\n", len(tickers), src.Name())
	bar := newProgressBar(out, len(tickers), "Collecting")

	records := make([]domain.RawEntityRecord, 0, len(tickers))
	for _, t := range tickers {
		records = append(records, src.Fetch(cmd.Context(), t))
		_ = bar.Add(1)
		bar.Describe("[cyan]Collecting[reset] " + t)
	}
	if err := cmd.Context().Err(); err != nil {
		return err
	}

	rawDir := cfg.RawDir(dir)
	if err := source.WriteCache(rawDir, records); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nSaved %d records to %s\n", len(records), rawDir)
	return nil
}
