package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"finrag/internal/adapter/source"
	"finrag/internal/adapter/store"
	"finrag/internal/domain"
	"finrag/internal/usecase"
)

var (
	ingestTickers      []string
	ingestFromArtifact bool
	ingestFetch        bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Rebuild the vector index",
	Long: `Reset the collection, chunk every record, embed the chunks in batches and add
them to the index. Raw records are read from the raw data directory when
present, otherwise fetched from the configured source.

Examples:
  finrag ingest
  finrag ingest --fetch -t AAPL -t MSFT
  finrag ingest --from-artifact`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringSliceVarP(&ingestTickers, "ticker", "t", nil, "tickers to ingest (default from config)")
	ingestCmd.Flags().BoolVar(&ingestFromArtifact, "from-artifact", false, "index the saved chunk artifact instead of raw records")
	ingestCmd.Flags().BoolVar(&ingestFetch, "fetch", false, "fetch from the source even when raw records are cached")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	dir := GetRootDir()
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	processor, err := newProcessor(cfg)
	if err != nil {
		return err
	}
	index, err := openIndex(cfg, dir)
	if err != nil {
		return err
	}
	defer index.Close()

	if m, ok := index.(store.Migrator); ok {
		res, err := store.CheckMigration(m, cfg)
		if err != nil {
			return fmt.Errorf("failed to check migration: %w", err)
		}
		if res.NeedsRebuild {
			fmt.Fprintf(out, "Index rebuild required: %s\n", res.Reason)
		} else if res.NeedsMigration {
			fmt.Fprintf(out, "Running schema migration: %s\n", res.Reason)
		}
	}

	ingest := usecase.NewIngestUseCase(newSource(cfg, dir), processor, embedder, index, usecase.IngestConfig{
		ArtifactPath:   cfg.ArtifactPath(dir),
		EmbedBatchSize: cfg.Embedding.BatchSize,
	})

	fmt.Fprintf(out, "Embedding with %s (%s backend)\n", embedder.ModelName(), cfg.Index.Backend)
	progress := embedProgress(out)

	var result *usecase.IngestResult
	switch {
	case ingestFromArtifact:
		chunks, err := usecase.LoadArtifact(cfg.ArtifactPath(dir))
		if err != nil {
			return err
		}
		result, err = ingest.IngestChunks(ctx, chunks, progress)
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
	default:
		records, err := cachedRecords(cfg.RawDir(dir))
		if err != nil {
			return err
		}
		if len(records) > 0 && !ingestFetch && len(ingestTickers) == 0 {
			fmt.Fprintf(out, "Using %d cached records from %s\n", len(records), cfg.RawDir(dir))
			result, err = ingest.IngestRecords(ctx, records, progress)
		} else {
			tickers := ingestTickers
			if len(tickers) == 0 {
				tickers = cfg.Data.Tickers
			}
			result, err = ingest.Ingest(ctx, tickers, progress)
		}
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
	}

	if m, ok := index.(store.Migrator); ok {
		if err := store.Migrate(m, cfg); err != nil {
			return fmt.Errorf("failed to update schema info: %w", err)
		}
	}

	fmt.Fprintf(out, "\nIngest complete:\n")
	if result.Entities > 0 {
		fmt.Fprintf(out, "  Entities:   %d (%d skipped)\n", result.Entities, result.EntitiesSkipped)
	}
	fmt.Fprintf(out, "  Chunks:     %d\n", result.Chunks)
	fmt.Fprintf(out, "  Indexed:    %d\n", result.Added.Successful)
	if result.Added.Failed > 0 {
		fmt.Fprintf(out, "  Failed:     %d\n", result.Added.Failed)
	}
	printWarnings(cmd, result.Errors)
	return nil
}

// cachedRecords returns the records in rawDir, or nil when there are none.
func cachedRecords(rawDir string) ([]domain.RawEntityRecord, error) {
	if _, err := os.Stat(rawDir); os.IsNotExist(err) {
		return nil, nil
	}
	return source.NewCacheSource(rawDir, nil).LoadAll()
}
