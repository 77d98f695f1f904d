package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"finrag/internal/adapter/source"
	"finrag/internal/usecase"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Chunk cached raw records into the chunk artifact",
	RunE:  runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	dir := GetRootDir()
	out := cmd.OutOrStdout()

	records, err := source.NewCacheSource(cfg.RawDir(dir), nil).LoadAll()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no raw records in %s; run 'finrag collect' first", cfg.RawDir(dir))
	}

	processor, err := newProcessor(cfg)
	if err != nil {
		return err
	}
	result := processor.ProcessAll(records)

	path := cfg.ArtifactPath(dir)
	if err := usecase.SaveArtifact(path, result.Chunks); err != nil {
		return err
	}

	fmt.Fprintf(out, "Processing complete:\n")
	fmt.Fprintf(out, "  Entities:   %d (%d skipped)\n", len(records), result.EntitiesSkipped)
	fmt.Fprintf(out, "  Chunks:     %d\n", len(result.Chunks))
	printWarnings(cmd, result.Errors)
	fmt.Fprintf(out, "\nChunks stored at: %s\n", path)
	return nil
}

func printWarnings(cmd *cobra.Command, errs []error) {
	if len(errs) == 0 {
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nWarnings:\n")
	for _, e := range errs {
		fmt.Fprintf(cmd.OutOrStdout(), "  - %v\n", e)
	}
}
