package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"finrag/internal/adapter/store"
	"finrag/internal/logger"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show collection statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output as JSON")
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	out := cmd.OutOrStdout()

	if statsJSON {
		logger.SetQuiet(true)
	}
	index, err := openIndex(cfg, GetRootDir())
	if err != nil {
		return err
	}
	defer index.Close()

	stats := index.Stats(cmd.Context())
	if statsJSON {
		output, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Fprintln(out, string(output))
		return nil
	}

	fmt.Fprintf(out, "Collection: %s\n", stats.CollectionName)
	fmt.Fprintf(out, "Backend:    %s\n", stats.Backend)
	if stats.Directory != "" {
		fmt.Fprintf(out, "Directory:  %s\n", stats.Directory)
	}
	fmt.Fprintf(out, "Documents:  %d\n", stats.DocumentCount)

	if m, ok := index.(store.Migrator); ok {
		info, err := m.GetSchemaInfo()
		if err == nil && info.Version > 0 {
			fmt.Fprintf(out, "Schema:     v%d (config %s)\n", info.Version, info.ConfigHash)
		}
		if stale, reason, err := store.NeedsRebuild(m, cfg); err == nil && stale {
			fmt.Fprintf(out, "Stale:      %s\n", reason)
		}
	}
	return nil
}
