package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every document in the collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		index, err := openIndex(cfg, GetRootDir())
		if err != nil {
			return err
		}
		defer index.Close()

		if err := index.Reset(cmd.Context()); err != nil {
			return fmt.Errorf("failed to reset collection: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Collection %s reset\n", cfg.Index.Collection)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
}
