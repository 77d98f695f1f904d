package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"finrag/internal/domain"
	"finrag/internal/logger"
)

var (
	queryTickers  []string
	queryDocTypes []string
	queryTopK     int
	queryJSON     bool
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Search the vector index",
	Long: `Embed the query and return the closest chunks, optionally restricted to
tickers and document types.

Examples:
  finrag query "iphone revenue growth" -t AAPL
  finrag query "analyst downgrade" --type News -k 10 --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	addFilterFlags(queryCmd, &queryTickers, &queryDocTypes, &queryTopK)
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
}

func addFilterFlags(cmd *cobra.Command, tickers, docTypes *[]string, topK *int) {
	cmd.Flags().StringSliceVarP(tickers, "ticker", "t", nil, "restrict to tickers")
	cmd.Flags().StringSliceVar(docTypes, "type", nil, `restrict to document types (e.g. "News")`)
	cmd.Flags().IntVarP(topK, "top-k", "k", 0, "number of results (default from config)")
}

func validateDocTypes(docTypes []string) error {
	for _, t := range docTypes {
		if !domain.DocumentType(t).Valid() {
			return fmt.Errorf("%w: unknown document type %q", domain.ErrValidation, t)
		}
	}
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	out := cmd.OutOrStdout()
	query := strings.Join(args, " ")

	if queryJSON {
		logger.SetQuiet(true)
	}
	if err := validateDocTypes(queryDocTypes); err != nil {
		return err
	}
	topK := cfg.Retrieve.TopK
	if queryTopK > 0 {
		topK = queryTopK
	}

	session, err := openRetrievalSession(cfg, GetRootDir())
	if err != nil {
		return err
	}
	defer session.Close()

	result, err := session.retrieve.Answer(cmd.Context(), query, queryTickers, queryDocTypes, topK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if queryJSON {
		output, _ := json.MarshalIndent(result.Results, "", "  ")
		fmt.Fprintln(out, string(output))
		return nil
	}

	if len(result.Results) == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}
	fmt.Fprintf(out, "Found %d results for: %s\n\n", len(result.Results), query)
	for i, r := range result.Results {
		fmt.Fprintf(out, "--- [%d] %s %s %s (score: %.2f) ---\n", i+1,
			r.Metadata[domain.MetaTicker], r.Metadata[domain.MetaDocumentType], r.Metadata[domain.MetaDate], r.Score)
		fmt.Fprintln(out, truncateRunes(r.Text, 500))
		fmt.Fprintln(out)
	}
	return nil
}

// truncateRunes shortens text to at most n runes for display.
func truncateRunes(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
