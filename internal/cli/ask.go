package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"finrag/internal/domain"
	"finrag/internal/logger"
	"finrag/internal/usecase"
)

var (
	askTickers  []string
	askDocTypes []string
	askTopK     int
	askMode     string
	askJSON     bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the indexed documents",
	Long: `Retrieve context for the question, ask the configured LLM for an analysis and
annotate it with keyword signals.

Modes: Comprehensive, "Quick Summary", Risk-Focused, Growth-Focused.

Examples:
  finrag ask "How is Apple's services business doing?" -t AAPL
  finrag ask "What are the main risks?" -t TSLA --mode Risk-Focused`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	addFilterFlags(askCmd, &askTickers, &askDocTypes, &askTopK)
	askCmd.Flags().StringVarP(&askMode, "mode", "m", string(usecase.ModeComprehensive), "analysis mode")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the full response as JSON")
}

// newAssistant wires an assistant over an open retrieval session. A missing
// generator is reported through the responses, not here.
func newAssistant(session *retrievalSession) *usecase.AssistantUseCase {
	gen, err := newGenerator(GetConfig())
	if err != nil {
		logger.Warn("text generator unavailable: %v", err)
	}
	return usecase.NewAssistantUseCase(session.retrieve, gen)
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if askJSON {
		logger.SetQuiet(true)
	}
	if err := validateDocTypes(askDocTypes); err != nil {
		return err
	}
	topK := cfg.Retrieve.TopK
	if askTopK > 0 {
		topK = askTopK
	}

	session, err := openRetrievalSession(cfg, GetRootDir())
	if err != nil {
		return err
	}
	defer session.Close()

	resp := newAssistant(session).Ask(cmd.Context(), usecase.AskRequest{
		Query:    strings.Join(args, " "),
		Tickers:  askTickers,
		DocTypes: askDocTypes,
		Mode:     askMode,
		TopK:     topK,
	})

	if askJSON {
		output, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(output))
	} else {
		printResponse(cmd.OutOrStdout(), resp)
	}
	if resp.Metadata.Error != "" {
		return fmt.Errorf("ask failed: %s", resp.Metadata.Error)
	}
	return nil
}

func printResponse(w io.Writer, resp domain.Response) {
	fmt.Fprintf(w, "%s\n", resp.Analysis)

	if len(resp.Signals) > 0 {
		fmt.Fprintf(w, "\nSignals:\n")
		for _, s := range resp.Signals {
			fmt.Fprintf(w, "  %-6s %-8s %.0f%%  %s\n", s.Ticker, s.Direction, s.Confidence*100, s.Reason)
		}
	}
	if len(resp.Sources) > 0 {
		fmt.Fprintf(w, "\nSources:\n")
		for i, s := range resp.Sources {
			fmt.Fprintf(w, "  [%d] %s %s %s (relevance: %.2f)\n", i+1, s.Ticker, s.Type, s.Date, s.RelevanceScore)
		}
	}
	fmt.Fprintf(w, "\n[%s | %d documents | %s]\n", resp.Metadata.Mode, resp.Metadata.DocumentsRetrieved,
		resp.Metadata.Timestamp.Format("2006-01-02 15:04:05"))
}
