package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"finrag/internal/usecase"
)

var (
	chatTickers  []string
	chatDocTypes []string
	chatTopK     int
	chatMode     string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions interactively",
	Long: `Read questions from stdin and answer each one. Repeated questions are served
from the query cache.

Commands inside the session:
  :mode <name>       switch analysis mode
  :tickers A,B       restrict to tickers (empty clears)
  :quit              leave`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	addFilterFlags(chatCmd, &chatTickers, &chatDocTypes, &chatTopK)
	chatCmd.Flags().StringVarP(&chatMode, "mode", "m", string(usecase.ModeComprehensive), "analysis mode")
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	out := cmd.OutOrStdout()
	if err := validateDocTypes(chatDocTypes); err != nil {
		return err
	}
	topK := cfg.Retrieve.TopK
	if chatTopK > 0 {
		topK = chatTopK
	}

	session, err := openRetrievalSession(cfg, GetRootDir())
	if err != nil {
		return err
	}
	defer session.Close()
	assistant := newAssistant(session)

	mode := usecase.ParseMode(chatMode)
	tickers := chatTickers
	fmt.Fprintf(out, "finrag chat (%s). Type :quit to leave.\n", mode)

	// Piped input gets no prompt.
	interactive := false
	if f, ok := cmd.InOrStdin().(*os.File); ok {
		interactive = term.IsTerminal(int(f.Fd()))
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		if interactive {
			fmt.Fprint(out, "> ")
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == ":quit" || line == ":q" || line == "exit":
			return nil
		case strings.HasPrefix(line, ":mode"):
			mode = usecase.ParseMode(strings.TrimSpace(strings.TrimPrefix(line, ":mode")))
			fmt.Fprintf(out, "mode: %s\n", mode)
			continue
		case strings.HasPrefix(line, ":tickers"):
			tickers = splitList(strings.TrimPrefix(line, ":tickers"))
			fmt.Fprintf(out, "tickers: %v\n", tickers)
			continue
		}

		resp := assistant.Ask(cmd.Context(), usecase.AskRequest{
			Query:    line,
			Tickers:  tickers,
			DocTypes: chatDocTypes,
			Mode:     string(mode),
			TopK:     topK,
		})
		printResponse(out, resp)
		fmt.Fprintln(out)
	}
	return scanner.Err()
}

func splitList(s string) []string {
	var items []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.ToUpper(strings.TrimSpace(f)); f != "" {
			items = append(items, f)
		}
	}
	return items
}
