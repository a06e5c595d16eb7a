package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"docrag/internal/domain"
	"docrag/internal/snippet"
)

func newSearchCmd() *cobra.Command {
	var (
		limit  int
		strict bool
		useLLM bool
		asJSON bool
		expand bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed documents",
		Long: `Search indexed documents and print matching snippets grouped by file.

Examples:
  docrag search "glacier meltwater"
  docrag search --strict=false --limit 3 "river deltas"
  docrag search --json "ocean currents" | jq .answer`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, os.Stderr)
			if err != nil {
				return err
			}
			defer closeApp(a)

			opts := a.SearchOptions()
			if cmd.Flags().Changed("limit") {
				opts.Limit = limit
			}
			if cmd.Flags().Changed("strict") {
				opts.Strict = strict
			}
			if cmd.Flags().Changed("llm") {
				opts.UseLLM = useLLM
			}
			res, err := a.Service.Search(cmd.Context(), strings.Join(args, " "), opts)
			if err != nil {
				return err
			}
			if expand {
				for i, sn := range res.Snippets {
					res.Snippets[i].ExpandedText = a.Service.ExpandSnippet(cmd.Context(), sn, a.Config.Search.ContextSize)
				}
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printSearchResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of snippets")
	cmd.Flags().BoolVar(&strict, "strict", true, "synthesize an answer from the top snippets")
	cmd.Flags().BoolVar(&useLLM, "llm", false, "use the configured LLM for the answer")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.Flags().BoolVar(&expand, "expand", false, "include surrounding context for each snippet")
	return cmd
}

func printSearchResult(w io.Writer, res domain.SearchResult) {
	if len(res.Snippets) == 0 {
		fmt.Fprintf(w, "No matches for %q\n", res.Query)
		return
	}
	if res.Answer != "" {
		fmt.Fprintf(w, "Answer: %s\n\n", res.Answer)
	}
	for _, g := range snippet.GroupByFile(res.Snippets) {
		fmt.Fprintf(w, "%s (%d)\n", g.File, len(g.Snippets))
		for _, sn := range g.Snippets {
			text := sn.Text
			if sn.ExpandedText != "" {
				text = sn.ExpandedText
			}
			fmt.Fprintf(w, "  [%.3f] %s\n", sn.Similarity, oneLine(text))
		}
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func newExpandCmd() *cobra.Command {
	var contextSize int
	cmd := &cobra.Command{
		Use:   "expand <chunk-id>",
		Short: "Print a chunk with the surrounding document text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, os.Stderr)
			if err != nil {
				return err
			}
			defer closeApp(a)

			if !cmd.Flags().Changed("context") {
				contextSize = a.Config.Search.ContextSize
			}
			text := a.Service.ExpandSnippet(cmd.Context(), domain.Snippet{ChunkID: args[0]}, contextSize)
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().IntVar(&contextSize, "context", 0, "characters of context on each side")
	return cmd
}
