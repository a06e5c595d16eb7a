package main

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"docrag/internal/service"
)

func newIngestCmd() *cobra.Command {
	var noProgress bool
	cmd := &cobra.Command{
		Use:   "ingest <path|glob>...",
		Short: "Index .txt files, directories or glob patterns",
		Long: `Index plain-text files. Directories are walked for *.txt files and
patterns may use ** to match any depth.

Examples:
  docrag ingest report.txt
  docrag ingest ~/notes 'archive/**/*.txt'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, os.Stderr)
			if err != nil {
				return err
			}
			defer closeApp(a)

			paths, err := service.ExpandPaths(args)
			if err != nil {
				return err
			}
			bar := newProgress(len(paths), "ingesting", !noProgress && progressEnabled())
			var failed int
			out := cmd.OutOrStdout()
			for _, p := range paths {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				res := ingestPath(cmd, a.Service, p)
				if bar != nil {
					_ = bar.Add(1)
				}
				if res.Err != nil {
					failed++
				}
				printIngestResult(out, res)
			}
			if bar != nil {
				_ = bar.Finish()
			}
			fmt.Fprintf(out, "%d indexed, %d failed\n", len(paths)-failed, failed)
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(paths))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")
	return cmd
}

func ingestPath(cmd *cobra.Command, svc *service.Service, path string) service.IngestResult {
	f, err := service.ReadFile(path)
	if err != nil {
		return service.IngestResult{Name: path, Err: err}
	}
	doc, err := svc.IngestFile(cmd.Context(), f)
	return service.IngestResult{Name: path, Document: doc, Err: err}
}

func printIngestResult(w io.Writer, res service.IngestResult) {
	if res.Err != nil {
		fmt.Fprintf(w, "FAIL  %s: %v\n", res.Name, res.Err)
		return
	}
	fmt.Fprintf(w, "OK    %s  id=%s chunks=%d\n", res.Name, res.Document.ID, res.Document.ChunkCount)
}

func progressEnabled() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// newProgress returns nil when disabled or there is nothing to count.
func newProgress(total int, desc string, enabled bool) *progressbar.ProgressBar {
	if !enabled || total <= 0 {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetWidth(32),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
