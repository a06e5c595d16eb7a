package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"docrag/internal/domain"
)

func newFilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Manage indexed files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List indexed files, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, os.Stderr)
			if err != nil {
				return err
			}
			defer closeApp(a)

			docs, err := a.Service.ListDocuments(cmd.Context())
			if err != nil {
				return err
			}
			printDocuments(cmd.OutOrStdout(), docs)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>...",
		Short: "Remove files with their chunks and vectors",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, os.Stderr)
			if err != nil {
				return err
			}
			defer closeApp(a)

			var errs []error
			for _, id := range args {
				if err := a.Service.DeleteDocument(cmd.Context(), id); err != nil {
					if errors.Is(err, domain.ErrNotFound) {
						err = fmt.Errorf("%s: no such file", id)
					}
					errs = append(errs, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			}
			return errors.Join(errs...)
		},
	})

	var all bool
	reindex := &cobra.Command{
		Use:   "reindex [id]...",
		Short: "Re-chunk and re-embed files",
		Long: `Re-chunk and re-embed files, keeping their IDs. Use after changing the
chunker or embedder settings.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) > 0) {
				return errors.New("pass file IDs or --all")
			}
			a, err := openApp(cmd, os.Stderr)
			if err != nil {
				return err
			}
			defer closeApp(a)

			out := cmd.OutOrStdout()
			if all {
				results, err := a.Service.ReindexAll(cmd.Context())
				for _, r := range results {
					printIngestResult(out, r)
				}
				return err
			}
			var errs []error
			for _, id := range args {
				doc, err := a.Service.Reindex(cmd.Context(), id)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", id, err))
					continue
				}
				fmt.Fprintf(out, "reindexed %s  chunks=%d\n", doc.ID, doc.ChunkCount)
			}
			return errors.Join(errs...)
		},
	}
	reindex.Flags().BoolVar(&all, "all", false, "reindex every file")
	cmd.AddCommand(reindex)

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show totals for the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, os.Stderr)
			if err != nil {
				return err
			}
			defer closeApp(a)

			st, err := a.Service.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "files: %d\nbytes: %d\nchunks: %d\n", st.Files, st.Bytes, st.Chunks)
			return nil
		},
	})
	return cmd
}

func printDocuments(w io.Writer, docs []domain.Document) {
	if len(docs) == 0 {
		fmt.Fprintln(w, "No files indexed.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tBYTES\tCHUNKS\tADDED")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", d.ID, d.DisplayName, d.ByteSize, d.ChunkCount, d.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	_ = tw.Flush()
}
