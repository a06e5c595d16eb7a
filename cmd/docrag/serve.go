package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"docrag/internal/httpapi"
	"docrag/internal/tui"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, os.Stderr)
			if err != nil {
				return err
			}
			defer closeApp(a)

			if addr == "" {
				addr = a.Config.Server.Addr()
			}
			srv, err := httpapi.NewServer(a.Service, a.Logger.Named("http"), httpapi.Config{
				Addr:           addr,
				SearchDefaults: a.SearchOptions(),
				Gatherer:       a.Registry,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.Logger.Error("shutdown failed", zap.Error(err))
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from server.host and server.port)")
	return cmd
}

func newTUICmd() *cobra.Command {
	var logFile string
	cmd := &cobra.Command{
		Use:   "tui [path|glob]...",
		Short: "Browse search results interactively",
		Long: `Open an interactive search screen. Any paths given are ingested first.

Keys: enter searches, up/down browse results, tab toggles surrounding
context, esc quits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The screen belongs to the TUI; logs go to a file or nowhere.
			var logOut io.Writer = io.Discard
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return err
				}
				defer f.Close()
				logOut = f
			}
			a, err := openApp(cmd, logOut)
			if err != nil {
				return err
			}
			defer closeApp(a)

			if len(args) > 0 {
				results, err := a.Service.IngestPaths(cmd.Context(), args)
				if err != nil {
					return err
				}
				for _, r := range results {
					if r.Err != nil {
						fmt.Fprintf(os.Stderr, "skipping %s: %v\n", r.Name, r.Err)
					}
				}
			}
			st, err := a.Service.Stats(cmd.Context())
			if err != nil {
				return err
			}
			summary := fmt.Sprintf("%d files, %d chunks indexed", st.Files, st.Chunks)
			m := tui.New(a.Service, a.SearchOptions(), a.Config.Search.ContextSize, summary)
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}
	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs to this file while the TUI runs")
	return cmd
}
