// Package main implements the docrag CLI: ingest plain-text files, search
// them, and serve the index over HTTP or an interactive TUI.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"docrag/internal/app"
	"docrag/internal/config"
	"docrag/internal/logging"
)

var (
	// cfgPath overrides ~/.config/docrag/config.yaml
	cfgPath string
	// logLevel overrides log.level from the config
	logLevel string
	version  = "dev"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docrag",
		Short: "Chunk, embed and search plain-text documents",
		Long: `docrag indexes plain-text files into overlapping chunks, embeds them and
answers queries with the best matching snippets.

Examples:
  # Index a directory of notes
  docrag ingest ~/notes

  # Search from the command line
  docrag search "how do glaciers form"

  # Browse results interactively
  docrag tui`,
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config (default ~/.config/docrag/config.yaml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(newIngestCmd())
	root.AddCommand(newSearchCmd())
	root.AddCommand(newExpandCmd())
	root.AddCommand(newFilesCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newTUICmd())
	return root
}

func loadConfig() (*config.AppConfig, error) {
	if cfgPath != "" {
		return config.Load(cfgPath)
	}
	cfg, _, err := config.LoadDefault()
	return cfg, err
}

// openApp loads configuration and wires the pipeline. Logs go to logOut.
func openApp(cmd *cobra.Command, logOut io.Writer) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	logger, err := logging.NewWithWriter(logOut, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	a, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("starting pipeline: %w", err)
	}
	logger.Debug("config loaded",
		zap.String("storage", cfg.Storage.Path),
		zap.String("vector_store", cfg.VectorStore.Type))
	return a, nil
}

func closeApp(a *app.App) {
	if err := a.Close(); err != nil {
		a.Logger.Warn("closing stores", zap.Error(err))
	}
	_ = a.Logger.Sync()
}
