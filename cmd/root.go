// Package cmd provides the cmdbridge command line.
package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/adalundhe/cmdbridge/core/config"
	"github.com/adalundhe/cmdbridge/core/logging"
	"github.com/adalundhe/cmdbridge/core/storage"
)

var (
	projectRoot string
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "cmdbridge",
	Short: "cmdbridge - plugin command routing for game servers",
	Long: `cmdbridge lets plugins register chat and console commands on a game
server whose command table belongs to the host, overriding built-ins and
restoring them when the plugin goes away.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&projectRoot, "project", ".", "Server install root containing .cmdbridge/")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
}

func Execute() error {
	return rootCmd.Execute()
}

// loadConfig resolves directories and loads the layered configuration. The
// returned Config is a copy with command-line overrides applied.
func loadConfig() (*config.Manager, *config.Config, *storage.Dirs, error) {
	dirs := storage.ResolveDirs()
	manager := config.NewManager(dirs, projectRoot)
	if err := manager.Load(); err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	cfg := *manager.Get()
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	cfg.Permissions.Database = cfg.DatabasePath(dirs)
	return manager, &cfg, dirs, nil
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	return logging.New(cfg.Logging, w)
}
