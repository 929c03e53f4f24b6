// Package cli provides the command-line interface for halyard.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/halyard-dev/halyard/internal/config"
	"github.com/halyard-dev/halyard/internal/logging"
)

var (
	// Global flags
	verbose    bool
	showHidden bool

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// Version information - set by main package at startup via LDFLAGS, with a
// fallback for plain go build.
var (
	Version   = "v0.3.0-dev"
	BuildTime = "unknown"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "halyard",
		Short: "Halyard - multi-backend remote file manager",
		Long: `Halyard ` + Version + ` - dual-tree file manager for remote storage.

Supported backends:
  ftp://    ftps://    plain and explicit-TLS FTP
  sftp://   SFTP over SSH
  s3://     S3-compatible object storage
  azblob:// Azure Blob storage
  dav://    davs://    WebDAV
  drive://  OAuth cloud drives

Run "halyard shell" for the interactive session shell, or use the one-shot
get/put commands for scripted transfers.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.NewDefault()
			if verbose {
				logging.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&showHidden, "hidden", false, "Include hidden files in local listings")

	rootCmd.Version = Version + " (" + BuildTime + ")"

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nreceived %v, cancelling...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newShellCmd())
	rootCmd.AddCommand(newGetCmd())
	rootCmd.AddCommand(newPutCmd())
	rootCmd.AddCommand(newLsCmd())
	rootCmd.AddCommand(newSessionsCmd())
	rootCmd.AddCommand(newConfigCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefault()
	}
	return logger
}

// GetContext returns the global CLI context with signal handling.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}

// loadSettings reads persisted settings, falling back to defaults on a
// missing or unreadable file.
func loadSettings() *config.Settings {
	path, err := config.SettingsPath()
	if err != nil {
		return config.DefaultSettings()
	}
	settings, err := config.LoadSettings(path)
	if err != nil {
		GetLogger().Warn().Err(err).Msg("settings unreadable, using defaults")
		return config.DefaultSettings()
	}
	return settings
}
