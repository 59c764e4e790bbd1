// Package main implements the weekshift CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose      bool
	settingsPath string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "weekshift",
	Short: "weekshift - keep the contribution calendar rendered Monday-first",
	Long: `weekshift attaches to a live profile page over the Chrome DevTools
Protocol and rewrites the seven-row contribution-calendar table in place so
the visual week starts on Monday instead of Sunday.

It keeps watching for the single-page-application re-renders that replace
the table without a full page load, and corrects each new instance exactly
once.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", defaultSettingsPath(), "settings file")

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(realignCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func defaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".weekshift", "settings.json")
	}
	return filepath.Join(home, ".weekshift", "settings.json")
}

// stateDir is where weekshift keeps its own files, next to the settings.
func stateDir() string {
	return filepath.Dir(settingsPath)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
