package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information, set at build time
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tgexport",
	Short: "Export media and message history from Telegram channels",
	Long: `tgexport downloads the full media history of a Telegram channel:
photos, documents, videos, polls and linked webpages, together with a
cumulative JSON log of every exported message.

Exports are resumable: the cursor is persisted after every settled page, and
files already on disk are never downloaded twice. Request pacing, flood-wait
recovery and retry with exponential backoff are handled automatically.

Credentials are read from the system keychain, an encrypted credentials
file, or the TGEXPORT_API_ID / TGEXPORT_API_HASH environment variables.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .tgexport.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}
