// ABOUTME: Root command for the bloom CLI
// ABOUTME: Handles global flags and logging setup

package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/bloomapp/bloom/internal/logger"
)

var (
	serverURL  string
	jsonOutput bool
	verbose    bool
)

// rootCmd is the base command
var rootCmd = &cobra.Command{
	Use:   "bloom",
	Short: "Client for Jellyfin-compatible media servers",
	Long: `bloom is a command-line client for Jellyfin-compatible media servers.

It keeps an authenticated session across runs: access tokens live in the
platform secret store, non-secret session metadata in the config file.

Environment Variables:
  BLOOM_SERVER_URL           Media server URL (login default)
  BLOOM_SECRETS_BACKEND      Secret store override: memory or none
  BLOOM_LOG_LEVEL            debug, info, warn, error (default: info)
  BLOOM_LOG_FORMAT           text or json (default: text)
  BLOOM_SKIP_SSL_VALIDATION  Accept self-signed server certificates
  BLOOM_ALL_PROXY            SOCKS5 proxy for server requests`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(verbose)
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Media server URL (overrides BLOOM_SERVER_URL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output JSON instead of human-readable text")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// GetServerURL returns the server URL from flag or env (in priority order).
func GetServerURL() string {
	if serverURL != "" {
		return serverURL
	}
	return os.Getenv("BLOOM_SERVER_URL")
}

// IsJSONOutput returns whether JSON output is requested
func IsJSONOutput() bool {
	return jsonOutput
}
