// Command voxcat is a terminal Voxhall client. It maintains the persistent
// gateway connection, mirrors the event stream into the local cache, and
// prints activity as it happens.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	apiURL     string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "voxcat",
	Short: "Voxhall terminal client",
	Long: `voxcat connects to the Voxhall gateway and follows the event stream.
Use 'voxcat login' once to cache a session token, then 'voxcat run' to
watch servers, or 'voxcat send' for a one-shot message.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "~/.voxcat/config.toml", "Path to the config file")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API base URL (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// loadRunConfig loads the config file and applies command-line overrides.
func loadRunConfig() (TOMLConfig, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return TOMLConfig{}, err
	}
	if apiURL != "" {
		cfg.API.BaseURL = apiURL
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "voxcat: %v\n", err)
		os.Exit(1)
	}
}
