package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"iggrowth/pkg/config"
	"iggrowth/pkg/logger"
)

var (
	version = "1.0.0"

	// Global flags
	configFile string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "iggrowth",
	Short: "Automated social-graph growth for Instagram accounts",
	Long: `iggrowth automates follow, unfollow and like actions against a
rate-limited platform API while tracking every decision in a persistent
ledger.

Policies:
  - unfollow accounts that do not follow back (manual whitelist respected)
  - prune low-value mutual follows by follower/following ratio
  - copy followers from a target account through the good-user filter
  - follow or like the likers of a tag's top posts
  - allocate exploration budget across tags with Thompson sampling

Sessions are restored from the system keychain (or an encrypted file) to
avoid re-authenticating on every run.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}

		log, err := logger.New(&cfg.Logging)
		if err != nil {
			return err
		}
		logger.SetLogger(log)

		loadedConfig = cfg
		return nil
	},
}

// loadedConfig is populated by the root PersistentPreRunE for subcommands
var loadedConfig *config.Config

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $HOME/.iggrowth.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}
