package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/morph-tutor/backend/pkg/config"
	"github.com/morph-tutor/backend/pkg/logger"
)

var (
	cfgFile       string
	logLevel      string
	currentConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "tutorctl",
	Short:         "tutorctl maintains the Morph tutor knowledge index, lesson catalog and caches",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Init(logLevel, "console", "stderr"); err != nil {
			return err
		}

		var (
			cfg *config.Config
			err error
		)
		if cfgFile != "" {
			cfg, err = config.LoadFile(cfgFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		currentConfig = cfg
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ./config.yaml, ./config/config.yaml, /etc/morph-tutor/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

func getConfig() *config.Config {
	return currentConfig
}
