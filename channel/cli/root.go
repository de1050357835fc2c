package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/webbmaffian/go-ringchan/config"
)

var (
	// Global flags
	configPath string
	capacity   int
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "ringchan",
	Short: "Bounded in-memory byte channel",
	Long: `ringchan - exercise a fixed-capacity circular byte channel.

Settings are read from a YAML file (--config) and may be overridden by flags:

  capacity: 10        # storage size, at most capacity-1 bytes are buffered
  timeout: 10s        # deadline for blocking transfers, "0" waits forever
  non_blocking: false # fail with "would block" instead of waiting
  backing: heap       # heap or mmap
  log_level: info`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	rootCmd.PersistentFlags().IntVar(&capacity, "capacity", 0, "channel capacity in bytes (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(pumpCmd)
	rootCmd.AddCommand(watchCmd)
}

// loadConfig resolves the config file and flag overrides and installs the
// default logger.
func loadConfig(cmd *cobra.Command) (cfg config.Config, logger *slog.Logger, err error) {
	if cfg, err = config.Load(configPath); err != nil {
		return
	}

	if cmd.Root().PersistentFlags().Changed("capacity") {
		cfg.Capacity = capacity
	}

	if err = cfg.Validate(); err != nil {
		return
	}

	level, _ := cfg.Level()
	if verbose {
		level = slog.LevelDebug
	}

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return
}
