package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"streamd/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "streamd",
	Short:         "Stream text generation from a local model over SSE",
	SilenceUsage:  true,
	SilenceErrors: false,
	// Running the bare binary serves, like `streamd serve`.
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (.yaml, .yml, .json or .toml)")
	rootCmd.PersistentFlags().String("models-dir", "", "directory to scan for *.gguf model files")
	rootCmd.PersistentFlags().String("backend", "", "runtime for scanned models: llama.cpp or in-process")
	registerServeFlags(rootCmd)
}

// loadConfig resolves configuration in order: defaults, config file,
// STREAMD_* environment, then explicitly set flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Defaults()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if err := config.ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, fmt.Errorf("environment: %w", err)
	}
	applyFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
