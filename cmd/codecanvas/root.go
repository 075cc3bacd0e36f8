package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/codecanvas/pkg/config"
)

var rootCmd = &cobra.Command{
	Use:   "codecanvas",
	Short: "CodeCanvas generates UI components and answers questions about them",
	Long: `CodeCanvas classifies a prompt as chat or code generation and streams the
reply from a generation model, framed with a CHAT: or CODE: marker.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML or JSON config file")
	rootCmd.PersistentFlags().StringSlice("env-file", nil, "Env files to load (default .env)")
}

// loadConfig loads configuration from the persistent flags and builds the
// process logger.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	envFiles, _ := cmd.Flags().GetStringSlice("env-file")

	cfg, err := config.Load(path, envFiles...)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger := cfg.Log.NewLogger(cmd.ErrOrStderr())
	slog.SetDefault(logger)
	return cfg, logger, nil
}
