// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the ararat-viewer CLI: headless
// access to the viewer core for exporting ROI batches, running
// inference, and inspecting manifests and ground-truth labels.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/araratmed/ararat-viewer/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var log zerolog.Logger

// rootCmd is the base command for the ararat-viewer CLI.
var rootCmd = &cobra.Command{
	Use:   "ararat-viewer",
	Short: "Clinician volume-viewer core: ROI export, inference, review",
	Long: `ararat-viewer is the headless companion to the clinician viewer. The
interactive application links the same core packages; this CLI exposes the
pipeline stages directly: exporting confirmed ROIs to mask and feature
artifacts, dispatching the version-pinned inference subprocess, and
inspecting the ROI manifest and ground-truth labels.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.InfoLevel
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			level = zerolog.DebugLevel
		}
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
			Level(level).With().Timestamp().Logger()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./ararat-viewer.yaml or ~/.config/ararat-viewer/config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("ararat-viewer")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "ararat-viewer"))
		}
	}

	viper.SetEnvPrefix("ARARAT_VIEWER")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig layers config-file and environment values over the
// documented defaults.
func loadConfig() types.ViewerConfig {
	cfg := types.DefaultConfig()

	if viper.IsSet("data_root") {
		cfg.DataRoot = viper.GetString("data_root")
	}
	if viper.IsSet("export.output_root") {
		cfg.Export.OutputRoot = viper.GetString("export.output_root")
	}
	if viper.IsSet("export.workers") {
		cfg.Export.Workers = viper.GetInt("export.workers")
	}
	if viper.IsSet("inference.python") {
		cfg.Inference.Python = viper.GetString("inference.python")
	}
	if viper.IsSet("inference.model_dir") {
		cfg.Inference.ModelDir = viper.GetString("inference.model_dir")
	}
	if viper.IsSet("inference.work_dir") {
		cfg.Inference.WorkDir = viper.GetString("inference.work_dir")
	}
	if viper.IsSet("inference.timeout") {
		cfg.Inference.Timeout = viper.GetDuration("inference.timeout")
	}
	if viper.IsSet("risk.low_max") {
		cfg.Risk.LowMax = viper.GetFloat64("risk.low_max")
	}
	if viper.IsSet("risk.high_min") {
		cfg.Risk.HighMin = viper.GetFloat64("risk.high_min")
	}
	return cfg
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
