// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "guardian",
	Short: "Tick-synchronous movement anomaly detection",
	Long: `Guardian consumes entity state and movement events from a game host,
runs the movement speed, invalid movement and reach detections once per
tick, and publishes confirmed violations to the message bus, the violation
journal, websocket clients and configured webhooks.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		fmt.Sprintf("config file (default: $%s or the first of %v)", config.ConfigPathEnvVar, config.DefaultConfigPaths))
	rootCmd.AddCommand(serveCmd, checkConfigCmd, journalCmd)
}

// loadConfig honors --config, then the default search path.
func loadConfig() (*config.Config, string, error) {
	if configPath != "" {
		cfg, err := config.LoadFile(configPath)
		return cfg, configPath, err
	}
	cfg, err := config.LoadWithKoanf()
	return cfg, config.ConfigFile(), err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
