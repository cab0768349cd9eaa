// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package main

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/config"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/detection"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/pipeline"
)

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate the configuration and print the effective detection settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}
		return checkConfig(cmd.OutOrStdout(), cfg, path)
	},
}

// configSummary is printed by check-config.
type configSummary struct {
	File       string           `json:"file,omitempty"`
	Pipeline   pipeline.Config  `json:"pipeline"`
	BusDriver  string           `json:"bus_driver"`
	Journal    bool             `json:"journal"`
	Audit      bool             `json:"audit"`
	HTTP       string           `json:"http,omitempty"`
	Detections []detection.Info `json:"detections"`
}

// checkConfig registers every detection against cfg without starting
// anything, so invalid detection sections fail here as they would at
// startup.
func checkConfig(w io.Writer, cfg *config.Config, path string) error {
	reg := detection.NewRegistry()
	if err := registerDetections(reg, cfg, nil); err != nil {
		return err
	}

	summary := configSummary{
		File:       path,
		Pipeline:   cfg.Pipeline,
		BusDriver:  cfg.Bus.Driver,
		Journal:    cfg.Journal.Enabled,
		Audit:      cfg.Audit.Enabled,
		Detections: reg.List(),
	}
	if cfg.Server.Enabled {
		summary.HTTP = cfg.Server.Addr()
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
