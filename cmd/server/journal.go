// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/config"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/journal"
)

var errJournalUnavailable = errors.New("journal is disabled or in memory")

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Back up or restore the violation journal (instance must be stopped)",
}

var journalBackupCmd = &cobra.Command{
	Use:   "backup FILE",
	Short: "Write a compressed backup of the violation journal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		return backupJournal(cmd.OutOrStdout(), cfg, args[0])
	},
}

var journalRestoreCmd = &cobra.Command{
	Use:   "restore FILE",
	Short: "Load a backup written by journal backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		return restoreJournal(cfg, args[0])
	},
}

func init() {
	journalCmd.AddCommand(journalBackupCmd, journalRestoreCmd)
}

func openJournal(cfg *config.Config) (*journal.Journal, error) {
	if !cfg.Journal.Enabled || cfg.Journal.InMemory {
		return nil, errJournalUnavailable
	}
	return journal.Open(cfg.Journal)
}

// backupJournal writes the backup to path and prints its BackupInfo.
func backupJournal(w io.Writer, cfg *config.Config, path string) (err error) {
	j, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer j.Close()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create backup file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close backup file: %w", cerr)
		}
	}()

	info, err := j.Backup(f)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("encode backup info: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func restoreJournal(cfg *config.Config, path string) error {
	j, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer j.Close()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open backup file: %w", err)
	}
	defer f.Close()
	return j.Restore(f)
}
