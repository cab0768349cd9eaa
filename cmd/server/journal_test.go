// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/journal"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/report"
)

func TestJournalBackupRestore(t *testing.T) {
	dir := t.TempDir()
	cfg := loadTestConfig(t, baseConfig)
	cfg.Journal.InMemory = false
	cfg.Journal.Path = filepath.Join(dir, "journal")

	j, err := journal.Open(cfg.Journal)
	if err != nil {
		t.Fatal(err)
	}
	err = j.Write(report.Record{
		ID:          "v1",
		Entity:      "e1",
		DetectionID: "reach",
		Violation:   true,
		CreatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	_ = j.Close()

	backupPath := filepath.Join(dir, "journal.bak.gz")
	var out bytes.Buffer
	if err := backupJournal(&out, cfg, backupPath); err != nil {
		t.Fatalf("backupJournal() = %v", err)
	}
	var info journal.BackupInfo
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		t.Fatalf("backup info is not JSON: %v", err)
	}
	if info.Bytes == 0 || info.Checksum == "" {
		t.Errorf("backup info = %+v", info)
	}

	cfg.Journal.Path = filepath.Join(dir, "restored")
	if err := restoreJournal(cfg, backupPath); err != nil {
		t.Fatalf("restoreJournal() = %v", err)
	}

	j, err = journal.Open(cfg.Journal)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()
	got, err := j.List(context.Background(), journal.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "v1" {
		t.Errorf("restored journal = %+v, want v1", got)
	}
}

func TestJournalBackup_InMemory(t *testing.T) {
	cfg := loadTestConfig(t, baseConfig)
	err := backupJournal(&bytes.Buffer{}, cfg, filepath.Join(t.TempDir(), "x"))
	if !errors.Is(err, errJournalUnavailable) {
		t.Errorf("backupJournal() = %v, want errJournalUnavailable", err)
	}
}
