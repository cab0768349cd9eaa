// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package journal

import (
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

// maxPendingRestoreWrites bounds the write batches badger keeps in flight
// while loading a backup.
const maxPendingRestoreWrites = 256

// BackupInfo describes a written backup.
type BackupInfo struct {
	// Version is the badger version the backup is consistent at.
	Version   uint64    `json:"version"`
	Bytes     int64     `json:"bytes"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
}

// countingWriter tracks bytes written through it.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Backup writes a gzip compressed badger backup of every violation to w.
// The checksum is the SHA-256 of the compressed bytes.
func (j *Journal) Backup(w io.Writer) (BackupInfo, error) {
	if j.isClosed() {
		return BackupInfo{}, ErrClosed
	}

	hash := sha256.New()
	out := &countingWriter{w: io.MultiWriter(w, hash)}
	gz := gzip.NewWriter(out)

	version, err := j.db.Backup(gz, 0)
	if err != nil {
		_ = gz.Close()
		return BackupInfo{}, fmt.Errorf("backup BadgerDB: %w", err)
	}
	if err := gz.Close(); err != nil {
		return BackupInfo{}, fmt.Errorf("finish backup: %w", err)
	}

	info := BackupInfo{
		Version:   version,
		Bytes:     out.n,
		Checksum:  hex.EncodeToString(hash.Sum(nil)),
		CreatedAt: time.Now().UTC(),
	}
	j.logger.Info().
		Uint64("version", info.Version).
		Int64("bytes", info.Bytes).
		Str("checksum", info.Checksum).
		Msg("journal backup written")
	return info, nil
}

// Restore loads a backup written by Backup. Existing violations with the
// same keys are overwritten; others are kept.
func (j *Journal) Restore(r io.Reader) error {
	if j.isClosed() {
		return ErrClosed
	}

	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("open backup: %w", err)
	}
	defer gz.Close()

	if err := j.db.Load(gz, maxPendingRestoreWrites); err != nil {
		return fmt.Errorf("load backup: %w", err)
	}
	j.logger.Info().Msg("journal backup restored")
	return nil
}
