// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package journal

import (
	"time"
)

// Config configures the violation journal.
type Config struct {
	// Enabled controls whether violations are journaled at all.
	Enabled bool `koanf:"enabled" json:"enabled"`

	// Path is the directory where BadgerDB stores its files. Ignored when
	// InMemory is set.
	Path string `koanf:"path" json:"path" validate:"required_unless=InMemory true"`

	// InMemory keeps the journal in memory only.
	InMemory bool `koanf:"in_memory" json:"in_memory"`

	// SyncWrites forces fsync after every batch.
	SyncWrites bool `koanf:"sync_writes" json:"sync_writes"`

	// Retention is how long violations are kept. Zero keeps them forever.
	Retention time.Duration `koanf:"retention" json:"retention"`

	// PruneInterval is how often expired violations are removed and the
	// value log is garbage collected.
	PruneInterval time.Duration `koanf:"prune_interval" json:"prune_interval"`

	// BufferSize bounds the queue between the tick loop and the writer.
	BufferSize int `koanf:"buffer_size" json:"buffer_size" validate:"gt=0"`

	// BatchSize is the maximum number of violations written per
	// transaction.
	BatchSize int `koanf:"batch_size" json:"batch_size" validate:"gt=0"`

	// GCRatio is the discard ratio for value log garbage collection.
	GCRatio float64 `koanf:"gc_ratio" json:"gc_ratio" validate:"gt=0,lt=1"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		Path:          "/data/guardian/journal",
		Retention:     30 * 24 * time.Hour,
		PruneInterval: time.Hour,
		BufferSize:    1024,
		BatchSize:     64,
		GCRatio:       0.5,
	}
}
