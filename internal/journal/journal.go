// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package journal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/entity"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/logging"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/metrics"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/report"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/validation"
)

// Errors
var (
	// ErrClosed is returned when the journal is closed.
	ErrClosed = errors.New("journal is closed")

	// ErrFull is returned by Append when the write queue is full.
	ErrFull = errors.New("journal queue full")
)

const prefixViolation = "violation:"

// Query filters List results.
type Query struct {
	// Limit caps the number of records. Zero means 100.
	Limit int

	// Entity restricts results to one entity.
	Entity entity.ID

	// Since drops violations created before it.
	Since time.Time
}

// Stats describes the journal.
type Stats struct {
	Writes  int64 `json:"writes"`
	Dropped int64 `json:"dropped"`
	Pruned  int64 `json:"pruned"`
	Queued  int   `json:"queued"`
}

// Journal stores violation reports in BadgerDB, newest last by key. Append
// hands reports to a writer goroutine started by Run.
type Journal struct {
	db     *badger.DB
	config Config
	queue  chan report.Record
	logger zerolog.Logger

	mu     sync.RWMutex
	closed bool

	writes  atomic.Int64
	dropped atomic.Int64
	pruned  atomic.Int64
}

// Open opens (or creates) the journal.
func Open(cfg Config) (*Journal, error) {
	if verr := validation.ValidateStruct(&cfg); verr != nil {
		return nil, fmt.Errorf("invalid journal config: %w", verr)
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	j := &Journal{
		db:     db,
		config: cfg,
		queue:  make(chan report.Record, cfg.BufferSize),
		logger: logging.WithComponent("journal"),
	}
	j.logger.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Dur("retention", cfg.Retention).
		Msg("journal opened")
	return j, nil
}

// key orders violations by creation time. The nanosecond timestamp is
// zero padded so byte order matches time order.
func key(rec report.Record) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", prefixViolation, rec.CreatedAt.UnixNano(), rec.ID))
}

// keyTime extracts the creation time from a key.
func keyTime(k []byte) (time.Time, bool) {
	rest := bytes.TrimPrefix(k, []byte(prefixViolation))
	i := bytes.IndexByte(rest, ':')
	if i < 0 {
		return time.Time{}, false
	}
	ns, err := strconv.ParseInt(string(rest[:i]), 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(0, ns), true
}

func (j *Journal) isClosed() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.closed
}

// Append queues r for writing without blocking. It implements
// detection.Journal.
func (j *Journal) Append(r *report.Report) error {
	if j.isClosed() {
		return ErrClosed
	}
	select {
	case j.queue <- r.Record():
		return nil
	default:
		j.dropped.Add(1)
		metrics.RecordJournalWrite("dropped")
		return ErrFull
	}
}

// Write stores records in one transaction.
func (j *Journal) Write(records ...report.Record) error {
	if len(records) == 0 {
		return nil
	}
	if j.isClosed() {
		return ErrClosed
	}

	err := j.db.Update(func(txn *badger.Txn) error {
		for _, rec := range records {
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("marshal violation %s: %w", rec.ID, err)
			}
			e := badger.NewEntry(key(rec), data)
			if j.config.Retention > 0 {
				e = e.WithTTL(j.config.Retention)
			}
			if err := txn.SetEntry(e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		metrics.RecordJournalWrite("failure")
		return fmt.Errorf("write to BadgerDB: %w", err)
	}

	j.writes.Add(int64(len(records)))
	for range records {
		metrics.RecordJournalWrite("success")
	}
	return nil
}

// List returns violations newest first.
func (j *Journal) List(ctx context.Context, q Query) ([]report.Record, error) {
	if j.isClosed() {
		return nil, ErrClosed
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	var out []report.Record
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(prefixViolation)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(prefixViolation + "\xff")); it.ValidForPrefix(opts.Prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			item := it.Item()
			if !q.Since.IsZero() {
				if at, ok := keyTime(item.Key()); ok && at.Before(q.Since) {
					return nil
				}
			}

			var rec report.Record
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				j.logger.Warn().Err(err).Str("key", string(item.Key())).Msg("failed to unmarshal violation")
				continue
			}
			if q.Entity != "" && rec.Entity != q.Entity {
				continue
			}

			out = append(out, rec)
			if len(out) >= limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate violations: %w", err)
	}
	return out, nil
}

// Prune deletes violations created before cutoff.
func (j *Journal) Prune(cutoff time.Time) (int, error) {
	if j.isClosed() {
		return 0, ErrClosed
	}

	var keysToDelete [][]byte
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixViolation)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			at, ok := keyTime(it.Item().Key())
			if ok && !at.Before(cutoff) {
				break
			}
			keysToDelete = append(keysToDelete, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan expired violations: %w", err)
	}

	wb := j.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keysToDelete {
		if err := wb.Delete(k); err != nil {
			return 0, fmt.Errorf("delete violation: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("flush deletes: %w", err)
	}

	n := len(keysToDelete)
	j.pruned.Add(int64(n))
	metrics.JournalPruned.Add(float64(n))
	return n, nil
}

// RunGC reclaims value log space until nothing is left to rewrite.
func (j *Journal) RunGC() error {
	if j.isClosed() {
		return ErrClosed
	}
	if j.config.InMemory {
		return nil
	}
	for {
		err := j.db.RunValueLogGC(j.config.GCRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Run writes queued violations in batches and prunes on PruneInterval
// until ctx is canceled. Queued violations are flushed before it returns.
func (j *Journal) Run(ctx context.Context) error {
	var prune <-chan time.Time
	if j.config.PruneInterval > 0 && j.config.Retention > 0 {
		ticker := time.NewTicker(j.config.PruneInterval)
		defer ticker.Stop()
		prune = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			j.drain()
			return ctx.Err()
		case rec := <-j.queue:
			j.writeBatch(rec)
		case <-prune:
			j.maintain()
		}
	}
}

// writeBatch writes first plus whatever else is queued, up to BatchSize.
func (j *Journal) writeBatch(first report.Record) {
	batch := []report.Record{first}
collect:
	for len(batch) < j.config.BatchSize {
		select {
		case rec := <-j.queue:
			batch = append(batch, rec)
		default:
			break collect
		}
	}
	if err := j.Write(batch...); err != nil {
		j.logger.Error().Err(err).Int("count", len(batch)).Msg("failed to journal violations")
	}
}

func (j *Journal) drain() {
	for {
		select {
		case rec := <-j.queue:
			j.writeBatch(rec)
		default:
			return
		}
	}
}

func (j *Journal) maintain() {
	n, err := j.Prune(time.Now().Add(-j.config.Retention))
	if err != nil {
		j.logger.Error().Err(err).Msg("journal prune failed")
		return
	}
	if n > 0 {
		j.logger.Info().Int("removed", n).Msg("journal pruned")
	}
	if err := j.RunGC(); err != nil {
		j.logger.Warn().Err(err).Msg("journal GC failed")
	}
}

// Stats returns write counters.
func (j *Journal) Stats() Stats {
	return Stats{
		Writes:  j.writes.Load(),
		Dropped: j.dropped.Load(),
		Pruned:  j.pruned.Load(),
		Queued:  len(j.queue),
	}
}

// Close closes the database. Violations still queued are lost unless Run
// returned first.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	j.mu.Unlock()

	if err := j.db.Close(); err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	return nil
}
