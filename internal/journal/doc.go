// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

// Package journal keeps a durable history of violation reports in BadgerDB.
//
// The journal penalty calls Append from the tick loop. Append never blocks:
// reports go onto a bounded queue and Run writes them in batches. When the
// queue is full the report is dropped and counted, since a slow disk must
// not stall detection.
//
// Keys are ordered by creation time:
//
//	violation:<unix nanoseconds, 20 digits>:<report id>
//
// so List can walk newest first with a reverse iterator and Prune can stop
// at the first key newer than its cutoff. Entries also carry a Badger TTL
// equal to Retention; Prune removes them eagerly and the value log GC
// reclaims the space.
//
// Example:
//
//	j, err := journal.Open(cfg.Journal)
//	if err != nil {
//	    return err
//	}
//	defer j.Close()
//	go j.Run(ctx)
//
//	recent, err := j.List(ctx, journal.Query{Entity: "steve", Limit: 20})
package journal
