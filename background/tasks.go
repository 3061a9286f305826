// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package background

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ccollie/valkey-timeseries-sub001/index"
	"github.com/ccollie/valkey-timeseries-sub001/series"
)

// trimSkipCacheSize bounds the retention trim task's "last seen" cache: one
// entry per recently-visited series, just enough to cover a handful of
// sweeps worth of the batch size before the LRU starts evicting the tail.
const trimSkipCacheSize = 4096

// Cadence constants, per spec.md §4.7.
const (
	RetentionTrimSeconds   = 10
	StaleGCSeconds         = 15
	IndexOptimizeSeconds   = 60
	UnusedDBCleanupSeconds = 300
)

// DatabaseSet is the host boundary a background task reaches through to
// touch series/index state, re-acquiring the per-DB lock the same way the
// command path would (spec.md §5 "background tasks ... must re-acquire the
// host lock to touch series or index").
type DatabaseSet interface {
	// DBIDs lists the currently live per-DB ids, in a stable round-robin
	// order.
	DBIDs() []int32
	// SeriesBatch returns up to limit series with id > afterID in db,
	// ascending by id, plus the id to resume from next (0 once exhausted).
	SeriesBatch(db int32, afterID uint64, limit int) ([]*series.TimeSeries, uint64)
	Index(db int32) *index.PostingIndex
	SeriesCount(db int32) int
	RemoveDB(db int32)
}

// retentionCursor tracks round-robin-over-DBs, then cursor-within-DB state
// for the trim task.
type retentionCursor struct {
	mu      sync.Mutex
	dbPos   int
	afterID uint64
}

// NewRetentionTrimTask builds the ~10s task: picks the next DB in
// round-robin order, reads a batch of series starting after the last
// cursor, calls Trim on each, advances the cursor. A small LRU of
// (series id -> last sample timestamp seen) lets a sweep skip series that
// have not taken a new sample since they were last trimmed, since Trim is a
// no-op chunk scan on an otherwise-idle series.
func NewRetentionTrimTask(dbs DatabaseSet, batchSize int) Task {
	cur := &retentionCursor{}
	seen, _ := lru.New[uint64, int64](trimSkipCacheSize)
	return Task{
		Name:          "retention-trim",
		IntervalTicks: TicksFor(RetentionTrimSeconds),
		Run: func() {
			ids := dbs.DBIDs()
			if len(ids) == 0 {
				return
			}
			cur.mu.Lock()
			if cur.dbPos >= len(ids) {
				cur.dbPos = 0
			}
			db := ids[cur.dbPos]
			afterID := cur.afterID
			cur.mu.Unlock()

			batch, next := dbs.SeriesBatch(db, afterID, batchSize)
			for _, s := range batch {
				if s.RetentionMillis <= 0 {
					continue
				}
				if last, ok := seen.Get(s.ID); ok && last == s.LastSample.Timestamp {
					continue
				}
				s.Trim()
				seen.Add(s.ID, s.LastSample.Timestamp)
			}

			cur.mu.Lock()
			if next == 0 {
				cur.afterID = 0
				cur.dbPos++
			} else {
				cur.afterID = next
			}
			cur.mu.Unlock()
		},
	}
}

// staleGCState holds one resumable GCCursor per DB.
type staleGCState struct {
	mu      sync.Mutex
	cursors map[int32]*index.GCCursor
}

// NewStaleIDGCTask builds the ~15s task: per DB, processes a bounded batch
// of label_index entries via index.PostingIndex.RunGCBatch.
func NewStaleIDGCTask(dbs DatabaseSet, batchSize int) Task {
	state := &staleGCState{cursors: make(map[int32]*index.GCCursor)}
	return Task{
		Name:          "stale-id-gc",
		IntervalTicks: TicksFor(StaleGCSeconds),
		Run: func() {
			for _, db := range dbs.DBIDs() {
				idx := dbs.Index(db)
				if idx == nil {
					continue
				}
				state.mu.Lock()
				cur, ok := state.cursors[db]
				if !ok {
					cur = &index.GCCursor{}
					state.cursors[db] = cur
				}
				state.mu.Unlock()
				idx.RunGCBatch(cur, batchSize)
			}
		},
	}
}

// optimizeState holds one resumable OptimizeCursor per DB.
type optimizeState struct {
	mu      sync.Mutex
	cursors map[int32]*index.OptimizeCursor
}

// NewIndexOptimizeTask builds the ~60s task: per DB, runs bitmap
// run_optimize over a bounded batch of label_index entries.
func NewIndexOptimizeTask(dbs DatabaseSet, batchSize int) Task {
	state := &optimizeState{cursors: make(map[int32]*index.OptimizeCursor)}
	return Task{
		Name:          "index-optimize",
		IntervalTicks: TicksFor(IndexOptimizeSeconds),
		Run: func() {
			for _, db := range dbs.DBIDs() {
				idx := dbs.Index(db)
				if idx == nil {
					continue
				}
				state.mu.Lock()
				cur, ok := state.cursors[db]
				if !ok {
					cur = &index.OptimizeCursor{}
					state.cursors[db] = cur
				}
				state.mu.Unlock()
				idx.RunOptimizeBatch(cur, batchSize)
			}
		},
	}
}

// NewUnusedDBCleanupTask builds the ~5min task: removes per-DB indexes
// whose series count is zero.
func NewUnusedDBCleanupTask(dbs DatabaseSet) Task {
	return Task{
		Name:          "unused-db-cleanup",
		IntervalTicks: TicksFor(UnusedDBCleanupSeconds),
		Run: func() {
			for _, db := range dbs.DBIDs() {
				if dbs.SeriesCount(db) == 0 {
					dbs.RemoveDB(db)
				}
			}
		},
	}
}
