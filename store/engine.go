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

package store

import (
	"hash"
	"io"
	"math"
	"net"
	"sort"
	"sync"

	"github.com/ccollie/valkey-timeseries-sub001/chunk"
	"github.com/ccollie/valkey-timeseries-sub001/common"
	"github.com/ccollie/valkey-timeseries-sub001/index"
	"github.com/ccollie/valkey-timeseries-sub001/log"
	"github.com/ccollie/valkey-timeseries-sub001/series"
)

var engineLog = log.New("component", "store")

// db holds one logical database's series and label index, guarded by its
// own lock so the command path for db 3 never blocks db 7 (spec.md §5 "per
// database mutex").
type db struct {
	mu     sync.RWMutex
	index  *index.PostingIndex
	series map[uint64]*series.TimeSeries
}

func newDB() *db {
	return &db{index: index.New(), series: make(map[uint64]*series.TimeSeries)}
}

// Engine is the concrete, in-process implementation of HostStore,
// KeyEventSink and background.DatabaseSet: it owns every per-DB index and
// series map the host drives the engine through, plus the id generator and
// interner shared across all of them.
type Engine struct {
	mu   sync.RWMutex
	dbs  map[int32]*db
	ids  *common.Snowflake
	pool *common.Interner
	cdc  *codec
}

// NewEngine builds an empty Engine. nodeIP seeds the series-id generator's
// machine bits the same way it seeds cluster request ids (§4.6, §9).
func NewEngine(nodeIP net.IP) *Engine {
	pool := common.NewInterner()
	return &Engine{
		dbs:  make(map[int32]*db),
		ids:  common.NewSnowflake(nodeIP),
		pool: pool,
		cdc:  newCodec(pool),
	}
}

// NextSeriesID allocates the next process-unique series id.
func (e *Engine) NextSeriesID() uint64 { return e.ids.Next() }

func (e *Engine) dbFor(id int32) *db {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.dbs[id]
	if !ok {
		d = newDB()
		e.dbs[id] = d
	}
	return d
}

func (e *Engine) existingDB(id int32) (*db, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	d, ok := e.dbs[id]
	return d, ok
}

// Index returns dbID's label index, creating the db if unseen.
func (e *Engine) Index(dbID int32) *index.PostingIndex {
	return e.dbFor(dbID).index
}

// LookupByKey resolves a host-store key to its series value, the
// command-path equivalent of the host looking up a key and handing the
// engine its value.
func (e *Engine) LookupByKey(dbID int32, key []byte) (*series.TimeSeries, bool) {
	id, ok := e.dbFor(dbID).index.IDForKey(key)
	if !ok {
		return nil, false
	}
	return e.LookupByID(dbID, id)
}

// LookupByID resolves a series id directly, used by compaction rule
// destinations and fan-out handlers that already carry an id.
func (e *Engine) LookupByID(dbID int32, id uint64) (*series.TimeSeries, bool) {
	d := e.dbFor(dbID)
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.series[id]
	return s, ok
}

// --- background.DatabaseSet ---

// DBIDs lists the currently live per-DB ids, ascending for a stable
// round-robin order.
func (e *Engine) DBIDs() []int32 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]int32, 0, len(e.dbs))
	for id := range e.dbs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// SeriesBatch returns up to limit series with id > afterID in dbID,
// ascending by id, plus the id to resume from next (0 once exhausted).
func (e *Engine) SeriesBatch(dbID int32, afterID uint64, limit int) ([]*series.TimeSeries, uint64) {
	d, ok := e.existingDB(dbID)
	if !ok {
		return nil, 0
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]uint64, 0, len(d.series))
	for id := range d.series {
		if id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []*series.TimeSeries
	var next uint64
	for _, id := range ids {
		out = append(out, d.series[id])
		if len(out) == limit {
			next = id
			break
		}
	}
	return out, next
}

func (e *Engine) SeriesCount(dbID int32) int {
	d, ok := e.existingDB(dbID)
	if !ok {
		return 0
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.series)
}

// RemoveDB drops a db entirely once it holds no series, freeing its index.
func (e *Engine) RemoveDB(dbID int32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.dbs, dbID)
	engineLog.Debug("removed unused db", "db", dbID)
}

// --- HostStore ---

func (e *Engine) RDBSave(w io.Writer, s *series.TimeSeries) error {
	return e.cdc.RDBSave(w, s)
}

func (e *Engine) RDBLoad(r io.Reader, encVer int) (*series.TimeSeries, error) {
	return e.cdc.RDBLoad(r, encVer)
}

func (e *Engine) MemUsage(s *series.TimeSeries) int64 {
	var total int64
	for _, c := range s.Chunks() {
		total += int64(c.Size())
	}
	total += int64(len(s.Labels)) * 32
	return total
}

func (e *Engine) Free(*series.TimeSeries) {}

// Copy clones s as it would live under toKey: a fresh series value with the
// same configuration and chunk contents, keyed independently of fromKey.
func (e *Engine) Copy(fromKey, toKey []byte, s *series.TimeSeries) *series.TimeSeries {
	_, _ = fromKey, toKey
	clone := series.New(s.ID, append(series.Labels(nil), s.Labels...), s.RetentionMillis,
		s.ChunkCompression, s.ChunkSizeBytes, s.Duplicates, s.Rounding)
	for _, c := range s.Chunks() {
		blob := c.SaveRDB()
		nc := chunk.NewChunk(s.ChunkCompression, s.ChunkSizeBytes)
		if err := nc.LoadRDB(blob); err == nil {
			clone.LoadChunk(nc)
		}
	}
	return clone
}

func (e *Engine) Unlink([]byte, *series.TimeSeries) {}

func (e *Engine) Defrag([]byte, *series.TimeSeries) bool { return false }

// Digest folds a content hash of s into md: id, labels, then every sample's
// timestamp and (NaN-canonicalized) value, in chunk order.
func (e *Engine) Digest(md hash.Hash64, s *series.TimeSeries) {
	var buf [8]byte
	writeU64 := func(v uint64) {
		for i := range buf {
			buf[i] = byte(v >> (8 * i))
		}
		_, _ = md.Write(buf[:])
	}
	writeU64(s.ID)
	for _, l := range s.Labels {
		_, _ = md.Write(l.Name.Bytes())
		_, _ = md.Write(l.Value.Bytes())
	}
	for _, c := range s.Chunks() {
		for _, sample := range c.GetRange(c.FirstTimestamp(), c.LastTimestamp()) {
			writeU64(uint64(sample.Timestamp))
			writeU64(math.Float64bits(sample.Value))
		}
	}
}

func (e *Engine) AuxSave(w io.Writer, idx *index.PostingIndex) error {
	return e.cdc.AuxSave(w, idx)
}

func (e *Engine) AuxLoad(r io.Reader) (*index.PostingIndex, error) {
	return e.cdc.AuxLoad(r)
}

// --- KeyEventSink ---

func (e *Engine) Loaded(dbID int32, key []byte, s *series.TimeSeries)  { e.register(dbID, key, s) }
func (e *Engine) Set(dbID int32, key []byte, s *series.TimeSeries)     { e.register(dbID, key, s) }
func (e *Engine) Restore(dbID int32, key []byte, s *series.TimeSeries) { e.register(dbID, key, s) }

// Reindex re-registers a series already present in dbID's series map against
// its current label set, used by ALTER after a series' Labels are mutated in
// place: dropping the stale postings before re-indexing avoids leaving the
// series registered under labels it no longer carries.
func (e *Engine) Reindex(dbID int32, key []byte, s *series.TimeSeries) {
	idx := e.dbFor(dbID).index
	idx.Drop(s.ID)
	idx.Index(s.ID, key, labelPairs(s.Labels))
}

func (e *Engine) register(dbID int32, key []byte, s *series.TimeSeries) {
	d := e.dbFor(dbID)
	d.mu.Lock()
	d.series[s.ID] = s
	d.mu.Unlock()
	d.index.Index(s.ID, key, labelPairs(s.Labels))
}

func (e *Engine) Del(dbID int32, _ []byte, s *series.TimeSeries)     { e.deregister(dbID, s) }
func (e *Engine) Evicted(dbID int32, _ []byte, s *series.TimeSeries) { e.deregister(dbID, s) }
func (e *Engine) Expired(dbID int32, _ []byte, s *series.TimeSeries) { e.deregister(dbID, s) }

// Trimmed fires after TimeSeries.Trim() evicted some samples out of
// retention; the series survives, only its chunk contents changed, so the
// index registration is untouched.
func (e *Engine) Trimmed(int32, []byte, *series.TimeSeries) {}

func (e *Engine) deregister(dbID int32, s *series.TimeSeries) {
	d := e.dbFor(dbID)
	d.mu.Lock()
	delete(d.series, s.ID)
	d.mu.Unlock()
	d.index.Drop(s.ID)
}

func (e *Engine) RenameFrom(int32, []byte, *series.TimeSeries) {}

func (e *Engine) RenameTo(dbID int32, newKey []byte, s *series.TimeSeries) {
	e.dbFor(dbID).index.Rename(s.ID, newKey)
}

func (e *Engine) FlushDBEnd(dbID int32) {
	d := e.dbFor(dbID)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.series = make(map[uint64]*series.TimeSeries)
	d.index.Flush()
	engineLog.Info("flushdb", "db", dbID)
}

func (e *Engine) SwapDB(a, b int32) {
	da, db2 := e.dbFor(a), e.dbFor(b)
	index.Swap(da.index, db2.index)

	da.mu.Lock()
	db2.mu.Lock()
	da.series, db2.series = db2.series, da.series
	db2.mu.Unlock()
	da.mu.Unlock()
}

func labelPairs(labels series.Labels) [][2]string {
	out := make([][2]string, len(labels))
	for i, l := range labels {
		out[i] = [2]string{l.Name.String(), l.Value.String()}
	}
	return out
}
