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

// Package store realizes the external interfaces of spec.md §6: the
// per-key storage callbacks and key-event hooks the host KV runtime drives
// the engine through, plus the persisted wire layout those callbacks read
// and write. Engine wires a concrete per-process implementation against
// series/index/common so the background scheduler and a host command
// dispatcher have something real to call.
package store

import (
	"hash"
	"io"

	"github.com/ccollie/valkey-timeseries-sub001/index"
	"github.com/ccollie/valkey-timeseries-sub001/series"
)

// HostStore is the set of per-key storage callbacks the host invokes on the
// core (spec.md §6). All methods operate on a single series value owned by
// the host at the given key; none take a lock themselves — the host already
// holds whatever lock its command dispatch requires before calling in.
type HostStore interface {
	// RDBSave writes s in the persisted per-series layout. RDBLoad is its
	// inverse, given the encoding version the stream was written with.
	RDBSave(w io.Writer, s *series.TimeSeries) error
	RDBLoad(r io.Reader, encVer int) (*series.TimeSeries, error)

	MemUsage(s *series.TimeSeries) int64
	Free(s *series.TimeSeries)
	// Copy clones s as it would live under toKey, leaving fromKey's value
	// untouched. The index id<->key bookkeeping is the caller's
	// responsibility (it has db, not just a bare series, in scope).
	Copy(fromKey, toKey []byte, s *series.TimeSeries) *series.TimeSeries
	Unlink(key []byte, s *series.TimeSeries)
	// Defrag gives the allocator a chance to compact s in place; it reports
	// whether anything moved.
	Defrag(key []byte, s *series.TimeSeries) bool
	// Digest folds a content hash of s into md, for host-side consistency
	// checks (spec.md §6, §9 "digest").
	Digest(md hash.Hash64, s *series.TimeSeries)

	// AuxSave/AuxLoad persist the per-DB label index alongside the RDB
	// stream, driven by the host's Before-RDB trigger.
	AuxSave(w io.Writer, idx *index.PostingIndex) error
	AuxLoad(r io.Reader) (*index.PostingIndex, error)
}

// KeyEventSink is the set of key-event hooks the host calls on the core
// (spec.md §6). The core maintains the id<->key map and postings bitmaps in
// response; FlushDBEnd/SwapDB operate at the whole-DB level instead of a
// single key.
type KeyEventSink interface {
	Loaded(db int32, key []byte, s *series.TimeSeries)
	Del(db int32, key []byte, s *series.TimeSeries)
	Evicted(db int32, key []byte, s *series.TimeSeries)
	Expired(db int32, key []byte, s *series.TimeSeries)
	Trimmed(db int32, key []byte, s *series.TimeSeries)
	Set(db int32, key []byte, s *series.TimeSeries)
	RenameFrom(db int32, oldKey []byte, s *series.TimeSeries)
	RenameTo(db int32, newKey []byte, s *series.TimeSeries)
	Restore(db int32, key []byte, s *series.TimeSeries)
	FlushDBEnd(db int32)
	SwapDB(a, b int32)
}
