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

package series

import (
	"github.com/tidwall/btree"

	"github.com/ccollie/valkey-timeseries-sub001/chunk"
)

// chunkIndexThreshold is the chunk count at which TimeSeries switches its
// timestamp-to-chunk lookup from sort.Search over the chunk slice to the
// btree index.
const chunkIndexThreshold = 16

type chunkIndexEntry struct {
	firstTS int64
	pos     int // position in TimeSeries.chunks at the time the index was built
}

func chunkIndexLess(a, b chunkIndexEntry) bool {
	if a.firstTS != b.firstTS {
		return a.firstTS < b.firstTS
	}
	return a.pos < b.pos
}

// chunkIndex is a disposable secondary index over a TimeSeries' chunk slice.
// It is rebuilt whenever the chunk list changes structurally (split, remove,
// append of a new chunk) and only while chunk count clears the threshold;
// the "current source of truth" is always TimeSeries.chunks, this is purely
// an acceleration structure.
type chunkIndex struct {
	tree *btree.BTreeG[chunkIndexEntry]
}

func newChunkIndex() *chunkIndex {
	return &chunkIndex{tree: btree.NewBTreeG(chunkIndexLess)}
}

func (ix *chunkIndex) rebuild(chunks []chunk.Chunk) {
	ix.tree = btree.NewBTreeG(chunkIndexLess)
	for i, c := range chunks {
		ix.tree.Set(chunkIndexEntry{firstTS: c.FirstTimestamp(), pos: i})
	}
}

// findPos returns the position of the last chunk whose first_timestamp is
// <= ts, or 0 if ts precedes every chunk's first_timestamp.
func (ix *chunkIndex) findPos(ts int64) int {
	pos := 0
	found := false
	ix.tree.Descend(chunkIndexEntry{firstTS: ts, pos: int(^uint(0) >> 1)}, func(item chunkIndexEntry) bool {
		pos = item.pos
		found = true
		return false
	})
	if !found {
		return 0
	}
	return pos
}
