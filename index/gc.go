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

package index

// GCCursor and OptimizeCursor resume a bounded background pass across the
// ordered label index, per spec.md §4.4's "resumable cursor" requirement:
// a tick processes at most `batch` entries starting at the last key
// reached, so either pass can share the host's single worker budget with
// everything else without ever stalling it.
type GCCursor struct {
	next string
	done bool
}

// RunGCBatch subtracts stale_ids from up to `batch` label-index entries
// starting at the cursor, dropping entries that become empty. Once the scan
// wraps back to the start, stale_ids is cleared and the cursor resets.
func (p *PostingIndex) RunGCBatch(cursor *GCCursor, batch int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.staleIDs.IsEmpty() {
		cursor.next, cursor.done = "", true
		return
	}

	processed := 0
	var toDelete []string
	wrapped := false
	p.labelIndex.AscendGreaterOrEqual(postingEntry{key: cursor.next}, func(e postingEntry) bool {
		if processed >= batch {
			cursor.next = e.key
			return false
		}
		e.bm.AndNot(p.staleIDs)
		if e.bm.IsEmpty() {
			toDelete = append(toDelete, e.key)
		}
		processed++
		cursor.next = e.key
		return true
	})
	for _, k := range toDelete {
		p.labelIndex.Delete(postingEntry{key: k})
	}
	if processed < batch {
		// reached the end of the index without filling the batch: the pass
		// has fully covered every entry at least once.
		wrapped = true
	}
	if wrapped {
		p.staleIDs.Clear()
		cursor.next = ""
		cursor.done = true
	}
}

// OptimizeCursor resumes the incremental bitmap-optimization pass.
type OptimizeCursor struct {
	next string
	done bool
}

// RunOptimizeBatch calls RunOptimize on up to `batch` label-index bitmaps
// starting at the cursor, collapsing array/bitset runs to shrink their
// serialized and in-memory footprint.
func (p *PostingIndex) RunOptimizeBatch(cursor *OptimizeCursor, batch int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	processed := 0
	p.labelIndex.AscendGreaterOrEqual(postingEntry{key: cursor.next}, func(e postingEntry) bool {
		if processed >= batch {
			cursor.next = e.key
			return false
		}
		e.bm.RunOptimize()
		processed++
		cursor.next = e.key
		return true
	})
	if processed < batch {
		cursor.next = ""
		cursor.done = true
	}
}
