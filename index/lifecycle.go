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

import (
	"unsafe"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/google/btree"
)

// Index registers a newly created series: it records the id<->key mapping
// and posts id into every (label, value) bitmap plus the universe set.
func (p *PostingIndex) Index(id uint64, key []byte, labels [][2]string) {
	p.mu.Lock()
	p.idToKey[id] = append([]byte(nil), key...)
	p.idToLabels[id] = append([][2]string(nil), labels...)
	p.keyToID[string(key)] = id
	p.mu.Unlock()

	for _, l := range labels {
		p.AddPostingForLabelValue(id, l[0], l[1])
	}
	p.mu.Lock()
	p.addLocked(allPostingsKey, id)
	p.mu.Unlock()
}

// Drop removes a series from the index eagerly: its id<->key entries are
// deleted and its labels' bitmaps updated. If the series' labels cannot be
// recovered (the inconsistency path of spec.md §3's lifecycle), callers
// should fall back to MarkStale instead.
func (p *PostingIndex) Drop(id uint64) {
	p.mu.Lock()
	key, hasKey := p.idToKey[id]
	labels := p.idToLabels[id]
	delete(p.idToKey, id)
	delete(p.idToLabels, id)
	if hasKey {
		delete(p.keyToID, string(key))
	}
	p.mu.Unlock()

	for _, l := range labels {
		p.RemovePostingForLabelValue(l[0], l[1], id)
	}
	p.mu.Lock()
	p.removeLocked(allPostingsKey, id)
	p.mu.Unlock()
}

// MarkStale records that id's backing series could not be read back
// cleanly: it is removed from the id<->key maps immediately and queued for
// the background GC pass to subtract from every bitmap it still appears in.
func (p *PostingIndex) MarkStale(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if key, ok := p.idToKey[id]; ok {
		delete(p.keyToID, string(key))
	}
	delete(p.idToKey, id)
	delete(p.idToLabels, id)
	p.staleIDs.Add(id)
}

// Rename updates the id<->key map atomically; postings bitmaps are
// unaffected, matching spec.md §3's lifecycle note.
func (p *PostingIndex) Rename(id uint64, newKey []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if oldKey, ok := p.idToKey[id]; ok {
		delete(p.keyToID, string(oldKey))
	}
	key := append([]byte(nil), newKey...)
	p.idToKey[id] = key
	p.keyToID[string(key)] = id
}

// IDForKey resolves a host-store key back to its series ID.
func (p *PostingIndex) IDForKey(key []byte) (uint64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.keyToID[string(key)]
	return id, ok
}

// KeyForID resolves a series ID back to its host-store key.
func (p *PostingIndex) KeyForID(id uint64) ([]byte, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	key, ok := p.idToKey[id]
	return key, ok
}

// Entry is one (id, key, labels) registration, as returned by Entries for
// persistence (the host's aux_save/aux_load hook, spec.md §6).
type Entry struct {
	ID     uint64
	Key    []byte
	Labels [][2]string
}

// Entries snapshots every live registration, in no particular order. Stale
// ids queued for GC are not included: their labels are already gone from
// idToLabels.
func (p *PostingIndex) Entries() []Entry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Entry, 0, len(p.idToKey))
	for id, key := range p.idToKey {
		out = append(out, Entry{ID: id, Key: key, Labels: p.idToLabels[id]})
	}
	return out
}

// Flush clears the entire index, per spec.md §3 "Database flush clears the
// per-DB index".
func (p *PostingIndex) Flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.labelIndex = btree.NewG(32, postingEntryLess)
	p.idToKey = make(map[uint64][]byte)
	p.idToLabels = make(map[uint64][][2]string)
	p.keyToID = make(map[string]uint64)
	p.staleIDs = roaring64.New()
}

// Swap exchanges the internal state of two per-database indexes atomically,
// implementing SWAPDB (spec.md §3).
func Swap(a, b *PostingIndex) {
	// Lock in a fixed pointer order to avoid deadlocking against a
	// concurrent Swap(b, a).
	first, second := a, b
	if uintptr(unsafe.Pointer(a)) > uintptr(unsafe.Pointer(b)) {
		first, second = b, a
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	a.labelIndex, b.labelIndex = b.labelIndex, a.labelIndex
	a.idToKey, b.idToKey = b.idToKey, a.idToKey
	a.idToLabels, b.idToLabels = b.idToLabels, a.idToLabels
	a.keyToID, b.keyToID = b.keyToID, a.keyToID
	a.staleIDs, b.staleIDs = b.staleIDs, a.staleIDs
}
