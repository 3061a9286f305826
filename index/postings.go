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

// Package index implements the per-database label (postings) index: an
// ordered map from "<label>=<value>\0" to a bitmap of series IDs, plus the
// id<->key bookkeeping and stale-ID reconciliation spec.md §4.4 describes.
package index

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/google/btree"
)

// allPostingsKey is the reserved sentinel indexing the universe set, chosen
// to be unrepresentable as a real "<label>=<value>\0" key (it contains
// neither '=' at a label-boundary position nor a trailing NUL).
const allPostingsKey = "$_ALL_P0STINGS_"

// labelValueKey builds the ordered-map key for one (label, value) pair. The
// trailing NUL sentinel (spec.md §9 "Ordered label map") keeps "foo=" from
// being a byte-prefix of "foobar=".
func labelValueKey(label, value string) string {
	return label + "=" + value + "\x00"
}

// labelPrefix returns the scan prefix covering every value of label.
func labelPrefix(label string) string {
	return label + "="
}

type postingEntry struct {
	key string
	bm  *roaring64.Bitmap
}

func postingEntryLess(a, b postingEntry) bool { return a.key < b.key }

// emptyBitmap is a shared, never-mutated zero-value bitmap; negative-result
// paths return a Clone of it, so callers may mutate what they get.
var emptyBitmap = roaring64.New()

// PostingIndex is the per-database label index plus the id<->key maps it is
// built against. Zero value is not usable; construct with New.
type PostingIndex struct {
	mu sync.RWMutex

	labelIndex *btree.BTreeG[postingEntry]

	idToKey    map[uint64][]byte
	idToLabels map[uint64][][2]string
	keyToID    map[string]uint64

	staleIDs *roaring64.Bitmap
}

func New() *PostingIndex {
	return &PostingIndex{
		labelIndex: btree.NewG(32, postingEntryLess),
		idToKey:    make(map[uint64][]byte),
		idToLabels: make(map[uint64][][2]string),
		keyToID:    make(map[string]uint64),
		staleIDs:   roaring64.New(),
	}
}

func (p *PostingIndex) bitmapFor(key string) *roaring64.Bitmap {
	if e, ok := p.labelIndex.Get(postingEntry{key: key}); ok {
		return e.bm
	}
	return nil
}

// AddPostingForLabelValue idempotently adds id to the (label, value)
// bitmap, creating the entry on first use.
func (p *PostingIndex) AddPostingForLabelValue(id uint64, label, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addLocked(labelValueKey(label, value), id)
	p.addLocked(allPostingsKey, id)
}

func (p *PostingIndex) addLocked(key string, id uint64) {
	if e, ok := p.labelIndex.Get(postingEntry{key: key}); ok {
		e.bm.Add(id)
		return
	}
	bm := roaring64.New()
	bm.Add(id)
	p.labelIndex.ReplaceOrInsert(postingEntry{key: key, bm: bm})
}

// RemovePostingForLabelValue removes id from the bitmap, deleting the entry
// once it is empty.
func (p *PostingIndex) RemovePostingForLabelValue(label, value string, id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(labelValueKey(label, value), id)
}

func (p *PostingIndex) removeLocked(key string, id uint64) {
	e, ok := p.labelIndex.Get(postingEntry{key: key})
	if !ok {
		return
	}
	e.bm.Remove(id)
	if e.bm.IsEmpty() {
		p.labelIndex.Delete(postingEntry{key: key})
	}
}

// AllPostings reads the universe set.
func (p *PostingIndex) AllPostings() *roaring64.Bitmap {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if bm := p.bitmapFor(allPostingsKey); bm != nil {
		return bm.Clone()
	}
	return emptyBitmap.Clone()
}

func (p *PostingIndex) subtractStaleLocked(bm *roaring64.Bitmap) *roaring64.Bitmap {
	out := bm.Clone()
	if !p.staleIDs.IsEmpty() {
		out.AndNot(p.staleIDs)
	}
	return out
}

// PostingsForLabelValue returns a cheap clone-on-reference bitmap for one
// (label, value) pair, with any pending stale IDs subtracted.
func (p *PostingIndex) PostingsForLabelValue(label, value string) *roaring64.Bitmap {
	p.mu.RLock()
	defer p.mu.RUnlock()
	bm := p.bitmapFor(labelValueKey(label, value))
	if bm == nil {
		return emptyBitmap.Clone()
	}
	return p.subtractStaleLocked(bm)
}

// PostingsForAllLabelValues is the OR-union of every value bitmap of label.
func (p *PostingIndex) PostingsForAllLabelValues(label string) *roaring64.Bitmap {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := roaring64.New()
	prefix := labelPrefix(label)
	p.labelIndex.AscendGreaterOrEqual(postingEntry{key: prefix}, func(e postingEntry) bool {
		if len(e.key) < len(prefix) || e.key[:len(prefix)] != prefix {
			return false
		}
		out.Or(e.bm)
		return true
	})
	return p.subtractStaleLocked(out)
}

// Postings is the OR-union of (label, value) lookups for each given value.
func (p *PostingIndex) Postings(label string, values []string) *roaring64.Bitmap {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := roaring64.New()
	for _, v := range values {
		if bm := p.bitmapFor(labelValueKey(label, v)); bm != nil {
			out.Or(bm)
		}
	}
	return p.subtractStaleLocked(out)
}

// PostingsForLabelMatching prefix-scans label's values, OR-unioning the
// bitmaps of every value accepted by predicate.
func (p *PostingIndex) PostingsForLabelMatching(label string, predicate func(value string) bool) *roaring64.Bitmap {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := roaring64.New()
	prefix := labelPrefix(label)
	p.labelIndex.AscendGreaterOrEqual(postingEntry{key: prefix}, func(e postingEntry) bool {
		if len(e.key) < len(prefix) || e.key[:len(prefix)] != prefix {
			return false
		}
		value := e.key[len(prefix) : len(e.key)-1] // strip the trailing NUL sentinel
		if predicate(value) {
			out.Or(e.bm)
		}
		return true
	})
	return p.subtractStaleLocked(out)
}

// PostingsByLabels intersects (ANDs) the per-(label,value) bitmaps of each
// pair; an empty pair list yields the universe set.
func (p *PostingIndex) PostingsByLabels(pairs [][2]string) *roaring64.Bitmap {
	if len(pairs) == 0 {
		return p.AllPostings()
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out *roaring64.Bitmap
	for _, pair := range pairs {
		bm := p.bitmapFor(labelValueKey(pair[0], pair[1]))
		if bm == nil {
			return emptyBitmap.Clone()
		}
		if out == nil {
			out = bm.Clone()
		} else {
			out.And(bm)
		}
	}
	return p.subtractStaleLocked(out)
}

// PostingsWithoutLabel returns every ID that does NOT carry a value for
// label: all_postings AND NOT postings_for_all_label_values(label).
func (p *PostingIndex) PostingsWithoutLabel(label string) *roaring64.Bitmap {
	all := p.AllPostings()
	withLabel := p.PostingsForAllLabelValues(label)
	all.AndNot(withLabel)
	return all
}
