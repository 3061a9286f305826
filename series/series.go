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

// Package series implements the per-key time-series container: an ordered
// list of chunks plus the retention, rounding, duplicate-policy and
// compaction-rule metadata that govern how samples land in it.
package series

import (
	"sort"

	"github.com/ccollie/valkey-timeseries-sub001/chunk"
	"github.com/ccollie/valkey-timeseries-sub001/common"
)

// Label is one (name, value) pair of a series' metric name. Both name and
// value are interned: callers construct Labels from common.InternedString so
// repeated label text across many series shares backing storage.
type Label struct {
	Name  *common.InternedString
	Value *common.InternedString
}

// Labels is a sorted, deduplicated set of Label, sorted by Name then Value.
type Labels []Label

func (l Labels) Len() int      { return len(l) }
func (l Labels) Swap(i, j int) { l[i], l[j] = l[j], l[i] }
func (l Labels) Less(i, j int) bool {
	if l[i].Name.String() != l[j].Name.String() {
		return l[i].Name.String() < l[j].Name.String()
	}
	return l[i].Value.String() < l[j].Value.String()
}

// TimeSeries is the per-key storage container of spec.md §3: an ordered,
// non-overlapping list of chunks plus the metadata governing writes to it.
type TimeSeries struct {
	ID uint64

	Labels Labels

	RetentionMillis  int64 // sliding window relative to LastSample; 0 = infinite
	ChunkCompression chunk.Encoding
	ChunkSizeBytes   int
	Duplicates       chunk.DuplicatePolicyConfig
	Rounding         Rounding

	SrcSeries *uint64 // set if this series is a compaction destination
	Rules     []*CompactionRule

	chunks []chunk.Chunk // ascending by FirstTimestamp(), non-overlapping
	index  *chunkIndex   // non-nil only once len(chunks) >= chunkIndexThreshold

	TotalSamples   int
	FirstTimestamp int64
	LastSample     chunk.Sample
	hasLastSample  bool
}

// New allocates an empty series. ChunkSizeBytes must be positive; callers
// enforce the power-of-two/bounded-range constraint of spec.md §3 at the
// command layer, not here.
func New(id uint64, labels Labels, retentionMillis int64, enc chunk.Encoding, chunkSizeBytes int, dup chunk.DuplicatePolicyConfig, rounding Rounding) *TimeSeries {
	sort.Sort(labels)
	return &TimeSeries{
		ID:               id,
		Labels:           labels,
		RetentionMillis:  retentionMillis,
		ChunkCompression: enc,
		ChunkSizeBytes:   chunkSizeBytes,
		Duplicates:       dup,
		Rounding:         rounding,
	}
}

func (s *TimeSeries) touchedIndex() {
	if len(s.chunks) >= chunkIndexThreshold {
		if s.index == nil {
			s.index = newChunkIndex()
		}
		s.index.rebuild(s.chunks)
	} else {
		s.index = nil
	}
}

// chunkPosForTimestamp returns the position of the last chunk whose first
// timestamp is <= ts (0 for an empty series). If ts precedes every chunk it
// returns -1 below chunkIndexThreshold and 0 at or above it.
func (s *TimeSeries) chunkPosForTimestamp(ts int64) int {
	n := len(s.chunks)
	if n == 0 {
		return 0
	}
	if n < chunkIndexThreshold {
		return sort.Search(n, func(i int) bool { return s.chunks[i].FirstTimestamp() > ts }) - 1
	}
	if s.index == nil {
		s.touchedIndex()
	}
	return s.index.findPos(ts)
}

func (s *TimeSeries) refreshDerived() {
	s.TotalSamples = 0
	for _, c := range s.chunks {
		s.TotalSamples += c.Len()
	}
	if len(s.chunks) == 0 {
		s.FirstTimestamp = 0
		s.hasLastSample = false
		s.LastSample = chunk.Sample{}
		return
	}
	s.FirstTimestamp = s.chunks[0].FirstTimestamp()
	last := s.chunks[len(s.chunks)-1]
	if sample, ok := last.LastSample(); ok {
		s.LastSample = sample
		s.hasLastSample = true
	}
}

func (s *TimeSeries) newChunk() chunk.Chunk {
	return chunk.NewChunk(s.ChunkCompression, s.ChunkSizeBytes)
}

// insertChunk places c into s.chunks keeping ascending FirstTimestamp order
// and invalidates/rebuilds the lookup index.
func (s *TimeSeries) insertChunk(pos int, c chunk.Chunk) {
	s.chunks = append(s.chunks, nil)
	copy(s.chunks[pos+1:], s.chunks[pos:])
	s.chunks[pos] = c
	s.touchedIndex()
}

// splitChunkAt splits s.chunks[pos] in place, inserting the returned right
// half immediately after it, per §4.2 "Split".
func (s *TimeSeries) splitChunkAt(pos int) {
	right := s.chunks[pos].Split()
	s.chunks = append(s.chunks, nil)
	copy(s.chunks[pos+2:], s.chunks[pos+1:])
	s.chunks[pos+1] = right
	s.touchedIndex()
}

// LoadChunk appends a chunk reconstructed from persisted storage (RDB load)
// to the end of s.chunks and refreshes derived state. Callers must append
// in the same ascending-by-FirstTimestamp order the chunks were saved in;
// LoadChunk does not re-sort.
func (s *TimeSeries) LoadChunk(c chunk.Chunk) {
	s.chunks = append(s.chunks, c)
	s.touchedIndex()
	s.refreshDerived()
}

// Add decides among append, upsert, and duplicate/ignored handling for one
// sample, per §4.2. Rounding is applied before the value reaches the chunk.
func (s *TimeSeries) Add(ts int64, v float64, dup *chunk.DuplicatePolicyConfig) chunk.AddResult {
	policy := s.Duplicates
	if dup != nil {
		policy = *dup
	}
	v = s.Rounding.Apply(v)

	if len(s.chunks) == 0 {
		c := s.newChunk()
		s.chunks = append(s.chunks, c)
		res := c.AddSample(chunk.Sample{Timestamp: ts, Value: v})
		s.refreshDerived()
		return res
	}

	last := s.chunks[len(s.chunks)-1]
	if !s.hasLastSample || ts > s.LastSample.Timestamp {
		if last.ShouldSplit() {
			s.splitChunkAt(len(s.chunks) - 1)
			last = s.chunks[len(s.chunks)-1]
		}
		res := last.AddSample(chunk.Sample{Timestamp: ts, Value: v})
		if res.Outcome == chunk.OutcomeCapacityFull {
			c := s.newChunk()
			s.chunks = append(s.chunks, c)
			res = c.AddSample(chunk.Sample{Timestamp: ts, Value: v})
		}
		s.refreshDerived()
		return res
	}

	pos := s.chunkPosForTimestamp(ts)
	if pos < 0 {
		pos = 0
	}
	res := s.chunks[pos].Upsert(chunk.Sample{Timestamp: ts, Value: v}, policy)
	if res.Outcome == chunk.OutcomeCapacityFull && s.chunks[pos].ShouldSplit() {
		s.splitChunkAt(pos)
		pos = s.chunkPosForTimestamp(ts)
		res = s.chunks[pos].Upsert(chunk.Sample{Timestamp: ts, Value: v}, policy)
	}
	s.refreshDerived()
	return res
}

// GetRange returns samples in [start, end] ascending across all owning
// chunks.
func (s *TimeSeries) GetRange(start, end int64) []chunk.Sample {
	if start > end {
		return nil
	}
	var out []chunk.Sample
	for _, c := range s.chunks {
		if !c.HasSamplesInRange(start, end) {
			if c.FirstTimestamp() > end {
				break
			}
			continue
		}
		out = append(out, c.GetRange(start, end)...)
	}
	return out
}

// TimestampFilter is a sorted, deduplicated allow-list of timestamps.
type TimestampFilter []int64

// ValueFilter keeps samples with Min <= value <= Max.
type ValueFilter struct {
	Min, Max float64
}

// GetRangeFiltered applies an optional exact-timestamp allow-list and/or an
// optional value range on top of GetRange, per §4.2.
func (s *TimeSeries) GetRangeFiltered(start, end int64, tsFilter TimestampFilter, valueFilter *ValueFilter) []chunk.Sample {
	samples := s.GetRange(start, end)
	if tsFilter != nil {
		samples = filterByTimestamps(samples, tsFilter)
	}
	if valueFilter != nil {
		samples = filterByValue(samples, *valueFilter)
	}
	return samples
}

func filterByTimestamps(samples []chunk.Sample, allow TimestampFilter) []chunk.Sample {
	out := samples[:0:0]
	i := 0
	for _, s := range samples {
		for i < len(allow) && allow[i] < s.Timestamp {
			i++
		}
		if i < len(allow) && allow[i] == s.Timestamp {
			out = append(out, s)
		}
	}
	return out
}

func filterByValue(samples []chunk.Sample, f ValueFilter) []chunk.Sample {
	out := samples[:0:0]
	for _, s := range samples {
		if s.Value >= f.Min && s.Value <= f.Max {
			out = append(out, s)
		}
	}
	return out
}

// RemoveRange deletes samples in [start, end]; chunks fully contained are
// dropped, partially overlapping chunks are partially trimmed, and empty
// chunks are removed from the series.
func (s *TimeSeries) RemoveRange(start, end int64) int {
	if start > end || len(s.chunks) == 0 {
		return 0
	}
	removed := 0
	kept := s.chunks[:0]
	for _, c := range s.chunks {
		switch {
		case c.FirstTimestamp() >= start && c.LastTimestamp() <= end:
			removed += c.Len()
		case c.HasSamplesInRange(start, end):
			removed += c.RemoveRange(start, end)
			if c.Len() > 0 {
				kept = append(kept, c)
			}
		default:
			kept = append(kept, c)
		}
	}
	s.chunks = kept
	s.touchedIndex()
	s.refreshDerived()
	return removed
}

// Trim applies retention: drops chunks entirely older than the retention
// window and partial-trims the first remaining chunk if it straddles the
// cutoff.
func (s *TimeSeries) Trim() int {
	if s.RetentionMillis <= 0 || !s.hasLastSample || len(s.chunks) == 0 {
		return 0
	}
	minTS := s.LastSample.Timestamp - s.RetentionMillis
	removed := 0
	kept := s.chunks[:0]
	for i, c := range s.chunks {
		if c.LastTimestamp() <= minTS {
			removed += c.Len()
			continue
		}
		if i == len(kept) && c.FirstTimestamp() <= minTS {
			removed += c.RemoveRange(c.FirstTimestamp(), minTS)
		}
		if c.Len() > 0 {
			kept = append(kept, c)
		}
	}
	s.chunks = kept
	s.touchedIndex()
	s.refreshDerived()
	return removed
}

// IncrementSampleValue implements INCR/DECR semantics: it writes the last
// sample's value plus delta at ts (delta alone on an empty series). A nil ts
// means the last sample's timestamp, so the last value is updated in place.
// Timestamps older than the last sample are rejected.
func (s *TimeSeries) IncrementSampleValue(ts *int64, delta float64, dup chunk.DuplicatePolicyConfig) (chunk.AddResult, error) {
	target := s.LastSample.Timestamp
	if ts != nil {
		target = *ts
	}
	if s.hasLastSample && target < s.LastSample.Timestamp {
		return chunk.AddResult{}, common.NewError(common.ErrInvalidArgument, "increment timestamp %d precedes last sample %d", target, s.LastSample.Timestamp)
	}
	base := 0.0
	if s.hasLastSample {
		base = s.LastSample.Value
	}
	cfg := dup
	cfg.Policy = chunk.DuplicatePolicyLast
	return s.Add(target, base+delta, &cfg), nil
}

// HasSamplesInRange is a short-circuit existence check used by
// matcher-plus-daterange queries, avoiding a full GetRange materialization.
func (s *TimeSeries) HasSamplesInRange(start, end int64) bool {
	if start > end {
		return false
	}
	for _, c := range s.chunks {
		if c.HasSamplesInRange(start, end) {
			return true
		}
		if c.FirstTimestamp() > end {
			break
		}
	}
	return false
}

// ChunkCount reports the number of chunks currently backing the series.
func (s *TimeSeries) ChunkCount() int { return len(s.chunks) }

// Chunks exposes the backing chunk list read-only, for persistence (§6) and
// background compaction scans.
func (s *TimeSeries) Chunks() []chunk.Chunk { return s.chunks }
