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
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/ccollie/valkey-timeseries-sub001/chunk"
	"github.com/ccollie/valkey-timeseries-sub001/common"
	"github.com/ccollie/valkey-timeseries-sub001/common/mathutil"
)

// parallelGroupThreshold is the minimum number of independent chunk groups
// before bulk merge bothers spinning up an errgroup (§9 open question,
// fixed at >= 2).
const parallelGroupThreshold = 2

// BulkResult is the outcome of one MergeSamples call: the per-sample
// results in input order, and the timestamp span actually written (used by
// callers to drive CompactionRule.Run).
type BulkResult struct {
	Results            []chunk.AddResult
	TouchedMin         int64
	TouchedMax         int64
	Touched            bool
	Emitted            []EmittedSample
}

// MergeSamples is the bulk ingestion hot path of spec.md §4.3: given a
// sorted batch of samples, it drops stale ones, partitions the rest across
// existing and new chunks, merges each partition (in parallel when there is
// more than one group), restores global chunk order, and finally triggers
// every owned CompactionRule over the timestamp span actually written.
func MergeSamples(s *TimeSeries, sorted []chunk.Sample, dup chunk.DuplicatePolicyConfig, now int64) BulkResult {
	results := make([]chunk.AddResult, len(sorted))
	if len(sorted) == 0 {
		return BulkResult{Results: results}
	}

	minTS, hasCutoff := retentionCutoff(s)
	live := make([]chunk.Sample, 0, len(sorted))
	liveIdx := make([]int, 0, len(sorted))
	for i, sam := range sorted {
		if hasCutoff && sam.Timestamp <= minTS {
			results[i] = chunk.AddResult{Outcome: chunk.OutcomeTooOld}
			continue
		}
		live = append(live, sam)
		liveIdx = append(liveIdx, i)
	}
	if len(live) == 0 {
		return BulkResult{Results: results}
	}

	groups := partitionByChunk(s, live)
	newChunksAdded := runGroups(s, groups, dup)

	for _, g := range groups {
		for j, r := range g.chunkResults {
			results[liveIdx[g.inputOffsets[j]]] = r
		}
	}

	if newChunksAdded {
		sort.Slice(s.chunks, func(i, j int) bool {
			return s.chunks[i].FirstTimestamp() < s.chunks[j].FirstTimestamp()
		})
		s.touchedIndex()
	}
	s.refreshDerived()

	out := BulkResult{
		Results:    results,
		TouchedMin: live[0].Timestamp,
		TouchedMax: live[len(live)-1].Timestamp,
		Touched:    true,
	}
	for _, r := range s.Rules {
		out.Emitted = append(out.Emitted, r.Run(s, out.TouchedMin, out.TouchedMax, now)...)
	}
	return out
}

func retentionCutoff(s *TimeSeries) (int64, bool) {
	if s.RetentionMillis <= 0 || !s.hasLastSample {
		return 0, false
	}
	return s.LastSample.Timestamp - s.RetentionMillis, true
}

// chunkGroup is one (existing-chunk-or-new-slab, samples) partition plus
// enough bookkeeping to scatter its per-sample results back to the caller's
// original index space.
type chunkGroup struct {
	existing     chunk.Chunk // nil for a New slab
	samples      []chunk.Sample
	inputOffsets []int // offsets into the `live` slice MergeSamples built
	chunkResults []chunk.AddResult
}

// encodedSampleBytes mirrors spec.md §4.3's conservative per-sample size
// estimate used only for new-chunk slab sizing, not for capacity checks
// (each chunk enforces its own real capacity independently).
func encodedSampleBytes(enc chunk.Encoding) int {
	if enc == chunk.Gorilla {
		return 8
	}
	return 16
}

// indexedSample pairs a sample with its offset into the `live` slice, so a
// group built by common.GroupByIndex can scatter its results back to the
// caller's original index space after merging.
type indexedSample struct {
	sam    chunk.Sample
	offset int
}

// partitionByChunk groups `live` (already sorted ascending) by destination,
// reusing common.GroupByIndex (spec.md §4.3 step 2): samples that fall
// within an existing chunk's reach are grouped with it by position; samples
// newer than the last chunk's last_timestamp key to the New sentinel and are
// further sliced into chunk-sized slabs.
func partitionByChunk(s *TimeSeries, live []chunk.Sample) []*chunkGroup {
	newSentinel := len(s.chunks)

	indexed := make([]indexedSample, len(live))
	for i, sam := range live {
		indexed[i] = indexedSample{sam: sam, offset: i}
	}

	raw := common.GroupByIndex(indexed, func(x indexedSample) int {
		if newSentinel == 0 {
			return newSentinel
		}
		last := s.chunks[newSentinel-1]
		if x.sam.Timestamp > last.LastTimestamp() {
			return newSentinel
		}
		pos := s.chunkPosForTimestamp(x.sam.Timestamp)
		if pos < 0 {
			pos = 0
		}
		return pos
	})

	var groups []*chunkGroup
	for _, g := range raw {
		samples := make([]chunk.Sample, len(g.Items))
		offsets := make([]int, len(g.Items))
		for i, x := range g.Items {
			samples[i] = x.sam
			offsets[i] = x.offset
		}
		if g.Index == newSentinel {
			groups = append(groups, sliceIntoNewChunkGroups(s, samples, offsets)...)
		} else {
			groups = append(groups, &chunkGroup{existing: s.chunks[g.Index], samples: samples, inputOffsets: offsets})
		}
	}
	return groups
}

func sliceIntoNewChunkGroups(s *TimeSeries, samples []chunk.Sample, offsets []int) []*chunkGroup {
	perChunk := mathutil.CeilDiv(s.ChunkSizeBytes, encodedSampleBytes(s.ChunkCompression))
	if perChunk <= 0 {
		perChunk = len(samples)
	}
	var groups []*chunkGroup
	for start := 0; start < len(samples); start += perChunk {
		end := start + perChunk
		if end > len(samples) {
			end = len(samples)
		}
		groups = append(groups, &chunkGroup{
			existing:     nil,
			samples:      samples[start:end],
			inputOffsets: offsets[start:end],
		})
	}
	return groups
}

// runGroups merges every group's samples into its destination chunk,
// running groups concurrently once there are enough of them to be worth the
// goroutine overhead. Existing-chunk groups touch disjoint chunks so no
// locking is needed between them; new-chunk groups allocate independently.
// Returns whether any brand-new chunk was appended to s.chunks.
func runGroups(s *TimeSeries, groups []*chunkGroup, dup chunk.DuplicatePolicyConfig) bool {
	newChunks := make([]chunk.Chunk, len(groups))
	addedAny := false

	merge := func(g *chunkGroup, idx int) {
		target := g.existing
		if target == nil {
			target = s.newChunk()
			newChunks[idx] = target
		}
		g.chunkResults = target.MergeSamples(g.samples, dup)
	}

	if len(groups) >= parallelGroupThreshold {
		var eg errgroup.Group
		for i, g := range groups {
			i, g := i, g
			eg.Go(func() error {
				merge(g, i)
				return nil
			})
		}
		_ = eg.Wait() // merge never returns an error; every group always completes
	} else {
		for i, g := range groups {
			merge(g, i)
		}
	}

	for _, c := range newChunks {
		if c != nil {
			s.chunks = append(s.chunks, c)
			addedAny = true
		}
	}
	return addedAny
}
