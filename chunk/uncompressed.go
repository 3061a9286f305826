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

package chunk

import (
	"encoding/binary"
	"math"
	"sort"
)

// bytesPerSample is the on-disk/in-memory footprint of one (timestamp,
// value) pair in the uncompressed encoding: an int64 and a float64.
const bytesPerSample = 16

// uncompressedChunk stores samples as two parallel fixed-capacity arrays.
// Lookups use binary search; upsert is O(log n + shift).
type uncompressedChunk struct {
	timestamps []int64
	values     []float64
	maxSamples int
}

func newUncompressedChunk(maxSizeBytes int) *uncompressedChunk {
	maxSamples := maxSizeBytes / bytesPerSample
	if maxSamples < 2 {
		maxSamples = 2
	}
	return &uncompressedChunk{
		timestamps: make([]int64, 0, maxSamples),
		values:     make([]float64, 0, maxSamples),
		maxSamples: maxSamples,
	}
}

func (c *uncompressedChunk) Encoding() Encoding { return Uncompressed }

// search returns the index of ts if present (found=true), else the
// insertion point that keeps the array sorted.
func (c *uncompressedChunk) search(ts int64) (idx int, found bool) {
	n := len(c.timestamps)
	idx = sort.Search(n, func(i int) bool { return c.timestamps[i] >= ts })
	found = idx < n && c.timestamps[idx] == ts
	return
}

func (c *uncompressedChunk) AddSample(s Sample) AddResult {
	n := len(c.timestamps)
	if n > 0 && s.Timestamp == c.timestamps[n-1] {
		return AddResult{Outcome: OutcomeDuplicate, LastTS: s.Timestamp}
	}
	if n > 0 && s.Timestamp < c.timestamps[n-1] {
		return AddResult{Outcome: OutcomeError, Err: errOutOfOrderAppend}
	}
	if n >= c.maxSamples {
		return AddResult{Outcome: OutcomeCapacityFull}
	}
	s.Value = canonicalizeNaN(s.Value)
	c.timestamps = append(c.timestamps, s.Timestamp)
	c.values = append(c.values, s.Value)
	return AddResult{Outcome: OutcomeOK, Sample: s}
}

func (c *uncompressedChunk) Upsert(s Sample, dup DuplicatePolicyConfig) AddResult {
	s.Value = canonicalizeNaN(s.Value)
	idx, found := c.search(s.Timestamp)
	if !found {
		if len(c.timestamps) >= c.maxSamples {
			return AddResult{Outcome: OutcomeCapacityFull}
		}
		c.insertAt(idx, s)
		return AddResult{Outcome: OutcomeOK, Sample: s}
	}
	return c.resolveDuplicate(idx, s, dup)
}

func (c *uncompressedChunk) resolveDuplicate(idx int, s Sample, dup DuplicatePolicyConfig) AddResult {
	existing := c.values[idx]
	resolved, ok := dup.Policy.Resolve(existing, s.Value)
	if !ok {
		return AddResult{Outcome: OutcomeDuplicate, LastTS: s.Timestamp}
	}
	c.values[idx] = canonicalizeNaN(resolved)
	return AddResult{Outcome: OutcomeOK, Sample: Sample{Timestamp: s.Timestamp, Value: c.values[idx]}}
}

func (c *uncompressedChunk) insertAt(idx int, s Sample) {
	c.timestamps = append(c.timestamps, 0)
	copy(c.timestamps[idx+1:], c.timestamps[idx:])
	c.timestamps[idx] = s.Timestamp

	c.values = append(c.values, 0)
	copy(c.values[idx+1:], c.values[idx:])
	c.values[idx] = s.Value
}

func (c *uncompressedChunk) MergeSamples(sorted []Sample, dup DuplicatePolicyConfig) []AddResult {
	results := make([]AddResult, len(sorted))
	for i, s := range sorted {
		n := len(c.timestamps)
		if n > 0 && s.Timestamp > c.timestamps[n-1] {
			if n >= c.maxSamples {
				results[i] = AddResult{Outcome: OutcomeCapacityFull}
				continue
			}
			s.Value = canonicalizeNaN(s.Value)
			c.timestamps = append(c.timestamps, s.Timestamp)
			c.values = append(c.values, s.Value)
			results[i] = AddResult{Outcome: OutcomeOK, Sample: s}
			continue
		}
		results[i] = c.Upsert(s, dup)
	}
	return results
}

func (c *uncompressedChunk) GetRange(start, end int64) []Sample {
	if len(c.timestamps) == 0 || start > end {
		return nil
	}
	lo := sort.Search(len(c.timestamps), func(i int) bool { return c.timestamps[i] >= start })
	hi := sort.Search(len(c.timestamps), func(i int) bool { return c.timestamps[i] > end })
	if lo >= hi {
		return nil
	}
	out := make([]Sample, hi-lo)
	for i := lo; i < hi; i++ {
		out[i-lo] = Sample{Timestamp: c.timestamps[i], Value: c.values[i]}
	}
	return out
}

func (c *uncompressedChunk) RemoveRange(start, end int64) int {
	if len(c.timestamps) == 0 || start > end {
		return 0
	}
	lo := sort.Search(len(c.timestamps), func(i int) bool { return c.timestamps[i] >= start })
	hi := sort.Search(len(c.timestamps), func(i int) bool { return c.timestamps[i] > end })
	if lo >= hi {
		return 0
	}
	removed := hi - lo
	c.timestamps = append(c.timestamps[:lo], c.timestamps[hi:]...)
	c.values = append(c.values[:lo], c.values[hi:]...)
	return removed
}

func (c *uncompressedChunk) SamplesByTimestamps(timestamps []int64) []Sample {
	var out []Sample
	for _, ts := range timestamps {
		if idx, found := c.search(ts); found {
			out = append(out, Sample{Timestamp: c.timestamps[idx], Value: c.values[idx]})
		}
	}
	return out
}

func (c *uncompressedChunk) IsTimestampInRange(ts int64) bool {
	if len(c.timestamps) == 0 {
		return false
	}
	return ts >= c.timestamps[0] && ts <= c.timestamps[len(c.timestamps)-1]
}

func (c *uncompressedChunk) HasSamplesInRange(start, end int64) bool {
	if len(c.timestamps) == 0 || start > end {
		return false
	}
	lo := sort.Search(len(c.timestamps), func(i int) bool { return c.timestamps[i] >= start })
	return lo < len(c.timestamps) && c.timestamps[lo] <= end
}

func (c *uncompressedChunk) FirstTimestamp() int64 {
	if len(c.timestamps) == 0 {
		return 0
	}
	return c.timestamps[0]
}

func (c *uncompressedChunk) LastTimestamp() int64 {
	if len(c.timestamps) == 0 {
		return 0
	}
	return c.timestamps[len(c.timestamps)-1]
}

func (c *uncompressedChunk) LastSample() (Sample, bool) {
	n := len(c.timestamps)
	if n == 0 {
		return Sample{}, false
	}
	return Sample{Timestamp: c.timestamps[n-1], Value: c.values[n-1]}, true
}

func (c *uncompressedChunk) Len() int { return len(c.timestamps) }

func (c *uncompressedChunk) Size() int { return len(c.timestamps) * bytesPerSample }

func (c *uncompressedChunk) IsFull() bool { return len(c.timestamps) >= c.maxSamples }

func (c *uncompressedChunk) ShouldSplit() bool { return c.IsFull() }

func (c *uncompressedChunk) Clear() {
	c.timestamps = c.timestamps[:0]
	c.values = c.values[:0]
}

func (c *uncompressedChunk) Split() Chunk {
	n := len(c.timestamps)
	mid := n / 2
	right := &uncompressedChunk{
		timestamps: append([]int64(nil), c.timestamps[mid:]...),
		values:     append([]float64(nil), c.values[mid:]...),
		maxSamples: c.maxSamples,
	}
	c.timestamps = c.timestamps[:mid:mid]
	c.values = c.values[:mid:mid]
	return right
}

// SaveRDB encodes the chunk bit-exactly as (count uvarint, timestamps...,
// values...).
func (c *uncompressedChunk) SaveRDB() []byte {
	n := len(c.timestamps)
	buf := make([]byte, 0, binary.MaxVarintLen64+n*bytesPerSample)
	var tmp [binary.MaxVarintLen64]byte
	ln := binary.PutUvarint(tmp[:], uint64(n))
	buf = append(buf, tmp[:ln]...)
	for _, ts := range c.timestamps {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(ts))
		buf = append(buf, b[:]...)
	}
	for _, v := range c.values {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
		buf = append(buf, b[:]...)
	}
	return buf
}

func (c *uncompressedChunk) LoadRDB(data []byte) error {
	n, used := binary.Uvarint(data)
	if used <= 0 {
		return errChunkDecoding
	}
	data = data[used:]
	need := int(n)*8*2
	if len(data) < need {
		return errChunkDecoding
	}
	c.timestamps = make([]int64, n)
	c.values = make([]float64, n)
	for i := 0; i < int(n); i++ {
		c.timestamps[i] = int64(binary.LittleEndian.Uint64(data[i*8:]))
	}
	base := int(n) * 8
	for i := 0; i < int(n); i++ {
		c.values[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[base+i*8:]))
	}
	if c.maxSamples < int(n) {
		c.maxSamples = int(n)
	}
	return nil
}
