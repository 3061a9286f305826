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

// Package chunk implements the two sample-container encodings (uncompressed
// and Gorilla-compressed) that back a TimeSeries' chunk list.
package chunk

import "math"

// canonicalNaN is the quiet-NaN bit pattern samples use for deterministic
// hashing/digest, regardless of which NaN payload a caller supplied.
const canonicalNaN = uint64(0x7FF8000000000000)

// Sample is one (timestamp, value) point. Timestamps are milliseconds since
// the Unix epoch.
type Sample struct {
	Timestamp int64
	Value     float64
}

func canonicalizeNaN(v float64) float64 {
	if math.IsNaN(v) {
		return math.Float64frombits(canonicalNaN)
	}
	return v
}

// NaN returns the canonical quiet-NaN value this package uses to mark
// missing/empty aggregation results (the EMPTY bucket option of §4.5).
func NaN() float64 {
	return math.Float64frombits(canonicalNaN)
}

// Encoding names which concrete Chunk implementation a TimeSeries uses.
// Dispatch is by this tag rather than by interface at rest (§9 "Dynamic
// dispatch"): a series' chunk list is homogeneous, chosen once at creation.
type Encoding uint8

const (
	Uncompressed Encoding = iota
	Gorilla
)

func (e Encoding) String() string {
	if e == Gorilla {
		return "COMPRESSED"
	}
	return "UNCOMPRESSED"
}

// DuplicatePolicy governs how TimeSeries.Add/Upsert/MergeSamples reconcile a
// sample whose timestamp collides with an existing one.
type DuplicatePolicy uint8

const (
	DuplicatePolicyBlock DuplicatePolicy = iota
	DuplicatePolicyFirst
	DuplicatePolicyLast
	DuplicatePolicyMin
	DuplicatePolicyMax
	DuplicatePolicySum
)

// Resolve applies the policy to an (existing, incoming) pair and returns the
// value that should be stored.
func (p DuplicatePolicy) Resolve(existing, incoming float64) (float64, bool) {
	switch p {
	case DuplicatePolicyBlock:
		return existing, false
	case DuplicatePolicyFirst:
		return existing, true
	case DuplicatePolicyLast:
		return incoming, true
	case DuplicatePolicyMin:
		if incoming < existing {
			return incoming, true
		}
		return existing, true
	case DuplicatePolicyMax:
		if incoming > existing {
			return incoming, true
		}
		return existing, true
	case DuplicatePolicySum:
		return existing + incoming, true
	default:
		return existing, false
	}
}

// DuplicatePolicyConfig bundles the policy with two tolerances. MaxTimeDelta
// and MaxValueDelta are stored and persisted with the series, but no write
// path reads them: every collision is resolved by Policy alone.
type DuplicatePolicyConfig struct {
	Policy        DuplicatePolicy
	MaxTimeDelta  int64
	MaxValueDelta float64
}

// AddOutcome is the per-sample result shape shared by Upsert and
// MergeSamples (§6 "Sample add result").
type AddOutcome uint8

const (
	OutcomeOK AddOutcome = iota
	OutcomeDuplicate
	OutcomeIgnored
	OutcomeTooOld
	OutcomeCapacityFull
	OutcomeError
)

// AddResult is returned by single-sample add/upsert paths.
type AddResult struct {
	Outcome AddOutcome
	Sample  Sample // valid when Outcome == OutcomeOK
	LastTS  int64  // valid when Outcome == OutcomeIgnored
	Err     error  // valid when Outcome == OutcomeError
}

// Chunk is the common contract both encodings satisfy. Every operation
// reports a typed outcome rather than panicking on malformed input.
type Chunk interface {
	Encoding() Encoding

	AddSample(s Sample) AddResult
	Upsert(s Sample, dup DuplicatePolicyConfig) AddResult
	MergeSamples(sorted []Sample, dup DuplicatePolicyConfig) []AddResult

	GetRange(start, end int64) []Sample
	RemoveRange(start, end int64) int
	SamplesByTimestamps(timestamps []int64) []Sample

	IsTimestampInRange(ts int64) bool
	HasSamplesInRange(start, end int64) bool

	FirstTimestamp() int64
	LastTimestamp() int64
	LastSample() (Sample, bool)
	Len() int
	Size() int
	IsFull() bool
	ShouldSplit() bool
	Clear()

	// Split divides the chunk in half by sample count, keeping the left
	// half in place and returning a new chunk holding the later samples.
	// The caller is responsible for reinserting the returned chunk into the
	// series' chunk list in sorted order.
	Split() Chunk

	SaveRDB() []byte
	LoadRDB(data []byte) error
}

// NewChunk allocates an empty chunk of the requested encoding with the given
// target maximum size in bytes.
func NewChunk(enc Encoding, maxSizeBytes int) Chunk {
	if enc == Gorilla {
		return newGorillaChunk(maxSizeBytes)
	}
	return newUncompressedChunk(maxSizeBytes)
}
