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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ccollie/valkey-timeseries-sub001/chunk"
)

func TestBulkMergeSamplesIntoEmptySeries(t *testing.T) {
	s := New(1, nil, 0, chunk.Uncompressed, 256, chunk.DuplicatePolicyConfig{Policy: chunk.DuplicatePolicyLast}, Rounding{})
	sorted := []chunk.Sample{{1000, 1}, {2000, 2}, {3000, 3}}

	res := MergeSamples(s, sorted, chunk.DuplicatePolicyConfig{Policy: chunk.DuplicatePolicyLast}, 3000)
	for _, r := range res.Results {
		require.Equal(t, chunk.OutcomeOK, r.Outcome)
	}
	require.Equal(t, sorted, s.GetRange(0, 9999))
	require.Equal(t, int64(1000), res.TouchedMin)
	require.Equal(t, int64(3000), res.TouchedMax)
}

func TestBulkMergeSamplesAcrossManyNewChunkSlabs(t *testing.T) {
	// chunk_size=32 -> 2 samples/chunk, so 10 samples span 5 fresh chunks:
	// exercises the >=2-group parallel path and slab sub-partitioning.
	s := New(1, nil, 0, chunk.Uncompressed, 32, chunk.DuplicatePolicyConfig{Policy: chunk.DuplicatePolicyLast}, Rounding{})
	sorted := make([]chunk.Sample, 10)
	for i := range sorted {
		sorted[i] = chunk.Sample{Timestamp: int64(i) * 1000, Value: float64(i)}
	}
	res := MergeSamples(s, sorted, chunk.DuplicatePolicyConfig{Policy: chunk.DuplicatePolicyLast}, 9000)
	for _, r := range res.Results {
		require.Equal(t, chunk.OutcomeOK, r.Outcome)
	}
	require.Equal(t, sorted, s.GetRange(0, 99999))
	require.Equal(t, 5, s.ChunkCount())
}

func TestBulkMergeSamplesTooOld(t *testing.T) {
	s := New(1, nil, 1000, chunk.Uncompressed, 256, chunk.DuplicatePolicyConfig{Policy: chunk.DuplicatePolicyLast}, Rounding{})
	s.Add(5000, 5, nil)

	res := MergeSamples(s, []chunk.Sample{{3000, 3}, {6000, 6}}, chunk.DuplicatePolicyConfig{Policy: chunk.DuplicatePolicyLast}, 6000)
	require.Equal(t, chunk.OutcomeTooOld, res.Results[0].Outcome)
	require.Equal(t, chunk.OutcomeOK, res.Results[1].Outcome)
	require.Equal(t, []chunk.Sample{{5000, 5}, {6000, 6}}, s.GetRange(0, 9999))
}

func TestBulkMergeSamplesOverlappingExistingChunk(t *testing.T) {
	s := New(1, nil, 0, chunk.Uncompressed, 256, chunk.DuplicatePolicyConfig{Policy: chunk.DuplicatePolicySum}, Rounding{})
	s.Add(1000, 1, nil)
	s.Add(3000, 3, nil)
	s.Add(5000, 5, nil)

	res := MergeSamples(s, []chunk.Sample{{2000, 2}, {3000, 30}, {4000, 4}}, chunk.DuplicatePolicyConfig{Policy: chunk.DuplicatePolicySum}, 5000)
	for _, r := range res.Results {
		require.Equal(t, chunk.OutcomeOK, r.Outcome)
	}
	require.Equal(t,
		[]chunk.Sample{{1000, 1}, {2000, 2}, {3000, 33}, {4000, 4}, {5000, 5}},
		s.GetRange(0, 9999))
}

func TestBulkMergeSamplesTriggersCompactionOnClosedBucket(t *testing.T) {
	dest := New(2, nil, 0, chunk.Uncompressed, 256, chunk.DuplicatePolicyConfig{Policy: chunk.DuplicatePolicyLast}, Rounding{})
	srcID := uint64(1)
	dest.SrcSeries = &srcID

	src := New(1, nil, 0, chunk.Uncompressed, 256, chunk.DuplicatePolicyConfig{Policy: chunk.DuplicatePolicyLast}, Rounding{})
	src.Rules = []*CompactionRule{{DestID: 2, BucketDuration: 5000, Aggregator: AggAvg, AlignedStart: true}}

	// everything in [0,5000) is a closed bucket once `now` has moved past it.
	res := MergeSamples(src, []chunk.Sample{{1000, 1}, {2000, 3}, {11000, 11}}, chunk.DuplicatePolicyConfig{Policy: chunk.DuplicatePolicyLast}, 12000)
	require.NotEmpty(t, res.Emitted)

	found := false
	for _, e := range res.Emitted {
		if e.Sample.Timestamp == 0 {
			require.Equal(t, float64(2), e.Sample.Value) // avg(1,3)
			found = true
		}
	}
	require.True(t, found, "expected an emitted aggregate for the closed [0,5000) bucket")
}
