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
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestGorillaRoundTrip covers scenario C from the worked examples: a dense
// sine-wave series should decode back to exactly the samples written, in
// order, in no more than twice the uncompressed footprint.
func TestGorillaRoundTrip(t *testing.T) {
	c := NewChunk(Gorilla, 4096)
	var want []Sample
	for ts := int64(1000); ts <= 50000; ts += 1000 {
		v := math.Sin(float64(ts) / 1000)
		want = append(want, Sample{Timestamp: ts, Value: v})
		require.Equal(t, OutcomeOK, c.AddSample(Sample{Timestamp: ts, Value: v}).Outcome)
	}

	got := c.GetRange(10000, 20000)
	var wantRange []Sample
	for _, s := range want {
		if s.Timestamp >= 10000 && s.Timestamp <= 20000 {
			wantRange = append(wantRange, s)
		}
	}
	require.Equal(t, wantRange, got)

	full := c.GetRange(math.MinInt64, math.MaxInt64)
	require.Equal(t, want, full)
	require.LessOrEqual(t, c.Size(), len(want)*16*2)
}

func TestGorillaRoundTripWithNaN(t *testing.T) {
	c := NewChunk(Gorilla, 1024)
	samples := []Sample{
		{1000, 1.5},
		{2000, math.NaN()},
		{3000, -1.5},
		{4000, 0},
	}
	for _, s := range samples {
		require.Equal(t, OutcomeOK, c.AddSample(s).Outcome)
	}
	got := c.GetRange(0, 9999)
	require.Len(t, got, 4)
	require.True(t, math.IsNaN(got[1].Value))
	require.Equal(t, uint64(0x7FF8000000000000), math.Float64bits(got[1].Value))
}

func TestGorillaUpsertRebuild(t *testing.T) {
	c := NewChunk(Gorilla, 1024)
	for _, s := range []Sample{{1000, 1}, {3000, 3}, {5000, 5}} {
		require.Equal(t, OutcomeOK, c.AddSample(s).Outcome)
	}
	res := c.Upsert(Sample{2000, 2}, DuplicatePolicyConfig{Policy: DuplicatePolicyLast})
	require.Equal(t, OutcomeOK, res.Outcome)

	got := c.GetRange(0, 9999)
	require.Equal(t, []Sample{{1000, 1}, {2000, 2}, {3000, 3}, {5000, 5}}, got)
}

func TestGorillaUpsertDuplicateBlock(t *testing.T) {
	c := NewChunk(Gorilla, 1024)
	require.Equal(t, OutcomeOK, c.AddSample(Sample{1000, 1}).Outcome)
	require.Equal(t, OutcomeOK, c.AddSample(Sample{2000, 2}).Outcome)

	res := c.Upsert(Sample{1000, 99}, DuplicatePolicyConfig{Policy: DuplicatePolicyBlock})
	require.Equal(t, OutcomeDuplicate, res.Outcome)
	got := c.GetRange(0, 9999)
	require.Equal(t, float64(1), got[0].Value)
}

func TestGorillaRemoveRange(t *testing.T) {
	c := NewChunk(Gorilla, 1024)
	for _, s := range []Sample{{1000, 1}, {2000, 2}, {3000, 3}, {4000, 4}} {
		require.Equal(t, OutcomeOK, c.AddSample(s).Outcome)
	}
	removed := c.RemoveRange(2000, 3000)
	require.Equal(t, 2, removed)
	require.Equal(t, []Sample{{1000, 1}, {4000, 4}}, c.GetRange(0, 9999))
}

func TestGorillaMergeSamplesAppendFastPath(t *testing.T) {
	c := NewChunk(Gorilla, 4096)
	require.Equal(t, OutcomeOK, c.AddSample(Sample{1000, 1}).Outcome)

	results := c.MergeSamples([]Sample{{2000, 2}, {3000, 3}, {4000, 4}}, DuplicatePolicyConfig{Policy: DuplicatePolicyLast})
	for _, r := range results {
		require.Equal(t, OutcomeOK, r.Outcome)
	}
	require.Equal(t, []Sample{{1000, 1}, {2000, 2}, {3000, 3}, {4000, 4}}, c.GetRange(0, 9999))
}

func TestGorillaMergeSamplesOverlapping(t *testing.T) {
	c := NewChunk(Gorilla, 4096)
	for _, s := range []Sample{{1000, 1}, {3000, 3}, {5000, 5}} {
		require.Equal(t, OutcomeOK, c.AddSample(s).Outcome)
	}
	results := c.MergeSamples([]Sample{{2000, 2}, {3000, 30}, {4000, 4}}, DuplicatePolicyConfig{Policy: DuplicatePolicySum})
	require.Equal(t, OutcomeOK, results[0].Outcome)
	require.Equal(t, OutcomeOK, results[1].Outcome)
	require.Equal(t, OutcomeOK, results[2].Outcome)

	got := c.GetRange(0, 9999)
	require.Equal(t, []Sample{{1000, 1}, {2000, 2}, {3000, 33}, {4000, 4}, {5000, 5}}, got)
}

func TestGorillaSplit(t *testing.T) {
	c := NewChunk(Gorilla, 4096)
	for i := int64(0); i < 10; i++ {
		require.Equal(t, OutcomeOK, c.AddSample(Sample{Timestamp: i * 1000, Value: float64(i)}).Outcome)
	}
	right := c.Split()
	require.Equal(t, 5, c.Len())
	require.Equal(t, 5, right.Len())
	require.True(t, c.LastTimestamp() < right.FirstTimestamp())
	require.Equal(t, []Sample{{5000, 5}, {6000, 6}, {7000, 7}, {8000, 8}, {9000, 9}}, right.GetRange(0, 9999))
}

func TestGorillaRDBRoundTrip(t *testing.T) {
	c := NewChunk(Gorilla, 4096)
	for _, s := range []Sample{{1000, 1.5}, {2000, -2.25}, {3000, 2.25}, {4000, 0}, {5000, 100}} {
		require.Equal(t, OutcomeOK, c.AddSample(s).Outcome)
	}
	blob := c.SaveRDB()

	loaded := NewChunk(Gorilla, 4096)
	require.NoError(t, loaded.LoadRDB(blob))
	require.Equal(t, c.GetRange(0, 9999), loaded.GetRange(0, 9999))
	require.Equal(t, c.FirstTimestamp(), loaded.FirstTimestamp())
	require.Equal(t, c.LastTimestamp(), loaded.LastTimestamp())

	// the loaded chunk must remain appendable without corrupting the stream,
	// even when the saved stream ended mid-byte.
	require.Equal(t, OutcomeOK, loaded.AddSample(Sample{6000, 6}).Outcome)
	require.Equal(t, append(c.GetRange(0, 9999), Sample{6000, 6}), loaded.GetRange(0, 9999))
}

func TestGorillaIsFullAndShouldSplit(t *testing.T) {
	c := NewChunk(Gorilla, 16) // maxSamples == 2
	require.Equal(t, OutcomeOK, c.AddSample(Sample{1000, 1}).Outcome)
	require.Equal(t, OutcomeOK, c.AddSample(Sample{2000, 2}).Outcome)
	require.True(t, c.IsFull())
	require.True(t, c.ShouldSplit())
	require.Equal(t, OutcomeCapacityFull, c.AddSample(Sample{3000, 3}).Outcome)
}
