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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUncompressedAppendAndRange(t *testing.T) {
	c := NewChunk(Uncompressed, 256)
	for _, s := range []Sample{{1000, 1}, {2000, 2}, {3000, 3}} {
		res := c.AddSample(s)
		require.Equal(t, OutcomeOK, res.Outcome)
	}
	require.Equal(t, 3, c.Len())
	require.Equal(t, int64(1000), c.FirstTimestamp())
	require.Equal(t, int64(3000), c.LastTimestamp())

	got := c.GetRange(1500, 3000)
	require.Equal(t, []Sample{{2000, 2}, {3000, 3}}, got)
}

// TestUncompressedDuplicatePolicyLast covers scenario B from the worked
// examples: re-adding an existing timestamp under DuplicatePolicyLast
// replaces the stored value rather than rejecting the write.
func TestUncompressedDuplicatePolicyLast(t *testing.T) {
	c := NewChunk(Uncompressed, 256)
	require.Equal(t, OutcomeOK, c.AddSample(Sample{1000, 1}).Outcome)

	res := c.Upsert(Sample{1000, 2}, DuplicatePolicyConfig{Policy: DuplicatePolicyLast})
	require.Equal(t, OutcomeOK, res.Outcome)
	require.Equal(t, Sample{1000, 2}, res.Sample)
	require.Equal(t, []Sample{{1000, 2}}, c.GetRange(0, 9999))
}

func TestUncompressedDuplicatePolicyBlock(t *testing.T) {
	c := NewChunk(Uncompressed, 256)
	require.Equal(t, OutcomeOK, c.AddSample(Sample{1000, 1}).Outcome)
	res := c.Upsert(Sample{1000, 2}, DuplicatePolicyConfig{Policy: DuplicatePolicyBlock})
	require.Equal(t, OutcomeDuplicate, res.Outcome)
	require.Equal(t, []Sample{{1000, 1}}, c.GetRange(0, 9999))
}

func TestUncompressedRemoveRange(t *testing.T) {
	c := NewChunk(Uncompressed, 256)
	for _, s := range []Sample{{1000, 1}, {2000, 2}, {3000, 3}, {4000, 4}} {
		c.AddSample(s)
	}
	removed := c.RemoveRange(2000, 3000)
	require.Equal(t, 2, removed)
	require.Equal(t, []Sample{{1000, 1}, {4000, 4}}, c.GetRange(0, 9999))
}

func TestUncompressedSplit(t *testing.T) {
	c := NewChunk(Uncompressed, 256)
	for i := int64(0); i < 10; i++ {
		c.AddSample(Sample{Timestamp: i * 1000, Value: float64(i)})
	}
	right := c.Split()
	require.Equal(t, 5, c.Len())
	require.Equal(t, 5, right.Len())
	require.True(t, c.LastTimestamp() < right.FirstTimestamp())
}

func TestUncompressedRDBRoundTrip(t *testing.T) {
	c := NewChunk(Uncompressed, 256)
	for _, s := range []Sample{{1000, 1.5}, {2000, -2.25}, {3000, 0}} {
		c.AddSample(s)
	}
	blob := c.SaveRDB()

	loaded := NewChunk(Uncompressed, 256)
	require.NoError(t, loaded.LoadRDB(blob))
	require.Equal(t, c.GetRange(0, 9999), loaded.GetRange(0, 9999))
}

func TestUncompressedCapacityFull(t *testing.T) {
	c := NewChunk(Uncompressed, bytesPerSample*2) // room for exactly 2 samples
	require.Equal(t, OutcomeOK, c.AddSample(Sample{1000, 1}).Outcome)
	require.Equal(t, OutcomeOK, c.AddSample(Sample{2000, 2}).Outcome)
	require.Equal(t, OutcomeCapacityFull, c.AddSample(Sample{3000, 3}).Outcome)
}
